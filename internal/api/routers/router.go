package routers

import (
	"github.com/gin-gonic/gin"
	"github.com/homeboy445/fileSharerApp/internal/api/handlers"
	"github.com/homeboy445/fileSharerApp/internal/api/middleware"
	"github.com/homeboy445/fileSharerApp/internal/coordinator"
)

type Router struct {
	Hub       *coordinator.Hub
	Handler   *handlers.Handler
	WSHandler *handlers.WebSocketHandler
}

func NewRouter(hub *coordinator.Hub, handler *handlers.Handler, wsh *handlers.WebSocketHandler) *Router {
	return &Router{
		Hub:       hub,
		Handler:   handler,
		WSHandler: wsh,
	}
}

func (rtr *Router) SetupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middleware.CorsMiddleware())

	router.GET("/health", rtr.Handler.HealthCheck)
	router.POST("/isValidRoom", rtr.Handler.IsValidRoom)
	router.GET("/ws", rtr.WSHandler.UpgradeHandler) // Upgrade to websocket request

	return router
}

// New builds the complete coordinator router around hub.
func New(hub *coordinator.Hub) *gin.Engine {
	return NewRouter(hub, handlers.NewHandler(hub), handlers.NewWebSocketHandler(hub)).SetupRouter()
}
