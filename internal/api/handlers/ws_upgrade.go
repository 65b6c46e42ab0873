package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/homeboy445/fileSharerApp/internal/coordinator"
	"github.com/homeboy445/fileSharerApp/pkg/logger"
)

type WebSocketHandler struct {
	Hub      *coordinator.Hub
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *coordinator.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		Hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// UpgradeHandler upgrades a peer identified by the uuid query parameter.
func (wsh *WebSocketHandler) UpgradeHandler(c *gin.Context) {
	userID := c.Query("uuid")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "uuid query parameter required",
		})
		return
	}
	conn, err := wsh.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade WebSocket", "err", err)
		return
	}
	logger.Log.Info("New connection", "user_id", userID, "remote", c.ClientIP())
	wsh.Hub.Connect(userID, conn)
}
