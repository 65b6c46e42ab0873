package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homeboy445/fileSharerApp/internal/coordinator"
	"github.com/homeboy445/fileSharerApp/internal/models"
)

type Handler struct {
	Hub *coordinator.Hub
}

func NewHandler(hub *coordinator.Hub) *Handler {
	return &Handler{Hub: hub}
}

// IsValidRoom reports whether a room exists and the files it announces.
func (h *Handler) IsValidRoom(c *gin.Context) {
	var req models.ValidateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Room binding error: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, h.Hub.RoomStatus(req.RoomID))
}
