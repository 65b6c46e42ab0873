package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homeboy445/fileSharerApp/internal/models"
	"github.com/homeboy445/fileSharerApp/pkg/system"
)

func (h *Handler) HealthCheck(c *gin.Context) {
	health := models.HealthCheck{
		Status: "Healthy",
		Uptime: system.Uptime(),
	}
	resp, err := models.NewMessage("health_check", health)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, resp)
}
