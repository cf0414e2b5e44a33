package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(conn *gorm.DB) *HealthHandler {
	return &HealthHandler{db: conn}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status, code, message := "ok", http.StatusOK, "One Click is running"

	sqlDB, err := h.db.DB()

	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}

	if err != nil {
		status, code, message = "degraded", http.StatusServiceUnavailable, "Database unavailable"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
