package handlers

import (
	"net/http"

	"refill-backend/internal/metrics"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PingHandler liveness probe.
// GET /ping
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// HealthCheckHandler reports service and ledger health.
// GET /health
func HealthCheckHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "healthy"
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			dbStatus = "unhealthy"
			metrics.DBConnectionStatus.Set(0)
		} else {
			metrics.DBConnectionStatus.Set(1)
		}

		status := http.StatusOK
		if dbStatus != "healthy" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":   dbStatus,
			"service":  "refill-backend",
			"database": dbStatus,
		})
	}
}
