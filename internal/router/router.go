package router

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"refill-backend/internal/config"
	"refill-backend/internal/handlers"
	"refill-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// corsMiddleware CORS handling.
// Priority: Environment Variable > YAML Config > Default (*)
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		var allowedOrigins []string
		allowCredentials := true
		maxAge := 3600

		if envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); envOrigins != "" {
			for _, o := range strings.Split(envOrigins, ",") {
				if trimmed := strings.TrimSpace(o); trimmed != "" {
					allowedOrigins = append(allowedOrigins, trimmed)
				}
			}
		} else if cfg != nil && len(cfg.CORS.AllowedOrigins) > 0 {
			allowedOrigins = cfg.CORS.AllowedOrigins
			allowCredentials = cfg.CORS.AllowCredentials
			if cfg.CORS.MaxAge > 0 {
				maxAge = cfg.CORS.MaxAge
			}
		} else {
			allowedOrigins = []string{"*"}
		}

		allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"
		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, allowed := range allowedOrigins {
				if strings.TrimSpace(allowed) == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept")
		if allowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SetupRouter wires the HTTP surface: public probes, the authenticated
// refill API and the IP-restricted admin API.
func SetupRouter(
	cfg *config.Config,
	db *gorm.DB,
	logger *logrus.Logger,
	refillHandler *handlers.RefillHandler,
	adminHandler *handlers.AdminHandler,
	adminAuthHandler *handlers.AdminAuthHandler,
) *gin.Engine {
	r := gin.Default()

	r.Use(corsMiddleware(cfg))

	var allowedIPs []string
	if cfg != nil && len(cfg.Admin.AllowedIPs) > 0 {
		allowedIPs = cfg.Admin.AllowedIPs
		logger.WithFields(logrus.Fields{
			"allowed_ips": allowedIPs,
			"count":       len(allowedIPs),
		}).Info("Admin API IP whitelist configured")
	} else {
		logger.Info("No admin.allowedIPs configured, using localhost-only mode")
	}

	localhostOnly := middleware.NewLocalhostOnly(logger, allowedIPs)
	auth := middleware.NewAuthMiddleware(logger, cfg.Auth.JWTSecret)
	adminAuth := middleware.NewAdminAuthMiddleware(logger)

	// ============ Probes ============
	r.GET("/ping", handlers.PingHandler)
	r.GET("/health", handlers.HealthCheckHandler(db))

	// ============ Prometheus Metrics ============
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ Refill API (service-to-service) ============
	api := r.Group("/api/v1")
	api.Use(auth.RequireAuth())
	{
		api.POST("/refills", refillHandler.CreateRefill)
		api.GET("/refills", refillHandler.ListRefills)
		api.GET("/refills/:requestId", refillHandler.GetRefill)
	}

	// ============ Admin API (IP-restricted) ============
	admin := r.Group("/api/v1/admin")
	admin.Use(localhostOnly.Restrict())
	{
		admin.POST("/login", adminAuthHandler.AdminLoginHandler)
		admin.POST("/totp/generate", adminAuthHandler.GenerateTOTPSecretHandler)

		protected := admin.Group("")
		protected.Use(adminAuth.RequireAdminAuth())
		{
			protected.POST("/reconcile", adminHandler.TriggerReconciliation)
			protected.GET("/providers/health", adminHandler.ProviderHealth)
		}
	}

	// ============ NoRoute handler for 404 ============
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"message":    "Endpoint not found",
			"path":       c.Request.URL.Path,
			"suggestion": "Check /api/v1 endpoints for available APIs",
		})
	})

	return r
}
