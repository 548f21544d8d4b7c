package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/armory-pm/armory/internal/api/handlers"
	"github.com/armory-pm/armory/internal/auth"
	"github.com/armory-pm/armory/internal/config"
	"github.com/armory-pm/armory/internal/registry"
)

// NewRouter creates and configures the gin router for the registry server.
func NewRouter(cfg *config.Config, store *registry.Store, authenticator *auth.Authenticator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware())
	router.Use(bodyLimitMiddleware(cfg.Server.MaxBodyBytes))

	router.GET("/health", handlers.HealthCheck)
	router.GET("/version", handlers.VersionInfo)
	router.POST("/auth/login", handlers.Login(authenticator, store.Auditor()))

	pkg := handlers.NewPackageHandler(store)
	router.GET("/packages", pkg.List)
	router.GET("/packages/:name", pkg.Info)
	router.GET("/packages/:name/:version/:triple", pkg.Download)
	router.PUT("/packages/:name/:version/:triple", authenticator.Middleware(), pkg.Upload)

	return router
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		slog.Info("http request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"ip", c.ClientIP(),
		)
	}
}

// bodyLimitMiddleware caps request body size so a runaway upload cannot fill
// the disk before the store sees it.
func bodyLimitMiddleware(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}
