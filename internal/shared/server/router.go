package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"feedback-backend/internal/analyses"
	"feedback-backend/internal/scenarios"
	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/metrics"
	"feedback-backend/internal/shared/server/middleware"
	"feedback-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router mounts. Construction of the
// dependency graph lives in bootstrap so tests can assemble routers from
// in-memory pieces.
type RouterDeps struct {
	Scenarios *scenarios.Handler
	Analyses  *analyses.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config, deps RouterDeps) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})

	authed := api.Group("")
	authed.Use(middleware.Auth())
	registerMeRoutes(authed)
	if deps.Scenarios != nil {
		deps.Scenarios.RegisterRoutes(authed)
	}
	if deps.Analyses != nil {
		deps.Analyses.RegisterRoutes(authed)
	}

	return r
}

// Addr builds the listen address for the configured port.
func Addr(port string) string {
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf(":%s", port)
}
