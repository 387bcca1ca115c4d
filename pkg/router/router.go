package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"support-chat/backend/internal/api"
	"support-chat/backend/internal/ws"
	"support-chat/backend/pkg/di"
	"support-chat/backend/pkg/errors"
	"support-chat/backend/pkg/logger"
	"support-chat/backend/pkg/middleware"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	wsHandler *ws.Handler
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	cfg := container.Config
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(logger.Middleware(container.Logger))
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	rateLimiter := middleware.NewRateLimiter(container.Logger)
	engine.Use(rateLimiter.Middleware())

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		wsHandler: ws.NewHandler(container.Hub, container.Relay, container.Logger, cfg),
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware())

	exportController := api.NewExportController(r.Container.Store, r.Container.ExportCache)
	chatController := api.NewChatController(r.Container.Relay, r.Container.Store, r.Logger)

	// Moderation over either surface (HTTP or websocket) must drop cached
	// exports for the affected chat.
	r.Container.Relay.OnModeration(exportController.InvalidateChat)

	chatController.RegisterRoutes(r.Engine)
	exportController.RegisterRoutes(r.Engine)

	r.Engine.GET("/health", gin.WrapF(r.Container.Health.HTTPHandler()))
	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket route: every connection starts as a guest and may promote
	// itself to the admin pool over the call surface.
	r.Engine.GET("/ws", r.wsHandler.ServeWs)
}

// corsMiddleware allows the chat widget to be embedded cross-origin. The
// websocket upgrade carries its own origin check.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
