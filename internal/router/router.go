package router

import (
	"github.com/devcluster/backend/config"
	"github.com/devcluster/backend/internal/handler"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

func Setup(
	cfg *config.Config,
	sessionHandler *handler.SessionHandler,
	agentHandler *handler.AgentHandler,
	healthHandler *handler.HealthHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	api := r.Group("/api")
	{
		api.POST("/collaborate", sessionHandler.Collaborate)

		sessions := api.Group("/sessions")
		{
			sessions.GET("", sessionHandler.List)
			sessions.GET("/:id", sessionHandler.Get)
			sessions.GET("/:id/log", sessionHandler.GetLog)
			sessions.GET("/:id/export", sessionHandler.Export)
			sessions.DELETE("/:id", sessionHandler.Delete)
		}

		api.GET("/agents", agentHandler.List)
		api.GET("/health", healthHandler.Check)
	}

	return r
}
