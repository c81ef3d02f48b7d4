package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mart1ny/rag-assistant/internal/handlers"
)

type RouterConfig struct {
	ChatHandler  *handlers.ChatHandler
	AllowOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowOrigins
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Content-Type", "X-Requested-With"}
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/examples", cfg.ChatHandler.Examples)
		api.POST("/chat", cfg.ChatHandler.Chat)
	}

	return router
}
