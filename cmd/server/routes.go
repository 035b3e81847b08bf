package main

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"inferxgate.backend/internal/interfaces/http/handlers"
)

type routeDeps struct {
	chatHandler     *handlers.ChatHandler
	modelsHandler   *handlers.ModelsHandler
	providerHandler *handlers.ProviderHandler
	keyHandler      *handlers.KeyHandler
	statsHandler    *handlers.StatsHandler
	healthHandler   *handlers.HealthHandler
	keyAuth         gin.HandlerFunc
	adminAuth       gin.HandlerFunc
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	r.GET("/health", d.healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// OpenAI-compatible surface (virtual key auth)
	v1 := r.Group("/v1")
	{
		v1.POST("/chat/completions", d.keyAuth, d.chatHandler.ChatCompletions)
		v1.GET("/models", d.keyAuth, d.modelsHandler.ListModels)
		v1.GET("/providers", d.providerHandler.ListProviders)

		providersAdmin := v1.Group("/providers")
		providersAdmin.Use(d.adminAuth)
		{
			providersAdmin.POST("/configure", d.providerHandler.ConfigureProvider)
			providersAdmin.POST("/delete", d.providerHandler.DeleteProvider)
		}
	}

	// Key management (admin auth)
	auth := r.Group("/auth")
	auth.Use(d.adminAuth)
	{
		auth.POST("/key/generate", d.keyHandler.GenerateKey)
		auth.GET("/key/info", d.keyHandler.KeyInfo)
		auth.GET("/keys", d.keyHandler.ListKeys)
		auth.POST("/key/update", d.keyHandler.UpdateKey)
		auth.POST("/key/delete", d.keyHandler.DeleteKey)
	}

	r.GET("/stats", d.adminAuth, d.statsHandler.GetStats)
}
