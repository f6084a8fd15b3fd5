package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/kitchenmaster-backend/internal/http/handlers"
	"github.com/yungbote/kitchenmaster-backend/internal/http/middleware"
)

type RouterConfig struct {
	AuthMiddleware *middleware.AuthMiddleware

	ChatHandler         *handlers.ChatHandler
	ConversationHandler *handlers.ConversationHandler
	PreferencesHandler  *handlers.PreferencesHandler
	RealtimeHandler     *handlers.RealtimeHandler

	AllowedOrigins string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := []string{"http://localhost:3000", "http://localhost:5173"}
	if strings.TrimSpace(cfg.AllowedOrigins) != "" {
		origins = strings.Split(cfg.AllowedOrigins, ",")
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	api.POST("/chat", cfg.ChatHandler.Chat)

	api.GET("/conversations", cfg.ConversationHandler.List)
	api.GET("/conversations/:id", cfg.ConversationHandler.Get)
	api.DELETE("/conversations/:id", cfg.ConversationHandler.Delete)
	api.GET("/conversations/:id/designs", cfg.ConversationHandler.ListDesigns)
	api.POST("/conversations/:id/revert", cfg.ConversationHandler.Revert)

	api.GET("/preferences", cfg.PreferencesHandler.Get)
	api.PUT("/preferences", cfg.PreferencesHandler.Update)

	api.GET("/stream", cfg.RealtimeHandler.Stream)

	return router
}
