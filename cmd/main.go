package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/yungbote/kitchenmaster-backend/internal/clients/engine"
	"github.com/yungbote/kitchenmaster-backend/internal/clients/pinecone"
	redisclient "github.com/yungbote/kitchenmaster-backend/internal/clients/redis"
	"github.com/yungbote/kitchenmaster-backend/internal/data/db"
	"github.com/yungbote/kitchenmaster-backend/internal/data/gateway"
	"github.com/yungbote/kitchenmaster-backend/internal/data/repos"
	"github.com/yungbote/kitchenmaster-backend/internal/http/handlers"
	"github.com/yungbote/kitchenmaster-backend/internal/http/middleware"
	"github.com/yungbote/kitchenmaster-backend/internal/lineage"
	"github.com/yungbote/kitchenmaster-backend/internal/memory"
	"github.com/yungbote/kitchenmaster-backend/internal/modules/design"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/keylock"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
	"github.com/yungbote/kitchenmaster-backend/internal/realtime"
	"github.com/yungbote/kitchenmaster-backend/internal/realtime/bus"
	"github.com/yungbote/kitchenmaster-backend/internal/server"
	"github.com/yungbote/kitchenmaster-backend/internal/services"
	"github.com/yungbote/kitchenmaster-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	embeddingDim := utils.GetEnvAsInt("EMBEDDING_DIM", memory.DefaultDimension, log)
	generationTimeout := utils.GetEnvAsInt("GENERATION_TIMEOUT_SECONDS", 120, log)
	contextWindow := utils.GetEnvAsInt("CHAT_CONTEXT_WINDOW", 0, log)
	recallTopK := utils.GetEnvAsInt("MEMORY_RECALL_TOPK", 0, log)
	allowedOrigins := utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err.Error())
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err.Error())
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Redis
	rdb, err := redisclient.NewClientFromEnv(log)
	if err != nil {
		log.Error("Redis init failed", "error", err.Error())
		os.Exit(1)
	}
	stateCache, err := redisclient.NewDesignStateCache(log, rdb)
	if err != nil {
		log.Error("Could not init DesignStateCache", "error", err.Error())
		os.Exit(1)
	}

	// Clients
	log.Info("Setting up external clients from main...")
	engineClient, err := engine.NewFromEnv()
	if err != nil {
		log.Error("Could not init design engine client", "error", err.Error())
		os.Exit(1)
	}
	pineconeClient, err := pinecone.New(log, pinecone.Config{
		APIKey: os.Getenv("PINECONE_API_KEY"),
	})
	if err != nil {
		log.Error("Could not init Pinecone client", "error", err.Error())
		os.Exit(1)
	}
	vectorStore, err := pinecone.NewVectorStore(log, pineconeClient)
	if err != nil {
		log.Error("Could not init vector store", "error", err.Error())
		os.Exit(1)
	}

	// Repos
	log.Info("Setting up Repos from main...")
	conversationRepo := repos.NewConversationRepo(thePG, log)
	messageRepo := repos.NewMessageRepo(thePG, log)
	artifactRepo := repos.NewArtifactRepo(thePG, log)
	iterationRepo := repos.NewIterationRepo(thePG, log)
	memoryRepo := repos.NewMemoryRepo(thePG, log)
	preferencesRepo := repos.NewPreferencesRepo(thePG, log)

	// Core components
	lineageManager := lineage.NewManager(log, conversationRepo, iterationRepo)
	turnGateway := gateway.New(thePG, log, conversationRepo, messageRepo, artifactRepo, lineageManager)
	memoryIndex, err := memory.NewIndex(log, embeddingDim, vectorStore, memoryRepo)
	if err != nil {
		log.Error("Could not init memory index", "error", err.Error())
		os.Exit(1)
	}

	// Realtime
	log.Info("Setting up SSE hub and bus from main...")
	sseHub := realtime.NewSSEHub(log)
	sseBus, err := bus.NewRedisBus(log, rdb)
	if err != nil {
		log.Error("Could not init redis SSE bus", "error", err.Error())
		os.Exit(1)
	}
	if err := sseBus.StartForwarder(context.Background(), sseHub.Broadcast); err != nil {
		log.Error("Could not start SSE forwarder", "error", err.Error())
		os.Exit(1)
	}
	streamCoordinator := realtime.NewCoordinator(log, sseBus)

	// Usecases
	designUsecases := design.New(design.UsecasesDeps{
		Log:               log,
		Engine:            engineClient,
		Memory:            memoryIndex,
		Conversations:     conversationRepo,
		Messages:          messageRepo,
		Preferences:       preferencesRepo,
		Lineage:           lineageManager,
		Gateway:           turnGateway,
		Locks:             keylock.NewMap(),
		Streams:           streamCoordinator,
		State:             stateCache,
		GenerationTimeout: time.Duration(generationTimeout) * time.Second,
		ContextWindow:     contextWindow,
		RecallTopK:        recallTopK,
	})

	// Services
	log.Info("Setting up Services from main...")
	conversationService := services.NewConversationService(thePG, log, conversationRepo, messageRepo, artifactRepo, iterationRepo, stateCache)
	preferencesService := services.NewPreferencesService(log, preferencesRepo)

	// Handlers
	log.Info("Setting up handlers from main...")
	chatHandler := handlers.NewChatHandler(log, designUsecases, conversationService)
	conversationHandler := handlers.NewConversationHandler(log, conversationService, designUsecases)
	preferencesHandler := handlers.NewPreferencesHandler(log, preferencesService)
	realtimeHandler := handlers.NewRealtimeHandler(log, sseHub)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecretKey)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:      authMiddleware,
		ChatHandler:         chatHandler,
		ConversationHandler: conversationHandler,
		PreferencesHandler:  preferencesHandler,
		RealtimeHandler:     realtimeHandler,
		AllowedOrigins:      allowedOrigins,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server stopped", "error", err.Error())
		os.Exit(1)
	}
}
