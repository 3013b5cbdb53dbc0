package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatgo/internal/config"
	"chatgo/internal/handlers/apiserver"
	appKafka "chatgo/internal/kafka"
	"chatgo/internal/middleware"
	"chatgo/internal/policy"
	appRedis "chatgo/internal/redis"
	"chatgo/internal/services"
	"chatgo/internal/storage"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redisDriver "github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("initializing database: %v", err)
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		log.Fatalf("migrating database tables: %v", err)
	}

	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("connecting to redis: %v", err)
	}
	tokenBlacklist := appRedis.NewRedisTokenBlacklist(redisClient)

	userRepo := storage.NewGormUserRepository(db)
	convoRepo := storage.NewGormConversationRepository(db)
	msgRepo := storage.NewGormMessageRepository(db)

	producer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("creating kafka producer: %v", err)
	}
	defer producer.Close()

	pol := policy.New(userRepo)

	authService := services.NewAuthService(userRepo, cfg)
	userService := services.NewUserService(userRepo)
	chatService := services.NewChatService(convoRepo, msgRepo, userRepo, pol, producer, cfg.Kafka)

	authHandler := apiserver.NewAuthHandler(authService, tokenBlacklist)
	userHandler := apiserver.NewUserHandler(userService)
	convoHandler := apiserver.NewConversationHandler(chatService)

	r := mux.NewRouter()

	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)

	authMW := middleware.AuthMiddleware(cfg.Auth.JWTSecretKey, tokenBlacklist)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMW)

	// Logout needs the authenticated claims to find the JTI to revoke.
	apiRouter.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)

	apiRouter.HandleFunc("/users/me", userHandler.GetMe).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/search", userHandler.SearchUsers).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/blocklist", userHandler.ListBlocked).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/blocklist", userHandler.BlockUser).Methods(http.MethodPost)
	apiRouter.HandleFunc("/users/blocklist/{username}", userHandler.UnblockUser).Methods(http.MethodDelete)

	apiRouter.HandleFunc("/conversations", convoHandler.ListConversations).Methods(http.MethodGet)
	apiRouter.HandleFunc("/conversations", convoHandler.CreateConversation).Methods(http.MethodPost)
	apiRouter.HandleFunc("/conversations/{id:[0-9]+}/messages", convoHandler.GetMessages).Methods(http.MethodGet)
	apiRouter.HandleFunc("/conversations/{id:[0-9]+}/messages", convoHandler.PostMessage).Methods(http.MethodPost)
	apiRouter.HandleFunc("/conversations/{id:[0-9]+}/participants", convoHandler.AddParticipants).Methods(http.MethodPost)
	apiRouter.HandleFunc("/conversations/{id:[0-9]+}/favorite", convoHandler.AddFavorite).Methods(http.MethodPut)
	apiRouter.HandleFunc("/conversations/{id:[0-9]+}/favorite", convoHandler.RemoveFavorite).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/favorites", convoHandler.ListFavorites).Methods(http.MethodGet)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.AllowCredentials(),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	)

	addr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      corsHandler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("API server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("API server shutdown: %v", err)
	}
	log.Println("API server stopped")
}
