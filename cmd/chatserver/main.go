package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatgo/internal/config"
	"chatgo/internal/handlers/chatserver"
	appKafka "chatgo/internal/kafka"
	"chatgo/internal/policy"
	appRedis "chatgo/internal/redis"
	"chatgo/internal/services"
	"chatgo/internal/storage"
	"chatgo/internal/websocket"
	"chatgo/internal/wire"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
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
	// Schema migration is the API server's job; the chat server only reads
	// and appends through the same models.

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

	// Messages typed over a websocket go through the same persist-then-publish
	// path as HTTP posts, so the chat server needs a producer too.
	producer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("creating kafka producer: %v", err)
	}
	defer producer.Close()

	pol := policy.New(userRepo)
	chatService := services.NewChatService(convoRepo, msgRepo, userRepo, pol, producer, cfg.Kafka)

	hub := websocket.NewHub()
	wsHandler := chatserver.NewWebSocketHandler(hub, chatService, tokenBlacklist, cfg)

	consumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("creating kafka consumer: %v", err)
	}
	defer consumer.Close()

	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()

	// Fan persisted messages out to the subscribers connected to this
	// instance. A payload for a conversation nobody here is watching is
	// simply dropped by the hub.
	go func() {
		topics := []string{cfg.Kafka.OutgoingTopic}
		err := consumer.Consume(consumerCtx, topics, cfg.Kafka.ConsumerGroup,
			func(ctx context.Context, kafkaMsg *confluentKafka.Message) error {
				var payload wire.MessagePayload
				if err := json.Unmarshal(kafkaMsg.Value, &payload); err != nil {
					// A malformed payload will never become deliverable;
					// log and move past it.
					log.Printf("discarding malformed fan-out payload: %v", err)
					return nil
				}
				hub.Publish(payload.ConversationID, kafkaMsg.Value)
				return nil
			})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("kafka consumer stopped: %v", err)
		}
	}()

	r := mux.NewRouter()
	r.HandleFunc("/ws/conversations/{id:[0-9]+}", wsHandler.ServeWS)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:           addr,
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Printf("chat server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("chat server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down chat server...")

	cancelConsumer()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("chat server shutdown: %v", err)
	}
	log.Println("chat server stopped")
}
