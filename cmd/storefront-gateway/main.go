package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"showpass-core/internal/assets"
	"showpass-core/internal/backend"
	"showpass-core/internal/checkout"
	"showpass-core/internal/config"
	"showpass-core/internal/gateway"
	"showpass-core/internal/kafka"
	"showpass-core/internal/logger"
	"showpass-core/internal/receipt"
	"showpass-core/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log := logger.New()
	if cfg.LogDir != "" {
		fileLog, err := logger.NewWithFile(cfg.LogDir)
		if err != nil {
			log.Fatal("STARTUP", "failed to open log file: "+err.Error())
		}
		log = fileLog
	}
	defer log.Close()

	var eventCache *backend.EventCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Warn("STARTUP", "redis unavailable, event cache disabled: "+err.Error())
		} else {
			eventCache = backend.NewEventCache(rdb, cfg.Redis.EventTTL, log)
			log.Info("STARTUP", "event cache on "+cfg.Redis.Addr)
		}
	}

	var publisher checkout.PurchasePublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.PurchaseTopic)
		defer producer.Close()
		publisher = producer
		log.Info("STARTUP", "purchase events to topic "+cfg.Kafka.PurchaseTopic)
	}

	sessions, err := session.Open(cfg.Session.DBPath)
	if err != nil {
		log.Fatal("STARTUP", "failed to open session store: "+err.Error())
	}
	defer sessions.Close()

	httpClient := &http.Client{Timeout: cfg.Backend.Timeout}
	client := backend.NewClient(
		cfg.Backend.BaseURL,
		cfg.Recommendation.BaseURL,
		cfg.Validation.BaseURL,
		httpClient,
		eventCache,
		log,
	)

	resolver := assets.NewResolver(cfg.Backend.MediaOrigin)
	images := receipt.NewImageLoader(resolver, httpClient)
	generator := receipt.NewGenerator(os.Getenv("RECEIPT_FONT"))

	handler := gateway.NewHandler(sessions, client, publisher, generator, images, log)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("STARTUP", "storefront gateway on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("STARTUP", "http error: "+err.Error())
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctxShutdown)
	log.Info("SHUTDOWN", "gateway shutdown complete")
}
