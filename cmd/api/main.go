package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/papal-schism/data"
	"github.com/jwebster45206/papal-schism/internal/config"
	"github.com/jwebster45206/papal-schism/internal/events"
	"github.com/jwebster45206/papal-schism/internal/handlers"
	"github.com/jwebster45206/papal-schism/internal/logger"
	"github.com/jwebster45206/papal-schism/internal/metrics"
	"github.com/jwebster45206/papal-schism/internal/middleware"
	"github.com/jwebster45206/papal-schism/internal/session"
	"github.com/jwebster45206/papal-schism/internal/storage"
	"github.com/jwebster45206/papal-schism/pkg/ending"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Papal Schism API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"story_file", cfg.StoryPath(),
		"tick_interval", cfg.TickInterval)

	graph, err := data.LoadStory(cfg.StoryPath())
	if err != nil {
		log.Error("Failed to load story", "error", err)
		os.Exit(1)
	}
	if unreachable := graph.Unreachable(); len(unreachable) > 0 {
		log.Warn("Story has unreachable nodes", "nodes", unreachable)
	}
	log.Info("Story loaded", "name", graph.Name(), "nodes", graph.Len())

	redisStorage := storage.NewRedisStorage(cfg.RedisURL, log).
		WithKeyPrefix(cfg.RedisKeyPrefix).
		WithTTL(cfg.SaveTTL)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := redisStorage.WaitForConnection(storageCtx, 30, 2*time.Second); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	m := metrics.New()
	broadcaster := events.NewBroadcaster(redisStorage.Client(), log)

	sessions := session.NewManager(session.Options{
		Storage:        redisStorage,
		Graph:          graph,
		Resolver:       ending.Default(),
		Logger:         log,
		Recorder:       m,
		Gauge:          m,
		Publisher:      broadcaster,
		Tick:           cfg.TickInterval,
		PersistTimeout: cfg.PersistTimeout,
		IdleTimeout:    cfg.SessionIdleTimeout,
		Strict:         cfg.StrictChoices,
	})

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(redisStorage, sessions, graph.Name(), log)
	mux.Handle("/health", healthHandler)
	mux.Handle("/metrics", m.Handler())

	gamesHandler := handlers.NewGamesHandler(sessions, broadcaster, log)
	mux.Handle("/v1/games", gamesHandler)
	mux.Handle("/v1/games/", gamesHandler)

	eventsHandler := handlers.NewEventsHandler(broadcaster, log)
	mux.Handle("/v1/events/games/", eventsHandler)

	// Cancelled on shutdown so open event streams return.
	baseCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()

	go sessions.RunSweeper(baseCtx, cfg.SessionIdleTimeout/2)

	handler := middleware.Logger(log, m, mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: event streams stay open.
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}
	server.RegisterOnShutdown(cancelStreams)

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// Stop timers and flush pending saves before the connection goes away.
	sessions.Close()

	if err := redisStorage.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
