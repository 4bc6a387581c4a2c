/*
Package main is the entry point for the CircleChat server.

It is responsible for loading configuration, initializing the global logging
system, connecting the database and storage backends, wiring the presence and
messaging services, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"circlechat/internal/app/chat"
	"circlechat/internal/app/db"
	"circlechat/internal/app/message"
	"circlechat/internal/app/presence"
	"circlechat/internal/app/push"
	"circlechat/internal/app/social"
	"circlechat/internal/app/storage"
	"circlechat/internal/app/user"
	"circlechat/internal/configs"
	"circlechat/internal/handler"
	"circlechat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("room_scoped_presence", cfg.RoomScopedPresence).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect the database and apply migrations
	pool, err := db.NewPool(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to initialize database")
	}
	defer pool.Close()

	// Media storage
	media, err := storage.NewMediaService(storage.ServiceConfig{
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		logx.Fatal(err, "Failed to initialize media storage")
	}

	// Push providers: APNs only when a signing key is configured, Expo always.
	var native push.Provider
	if cfg.APNSKeyPath != "" {
		apns, err := push.NewAPNSProvider(push.APNSConfig{
			KeyPath:  cfg.APNSKeyPath,
			KeyID:    cfg.APNSKeyID,
			TeamID:   cfg.APNSTeamID,
			Topic:    cfg.APNSTopic,
			Endpoint: cfg.APNSEndpoint,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize APNs provider")
		}
		native = apns
	}
	dispatcher := push.NewDispatcher(native, push.NewExpoProvider(cfg.ExpoPushURL))

	// Stores
	userStore := user.NewStore(pool)
	messageStore := message.NewStore(pool)
	socialStore := social.NewStore(pool)

	// Live transport and presence
	hub := chat.NewHub()
	registry := presence.NewRegistry()
	broadcaster := presence.NewBroadcaster(registry, hub)

	// Delivery state machine
	messages := message.NewService(messageStore, userStore, dispatcher, socialStore, registry, hub)

	// Setup HTTP server and routes
	router := handler.Router(&handler.AppDeps{
		Config:      cfg,
		Hub:         hub,
		Broadcaster: broadcaster,
		Messages:    messages,
		Users:       userStore,
		Social:      socialStore,
		Media:       media,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("CircleChat Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	hub.Shutdown()

	logx.Info("Server gracefully stopped.")
}
