// Package main provides the chatkit development server: the REST API, the
// realtime channel, and the broker event mirror the clients talk to.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/plushhaven/chatkit/internal/config"
	"github.com/plushhaven/chatkit/internal/devd"
	"github.com/plushhaven/chatkit/internal/events"
)

const version = "0.1.0"

func main() {
	// Local development reads its settings from .env when present.
	_ = godotenv.Load()

	cfg := config.LoadDev()

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()

	logger.Info("chatkit-devd starting",
		"version", version,
		"addr", cfg.Addr,
		"origin", cfg.AllowedOrigin,
		"amqp", cfg.AMQPURL != "",
	)

	var pub events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		p, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Error("failed to connect event broker", "error", err)
			os.Exit(1)
		}
		pub = p
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Error("failed to close event publisher", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           devd.New(cfg, pub, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("chatkit-devd stopped")
}
