package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/config"
	"github.com/daygraph/daygraph/internal/logger"
	"github.com/daygraph/daygraph/internal/queue"
	"github.com/daygraph/daygraph/internal/remote"
	"github.com/daygraph/daygraph/internal/session"
	"github.com/daygraph/daygraph/internal/workers"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.DebugMode || *debugFlag

	zapLogger, err := logger.New(debugMode, cfg.DevMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync(zapLogger)

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("remote_store", cfg.RemoteStore),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	backend, closeBackend, err := newRemoteBackend(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_remote_store", zap.Error(err))
	}
	defer func() {
		if err := closeBackend(); err != nil {
			zapLogger.Warn("failed_to_close_remote_store", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_remote_store", zap.String("backend", cfg.RemoteStore))

	stream, err := queue.NewRabbitMQStream(cfg.RabbitMQURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := stream.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")

	sessions := session.NewManager(backend, zapLogger, nil)
	worker := workers.NewRecurrenceWorker(stream, sessions, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() {
		done <- worker.Run(ctx, cfg.RabbitMQPrefetch)
	}()

	zapLogger.Info("worker_started")

	select {
	case sig := <-sigChan:
		zapLogger.Info("worker_shutting_down", zap.String("signal", sig.String()))
		cancel()
		<-done
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Fatal("worker_stopped_with_error", zap.Error(err))
		}
	}

	zapLogger.Info("worker_exited")
}

func newRemoteBackend(cfg *config.Config, zapLogger *zap.Logger) (remote.Store, func() error, error) {
	switch cfg.RemoteStore {
	case "redis":
		s, err := remote.NewRedisStore(cfg.RedisURL, zapLogger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "postgres":
		s, err := remote.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "memory":
		s := remote.NewMemoryStore()
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown remote store backend %q", cfg.RemoteStore)
	}
}
