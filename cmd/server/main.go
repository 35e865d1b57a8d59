package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/daygraph/daygraph/internal/auth"
	"github.com/daygraph/daygraph/internal/calendar"
	"github.com/daygraph/daygraph/internal/config"
	"github.com/daygraph/daygraph/internal/handlers"
	"github.com/daygraph/daygraph/internal/logger"
	"github.com/daygraph/daygraph/internal/middleware"
	"github.com/daygraph/daygraph/internal/queue"
	"github.com/daygraph/daygraph/internal/remote"
	"github.com/daygraph/daygraph/internal/services/ai"
	"github.com/daygraph/daygraph/internal/session"
	"github.com/daygraph/daygraph/internal/telemetry"
)

// remoteBackend is the store plus the lifecycle bits main cares about.
type remoteBackend interface {
	remote.Store
	HealthCheck(ctx context.Context) error
	Close() error
}

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

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("remote_store", cfg.RemoteStore),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// OpenTelemetry
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "daygraph-api", cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Remote document store
	backend, err := newRemoteBackend(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_remote_store", zap.Error(err))
	}
	defer func() {
		if err := backend.Close(); err != nil {
			zapLogger.Warn("failed_to_close_remote_store", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_remote_store", zap.String("backend", cfg.RemoteStore))

	// Redis for rate limiting
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_parse_redis_url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// RabbitMQ event stream. Retry with exponential backoff to ride out
	// broker startup delays.
	stream, err := connectEventStream(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := stream.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")

	events := queue.NewSink(stream, zapLogger)
	sessions := session.NewManager(backend, zapLogger, events)

	// Bearer token verification
	verifier := auth.NewVerifier(cfg.AuthJWKSURL, cfg.DevMode)
	if cfg.AuthJWKSURL == "" {
		if !cfg.DevMode {
			zapLogger.Fatal("auth_jwks_url_required_outside_dev_mode")
		}
		zapLogger.Warn("auth_running_with_unverified_tokens")
	}

	// AI enrichment (optional)
	var enhancer ai.Enhancer
	if cfg.OpenAIKey != "" {
		enhancer = ai.NewOpenAIEnhancer(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, zapLogger)
		zapLogger.Info("ai_enhancer_initialized", zap.String("model", cfg.AIModel))
	} else {
		zapLogger.Warn("openai_key_not_configured_ai_features_disabled")
	}

	// Calendar overlay (optional)
	var calSource calendar.Source
	if cfg.CalendarToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.CalendarToken})
		calSource = calendar.NewClient(context.Background(), ts, cfg.CalendarBaseURL, zapLogger)
		zapLogger.Info("calendar_source_initialized")
	}

	// Handlers
	nodeHandler := handlers.NewNodeHandler(sessions)
	timeboxHandler := handlers.NewTimeboxHandler(sessions, calSource, cfg.CalendarID, zapLogger)
	viewHandler := handlers.NewViewHandler(sessions)
	aiHandler := handlers.NewAIHandler(enhancer, zapLogger)
	healthChecker := handlers.NewHealthChecker(backend, stream)

	// Router and middleware. gorilla/mux runs middleware in registration
	// order, so the outermost concerns come first.
	r := mux.NewRouter()
	if cfg.OTELEnabled {
		r.Use(otelmux.Middleware("daygraph-api"))
	}
	r.Use(middleware.SecurityHeaders(!cfg.DevMode))
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	// Public routes
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")

	// API v1 routes (protected)
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.Auth(verifier, zapLogger))
	apiRouter.Use(rateLimitMW)

	nodeHandler.RegisterRoutes(apiRouter.PathPrefix("/nodes").Subrouter())
	timeboxHandler.RegisterRoutes(apiRouter.PathPrefix("/timebox/{date}").Subrouter())
	viewHandler.RegisterRoutes(apiRouter.PathPrefix("/views").Subrouter())
	aiHandler.RegisterRoutes(apiRouter.PathPrefix("/ai").Subrouter())

	// Preflight catch-all; CORS middleware sets the headers.
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// newRemoteBackend builds the configured document store.
func newRemoteBackend(cfg *config.Config, zapLogger *zap.Logger) (remoteBackend, error) {
	switch cfg.RemoteStore {
	case "redis":
		return remote.NewRedisStore(cfg.RedisURL, zapLogger)
	case "postgres":
		return remote.NewPostgresStore(cfg.DatabaseURL)
	case "memory":
		return remote.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown remote store backend %q", cfg.RemoteStore)
	}
}

// connectEventStream dials RabbitMQ with exponential backoff.
func connectEventStream(amqpURL string, zapLogger *zap.Logger) (queue.EventStream, error) {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		stream, err := queue.NewRabbitMQStream(amqpURL)
		if err == nil {
			return stream, nil
		}

		lastErr = err
		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}
	return nil, lastErr
}
