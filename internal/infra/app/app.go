package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Ajirohack/API/internal/core/domain"
	"github.com/Ajirohack/API/internal/core/port"
	"github.com/Ajirohack/API/internal/event"
	"github.com/Ajirohack/API/internal/infra/config"
	"github.com/Ajirohack/API/internal/infra/database"
	kafkainfra "github.com/Ajirohack/API/internal/infra/kafka"
	"github.com/Ajirohack/API/internal/infra/logger"
	redisinfra "github.com/Ajirohack/API/internal/infra/redis"
	"github.com/Ajirohack/API/internal/infra/security"
	"github.com/Ajirohack/API/internal/infra/telemetry"
	"github.com/Ajirohack/API/internal/registry"
	postgresrepo "github.com/Ajirohack/API/internal/repository/postgres"
	redisrepo "github.com/Ajirohack/API/internal/repository/redis"
	"github.com/Ajirohack/API/internal/transport/http/middleware"
	"github.com/Ajirohack/API/internal/transport/http/routes"
	"github.com/Ajirohack/API/internal/transport/ws"
	"github.com/Ajirohack/API/internal/usecase"
)

// Application wires the gateway's components together and owns their
// lifecycles.
type Application struct {
	cfg       *config.AppConfig
	engine    *gin.Engine
	logger    *zap.Logger
	pool      *pgxpool.Pool
	redis     *redisinfra.Client
	producer  *kafkainfra.Producer
	tracing   *telemetry.TracerProvider
	endpoints *registry.EndpointRegistry
}

// New builds the full application graph from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var tracing *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracing, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			log.Warn("tracing disabled", zap.Error(err))
			tracing = nil
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	signer, err := security.NewSigner(cfg.JWT.Secret)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init signer: %w", err)
	}

	bus := event.NewBus(
		event.WithHistorySize(cfg.EventBus.HistorySize),
		event.WithSubscriberBuffer(cfg.EventBus.SubscriberBuffer),
		event.WithLogger(log),
	)

	var producer *kafkainfra.Producer
	var brokerPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			producer = nil
			brokerPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			brokerPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		brokerPublisher = kafkainfra.NewStubPublisher(log)
	}

	// Lifecycle events flow both out through the broker and onto the
	// in-process bus for local subscribers.
	eventPublisher := event.CombinePublishers(brokerPublisher, event.NewBusPublisher(bus))

	revocations := usecase.NewRevocationStore(
		redisrepo.NewRevocationRepository(redisClient.Client(), cfg.Redis.RevocationPrefix),
		postgresrepo.NewRevocationLogRepository(pool),
		log,
	)

	tokens := usecase.NewTokenService(
		cfg,
		signer,
		revocations,
		postgresrepo.NewUserDirectoryRepository(pool),
		eventPublisher,
		log,
	).WithMetrics(metrics)

	rateLimiter := middleware.NewRateLimiter(
		redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.FixedWindowConfig{
			KeyPrefix: cfg.Redis.RateLimitPrefix,
		}),
		cfg.RateLimit,
		log,
	)

	endpoints := registry.NewEndpointRegistry(log)
	registerCoreEndpoints(endpoints, log)

	gateway := ws.NewGateway(
		cfg.Gateway,
		tokens,
		rateLimiter,
		redisrepo.NewFanoutBroker(redisClient.Client()),
		ws.NewConnectionRegistry(),
		usecase.NewChannelPolicy(),
		eventPublisher,
		metrics,
		log,
	)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Tokens:      tokens,
		Endpoints:   endpoints,
		Gateway:     gateway,
		Database:    pool,
		Cache:       redisClient,
	})

	return &Application{
		cfg:       cfg,
		engine:    engine,
		logger:    log,
		pool:      pool,
		redis:     redisClient,
		producer:  producer,
		tracing:   tracing,
		endpoints: endpoints,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		if a.tracing != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.tracing.Shutdown(shutdownCtx)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting gateway API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	a.markEndpointsHealthy()

	select {
	case <-ctx.Done():
		a.markEndpointsDown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func registerCoreEndpoints(endpoints *registry.EndpointRegistry, log *zap.Logger) {
	core := []registry.RegisterParams{
		{
			EndpointID:  "auth-api",
			Name:        "Token API",
			Description: "Token issuance, refresh, and revocation",
			Category:    "auth",
		},
		{
			EndpointID:  "realtime-gateway",
			Name:        "Realtime Gateway",
			Description: "WebSocket fan-out gateway",
			Category:    "realtime",
		},
		{
			EndpointID:  "endpoint-registry",
			Name:        "Endpoint Registry",
			Description: "Endpoint health catalog",
			Category:    "platform",
		},
	}

	for _, params := range core {
		if _, err := endpoints.Register(params); err != nil {
			log.Warn("core endpoint registration failed", zap.String("endpoint_id", params.EndpointID), zap.Error(err))
		}
	}
}

func (a *Application) markEndpointsHealthy() {
	for _, id := range []string{"auth-api", "realtime-gateway", "endpoint-registry"} {
		if err := a.endpoints.UpdateStatus(id, domain.EndpointHealthy, nil); err != nil {
			a.logger.Warn("endpoint status update failed", zap.String("endpoint_id", id), zap.Error(err))
		}
	}
}

func (a *Application) markEndpointsDown() {
	for _, id := range []string{"auth-api", "realtime-gateway", "endpoint-registry"} {
		if err := a.endpoints.UpdateStatus(id, domain.EndpointMaintenance, nil); err != nil {
			a.logger.Warn("endpoint status update failed", zap.String("endpoint_id", id), zap.Error(err))
		}
	}
}
