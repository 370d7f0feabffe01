package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Ajirohack/API/internal/infra/config"
	"github.com/Ajirohack/API/internal/registry"
	"github.com/Ajirohack/API/internal/transport/http/handlers"
	"github.com/Ajirohack/API/internal/transport/http/middleware"
	"github.com/Ajirohack/API/internal/transport/ws"
	"github.com/Ajirohack/API/internal/usecase"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Tokens      *usecase.TokenService
	Endpoints   *registry.EndpointRegistry
	Gateway     *ws.Gateway
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))

	if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err != nil {
		deps.Logger.Warn("http metrics unavailable", zap.Error(err))
	} else {
		r.Use(metrics.Handler())
	}

	authMiddleware := middleware.RequireAuth(deps.Tokens, deps.Logger)

	checks := make(map[string]handlers.ReadinessCheck, 2)
	if deps.Database != nil {
		checks["database"] = deps.Database.Ping
	}
	if deps.Cache != nil {
		checks["redis"] = deps.Cache.HealthCheck
	}
	healthHandler := handlers.NewHealthHandler(checks)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		if deps.Gateway != nil {
			api.GET("/ws", deps.Gateway.Handler)
		}

		authGroup := api.Group("/auth")
		tokenHandler := handlers.NewTokenHandler(deps.Tokens)
		if deps.RateLimiter != nil {
			authGroup.Use(deps.RateLimiter.Handler())
		}
		tokenHandler.RegisterRoutes(authGroup)

		if deps.Endpoints != nil {
			readGroup := api.Group("")
			readGroup.Use(authMiddleware)
			if deps.RateLimiter != nil {
				readGroup.Use(deps.RateLimiter.Handler())
			}

			adminGroup := api.Group("")
			adminGroup.Use(authMiddleware, middleware.RequireRole("admin"))
			if deps.RateLimiter != nil {
				adminGroup.Use(deps.RateLimiter.Handler())
			}

			endpointHandler := handlers.NewEndpointHandler(deps.Endpoints)
			endpointHandler.RegisterRoutes(readGroup, adminGroup)
		}
	}

	return r
}
