// Package routes assembles the Gin engine from middleware and handlers.
package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/anjun206/board-app/internal/infra/config"
	"github.com/anjun206/board-app/internal/infra/security"
	"github.com/anjun206/board-app/internal/transport/http/handlers"
	"github.com/anjun206/board-app/internal/transport/http/middleware"
	"github.com/anjun206/board-app/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth         *usecase.AuthService
	Registration *usecase.RegistrationService
	Verification *usecase.VerificationService
	Content      *usecase.ContentService
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Tokens      *security.TokenService
	Floor       *security.ResponseFloor
	Database    DatabaseChecker
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
	r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		deps.Logger.Warn("http metrics disabled", zap.Error(err))
	} else {
		r.Use(metrics.Handler())
	}

	var checks map[string]handlers.ReadinessCheck
	if deps.Database != nil {
		checks = map[string]handlers.ReadinessCheck{"database": deps.Database.Ping}
	}
	handlers.NewHealthHandler(checks).RegisterRoutes(r)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	secureCookies := deps.Config.App.Env == "production"

	authHandler := handlers.NewAuthHandler(
		deps.Services.Auth,
		deps.Services.Registration,
		deps.Services.Verification,
		deps.Tokens,
		deps.Floor,
		deps.Config.RateLimit.Window,
		secureCookies,
	)
	authHandler.RegisterRoutes(r.Group("/auth"), buildAuthGuards(deps))

	contentHandler := handlers.NewContentHandler(deps.Services.Content, deps.Services.Auth)
	contentHandler.RegisterRoutes(r.Group(""))

	return r
}

// buildAuthGuards assembles the per-IP limits for the sensitive auth routes.
// Per-email limits live inside the usecases where the payload is available.
func buildAuthGuards(deps Dependencies) handlers.RouteGuards {
	if deps.RateLimiter == nil {
		return handlers.RouteGuards{}
	}

	limits := deps.Config.RateLimit
	ip := middleware.ClientIPIdentifier()

	rule := func(name string, limit int) gin.HandlerFunc {
		return deps.RateLimiter.RateLimit(middleware.RateLimitRule{
			Name:       name,
			Limit:      limit,
			Window:     limits.Window,
			Identifier: ip,
			Floor:      deps.Floor,
		})
	}

	return handlers.RouteGuards{
		Start:  rule("start-ip", limits.StartIPLimit),
		Verify: rule("verify-ip", limits.VerifyIPLimit),
		Login:  rule("login-ip", limits.LoginIPLimit),
	}
}
