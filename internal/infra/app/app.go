// Package app wires configuration, infrastructure, services, and transport
// into a runnable application.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/anjun206/board-app/internal/core/port"
	"github.com/anjun206/board-app/internal/infra/config"
	"github.com/anjun206/board-app/internal/infra/database"
	kafkainfra "github.com/anjun206/board-app/internal/infra/kafka"
	"github.com/anjun206/board-app/internal/infra/logger"
	"github.com/anjun206/board-app/internal/infra/mail"
	"github.com/anjun206/board-app/internal/infra/ratelimit"
	"github.com/anjun206/board-app/internal/infra/security"
	postgresrepo "github.com/anjun206/board-app/internal/repository/postgres"
	"github.com/anjun206/board-app/internal/transport/http/middleware"
	"github.com/anjun206/board-app/internal/transport/http/routes"
	"github.com/anjun206/board-app/internal/usecase"
)

// Application holds the wired service and its infrastructure handles.
type Application struct {
	cfg           *config.AppConfig
	engine        *gin.Engine
	logger        *zap.Logger
	pool          *pgxpool.Pool
	producer      *kafkainfra.Producer
	limiter       *ratelimit.MemoryLimiter
	verifications *usecase.VerificationService
}

// New builds the application from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if err := database.RunMigrations(ctx, cfg.Postgres); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	tokens, err := security.NewTokenService(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.EmailProofTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("init token service: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	var producer *kafkainfra.Producer
	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	var notifier port.Notifier
	if cfg.SMTP.Host != "" {
		notifier = mail.NewSMTPNotifier(cfg.SMTP, log)
	} else {
		log.Info("smtp host not configured, logging verification codes")
		notifier = mail.NewLoggingNotifier(log)
	}

	limiter := ratelimit.NewMemoryLimiter()
	floor := security.NewResponseFloor(cfg.Auth.TimingFloor)
	policy := security.NewPasswordPolicy(cfg.Auth.PasswordMinLength)

	registrationService := usecase.NewRegistrationService(repos.Users, eventPublisher, policy, log)
	verificationService := usecase.NewVerificationService(
		cfg.Auth,
		cfg.RateLimit,
		repos.Users,
		repos.Verifications,
		limiter,
		tokens,
		notifier,
		eventPublisher,
		log,
	)
	authService := usecase.NewAuthService(repos.Users, tokens, eventPublisher, log)
	contentService := usecase.NewContentService(repos.Posts, repos.Comments, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(limiter, log),
		Tokens:      tokens,
		Floor:       floor,
		Database:    pool,
		Services: routes.ServiceSet{
			Auth:         authService,
			Registration: registrationService,
			Verification: verificationService,
			Content:      contentService,
		},
	})

	return &Application{
		cfg:           cfg,
		engine:        engine,
		logger:        log,
		pool:          pool,
		producer:      producer,
		limiter:       limiter,
		verifications: verificationService,
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
		if a.producer != nil {
			if err := a.producer.Close(); err != nil {
				a.logger.Warn("close kafka producer", zap.Error(err))
			}
		}
	}()

	go a.runMaintenance(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting board API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
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

// runMaintenance sweeps expired verification codes and idle limiter buckets
// on a ticker until the context ends.
func (a *Application) runMaintenance(ctx context.Context) {
	interval := a.cfg.Auth.PurgeInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purgeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if _, err := a.verifications.PurgeExpired(purgeCtx); err != nil {
				a.logger.Warn("purge expired verifications", zap.Error(err))
			}
			cancel()

			a.limiter.PruneIdle(a.cfg.RateLimit.Window)
		}
	}
}
