package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"pmtrack/internal/audit"
	"pmtrack/internal/config"
	"pmtrack/internal/database"
	"pmtrack/internal/events"
	"pmtrack/internal/handlers"
	"pmtrack/internal/projectcode"
	"pmtrack/internal/projects"
	"pmtrack/internal/server"
	"pmtrack/internal/telemetry"
)

const serviceName = "pmtrack"

func newLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(lvl).With().Timestamp().Str("service", serviceName).Logger()
}

// bootstrap loads config and opens a migrated, seeded database.
func bootstrap(ctx context.Context) (config.Config, *gorm.DB, zerolog.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return config.Config{}, nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(ctx, cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		return cfg, nil, log, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = database.Close(db)
		return cfg, nil, log, fmt.Errorf("migrate database: %w", err)
	}
	seed := database.SeedOptions{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		DemoUsers:     cfg.SeedDemoUsers,
	}
	if err := database.Seed(ctx, db, seed, log); err != nil {
		_ = database.Close(db)
		return cfg, nil, log, fmt.Errorf("seed database: %w", err)
	}
	return cfg, db, log, nil
}

func runMigrate(ctx context.Context) error {
	_, db, log, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	log.Info().Msg("schema migrated")
	return database.Close(db)
}

func runNextCode(ctx context.Context, projectType string) (string, error) {
	_, db, _, err := bootstrap(ctx)
	if err != nil {
		return "", err
	}
	defer database.Close(db)

	gen := projectcode.NewGenerator(database.NewProjectStore(db), nil)
	return gen.Preview(ctx, projectType)
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, db, log, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	cleanup, err := telemetry.InitTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown tracing")
		}
	}()

	metrics := telemetry.NewMetrics()
	auditOpts := []audit.Option{audit.WithMetrics(metrics)}

	if cfg.NATSURL != "" {
		bus, err := events.Connect(cfg.NATSURL, log)
		if err != nil {
			return err
		}
		defer bus.Close()
		auditOpts = append(auditOpts, audit.WithPublisher(bus))
		log.Info().Str("url", cfg.NATSURL).Msg("audit events mirrored to nats")
	}

	projectStore := database.NewProjectStore(db)
	auditStore := database.NewAuditStore(db)
	auditLogger := audit.NewLogger(auditStore, log, auditOpts...)

	svc := projects.NewService(projects.Deps{
		Store:   projectStore,
		Codes:   projectcode.NewGenerator(projectStore, nil),
		Audit:   auditLogger,
		Metrics: metrics,
		Log:     log,
	})

	h := handlers.New(handlers.Deps{
		DB:           db,
		Projects:     svc,
		ProjectStore: projectStore,
		AuditStore:   auditStore,
		Audit:        auditLogger,
		Log:          log,
	})

	gin.SetMode(gin.ReleaseMode)
	opts := server.Options{
		DB:             db,
		Handler:        h,
		Metrics:        metrics,
		Log:            log,
		SessionSecret:  cfg.SessionSecret,
		CookieSecure:   cfg.CookieSecure,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimitPerMinute,
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Wrap(server.NewRouter(opts), opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("starting pmtrack")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
	log.Info().Msg("stopped")
	return nil
}
