// Command server runs the civic report API: HTTP endpoints, the realtime
// websocket gateway and scheduled maintenance jobs.
//
//	@title			Civic Report API
//	@version		1.0
//	@description	Citizen issue reports, moderation, reactions, comments and department conversations.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/civic-report-backend/docs"
	"github.com/tbourn/civic-report-backend/internal/config"
	httpapi "github.com/tbourn/civic-report-backend/internal/http"
	"github.com/tbourn/civic-report-backend/internal/jobs"
	"github.com/tbourn/civic-report-backend/internal/observability"
	"github.com/tbourn/civic-report-backend/internal/realtime"
	"github.com/tbourn/civic-report-backend/internal/repo"
	"github.com/tbourn/civic-report-backend/internal/search"
	"github.com/tbourn/civic-report-backend/internal/services"
	"github.com/tbourn/civic-report-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := sysutil.ConfigureLogger(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName, nil)
	build := observability.Build{
		Version:     sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version),
		Environment: cfg.Sentry.Environment,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, build)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownOTel(context.Background()) }()

	flushSentry, err := observability.SetupSentry(cfg.Sentry, build)
	if err != nil {
		return err
	}
	defer flushSentry(2 * time.Second)

	// Store
	db, err := repo.Open(cfg.DB)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	if err := services.NewDepartmentService(db).Seed(ctx, services.DefaultDepartments); err != nil {
		return err
	}
	if err := services.NewBarangayService(db).Seed(ctx, services.DefaultBarangays); err != nil {
		return err
	}

	// Realtime: local hub, optionally fanned out across instances via NATS
	hub := realtime.NewHub(cfg.Realtime.SendBuffer)
	var events realtime.Publisher = hub
	if cfg.NATS.Enabled {
		nc, err := realtime.ConnectNATS(cfg.NATS.URL, cfg.OTEL.ServiceName)
		if err != nil {
			return err
		}
		defer nc.Drain()
		relay, err := realtime.NewNATSRelay(hub, nc, cfg.NATS.Subject)
		if err != nil {
			return err
		}
		defer relay.Close()
		events = relay
		logger.Info().Str("subject", cfg.NATS.Subject).Str("origin", relay.Origin()).Msg("nats relay enabled")
	}

	// Search index, warmed from the most recent reports
	idx := search.New(search.WithMaxDocs(cfg.SearchMaxDocs))
	if n, err := services.NewReportService(db, nil, idx).WarmIndex(ctx, cfg.SearchMaxDocs); err != nil {
		logger.Warn().Err(err).Msg("search index warmup failed; starting empty")
	} else {
		logger.Info().Int("documents", n).Msg("search index warmed")
	}

	// Maintenance jobs
	sched := jobs.NewScheduler(logger)
	if err := jobs.RegisterDefaults(sched, db, cfg.IdempotencySweepSpec); err != nil {
		return err
	}
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
	}()

	// HTTP
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: db, Index: idx, Events: events, Hub: hub}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", build.Version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
