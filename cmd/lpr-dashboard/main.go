package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"lpr-dashboard/internal/backend"
	"lpr-dashboard/internal/config"
	"lpr-dashboard/internal/db"
	httphandler "lpr-dashboard/internal/http"
	"lpr-dashboard/internal/logger"
	"lpr-dashboard/internal/poller"
	"lpr-dashboard/internal/repository"
	"lpr-dashboard/internal/service"
	"lpr-dashboard/internal/storage"
	"lpr-dashboard/internal/theme"
)

// startupPollTimeout caps the first poll so a slow backend cannot hold up
// the listener.
const startupPollTimeout = 3 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	var database *gorm.DB
	if cfg.JournalEnabled() {
		database, err = db.New(cfg, appLogger)
		if err != nil {
			appLogger.Fatal().Err(err).Msg("failed to connect database")
		}
	} else {
		appLogger.Warn().Msg("DB_DSN not set, activity journal disabled")
	}

	var journal *service.ActivityJournal
	if database != nil {
		journal = service.NewActivityJournal(repository.NewActivityRepository(database), appLogger)
	}

	// R2 archive is optional
	var archiver service.Archiver
	r2Client, err := storage.NewR2Client(cfg.Archive)
	switch {
	case err == nil:
		archiver = r2Client
	case errors.Is(err, storage.ErrNotConfigured):
		appLogger.Warn().Msg("R2 storage not configured, uploaded videos will not be archived")
	default:
		appLogger.Fatal().Err(err).Msg("failed to initialize R2 client")
	}

	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout)
	cameraPoller := poller.New(client, cfg.Poller.Interval, appLogger, poller.WithIdleTimeout(cfg.Poller.IdleTimeout))

	services := httphandler.Services{
		Cameras:    service.NewCameraService(client, cameraPoller, journal, appLogger),
		Detections: service.NewDetectionService(client, cfg.PageSize, appLogger),
		Uploads:    service.NewUploadService(client, archiver, journal, appLogger),
		Repeated:   service.NewRepeatedPlatesService(client, appLogger),
		Journal:    journal,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loadCtx, loadCancel := context.WithTimeout(ctx, cfg.Backend.Timeout)
	if err := services.Cameras.Load(loadCtx); err != nil {
		appLogger.Warn().Err(err).Msg("initial camera load failed, dashboard will show the error banner")
	}
	loadCancel()

	cameraPoller.Start(ctx)
	pollCtx, pollCancel := context.WithTimeout(ctx, startupPollTimeout)
	cameraPoller.PollOnce(pollCtx)
	pollCancel()

	checks := []httphandler.ReadinessCheck{{Name: "backend", Check: client.Ping}}
	if database != nil {
		checks = append(checks, httphandler.ReadinessCheck{
			Name:  "database",
			Check: func(ctx context.Context) error { return db.HealthCheck(ctx, database) },
		})
	}

	themeProvider := theme.NewProvider(cfg.Theme.Default, cfg.Theme.StorageKey)
	handler := httphandler.NewHandler(services, cameraPoller, themeProvider, cfg, appLogger)
	router, err := httphandler.NewRouter(handler, cfg, appLogger, checks...)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to build router")
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().
		Str("addr", addr).
		Str("backend", cfg.Backend.URL).
		Bool("journal", journal.Enabled()).
		Bool("archive", archiver != nil).
		Msg("starting LPR dashboard")

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error().Err(err).Msg("failed to start server")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("server forced to shutdown")
	}

	cancel()
	cameraPoller.Stop()

	appLogger.Info().Msg("server exited")
}
