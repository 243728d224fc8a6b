// Command server runs the document rendering HTTP API.
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
	printingapp "github.com/invoicing/backend/internal/application/printing"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/scheduler"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"github.com/invoicing/backend/internal/interfaces/http/handler"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"github.com/invoicing/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	otelProviders, err := newTelemetry(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log = otelProviders.bridgeLogger(log, cfg)
	defer func() {
		_ = log.Sync()
	}()

	profiler, err := newProfiler(cfg, otelProviders.tracer, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}

	log.Info("Starting document renderer",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("storage", cfg.Storage.Provider),
		zap.String("qr_provider", cfg.Assets.QRProvider),
	)

	meter := otelProviders.meter.Meter(cfg.Telemetry.ServiceName)
	renderMetrics, err := telemetry.NewRenderMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create render metrics", zap.Error(err))
	}

	assets, err := newAssetPipeline(ctx, cfg, renderMetrics, log)
	if err != nil {
		log.Fatal("Failed to initialize asset pipeline", zap.Error(err))
	}
	defer func() {
		if err := assets.Close(); err != nil {
			log.Error("Error closing asset cache", zap.Error(err))
		}
	}()

	store, err := newDocumentStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize document storage", zap.Error(err))
	}

	var sweeper *scheduler.RetentionSweeper
	if store.local != nil && cfg.Storage.Retention > 0 {
		sweeper, err = scheduler.NewRetentionSweeper(scheduler.RetentionConfig{
			MaxAge:     cfg.Storage.Retention,
			RunOnStart: true,
		}, store.local, log)
		if err != nil {
			log.Fatal("Failed to create retention sweeper", zap.Error(err))
		}
		if err := sweeper.Start(ctx); err != nil {
			log.Fatal("Failed to start retention sweeper", zap.Error(err))
		}
	}

	documentService := printingapp.NewDocumentService(printingapp.DocumentServiceConfig{
		Renderer:          newRenderer(cfg, assets, log),
		Storage:           store.storage,
		StorageProvider:   cfg.Storage.Provider,
		DownloadURLExpiry: store.expiry,
		Metrics:           renderMetrics,
		Logger:            log,
	})

	engine, err := router.NewEngine(router.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		MaxBodySize:      cfg.HTTP.MaxBodySize,
		RequestTimeout:   cfg.HTTP.RequestTimeout,
		CORSOrigins:      cfg.HTTP.CORSOrigins,
		TrustedProxies:   cfg.HTTP.TrustedProxies,
		TracingEnabled:   cfg.Telemetry.Enabled,
		ProfilingEnabled: cfg.Telemetry.ProfilingEnabled,
		Tenant: middleware.TenantConfig{
			JWTSecret: []byte(cfg.HTTP.JWTSecret),
			Issuer:    cfg.HTTP.JWTIssuer,
			Logger:    log,
		},
	}, router.Deps{
		Documents: handler.NewDocumentHandler(documentService, store.files),
		System:    handler.NewSystemHandler(cfg.App.Name, telemetry.ServiceVersion),
		Logger:    log,
		Meter:     meter,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if sweeper != nil {
		if err := sweeper.Stop(shutdownCtx); err != nil {
			log.Error("Retention sweeper did not stop cleanly", zap.Error(err))
		}
	}

	// Flush telemetry after the server drained so in-flight spans are exported
	telemetryCtx, telemetryCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer telemetryCancel()
	if err := otelProviders.Shutdown(telemetryCtx); err != nil {
		log.Error("Telemetry shutdown failed", zap.Error(err))
	}
	_ = profiler.Stop()

	log.Info("Server exited gracefully")
}
