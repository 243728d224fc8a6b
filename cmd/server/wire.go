package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	printingapp "github.com/invoicing/backend/internal/application/printing"
	domain "github.com/invoicing/backend/internal/domain/printing"
	"github.com/invoicing/backend/internal/infrastructure/cache"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	infra "github.com/invoicing/backend/internal/infrastructure/printing"
	"github.com/invoicing/backend/internal/infrastructure/storage"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"github.com/invoicing/backend/internal/interfaces/http/handler"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// telemetryProviders groups the OTEL providers so they shut down together
type telemetryProviders struct {
	tracer *telemetry.TracerProvider
	meter  *telemetry.MeterProvider
	logs   *telemetry.LoggerProvider
}

func newTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*telemetryProviders, error) {
	tcfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}

	tp, err := telemetry.NewTracerProvider(ctx, tcfg, log)
	if err != nil {
		return nil, fmt.Errorf("tracer provider: %w", err)
	}
	mp, err := telemetry.NewMeterProvider(ctx, tcfg, log)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("meter provider: %w", err)
	}
	lp, err := telemetry.NewLoggerProvider(ctx, tcfg, log)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, fmt.Errorf("logger provider: %w", err)
	}
	return &telemetryProviders{tracer: tp, meter: mp, logs: lp}, nil
}

// newProfiler starts Pyroscope when profiling is enabled. Spans are linked to
// profiles only when tracing is on as well.
func newProfiler(cfg *config.Config, tracer *telemetry.TracerProvider, log *zap.Logger) (*telemetry.Profiler, error) {
	pcfg := telemetry.DefaultProfilerConfig()
	pcfg.Enabled = cfg.Telemetry.ProfilingEnabled
	pcfg.ServerAddress = cfg.Telemetry.ProfilingServerAddress
	pcfg.ApplicationName = cfg.Telemetry.ServiceName
	pcfg.BasicAuthUser = cfg.Telemetry.ProfilingBasicAuthUser
	pcfg.BasicAuthPassword = cfg.Telemetry.ProfilingBasicAuthPassword

	profiler, err := telemetry.NewProfiler(pcfg, log)
	if err != nil {
		return nil, err
	}
	if profiler.IsEnabled() && cfg.Telemetry.Enabled {
		tracer.EnableSpanProfiles()
	}
	return profiler, nil
}

// bridgeLogger tees log into the OTEL log pipeline when it is enabled
func (p *telemetryProviders) bridgeLogger(log *zap.Logger, cfg *config.Config) *zap.Logger {
	if !p.logs.IsEnabled() {
		return log
	}
	otelCore := telemetry.NewZapOTELCore(p.logs, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))
	return telemetry.NewBridgedLogger(log.Core(), otelCore,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}

func (p *telemetryProviders) Shutdown(ctx context.Context) error {
	// Logs last so shutdown messages from the others are still exported
	return errors.Join(
		p.tracer.Shutdown(ctx),
		p.meter.Shutdown(ctx),
		p.logs.Shutdown(ctx),
	)
}

// newTheme maps the render config onto a layout theme
func newTheme(cfg config.RenderConfig) infra.LayoutTheme {
	theme := infra.DefaultTheme()
	theme.PaperSize = domain.PaperSize(cfg.PaperSize)
	theme.MarginPt = cfg.MarginPt
	theme.LineHeightPt = cfg.LineHeightPt
	theme.RowHeightPt = cfg.RowHeightPt
	theme.BodyFontPt = cfg.BodyFontPt
	theme.HeaderFontPt = cfg.HeaderFontPt
	theme.TitleFontPt = cfg.TitleFontPt
	theme.SmallFontPt = cfg.SmallFontPt
	theme.FontFamily = cfg.FontFamily
	theme.DescriptionOverflow = infra.OverflowPolicy(cfg.DescriptionOverflow)
	theme.MaxRowsPerPage = cfg.MaxRowsPerPage
	theme.PageNumbers = cfg.PageNumbers
	// Default columns follow the default geometry; WithDefaults recomputes them for this one
	theme.Columns = infra.ColumnOffsets{}
	if cfg.Columns.IsSet() {
		theme.Columns = infra.ColumnOffsets{
			Description: cfg.Columns.DescriptionPt,
			Quantity:    cfg.Columns.QuantityPt,
			UnitPrice:   cfg.Columns.UnitPricePt,
			Total:       cfg.Columns.TotalPt,
		}
	}
	theme.TotalsLabelRightPt = 0
	return theme.WithDefaults()
}

// assetPipeline holds the logo loader and QR provider plus the cache they share
type assetPipeline struct {
	loader *infra.AssetLoader
	qr     infra.QRProvider
	cache  io.Closer
}

func (a *assetPipeline) Close() error {
	if a == nil || a.cache == nil {
		return nil
	}
	return a.cache.Close()
}

// newAssetPipeline wires fetcher -> cache -> loader. Disabled assets return nil,
// which renders documents without logo or QR code.
func newAssetPipeline(
	ctx context.Context,
	cfg *config.Config,
	metrics *telemetry.RenderMetrics,
	log *zap.Logger,
) (*assetPipeline, error) {
	if !cfg.Assets.Enabled {
		log.Info("Asset fetching disabled")
		return nil, nil
	}

	assetCache, err := cache.NewAssetCacheFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.App.IsProduction()),
		cache.WithMaxInMemoryEntries(cfg.Assets.CacheMaxEntries),
	).CreateCache(ctx)
	if err != nil {
		return nil, err
	}

	var fetcher infra.Fetcher = infra.NewHTTPFetcher(&infra.HTTPFetcherConfig{
		Timeout:   cfg.Assets.FetchTimeout,
		MaxBytes:  cfg.Assets.MaxBytes,
		UserAgent: cfg.Assets.UserAgent,
		Logger:    log,
	})
	fetcher = infra.NewCachingFetcher(fetcher, assetCache,
		infra.WithCacheTTL(cfg.Redis.AssetTTL),
		infra.WithCacheLookupHook(metrics.RecordCacheLookup),
		infra.WithCacheLogger(log),
	)

	loader := infra.NewAssetLoader(fetcher, nil, log)

	var qr infra.QRProvider
	switch cfg.Assets.QRProvider {
	case config.QRProviderLocal:
		qr = infra.NewLocalQRProvider(loader, cfg.Assets.QRSize)
	default:
		qr = infra.NewRemoteQRProvider(loader, cfg.Assets.QRServiceURL, cfg.Assets.QRSize)
	}

	return &assetPipeline{loader: loader, qr: qr, cache: assetCache}, nil
}

// newRenderer builds the PDF renderer; a nil pipeline disables assets
func newRenderer(cfg *config.Config, assets *assetPipeline, log *zap.Logger) *infra.Renderer {
	theme := newTheme(cfg.Render)
	rcfg := &infra.RendererConfig{
		Theme:      &theme,
		Serializer: infra.NewSerializer(&infra.SerializerConfig{Compress: cfg.Render.Compress}),
		OnAssetFailure: func(w infra.AssetWarning) {
			log.Warn("Document asset unavailable",
				zap.String("kind", string(w.Kind)),
				zap.String("url", w.URL),
				zap.String("reason", w.Message),
			)
		},
		Logger: log,
	}
	if assets != nil {
		rcfg.Loader = assets.loader
		rcfg.QR = assets.qr
	}
	return infra.NewRenderer(rcfg)
}

// documentStore is the storage backend plus the optional local reader and sweeper
type documentStore struct {
	storage printingapp.DocumentStorage
	files   handler.DocumentReader
	local   *storage.FileSystemStorage
	expiry  time.Duration
}

func newDocumentStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*documentStore, error) {
	switch cfg.Storage.Provider {
	case config.StorageProviderS3:
		s3, err := storage.NewS3DocumentStorage(&cfg.Storage,
			storage.WithLogger(log),
			storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
		)
		if err != nil {
			return nil, fmt.Errorf("s3 storage: %w", err)
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("s3 bucket %s: %w", s3.Bucket(), err)
		}
		return &documentStore{storage: s3, expiry: cfg.Storage.PresignExpiration}, nil
	default:
		fs, err := storage.NewFileSystemStorage(&storage.FileSystemStorageConfig{
			BasePath: cfg.Storage.BasePath,
			BaseURL:  cfg.Storage.BaseURL,
			Logger:   log,
		})
		if err != nil {
			return nil, fmt.Errorf("filesystem storage: %w", err)
		}
		return &documentStore{storage: fs, files: fs, local: fs}, nil
	}
}
