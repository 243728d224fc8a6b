package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/interfaces/http/handler"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const defaultMaxBodySize = 2 << 20

// Config holds the HTTP settings the engine is built with
type Config struct {
	ServiceName    string
	MaxBodySize    int64
	RequestTimeout time.Duration
	CORSOrigins    []string
	TrustedProxies []string
	TracingEnabled bool
	// ProfilingEnabled adds route and method pprof labels to every request
	ProfilingEnabled bool
	Tenant           middleware.TenantConfig
}

// Deps are the collaborators the routes dispatch to
type Deps struct {
	Documents *handler.DocumentHandler
	System    *handler.SystemHandler
	Logger    *zap.Logger
	// Meter records HTTP metrics; nil disables them
	Meter metric.Meter
}

// NewEngine builds the gin engine of the document API:
//
//	GET  /api/v1/system/ping
//	GET  /api/v1/system/info
//	POST /api/v1/documents/render
//	POST /api/v1/documents/preview
//	POST /api/v1/documents/store      (tenant scoped)
//	GET  /api/v1/documents/files/*key
func NewEngine(cfg Config, deps Deps) (*gin.Engine, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	if err := middleware.SetupValidator(); err != nil {
		return nil, err
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.CORSOrigins

	// RequestID runs first so the logger, recovery and tracing see the ID
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.TracingEnabled}),
		middleware.SpanEnricher(),
		middleware.Profiling(middleware.ProfilingConfig{
			Enabled:   cfg.ProfilingEnabled,
			SkipPaths: middleware.DefaultProfilingConfig().SkipPaths,
		}),
		logger.GinMiddleware(log),
		middleware.HTTPMetrics(deps.Meter),
		middleware.Secure(),
		middleware.CORSWithConfig(corsCfg),
	)

	tenantCfg := cfg.Tenant
	if tenantCfg.Logger == nil {
		tenantCfg.Logger = log
	}

	system := NewDomainGroup("system", "/system").
		GET("/ping", deps.System.Ping).
		GET("/info", deps.System.GetSystemInfo)

	documents := NewDomainGroup("documents", "/documents")
	documents.GET("/files/*key", deps.Documents.Download)
	rendering := documents.Group("rendering", "").
		Use(middleware.BodyLimit(cfg.MaxBodySize), middleware.Timeout(cfg.RequestTimeout))
	rendering.
		POST("/render", deps.Documents.Render).
		POST("/preview", deps.Documents.Preview).
		POST("/store", middleware.Tenant(tenantCfg), deps.Documents.Store)

	NewRouter(engine).
		Register(system).
		Register(documents).
		Setup()

	return engine, nil
}
