package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/invoicing/backend/internal/domain/printing"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Render    RenderConfig
	Assets    AssetsConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// RequestTimeout bounds one render request, 0 disables it
	RequestTimeout time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
	CORSOrigins    []string
	// JWTSecret enables bearer token tenant resolution on /documents/store.
	// Empty means the X-Tenant-ID header is trusted.
	JWTSecret string
	JWTIssuer string
}

// RenderConfig holds page layout and serialization settings for the document engine
type RenderConfig struct {
	PaperSize           string  // A4, A5, LETTER, LEGAL
	MarginPt            float64 // page margin in points
	LineHeightPt        float64
	RowHeightPt         float64
	BodyFontPt          float64
	HeaderFontPt        float64
	TitleFontPt         float64
	SmallFontPt         float64 // footer and page numbers
	FontFamily          string
	DescriptionOverflow string // TRUNCATE or WRAP
	MaxRowsPerPage      int    // 0 = unlimited
	PageNumbers         bool
	Compress            bool
	// Columns left unset are derived from the page width
	Columns RenderColumnsConfig
}

// RenderColumnsConfig holds the x offsets of the item table columns in points
type RenderColumnsConfig struct {
	DescriptionPt float64
	QuantityPt    float64
	UnitPricePt   float64
	TotalPt       float64
}

// IsSet reports whether any column offset was configured
func (c RenderColumnsConfig) IsSet() bool {
	return c != RenderColumnsConfig{}
}

// AssetsConfig holds settings for fetching logos and QR codes
type AssetsConfig struct {
	Enabled      bool
	FetchTimeout time.Duration
	MaxBytes     int64
	UserAgent    string
	QRProvider   string // remote or local
	QRServiceURL string // template with {size} and {data} placeholders
	QRSize       int
	// CacheMaxEntries bounds the in-memory asset cache
	CacheMaxEntries int
}

// RedisConfig holds Redis connection settings for the asset cache
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	AssetTTL time.Duration
}

// StorageConfig holds settings for storing rendered documents
type StorageConfig struct {
	Provider          string // s3 or filesystem
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	PresignExpiration time.Duration
	BasePath          string        // filesystem provider root
	BaseURL           string        // filesystem provider URL prefix
	Retention         time.Duration // filesystem provider cleanup age, 0 = keep forever
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)

	// Pyroscope continuous profiling
	ProfilingEnabled           bool
	ProfilingServerAddress     string // e.g. "http://pyroscope:4040"
	ProfilingBasicAuthUser     string
	ProfilingBasicAuthPassword string
}

// Storage providers
const (
	StorageProviderS3         = "s3"
	StorageProviderFileSystem = "filesystem"
)

// QR providers
const (
	QRProviderRemote = "remote"
	QRProviderLocal  = "local"
)

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with DOCS_ prefix (e.g., DOCS_STORAGE_SECRET_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("DOCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans that default to true need an explicit viper default,
	// otherwise an unset key is indistinguishable from false.
	v.SetDefault("render.compress", true)
	v.SetDefault("assets.enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			RequestTimeout:  v.GetDuration("http.request_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
			CORSOrigins:     v.GetStringSlice("http.cors_origins"),
			JWTSecret:       v.GetString("http.jwt_secret"),
			JWTIssuer:       v.GetString("http.jwt_issuer"),
		},
		Render: RenderConfig{
			PaperSize:           v.GetString("render.paper_size"),
			MarginPt:            v.GetFloat64("render.margin_pt"),
			LineHeightPt:        v.GetFloat64("render.line_height_pt"),
			RowHeightPt:         v.GetFloat64("render.row_height_pt"),
			BodyFontPt:          v.GetFloat64("render.body_font_pt"),
			HeaderFontPt:        v.GetFloat64("render.header_font_pt"),
			TitleFontPt:         v.GetFloat64("render.title_font_pt"),
			SmallFontPt:         v.GetFloat64("render.small_font_pt"),
			FontFamily:          v.GetString("render.font_family"),
			DescriptionOverflow: v.GetString("render.description_overflow"),
			MaxRowsPerPage:      v.GetInt("render.max_rows_per_page"),
			PageNumbers:         v.GetBool("render.page_numbers"),
			Compress:            v.GetBool("render.compress"),
			Columns: RenderColumnsConfig{
				DescriptionPt: v.GetFloat64("render.columns.description_pt"),
				QuantityPt:    v.GetFloat64("render.columns.quantity_pt"),
				UnitPricePt:   v.GetFloat64("render.columns.unit_price_pt"),
				TotalPt:       v.GetFloat64("render.columns.total_pt"),
			},
		},
		Assets: AssetsConfig{
			Enabled:         v.GetBool("assets.enabled"),
			FetchTimeout:    v.GetDuration("assets.fetch_timeout"),
			MaxBytes:        v.GetInt64("assets.max_bytes"),
			UserAgent:       v.GetString("assets.user_agent"),
			QRProvider:      v.GetString("assets.qr_provider"),
			QRServiceURL:    v.GetString("assets.qr_service_url"),
			QRSize:          v.GetInt("assets.qr_size"),
			CacheMaxEntries: v.GetInt("assets.cache_max_entries"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			AssetTTL: v.GetDuration("redis.asset_ttl"),
		},
		Storage: StorageConfig{
			Provider:          v.GetString("storage.provider"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
			BasePath:          v.GetString("storage.base_path"),
			BaseURL:           v.GetString("storage.base_url"),
			Retention:         v.GetDuration("storage.retention"),
		},
		Telemetry: TelemetryConfig{
			Enabled:                    v.GetBool("telemetry.enabled"),
			CollectorEndpoint:          v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:              v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:                v.GetString("telemetry.service_name"),
			Insecure:                   v.GetBool("telemetry.insecure"),
			ProfilingEnabled:           v.GetBool("telemetry.profiling_enabled"),
			ProfilingServerAddress:     v.GetString("telemetry.profiling_server_address"),
			ProfilingBasicAuthUser:     v.GetString("telemetry.profiling_basic_auth_user"),
			ProfilingBasicAuthPassword: v.GetString("telemetry.profiling_basic_auth_password"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "document-renderer"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// Rendering waits on remote assets, keep above assets.fetch_timeout
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.RequestTimeout == 0 {
		cfg.HTTP.RequestTimeout = 45 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20 // 2MB
	}

	if cfg.Render.PaperSize == "" {
		cfg.Render.PaperSize = "A4"
	}
	cfg.Render.PaperSize = strings.ToUpper(cfg.Render.PaperSize)
	if cfg.Render.MarginPt == 0 {
		cfg.Render.MarginPt = 40
	}
	if cfg.Render.LineHeightPt == 0 {
		cfg.Render.LineHeightPt = 14
	}
	if cfg.Render.RowHeightPt == 0 {
		cfg.Render.RowHeightPt = 18
	}
	if cfg.Render.BodyFontPt == 0 {
		cfg.Render.BodyFontPt = 10
	}
	if cfg.Render.HeaderFontPt == 0 {
		cfg.Render.HeaderFontPt = 18
	}
	if cfg.Render.FontFamily == "" {
		cfg.Render.FontFamily = "Helvetica"
	}
	if cfg.Render.DescriptionOverflow == "" {
		cfg.Render.DescriptionOverflow = "TRUNCATE"
	}
	cfg.Render.DescriptionOverflow = strings.ToUpper(cfg.Render.DescriptionOverflow)

	if cfg.Assets.FetchTimeout == 0 {
		cfg.Assets.FetchTimeout = 10 * time.Second
	}
	if cfg.Assets.MaxBytes == 0 {
		cfg.Assets.MaxBytes = 5 << 20 // 5MB
	}
	if cfg.Assets.UserAgent == "" {
		cfg.Assets.UserAgent = "invoicing-document-renderer/1.0"
	}
	if cfg.Assets.QRProvider == "" {
		cfg.Assets.QRProvider = QRProviderRemote
	}
	cfg.Assets.QRProvider = strings.ToLower(cfg.Assets.QRProvider)
	if cfg.Assets.QRServiceURL == "" {
		cfg.Assets.QRServiceURL = "https://api.qrserver.com/v1/create-qr-code/?size={size}x{size}&data={data}"
	}
	if cfg.Assets.QRSize == 0 {
		cfg.Assets.QRSize = 240
	}
	if cfg.Assets.CacheMaxEntries == 0 {
		cfg.Assets.CacheMaxEntries = 256
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.AssetTTL == 0 {
		cfg.Redis.AssetTTL = time.Hour
	}

	if cfg.Storage.Provider == "" {
		cfg.Storage.Provider = StorageProviderFileSystem
	}
	cfg.Storage.Provider = strings.ToLower(cfg.Storage.Provider)
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "documents"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "./data/documents"
	}
	if cfg.Storage.BaseURL == "" {
		cfg.Storage.BaseURL = "/api/v1/documents/files"
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.ProfilingServerAddress == "" {
		cfg.Telemetry.ProfilingServerAddress = "http://localhost:4040"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if !printing.PaperSize(c.Render.PaperSize).IsValid() {
		names := make([]string, 0, len(printing.AllPaperSizes()))
		for _, size := range printing.AllPaperSizes() {
			names = append(names, string(size))
		}
		return fmt.Errorf("render.paper_size must be one of %s, got %q", strings.Join(names, ", "), c.Render.PaperSize)
	}
	if c.Render.MarginPt < 0 {
		return fmt.Errorf("render.margin_pt cannot be negative")
	}
	if w, h := printing.PaperSize(c.Render.PaperSize).Dimensions(); c.Render.MarginPt*2 >= min(w, h) {
		return fmt.Errorf("render.margin_pt %.0f leaves no content area on %s paper", c.Render.MarginPt, c.Render.PaperSize)
	}
	if c.Render.TitleFontPt < 0 || c.Render.SmallFontPt < 0 {
		return fmt.Errorf("render font sizes cannot be negative")
	}
	if cols := c.Render.Columns; cols.IsSet() {
		if cols.DescriptionPt < 0 || !(cols.DescriptionPt < cols.QuantityPt &&
			cols.QuantityPt < cols.UnitPricePt && cols.UnitPricePt < cols.TotalPt) {
			return fmt.Errorf("render.columns must be set together and strictly increasing")
		}
	}
	if c.Render.MaxRowsPerPage < 0 {
		return fmt.Errorf("render.max_rows_per_page cannot be negative")
	}
	if c.Render.DescriptionOverflow != "TRUNCATE" && c.Render.DescriptionOverflow != "WRAP" {
		return fmt.Errorf("render.description_overflow must be TRUNCATE or WRAP, got %q", c.Render.DescriptionOverflow)
	}

	if c.HTTP.JWTSecret != "" && len(c.HTTP.JWTSecret) < 32 {
		return fmt.Errorf("http.jwt_secret must be at least 32 characters")
	}

	if c.Assets.MaxBytes < 0 {
		return fmt.Errorf("assets.max_bytes cannot be negative")
	}
	if c.Assets.CacheMaxEntries < 0 {
		return fmt.Errorf("assets.cache_max_entries cannot be negative")
	}
	if c.Assets.QRProvider != QRProviderRemote && c.Assets.QRProvider != QRProviderLocal {
		return fmt.Errorf("assets.qr_provider must be remote or local, got %q", c.Assets.QRProvider)
	}
	if c.Assets.QRProvider == QRProviderRemote && !strings.Contains(c.Assets.QRServiceURL, "{data}") {
		return fmt.Errorf("assets.qr_service_url must contain a {data} placeholder")
	}

	if c.Storage.Retention < 0 {
		return fmt.Errorf("storage.retention cannot be negative")
	}
	switch c.Storage.Provider {
	case StorageProviderS3, StorageProviderFileSystem:
	default:
		return fmt.Errorf("storage.provider must be s3 or filesystem, got %q", c.Storage.Provider)
	}

	if c.App.Env == "production" {
		if c.Storage.Provider == StorageProviderS3 {
			if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
				return fmt.Errorf("storage.access_key and storage.secret_key are required in production")
			}
			if c.Storage.Endpoint != "" && !c.Storage.UseSSL && !strings.HasPrefix(c.Storage.Endpoint, "https://") {
				return fmt.Errorf("storage.use_ssl must be true in production")
			}
		}
		if c.HTTP.JWTSecret == "" {
			return fmt.Errorf("http.jwt_secret is required in production")
		}
		if c.Telemetry.Enabled && c.Telemetry.Insecure {
			return fmt.Errorf("telemetry.insecure must be false in production")
		}
	}

	if c.Telemetry.ProfilingEnabled && !strings.HasPrefix(c.Telemetry.ProfilingServerAddress, "http") {
		return fmt.Errorf("telemetry.profiling_server_address must be an http(s) URL, got %q", c.Telemetry.ProfilingServerAddress)
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// Addr returns the redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// IsProduction reports whether the application runs in production mode
func (a *AppConfig) IsProduction() bool {
	return a.Env == "production"
}
