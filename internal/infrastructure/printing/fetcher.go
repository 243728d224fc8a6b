package printing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultFetchTimeout  = 10 * time.Second
	defaultMaxAssetBytes = 5 << 20
	defaultUserAgent     = "invoicing-document-renderer/1.0"
)

// HTTPFetcherConfig contains configuration for the HTTP asset fetcher
type HTTPFetcherConfig struct {
	// Timeout bounds one fetch including the body read
	Timeout time.Duration
	// MaxBytes rejects larger payloads
	MaxBytes int64
	// UserAgent sent with every request
	UserAgent string
	// Client overrides the HTTP client (optional)
	Client *http.Client
	// Logger for debug output
	Logger *zap.Logger
}

// HTTPFetcher fetches assets over HTTP(S)
type HTTPFetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
	logger    *zap.Logger
}

// NewHTTPFetcher creates a fetcher, applying defaults for unset fields
func NewHTTPFetcher(config *HTTPFetcherConfig) *HTTPFetcher {
	if config == nil {
		config = &HTTPFetcherConfig{}
	}
	f := &HTTPFetcher{
		client:    config.Client,
		timeout:   config.Timeout,
		maxBytes:  config.MaxBytes,
		userAgent: config.UserAgent,
		logger:    config.Logger,
	}
	if f.timeout <= 0 {
		f.timeout = defaultFetchTimeout
	}
	if f.maxBytes <= 0 {
		f.maxBytes = defaultMaxAssetBytes
	}
	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

// Fetch implements Fetcher. Non-2xx responses, transport errors and
// oversized bodies are returned as *AssetError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &AssetError{Kind: AssetErrorFetch, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &AssetError{Kind: AssetErrorFetch, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &AssetError{
			Kind: AssetErrorStatus,
			URL:  url,
			Err:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &AssetError{Kind: AssetErrorFetch, URL: url, Err: err}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &AssetError{
			Kind: AssetErrorSize,
			URL:  url,
			Err:  fmt.Errorf("asset exceeds %d bytes", f.maxBytes),
		}
	}

	f.logger.Debug("Asset fetched",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)),
	)
	return &FetchResult{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

var _ Fetcher = (*HTTPFetcher)(nil)

// IsAssetError reports whether err is an asset failure
func IsAssetError(err error) bool {
	var assetErr *AssetError
	return errors.As(err, &assetErr)
}
