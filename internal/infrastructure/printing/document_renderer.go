package printing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/invoicing/backend/internal/domain/printing"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrAssetLoadingDisabled is reported when a document references an asset
// but the renderer has no loader or QR provider configured
var ErrAssetLoadingDisabled = errors.New("asset loading is not configured")

// RendererConfig contains configuration for the document renderer
type RendererConfig struct {
	// Theme overrides the default layout
	Theme *LayoutTheme
	// Measurer overrides the core font metrics (optional)
	Measurer TextMeasurer
	// Loader fetches logos. Nil disables logos.
	Loader *AssetLoader
	// QR generates QR images. Nil disables the QR block.
	QR QRProvider
	// Serializer overrides the default compressed serializer (optional)
	Serializer *Serializer
	// OnAssetFailure is called for every asset that fails soft
	OnAssetFailure func(AssetWarning)
	// Logger for debug output
	Logger *zap.Logger
}

// Renderer lays out a DocumentSpec and serializes it to PDF.
// It holds no per-document state and is safe for concurrent use.
type Renderer struct {
	theme          LayoutTheme
	measurer       TextMeasurer
	loader         *AssetLoader
	qr             QRProvider
	serializer     *Serializer
	onAssetFailure func(AssetWarning)
	logger         *zap.Logger
}

// NewRenderer creates a renderer, applying defaults for unset fields
func NewRenderer(config *RendererConfig) *Renderer {
	if config == nil {
		config = &RendererConfig{}
	}
	theme := DefaultTheme()
	if config.Theme != nil {
		theme = config.Theme.WithDefaults()
	}
	r := &Renderer{
		theme:          theme,
		measurer:       config.Measurer,
		loader:         config.Loader,
		qr:             config.QR,
		serializer:     config.Serializer,
		onAssetFailure: config.OnAssetFailure,
		logger:         config.Logger,
	}
	if r.measurer == nil {
		r.measurer = NewCoreFontMeasurer()
	}
	if r.serializer == nil {
		r.serializer = NewSerializer(nil)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Theme returns the effective layout theme
func (r *Renderer) Theme() LayoutTheme {
	return r.theme
}

// Render implements DocumentRenderer. Missing or broken logo and QR assets
// never fail the render; they are reported through RenderResult.Warnings.
func (r *Renderer) Render(ctx context.Context, spec *printing.DocumentSpec) (*RenderResult, error) {
	if spec == nil {
		return nil, NewRenderError(ErrCodeInvalidDocument, "document spec is required", nil)
	}

	ctx, span := telemetry.StartSpan(ctx, "document.render",
		telemetry.WithAttribute(telemetry.SpanAttrRecordKind, spec.Record.Kind().String()),
		telemetry.WithAttribute(telemetry.SpanAttrRecordNumber, spec.Record.Number),
		telemetry.WithAttribute(telemetry.SpanAttrLineItems, len(spec.LineItems)),
	)
	defer span.End()

	start := time.Now()
	assets, warnings := r.prefetch(ctx, spec)
	pages := r.paginate(spec, assets)

	data, err := r.serializer.Finalize(pages, r.documentInfo(spec, start))
	if err != nil {
		telemetry.RecordError(span, err)
		r.logger.Error("Failed to serialize document",
			zap.String("number", spec.Record.Number),
			zap.Error(err),
		)
		return nil, NewRenderError(ErrCodeSerializationFailed, "failed to serialize document", err)
	}

	duration := time.Since(start)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPageCount, len(pages),
		telemetry.SpanAttrAssetWarnings, len(warnings),
	)
	r.logger.Info("Document rendered successfully",
		zap.String("kind", spec.Record.Kind().String()),
		zap.String("number", spec.Record.Number),
		zap.Int("bytes", len(data)),
		zap.Int("pages", len(pages)),
		zap.Int("warnings", len(warnings)),
		zap.Duration("duration", duration),
	)

	return &RenderResult{
		PDFData:        data,
		PageCount:      len(pages),
		RenderDuration: duration,
		Warnings:       warnings,
	}, nil
}

// documentAssets are the images resolved before layout starts
type documentAssets struct {
	logo *Asset
	qr   *Asset
}

// prefetch loads the logo and the QR image concurrently.
// Every failure is soft: the asset is left nil and a warning recorded.
func (r *Renderer) prefetch(ctx context.Context, spec *printing.DocumentSpec) (documentAssets, []AssetWarning) {
	var (
		assets   documentAssets
		mu       sync.Mutex
		warnings []AssetWarning
	)
	fail := func(kind AssetKind, url string, err error) {
		w := AssetWarning{Kind: kind, URL: url, Message: err.Error()}
		fields := []zap.Field{zap.String("kind", string(kind)), zap.String("url", url), zap.Error(err)}
		if IsAssetError(err) {
			r.logger.Warn("Asset unavailable, continuing without it", fields...)
		} else {
			// loading switched off by configuration
			r.logger.Debug("Asset skipped", fields...)
		}
		telemetry.AddEvent(trace.SpanFromContext(ctx), "asset_unavailable",
			telemetry.SpanAttrAssetKind, string(kind),
			telemetry.SpanAttrAssetURL, url,
		)
		mu.Lock()
		warnings = append(warnings, w)
		mu.Unlock()
		if r.onAssetFailure != nil {
			r.onAssetFailure(w)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if spec.Tenant.HasLogo() {
		logoURL := strings.TrimSpace(spec.Tenant.LogoURL)
		g.Go(func() error {
			if r.loader == nil {
				fail(AssetKindLogo, logoURL, ErrAssetLoadingDisabled)
				return nil
			}
			asset, err := r.loader.Load(gctx, AssetKindLogo, logoURL)
			if err != nil {
				fail(AssetKindLogo, logoURL, err)
				return nil
			}
			asset.Fit(r.theme.LogoMaxWidthPt, r.theme.LogoMaxHeightPt)
			assets.logo = asset
			return nil
		})
	}
	if spec.HasQR() {
		target := strings.TrimSpace(spec.QRTarget)
		g.Go(func() error {
			if r.qr == nil {
				fail(AssetKindQR, target, ErrAssetLoadingDisabled)
				return nil
			}
			asset, err := r.qr.QRCode(gctx, target)
			if err != nil {
				fail(AssetKindQR, target, err)
				return nil
			}
			asset.Fit(r.theme.QRSizePt, r.theme.QRSizePt)
			assets.qr = asset
			return nil
		})
	}
	_ = g.Wait()

	// fixed order regardless of which fetch finished first
	if len(warnings) == 2 && warnings[0].Kind == AssetKindQR {
		warnings[0], warnings[1] = warnings[1], warnings[0]
	}
	return assets, warnings
}

func (r *Renderer) documentInfo(spec *printing.DocumentSpec, now time.Time) DocumentInfo {
	return DocumentInfo{
		Title:     spec.Record.Title(),
		Subject:   strings.TrimSpace(spec.Party.Name),
		Author:    strings.TrimSpace(spec.Tenant.BusinessName),
		Keywords:  strings.ToLower(spec.Record.Kind().String()),
		CreatedAt: now,
	}
}

var _ DocumentRenderer = (*Renderer)(nil)
