package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Render outcome values for the status attribute.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Cache lookup values for the cache_result attribute.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = &MetricsError{Op: "NewRenderMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// RenderMetrics records document rendering activity. A nil *RenderMetrics
// accepts every call and records nothing.
type RenderMetrics struct {
	documentsRendered *Counter
	renderDuration    *Histogram
	pageCount         *Histogram
	documentSize      *Histogram
	assetFailures     *Counter
	storageUploads    *Counter
	assetCacheLookups *Counter
}

// NewRenderMetrics creates the render instruments on meter.
func NewRenderMetrics(meter metric.Meter) (*RenderMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   RenderMetrics
		err error
	)

	if m.documentsRendered, err = NewCounter(meter,
		"documents_rendered_total",
		"Total number of documents rendered",
		"{documents}",
	); err != nil {
		return nil, err
	}

	if m.renderDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "document_render_duration_seconds",
		Description: "Time spent laying out and serializing a document",
		Unit:        "s",
		Boundaries:  RenderDurationBuckets,
	}); err != nil {
		return nil, err
	}

	if m.pageCount, err = NewHistogram(meter, HistogramOpts{
		Name:        "document_pages",
		Description: "Pages per rendered document",
		Unit:        "{pages}",
		Boundaries:  PageCountBuckets,
	}); err != nil {
		return nil, err
	}

	if m.documentSize, err = NewHistogram(meter, HistogramOpts{
		Name:        "document_size_bytes",
		Description: "Serialized PDF size",
		Unit:        "By",
		Boundaries:  DocumentSizeBuckets,
	}); err != nil {
		return nil, err
	}

	if m.assetFailures, err = NewCounter(meter,
		"document_asset_failures_total",
		"Logo or QR assets that could not be fetched or decoded",
		"{assets}",
	); err != nil {
		return nil, err
	}

	if m.storageUploads, err = NewCounter(meter,
		"document_storage_uploads_total",
		"Rendered documents written to object storage",
		"{uploads}",
	); err != nil {
		return nil, err
	}

	if m.assetCacheLookups, err = NewCounter(meter,
		"document_asset_cache_lookups_total",
		"Asset cache lookups by result",
		"{lookups}",
	); err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordRender records one finished render. pages and size are only recorded
// on success.
func (m *RenderMetrics) RecordRender(ctx context.Context, recordKind, status string, elapsed time.Duration, pages, size int) {
	if m == nil {
		return
	}
	kind := AttrRecordKind.String(recordKind)
	m.documentsRendered.Inc(ctx, kind, AttrStatus.String(status))
	m.renderDuration.RecordDuration(ctx, elapsed, kind)
	if status != StatusSuccess {
		return
	}
	m.pageCount.Record(ctx, float64(pages), kind)
	m.documentSize.Record(ctx, float64(size), kind)
}

// RecordAssetFailure counts a soft asset failure.
func (m *RenderMetrics) RecordAssetFailure(ctx context.Context, assetKind string) {
	if m == nil {
		return
	}
	m.assetFailures.Inc(ctx, AttrAssetKind.String(assetKind))
}

// RecordUpload counts a storage write.
func (m *RenderMetrics) RecordUpload(ctx context.Context, provider, status string) {
	if m == nil {
		return
	}
	m.storageUploads.Inc(ctx, AttrStorageProvider.String(provider), AttrStatus.String(status))
}

// RecordCacheLookup counts an asset cache hit or miss.
func (m *RenderMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	m.assetCacheLookups.Inc(ctx, AttrCacheResult.String(result))
}
