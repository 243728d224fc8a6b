package printing

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/printing"
	"github.com/invoicing/backend/internal/domain/shared/valueobject"
	infra "github.com/invoicing/backend/internal/infrastructure/printing"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	pdfContentType           = "application/pdf"
	defaultDownloadURLExpiry = 15 * time.Minute
)

// DocumentStorage defines the object storage operations the service needs.
// It is implemented by the S3 and file system adapters in the infrastructure layer.
type DocumentStorage interface {
	// Upload stores data under storageKey
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error

	// GenerateDownloadURL returns a URL for the stored object and its expiry.
	// A zero expiry means the URL does not expire.
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)

	// DeleteObject deletes an object from storage
	DeleteObject(ctx context.Context, storageKey string) error

	// ObjectExists checks if an object exists in storage
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
}

// DocumentServiceConfig holds the collaborators of DocumentService
type DocumentServiceConfig struct {
	Renderer infra.DocumentRenderer
	// Storage is optional; RenderAndStore fails without it
	Storage DocumentStorage
	// StorageProvider labels upload metrics, e.g. "s3" or "filesystem"
	StorageProvider   string
	DownloadURLExpiry time.Duration
	Metrics           *telemetry.RenderMetrics
	Logger            *zap.Logger
}

// DocumentService turns document requests into PDFs and optionally stores them
type DocumentService struct {
	renderer          infra.DocumentRenderer
	storage           DocumentStorage
	storageProvider   string
	downloadURLExpiry time.Duration
	metrics           *telemetry.RenderMetrics
	validate          *validator.Validate
	logger            *zap.Logger
	now               func() time.Time
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(cfg DocumentServiceConfig) *DocumentService {
	s := &DocumentService{
		renderer:          cfg.Renderer,
		storage:           cfg.Storage,
		storageProvider:   cfg.StorageProvider,
		downloadURLExpiry: cfg.DownloadURLExpiry,
		metrics:           cfg.Metrics,
		validate:          newValidator(),
		logger:            cfg.Logger,
		now:               time.Now,
	}
	if s.downloadURLExpiry <= 0 {
		s.downloadURLExpiry = defaultDownloadURLExpiry
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// ErrStorageNotConfigured is returned by RenderAndStore when no storage is wired
var ErrStorageNotConfigured = errors.New("document storage is not configured")

// Render validates the request and renders it to PDF
func (s *DocumentService) Render(ctx context.Context, req RenderDocumentRequest) (*RenderDocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document_service", "render")
	defer span.End()

	resp, err := s.render(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return resp, nil
}

// Preview renders the request and returns only the layout facts
func (s *DocumentService) Preview(ctx context.Context, req RenderDocumentRequest) (*RenderSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document_service", "preview")
	defer span.End()

	resp, err := s.render(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &resp.RenderSummary, nil
}

// RenderAndStore renders the request, uploads the PDF under the tenant's prefix
// and returns a download URL for it
func (s *DocumentService) RenderAndStore(ctx context.Context, tenantID uuid.UUID, req RenderDocumentRequest) (*StoredDocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document_service", "store",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID),
	)
	defer span.End()

	if s.storage == nil {
		return nil, ErrStorageNotConfigured
	}
	if tenantID == uuid.Nil {
		return nil, infra.NewRenderError(infra.ErrCodeInvalidDocument, "tenant ID is required", nil)
	}

	resp, err := s.render(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	jobID := uuid.New()
	key := s.storageKey(tenantID, jobID, resp.Kind, resp.Number)
	telemetry.SetAttributes(span, telemetry.SpanAttrStorageKey, key, telemetry.SpanAttrBytes, len(resp.PDFData))

	if err := s.storage.Upload(ctx, key, resp.PDFData, pdfContentType); err != nil {
		s.metrics.RecordUpload(ctx, s.storageProvider, telemetry.StatusFailure)
		telemetry.RecordError(span, err)
		return nil, infra.NewRenderError(infra.ErrCodeStorageFailed, "failed to store document", err)
	}
	s.metrics.RecordUpload(ctx, s.storageProvider, telemetry.StatusSuccess)

	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, key, s.downloadURLExpiry)
	if err != nil {
		telemetry.RecordError(span, err)
		if delErr := s.storage.DeleteObject(ctx, key); delErr != nil {
			logger.WithLogger(ctx, s.logger).Warn("Failed to remove document after URL generation failed",
				zap.String("storage_key", key),
				zap.Error(delErr),
			)
		}
		return nil, infra.NewRenderError(infra.ErrCodeStorageFailed, "failed to generate download URL", err)
	}

	out := &StoredDocumentResponse{
		RenderSummary: resp.RenderSummary,
		JobID:         jobID.String(),
		StorageKey:    key,
		DownloadURL:   url,
	}
	if !expiresAt.IsZero() {
		out.ExpiresAt = &expiresAt
	}

	logger.WithLogger(ctx, s.logger).Info("Document stored",
		zap.String("tenant_id", tenantID.String()),
		zap.String("storage_key", key),
		zap.Int("size", len(resp.PDFData)),
	)
	return out, nil
}

func (s *DocumentService) render(ctx context.Context, req RenderDocumentRequest) (*RenderDocumentResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	spec := ToDocumentSpec(req)
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	kind := spec.Record.Kind()
	balanced := spec.Record.Totals.IsBalanced()
	if !balanced {
		logger.WithLogger(ctx, s.logger).Warn("Document totals do not add up",
			zap.String("number", spec.Record.Number),
			zap.Stringer("subtotal", spec.Record.Amount(spec.Record.Totals.Subtotal)),
			zap.Stringer("tax", spec.Record.Amount(spec.Record.Totals.Tax)),
			zap.Stringer("total", spec.Record.Amount(spec.Record.Totals.Total)),
		)
	}

	start := s.now()
	var (
		result *infra.RenderResult
		err    error
	)
	telemetry.WithProfilingLabels(ctx, telemetry.RenderLabels("render", kind.String(), ""), func(ctx context.Context) {
		result, err = s.renderer.Render(ctx, spec)
	})
	if err != nil {
		s.metrics.RecordRender(ctx, kind.String(), telemetry.StatusFailure, time.Since(start), 0, 0)
		return nil, err
	}
	s.metrics.RecordRender(ctx, kind.String(), telemetry.StatusSuccess, result.RenderDuration, result.PageCount, len(result.PDFData))

	warnings := make([]AssetWarningDTO, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		s.metrics.RecordAssetFailure(ctx, string(w.Kind))
		warnings = append(warnings, AssetWarningDTO{Kind: string(w.Kind), URL: w.URL, Message: w.Message})
	}

	return &RenderDocumentResponse{
		RenderSummary: RenderSummary{
			Kind:             kind.String(),
			Number:           spec.Record.Number,
			FileName:         FileName(kind, spec.Record.Number),
			PageCount:        result.PageCount,
			SizeBytes:        len(result.PDFData),
			RenderDurationMs: result.RenderDuration.Milliseconds(),
			Total:            spec.Record.Amount(spec.Record.Totals.Total).Round(valueobject.MoneyPlaces),
			TotalsBalanced:   balanced,
			Warnings:         warnings,
		},
		PDFData: result.PDFData,
	}, nil
}

// storageKey builds {tenant}/{yyyy}/{mm}/{kind}-{number}-{job}.pdf
func (s *DocumentService) storageKey(tenantID, jobID uuid.UUID, kind, number string) string {
	now := s.now().UTC()
	return fmt.Sprintf("%s/%04d/%02d/%s-%s-%s.pdf",
		tenantID, now.Year(), int(now.Month()),
		strings.ToLower(kind), sanitizeKeyPart(number), jobID)
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeKeyPart(s string) string {
	s = strings.Trim(unsafeKeyChars.ReplaceAllString(strings.TrimSpace(s), "-"), "-.")
	if s == "" {
		return "document"
	}
	return s
}

// FileName is the download name of a document, e.g. "invoice-INV-0001.pdf"
func FileName(kind printing.RecordKind, number string) string {
	return strings.ToLower(kind.String()) + "-" + sanitizeKeyPart(number) + ".pdf"
}

// ToDocumentSpec maps a request onto the domain snapshot. Unset line totals are
// computed from quantity and unit price; unset record totals from the items.
func ToDocumentSpec(req RenderDocumentRequest) *printing.DocumentSpec {
	items := make([]printing.LineItem, 0, len(req.LineItems))
	for _, it := range req.LineItems {
		item := printing.NewLineItem(it.Description, it.Quantity.Decimal(), it.UnitPrice.Decimal())
		if it.LineTotal.IsSet() {
			item.LineTotal = it.LineTotal.Decimal()
		}
		items = append(items, item)
	}

	spec := &printing.DocumentSpec{
		Tenant: printing.Tenant{
			BusinessName: req.Tenant.BusinessName,
			Address:      req.Tenant.Address,
			Phone:        req.Tenant.Phone,
			Website:      req.Tenant.Website,
			Email:        req.Tenant.Email,
			TaxID:        req.Tenant.TaxID,
			BrandColor:   req.Tenant.BrandColor,
			AccentColor:  req.Tenant.AccentColor,
			LogoURL:      req.Tenant.LogoURL,
			FooterText:   req.Tenant.FooterText,
		},
		Party: printing.Party{
			Name:    req.Party.Name,
			Address: req.Party.Address,
			Email:   req.Party.Email,
			Phone:   req.Party.Phone,
		},
		LineItems: items,
		QRTarget:  req.QRTarget,
	}

	rec := req.Record
	issueDate, _ := parseDate(rec.IssueDate)
	spec.Record = printing.Record{
		Number:    strings.TrimSpace(rec.Number),
		Currency:  valueobject.Currency(strings.ToUpper(strings.TrimSpace(rec.Currency))),
		IssueDate: issueDate,
		Notes:     rec.Notes,
		Details:   recordDetails(rec),
	}
	spec.Record.Totals = recordTotals(rec, spec)
	return spec
}

func recordDetails(rec RecordDTO) printing.RecordDetails {
	switch printing.RecordKind(strings.ToUpper(strings.TrimSpace(rec.Kind))) {
	case printing.RecordKindQuote:
		validUntil, _ := parseDate(rec.ValidUntil)
		return printing.QuoteDetails{ValidUntil: validUntil}
	case printing.RecordKindReceipt:
		paidAt, _ := parseDate(rec.PaidAt)
		return printing.ReceiptDetails{PaidAt: paidAt, PaymentMethod: rec.PaymentMethod}
	default:
		dueDate, _ := parseDate(rec.DueDate)
		return printing.InvoiceDetails{DueDate: dueDate, PurchaseOrder: rec.PurchaseOrder}
	}
}

func recordTotals(rec RecordDTO, spec *printing.DocumentSpec) printing.Totals {
	subtotal := rec.Subtotal.Decimal()
	if !rec.Subtotal.IsSet() {
		subtotal = spec.ItemsSubtotal()
	}
	tax := rec.Tax.Decimal()
	if !rec.Total.IsSet() {
		return printing.NewTotals(subtotal, tax)
	}
	return printing.Totals{Subtotal: subtotal, Tax: tax, Total: rec.Total.Decimal()}
}
