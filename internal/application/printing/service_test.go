package printing_test

import (
	"context"
	"encoding/json"
	"errors"
	"runtime/pprof"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/application/printing"
	domain "github.com/invoicing/backend/internal/domain/printing"
	"github.com/invoicing/backend/internal/domain/shared"
	infra "github.com/invoicing/backend/internal/infrastructure/printing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, spec *domain.DocumentSpec) (*infra.RenderResult, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.RenderResult), args.Error(1)
}

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Upload(ctx context.Context, storageKey string, data []byte, contentType string) error {
	args := m.Called(ctx, storageKey, data, contentType)
	return args.Error(0)
}

func (m *MockStorage) GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, storageKey, expiresIn)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockStorage) DeleteObject(ctx context.Context, storageKey string) error {
	args := m.Called(ctx, storageKey)
	return args.Error(0)
}

func (m *MockStorage) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	args := m.Called(ctx, storageKey)
	return args.Bool(0), args.Error(1)
}

// =============================================================================
// Fixtures
// =============================================================================

func validRequest() printing.RenderDocumentRequest {
	return printing.RenderDocumentRequest{
		Tenant: printing.TenantDTO{BusinessName: "Acme Studio", Email: "billing@acme.test"},
		Record: printing.RecordDTO{
			Kind:      "invoice",
			Number:    "INV-0001",
			Currency:  "usd",
			IssueDate: "2026-03-01",
			DueDate:   "2026-03-31",
			Tax:       "10",
		},
		Party: printing.PartyDTO{Name: "Globex"},
		LineItems: []printing.LineItemDTO{
			{Description: "Design", Quantity: "2", UnitPrice: "50"},
			{Description: "Hosting", Quantity: "1", UnitPrice: "9.99"},
		},
	}
}

func renderResult() *infra.RenderResult {
	return &infra.RenderResult{
		PDFData:        []byte("%PDF-1.4 test"),
		PageCount:      1,
		RenderDuration: 12 * time.Millisecond,
	}
}

func newService(renderer *MockRenderer, storage *MockStorage) *printing.DocumentService {
	cfg := printing.DocumentServiceConfig{
		Renderer:        renderer,
		StorageProvider: "filesystem",
		Logger:          zap.NewNop(),
	}
	if storage != nil {
		cfg.Storage = storage
	}
	return printing.NewDocumentService(cfg)
}

// =============================================================================
// Render
// =============================================================================

func TestDocumentService_Render(t *testing.T) {
	renderer := new(MockRenderer)
	svc := newService(renderer, nil)

	renderer.On("Render", mock.Anything, mock.MatchedBy(func(spec *domain.DocumentSpec) bool {
		return spec.Record.Kind() == domain.RecordKindInvoice &&
			spec.Record.Currency == "USD" &&
			spec.Record.Totals.Subtotal.Equal(decimal.RequireFromString("109.99")) &&
			spec.Record.Totals.Total.Equal(decimal.RequireFromString("119.99"))
	})).Return(renderResult(), nil)

	resp, err := svc.Render(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "INVOICE", resp.Kind)
	assert.Equal(t, "INV-0001", resp.Number)
	assert.Equal(t, "invoice-INV-0001.pdf", resp.FileName)
	assert.Equal(t, 1, resp.PageCount)
	assert.Equal(t, len(resp.PDFData), resp.SizeBytes)
	assert.Equal(t, int64(12), resp.RenderDurationMs)
	assert.True(t, resp.TotalsBalanced)
	assert.Empty(t, resp.Warnings)
	assert.Equal(t, "119.99 USD", resp.Total.String())

	data, err := json.Marshal(resp.RenderSummary)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total":{"amount":"119.99","currency":"USD"}`)
	renderer.AssertExpectations(t)
}

func TestDocumentService_Render_ProfilingLabels(t *testing.T) {
	renderer := new(MockRenderer)
	svc := newService(renderer, nil)

	var kind, operation string
	renderer.On("Render", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		kind, _ = pprof.Label(ctx, "record_kind")
		operation, _ = pprof.Label(ctx, "operation")
	}).Return(renderResult(), nil)

	_, err := svc.Render(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "invoice", kind)
	assert.Equal(t, "render", operation)
}

func TestDocumentService_Render_ValidationError(t *testing.T) {
	renderer := new(MockRenderer)
	svc := newService(renderer, nil)

	tests := []struct {
		name   string
		mutate func(*printing.RenderDocumentRequest)
		field  string
	}{
		{"missing business name", func(r *printing.RenderDocumentRequest) { r.Tenant.BusinessName = "" }, "business_name"},
		{"missing number", func(r *printing.RenderDocumentRequest) { r.Record.Number = "" }, "number"},
		{"unknown kind", func(r *printing.RenderDocumentRequest) { r.Record.Kind = "ORDER" }, "kind"},
		{"bad date", func(r *printing.RenderDocumentRequest) { r.Record.DueDate = "31/03/2026" }, "due_date"},
		{"bad qr target", func(r *printing.RenderDocumentRequest) { r.QRTarget = "not a url" }, "qr_target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			_, err := svc.Render(context.Background(), req)
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}
	renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
}

func TestDocumentService_Render_NegativeAmount(t *testing.T) {
	renderer := new(MockRenderer)
	svc := newService(renderer, nil)

	req := validRequest()
	req.LineItems[0].Quantity = "-1"
	req.Record.Subtotal = "200"

	_, err := svc.Render(context.Background(), req)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, shared.CodeInvalidLineItem, domainErr.Code)
	assert.ErrorIs(t, err, shared.ErrInvalidLineItem)
	renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
}

func TestDocumentService_Render_UnbalancedTotalsStillRender(t *testing.T) {
	renderer := new(MockRenderer)
	svc := newService(renderer, nil)
	renderer.On("Render", mock.Anything, mock.Anything).Return(renderResult(), nil)

	req := validRequest()
	req.Record.Subtotal = "100"
	req.Record.Tax = "10"
	req.Record.Total = "999"

	resp, err := svc.Render(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, resp.TotalsBalanced)
}

func TestDocumentService_Render_Warnings(t *testing.T) {
	renderer := new(MockRenderer)
	svc := newService(renderer, nil)

	result := renderResult()
	result.Warnings = []infra.AssetWarning{{Kind: infra.AssetKind("logo"), URL: "https://cdn.test/logo.png", Message: "status 404"}}
	renderer.On("Render", mock.Anything, mock.Anything).Return(result, nil)

	resp, err := svc.Render(context.Background(), validRequest())
	require.NoError(t, err)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, "logo", resp.Warnings[0].Kind)
	assert.Equal(t, "https://cdn.test/logo.png", resp.Warnings[0].URL)
}

func TestDocumentService_Render_RendererError(t *testing.T) {
	renderer := new(MockRenderer)
	svc := newService(renderer, nil)
	renderErr := infra.NewRenderError(infra.ErrCodeSerializationFailed, "failed to serialize document", errors.New("boom"))
	renderer.On("Render", mock.Anything, mock.Anything).Return(nil, renderErr)

	_, err := svc.Render(context.Background(), validRequest())
	assert.ErrorIs(t, err, renderErr)
}

func TestDocumentService_Preview(t *testing.T) {
	renderer := new(MockRenderer)
	svc := newService(renderer, nil)
	renderer.On("Render", mock.Anything, mock.Anything).Return(renderResult(), nil)

	summary, err := svc.Preview(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "INV-0001", summary.Number)
	assert.Equal(t, 1, summary.PageCount)
}

// =============================================================================
// RenderAndStore
// =============================================================================

func TestDocumentService_RenderAndStore(t *testing.T) {
	renderer := new(MockRenderer)
	storage := new(MockStorage)
	svc := newService(renderer, storage)
	tenantID := uuid.New()
	expires := time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC)

	renderer.On("Render", mock.Anything, mock.Anything).Return(renderResult(), nil)
	keyMatcher := mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, tenantID.String()+"/") &&
			strings.Contains(key, "/invoice-INV-0001-") &&
			strings.HasSuffix(key, ".pdf")
	})
	storage.On("Upload", mock.Anything, keyMatcher, []byte("%PDF-1.4 test"), "application/pdf").Return(nil)
	storage.On("GenerateDownloadURL", mock.Anything, keyMatcher, 15*time.Minute).
		Return("https://bucket.test/signed", expires, nil)

	resp, err := svc.RenderAndStore(context.Background(), tenantID, validRequest())
	require.NoError(t, err)

	assert.Equal(t, "https://bucket.test/signed", resp.DownloadURL)
	require.NotNil(t, resp.ExpiresAt)
	assert.Equal(t, expires, *resp.ExpiresAt)
	_, err = uuid.Parse(resp.JobID)
	assert.NoError(t, err)
	assert.True(t, strings.HasSuffix(resp.StorageKey, resp.JobID+".pdf"))
	storage.AssertExpectations(t)
}

func TestDocumentService_RenderAndStore_NonExpiringURL(t *testing.T) {
	renderer := new(MockRenderer)
	storage := new(MockStorage)
	svc := newService(renderer, storage)

	renderer.On("Render", mock.Anything, mock.Anything).Return(renderResult(), nil)
	storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	storage.On("GenerateDownloadURL", mock.Anything, mock.Anything, mock.Anything).
		Return("/api/v1/documents/files/x.pdf", time.Time{}, nil)

	resp, err := svc.RenderAndStore(context.Background(), uuid.New(), validRequest())
	require.NoError(t, err)
	assert.Nil(t, resp.ExpiresAt)
}

func TestDocumentService_RenderAndStore_UploadFails(t *testing.T) {
	renderer := new(MockRenderer)
	storage := new(MockStorage)
	svc := newService(renderer, storage)

	renderer.On("Render", mock.Anything, mock.Anything).Return(renderResult(), nil)
	storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket gone"))

	_, err := svc.RenderAndStore(context.Background(), uuid.New(), validRequest())
	var renderErr *infra.RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, infra.ErrCodeStorageFailed, renderErr.Code)
	storage.AssertNotCalled(t, "GenerateDownloadURL", mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentService_RenderAndStore_URLFailureRemovesObject(t *testing.T) {
	renderer := new(MockRenderer)
	storage := new(MockStorage)
	svc := newService(renderer, storage)

	renderer.On("Render", mock.Anything, mock.Anything).Return(renderResult(), nil)
	storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	storage.On("GenerateDownloadURL", mock.Anything, mock.Anything, mock.Anything).
		Return("", time.Time{}, errors.New("presign failed"))
	storage.On("DeleteObject", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.RenderAndStore(context.Background(), uuid.New(), validRequest())
	require.Error(t, err)
	storage.AssertCalled(t, "DeleteObject", mock.Anything, mock.Anything)
}

func TestDocumentService_RenderAndStore_Preconditions(t *testing.T) {
	t.Run("no storage", func(t *testing.T) {
		svc := newService(new(MockRenderer), nil)
		_, err := svc.RenderAndStore(context.Background(), uuid.New(), validRequest())
		assert.ErrorIs(t, err, printing.ErrStorageNotConfigured)
	})

	t.Run("nil tenant", func(t *testing.T) {
		svc := newService(new(MockRenderer), new(MockStorage))
		_, err := svc.RenderAndStore(context.Background(), uuid.Nil, validRequest())
		var renderErr *infra.RenderError
		require.ErrorAs(t, err, &renderErr)
		assert.Equal(t, infra.ErrCodeInvalidDocument, renderErr.Code)
	})
}

// =============================================================================
// Mapping
// =============================================================================

func TestToDocumentSpec(t *testing.T) {
	t.Run("computes missing amounts", func(t *testing.T) {
		req := validRequest()
		req.LineItems = append(req.LineItems, printing.LineItemDTO{Description: "Fee", Quantity: "3", UnitPrice: "0.333"})

		spec := printing.ToDocumentSpec(req)
		require.Len(t, spec.LineItems, 3)
		assert.Equal(t, "1", spec.LineItems[2].LineTotal.String())
		assert.Equal(t, "110.99", spec.Record.Totals.Subtotal.String())
		assert.Equal(t, "120.99", spec.Record.Totals.Total.String())
	})

	t.Run("keeps explicit amounts", func(t *testing.T) {
		req := validRequest()
		req.LineItems[0].LineTotal = "75"
		req.Record.Subtotal = "80"
		req.Record.Total = "95"

		spec := printing.ToDocumentSpec(req)
		assert.Equal(t, "75", spec.LineItems[0].LineTotal.String())
		assert.Equal(t, "80", spec.Record.Totals.Subtotal.String())
		assert.Equal(t, "95", spec.Record.Totals.Total.String())
	})

	t.Run("non numeric amounts read as zero", func(t *testing.T) {
		req := validRequest()
		req.LineItems = []printing.LineItemDTO{{Description: "Odd", Quantity: "two", UnitPrice: "5"}}
		req.Record.Tax = ""

		spec := printing.ToDocumentSpec(req)
		assert.True(t, spec.LineItems[0].Quantity.IsZero())
		assert.True(t, spec.Record.Totals.Total.IsZero())
	})

	t.Run("details follow kind", func(t *testing.T) {
		req := validRequest()
		req.Record.Kind = "RECEIPT"
		req.Record.PaidAt = "2026-03-02T10:00:00Z"
		req.Record.PaymentMethod = "Card"

		spec := printing.ToDocumentSpec(req)
		details, ok := spec.Record.Details.(domain.ReceiptDetails)
		require.True(t, ok)
		assert.Equal(t, "Card", details.PaymentMethod)
		assert.Equal(t, 2, details.PaidAt.Day())
	})

	t.Run("empty kind defaults to invoice", func(t *testing.T) {
		req := validRequest()
		req.Record.Kind = ""
		spec := printing.ToDocumentSpec(req)
		assert.Equal(t, domain.RecordKindInvoice, spec.Record.Kind())
	})
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "quote-Q-7.pdf", printing.FileName(domain.RecordKindQuote, "Q-7"))
	assert.Equal(t, "invoice-INV-2026-001.pdf", printing.FileName(domain.RecordKindInvoice, "INV 2026/001"))
	assert.Equal(t, "receipt-document.pdf", printing.FileName(domain.RecordKindReceipt, "///"))
}
