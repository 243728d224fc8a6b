package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	printingapp "github.com/invoicing/backend/internal/application/printing"
	infra "github.com/invoicing/backend/internal/infrastructure/printing"
	"github.com/invoicing/backend/internal/infrastructure/storage"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Render(ctx context.Context, req printingapp.RenderDocumentRequest) (*printingapp.RenderDocumentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*printingapp.RenderDocumentResponse), args.Error(1)
}

func (m *MockDocumentService) Preview(ctx context.Context, req printingapp.RenderDocumentRequest) (*printingapp.RenderSummary, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*printingapp.RenderSummary), args.Error(1)
}

func (m *MockDocumentService) RenderAndStore(ctx context.Context, tenantID uuid.UUID, req printingapp.RenderDocumentRequest) (*printingapp.StoredDocumentResponse, error) {
	args := m.Called(ctx, tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*printingapp.StoredDocumentResponse), args.Error(1)
}

type fakeReader struct {
	files map[string]string
}

func (f *fakeReader) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if strings.Contains(key, "..") {
		return nil, storage.ErrInvalidKey
	}
	data, ok := f.files[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

const validBody = `{
	"tenant": {"business_name": "Acme Studio"},
	"record": {"kind": "INVOICE", "number": "INV-0001", "issue_date": "2026-03-01"},
	"line_items": [{"description": "Design", "quantity": 2, "unit_price": "50"}]
}`

func documentRouter(t *testing.T, svc DocumentService, files DocumentReader) *gin.Engine {
	t.Helper()
	require.NoError(t, middleware.SetupValidator())

	h := NewDocumentHandler(svc, files)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/documents/render", h.Render)
	r.POST("/documents/preview", h.Preview)
	r.POST("/documents/store", middleware.Tenant(middleware.TenantConfig{}), h.Store)
	r.GET("/documents/files/*key", h.Download)
	return r
}

func postJSON(r *gin.Engine, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func summary() printingapp.RenderSummary {
	return printingapp.RenderSummary{
		Kind:           "INVOICE",
		Number:         "INV-0001",
		FileName:       "invoice-INV-0001.pdf",
		PageCount:      2,
		SizeBytes:      8,
		TotalsBalanced: true,
		Warnings:       []printingapp.AssetWarningDTO{{Kind: "logo", Message: "status 404"}},
	}
}

func TestDocumentHandler_Render(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("Render", mock.Anything, mock.MatchedBy(func(req printingapp.RenderDocumentRequest) bool {
		return req.Record.Number == "INV-0001" && req.LineItems[0].Quantity == "2"
	})).Return(&printingapp.RenderDocumentResponse{RenderSummary: summary(), PDFData: []byte("%PDF-1.4")}, nil)

	w := postJSON(documentRouter(t, svc, nil), "/documents/render", validBody, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="invoice-INV-0001.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "2", w.Header().Get("X-Page-Count"))
	assert.Equal(t, "1", w.Header().Get("X-Render-Warnings"))
	assert.Equal(t, "%PDF-1.4", w.Body.String())
	svc.AssertExpectations(t)
}

func TestDocumentHandler_Render_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
		field    string
	}{
		{"malformed json", `{"tenant":`, dto.ErrCodeInvalidJSON, ""},
		{"missing number", `{"tenant":{"business_name":"Acme"},"record":{}}`, dto.ErrCodeValidation, "record.number"},
		{"bad logo url", `{"tenant":{"business_name":"Acme","logo_url":"nope"},"record":{"number":"1"}}`, dto.ErrCodeValidation, "tenant.logo_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDocumentService)
			w := postJSON(documentRouter(t, svc, nil), "/documents/render", tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			info := decodeError(t, w)
			assert.Equal(t, tt.wantCode, info.Code)
			if tt.field != "" {
				require.NotEmpty(t, info.Details)
				assert.Equal(t, tt.field, info.Details[0].Field)
			}
			svc.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
		})
	}
}

func TestDocumentHandler_Render_ServiceError(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("Render", mock.Anything, mock.Anything).
		Return(nil, infra.NewRenderError(infra.ErrCodeSerializationFailed, "failed to serialize document", nil))

	w := postJSON(documentRouter(t, svc, nil), "/documents/render", validBody, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, dto.ErrCodeRenderFailed, decodeError(t, w).Code)
}

func TestDocumentHandler_Preview(t *testing.T) {
	svc := new(MockDocumentService)
	s := summary()
	svc.On("Preview", mock.Anything, mock.Anything).Return(&s, nil)

	w := postJSON(documentRouter(t, svc, nil), "/documents/preview", validBody, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool                      `json:"success"`
		Data    printingapp.RenderSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Data.PageCount)
	assert.Len(t, resp.Data.Warnings, 1)
}

func TestDocumentHandler_Store(t *testing.T) {
	tenantID := uuid.New()
	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	svc := new(MockDocumentService)
	svc.On("RenderAndStore", mock.Anything, tenantID, mock.Anything).Return(&printingapp.StoredDocumentResponse{
		RenderSummary: summary(),
		JobID:         uuid.NewString(),
		StorageKey:    tenantID.String() + "/2026/03/invoice-INV-0001-x.pdf",
		DownloadURL:   "https://bucket.test/signed",
		ExpiresAt:     &expires,
	}, nil)

	r := documentRouter(t, svc, nil)

	t.Run("stores for the tenant", func(t *testing.T) {
		w := postJSON(r, "/documents/store", validBody, map[string]string{middleware.TenantHeaderKey: tenantID.String()})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "https://bucket.test/signed")
		assert.Contains(t, w.Body.String(), `"expires_at":"2026-03-01T12:00:00Z"`)
	})

	t.Run("requires a tenant", func(t *testing.T) {
		w := postJSON(r, "/documents/store", validBody, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeTenantRequired, decodeError(t, w).Code)
	})
}

func TestDocumentHandler_Download(t *testing.T) {
	files := &fakeReader{files: map[string]string{"t1/2026/03/invoice-1.pdf": "%PDF-1.4 stored"}}
	r := documentRouter(t, new(MockDocumentService), files)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"existing", "/documents/files/t1/2026/03/invoice-1.pdf", http.StatusOK},
		{"missing", "/documents/files/t1/2026/03/other.pdf", http.StatusNotFound},
		{"traversal", "/documents/files/t1/%2e%2e/secret.pdf", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "%PDF-1.4 stored", w.Body.String())
				assert.Equal(t, `attachment; filename="invoice-1.pdf"`, w.Header().Get("Content-Disposition"))
			}
		})
	}

	t.Run("no file storage", func(t *testing.T) {
		w := httptest.NewRecorder()
		documentRouter(t, new(MockDocumentService), nil).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/files/a.pdf", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
