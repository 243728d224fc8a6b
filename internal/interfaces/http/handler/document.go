package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	printingapp "github.com/invoicing/backend/internal/application/printing"
	"github.com/invoicing/backend/internal/infrastructure/storage"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
)

// DocumentService is the application service behind the document endpoints.
// *printingapp.DocumentService implements it.
type DocumentService interface {
	Render(ctx context.Context, req printingapp.RenderDocumentRequest) (*printingapp.RenderDocumentResponse, error)
	Preview(ctx context.Context, req printingapp.RenderDocumentRequest) (*printingapp.RenderSummary, error)
	RenderAndStore(ctx context.Context, tenantID uuid.UUID, req printingapp.RenderDocumentRequest) (*printingapp.StoredDocumentResponse, error)
}

// DocumentReader streams stored documents back to clients
type DocumentReader interface {
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// DocumentHandler serves the document endpoints
type DocumentHandler struct {
	BaseHandler
	service DocumentService
	files   DocumentReader
}

// NewDocumentHandler creates a DocumentHandler. files may be nil when stored
// documents are served from elsewhere, e.g. presigned S3 URLs.
func NewDocumentHandler(service DocumentService, files DocumentReader) *DocumentHandler {
	return &DocumentHandler{service: service, files: files}
}

// Render renders the posted snapshot and returns the PDF inline.
// The render summary travels in X-Page-Count and X-Render-Warnings.
func (h *DocumentHandler) Render(c *gin.Context) {
	var req printingapp.RenderDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.Render(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+resp.FileName+`"`)
	c.Header("X-Page-Count", strconv.Itoa(resp.PageCount))
	c.Header("X-Render-Warnings", strconv.Itoa(len(resp.Warnings)))
	c.Data(http.StatusOK, "application/pdf", resp.PDFData)
}

// Preview renders the posted snapshot and returns only its summary
func (h *DocumentHandler) Preview(c *gin.Context) {
	var req printingapp.RenderDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	summary, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Store renders the posted snapshot, stores it under the request's tenant
// and returns a download URL
func (h *DocumentHandler) Store(c *gin.Context) {
	tenantID, ok := middleware.GetTenantID(c)
	if !ok {
		h.BadRequest(c, "Tenant is required")
		return
	}

	var req printingapp.RenderDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.RenderAndStore(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Download streams a document stored on the local file system
func (h *DocumentHandler) Download(c *gin.Context) {
	if h.files == nil {
		h.NotFound(c, "Document not found")
		return
	}

	key := strings.TrimPrefix(c.Param("key"), "/")
	rc, err := h.files.Open(c.Request.Context(), key)
	if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidKey) {
		h.NotFound(c, "Document not found")
		return
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer rc.Close()

	name := key
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		name = key[i+1:]
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.DataFromReader(http.StatusOK, -1, "application/pdf", rc, nil)
}
