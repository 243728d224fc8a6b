package printing

import (
	"context"
	"time"

	"github.com/invoicing/backend/internal/domain/printing"
	"github.com/invoicing/backend/internal/domain/shared"
)

// RenderResult contains the output from document rendering
type RenderResult struct {
	// PDFData is the raw PDF file content
	PDFData []byte
	// PageCount is the number of pages in the PDF
	PageCount int
	// RenderDuration is how long the rendering took
	RenderDuration time.Duration
	// Warnings lists the assets that could not be embedded.
	// A document with warnings is still complete and valid.
	Warnings []AssetWarning
}

// DocumentRenderer defines the interface for rendering a document snapshot to PDF
type DocumentRenderer interface {
	// Render lays out the document and serializes it to PDF
	Render(ctx context.Context, spec *printing.DocumentSpec) (*RenderResult, error)
}

// AssetWarning describes one asset that failed soft during a render
type AssetWarning struct {
	Kind    AssetKind `json:"kind"`
	URL     string    `json:"url,omitempty"`
	Message string    `json:"message"`
}

// RenderError represents an error during PDF rendering
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeRenderFailed        = "RENDER_FAILED"
	ErrCodeSerializationFailed = "SERIALIZATION_FAILED"
	ErrCodeInvalidDocument     = shared.CodeInvalidDocument
	ErrCodeStorageFailed       = "STORAGE_FAILED"
	ErrCodeAssetUnavailable    = "ASSET_UNAVAILABLE"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
