package printing

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/invoicing/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Request DTOs
// =============================================================================

// RenderDocumentRequest is the JSON snapshot of one document.
// Struct tags are shared by gin binding and the service validator.
type RenderDocumentRequest struct {
	Tenant    TenantDTO     `json:"tenant"`
	Record    RecordDTO     `json:"record"`
	Party     PartyDTO      `json:"party"`
	LineItems []LineItemDTO `json:"line_items" binding:"max=1000,dive"`
	QRTarget  string        `json:"qr_target" binding:"omitempty,url,max=2048"`
}

// TenantDTO is the issuing business
type TenantDTO struct {
	BusinessName string  `json:"business_name" binding:"required,max=200"`
	Address      string  `json:"address" binding:"max=500"`
	Phone        string  `json:"phone" binding:"max=50"`
	Website      string  `json:"website" binding:"max=200"`
	Email        string  `json:"email" binding:"omitempty,email,max=200"`
	TaxID        string  `json:"tax_id" binding:"max=50"`
	BrandColor   *string `json:"brand_color" binding:"omitempty,max=16"`
	AccentColor  *string `json:"accent_color" binding:"omitempty,max=16"`
	LogoURL      string  `json:"logo_url" binding:"omitempty,url,max=2048"`
	FooterText   string  `json:"footer_text" binding:"max=500"`
}

// RecordDTO is the printed record. Kind-specific fields that do not apply to
// the record's kind are ignored.
type RecordDTO struct {
	Kind      string `json:"kind" binding:"omitempty,recordkind"`
	Number    string `json:"number" binding:"required,max=64"`
	Currency  string `json:"currency" binding:"omitempty,max=8"`
	IssueDate string `json:"issue_date" binding:"omitempty,docdate"`
	Notes     string `json:"notes" binding:"max=4000"`
	Subtotal  Amount `json:"subtotal"`
	Tax       Amount `json:"tax"`
	Total     Amount `json:"total"`

	// INVOICE
	DueDate       string `json:"due_date" binding:"omitempty,docdate"`
	PurchaseOrder string `json:"purchase_order" binding:"max=100"`
	// QUOTE
	ValidUntil string `json:"valid_until" binding:"omitempty,docdate"`
	// RECEIPT
	PaidAt        string `json:"paid_at" binding:"omitempty,docdate"`
	PaymentMethod string `json:"payment_method" binding:"max=100"`
}

// PartyDTO is the counterparty
type PartyDTO struct {
	Name    string `json:"name" binding:"max=200"`
	Address string `json:"address" binding:"max=500"`
	Email   string `json:"email" binding:"max=200"`
	Phone   string `json:"phone" binding:"max=50"`
}

// LineItemDTO is one item row. A missing line_total is computed as
// quantity x unit_price.
type LineItemDTO struct {
	Description string `json:"description" binding:"max=1000"`
	Quantity    Amount `json:"quantity"`
	UnitPrice   Amount `json:"unit_price"`
	LineTotal   Amount `json:"line_total"`
}

// Amount accepts a JSON number, a numeric string or null.
// Values that are not numbers decode without error and read as zero.
type Amount string

// UnmarshalJSON implements json.Unmarshaler and never fails
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*a = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*a = ""
			return nil
		}
		*a = Amount(strings.TrimSpace(s))
	case data[0] == '{' || data[0] == '[':
		*a = ""
	default:
		*a = Amount(data)
	}
	return nil
}

// IsSet reports whether a value was supplied
func (a Amount) IsSet() bool {
	return strings.TrimSpace(string(a)) != ""
}

// Decimal returns the parsed value, or zero when unset or not numeric
func (a Amount) Decimal() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(string(a)))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// dateLayouts are tried in order when parsing record dates
var dateLayouts = []string{"2006-01-02", time.RFC3339}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// =============================================================================
// Response DTOs
// =============================================================================

// AssetWarningDTO describes a logo or QR asset that was left out
type AssetWarningDTO struct {
	Kind    string `json:"kind"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message"`
}

// RenderSummary describes a finished render
type RenderSummary struct {
	Kind             string            `json:"kind"`
	Number           string            `json:"number"`
	FileName         string            `json:"file_name"`
	PageCount        int               `json:"page_count"`
	SizeBytes        int               `json:"size_bytes"`
	RenderDurationMs int64             `json:"render_duration_ms"`
	Total            valueobject.Money `json:"total"`
	TotalsBalanced   bool              `json:"totals_balanced"`
	Warnings         []AssetWarningDTO `json:"warnings"`
}

// RenderDocumentResponse carries the PDF bytes and their summary
type RenderDocumentResponse struct {
	RenderSummary
	PDFData []byte `json:"-"`
}

// StoredDocumentResponse is returned after a rendered document was stored
type StoredDocumentResponse struct {
	RenderSummary
	JobID       string     `json:"job_id"`
	StorageKey  string     `json:"storage_key"`
	DownloadURL string     `json:"download_url"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}
