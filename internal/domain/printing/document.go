package printing

import (
	"strings"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Tenant is the issuing business as printed in the document header
type Tenant struct {
	BusinessName string
	Address      string
	Phone        string
	Website      string
	Email        string
	TaxID        string
	// BrandColor and AccentColor are hex tokens such as "#1f6feb" or "abc".
	// Nil or malformed values fall back to the renderer defaults.
	BrandColor  *string
	AccentColor *string
	LogoURL     string
	FooterText  string
}

// ContactLines returns the non-empty contact fields in print order
func (t Tenant) ContactLines() []string {
	return nonEmpty(t.Address, t.Phone, t.Website, t.Email, t.TaxID)
}

// HasLogo reports whether a logo URL is configured
func (t Tenant) HasLogo() bool {
	return strings.TrimSpace(t.LogoURL) != ""
}

// Party is the counterparty the document is addressed to
type Party struct {
	Name    string
	Address string
	Email   string
	Phone   string
}

// Lines returns the non-empty party fields in print order
func (p Party) Lines() []string {
	return nonEmpty(p.Name, p.Address, p.Email, p.Phone)
}

// IsEmpty reports whether the party has nothing to print
func (p Party) IsEmpty() bool {
	return len(p.Lines()) == 0
}

// DocumentSpec is the immutable snapshot of everything one render needs
type DocumentSpec struct {
	Tenant    Tenant
	Record    Record
	Party     Party
	LineItems []LineItem
	// QRTarget is an optional URL encoded into the QR block. Empty means no QR.
	QRTarget string
}

// HasQR reports whether the document carries a QR target
func (d *DocumentSpec) HasQR() bool {
	return strings.TrimSpace(d.QRTarget) != ""
}

// Validate checks the invariants every renderable document must hold.
// The totals identity is not checked here; see Totals.IsBalanced.
func (d *DocumentSpec) Validate() error {
	if strings.TrimSpace(d.Tenant.BusinessName) == "" {
		return shared.NewDomainError(shared.CodeInvalidDocument, "Business name is required")
	}
	if strings.TrimSpace(d.Record.Number) == "" {
		return shared.NewDomainError(shared.CodeInvalidDocument, "Record number is required")
	}
	if d.Record.Details != nil && !d.Record.Details.Kind().IsValid() {
		return shared.NewDomainError(shared.CodeInvalidDocument, "Unknown record kind")
	}
	if err := d.Record.Totals.Validate(); err != nil {
		return err
	}
	for _, item := range d.LineItems {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ItemsSubtotal sums the line totals of all items
func (d *DocumentSpec) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range d.LineItems {
		sum = sum.Add(item.LineTotal)
	}
	return sum
}

func nonEmpty(values ...string) []string {
	lines := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			lines = append(lines, v)
		}
	}
	return lines
}
