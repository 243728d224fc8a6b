package printing

import (
	"strings"
	"time"

	"github.com/invoicing/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Record is the business record a document prints.
// Fields shared by every kind live on Record; kind-specific data lives in Details.
type Record struct {
	Number    string
	Currency  valueobject.Currency
	IssueDate time.Time
	Notes     string
	Totals    Totals
	Details   RecordDetails
}

// RecordDetails is implemented by InvoiceDetails, QuoteDetails and ReceiptDetails
type RecordDetails interface {
	Kind() RecordKind
	metadata() []MetadataField
}

// InvoiceDetails carries the invoice-specific fields
type InvoiceDetails struct {
	DueDate       time.Time
	PurchaseOrder string
}

// Kind implements RecordDetails
func (InvoiceDetails) Kind() RecordKind { return RecordKindInvoice }

func (d InvoiceDetails) metadata() []MetadataField {
	fields := dateField(nil, MetadataDueDate, d.DueDate)
	return textField(fields, MetadataReference, d.PurchaseOrder)
}

// QuoteDetails carries the quote-specific fields
type QuoteDetails struct {
	ValidUntil time.Time
}

// Kind implements RecordDetails
func (QuoteDetails) Kind() RecordKind { return RecordKindQuote }

func (d QuoteDetails) metadata() []MetadataField {
	return dateField(nil, MetadataValidUntil, d.ValidUntil)
}

// ReceiptDetails carries the receipt-specific fields
type ReceiptDetails struct {
	PaidAt        time.Time
	PaymentMethod string
}

// Kind implements RecordDetails
func (ReceiptDetails) Kind() RecordKind { return RecordKindReceipt }

func (d ReceiptDetails) metadata() []MetadataField {
	fields := dateField(nil, MetadataPaidAt, d.PaidAt)
	return textField(fields, MetadataPaymentMethod, d.PaymentMethod)
}

// Amount returns d as Money in the record's currency
func (r Record) Amount(d decimal.Decimal) valueobject.Money {
	return valueobject.NewMoney(d, r.Currency)
}

// Kind returns the record kind. A record without details prints as an invoice.
func (r Record) Kind() RecordKind {
	if r.Details == nil {
		return RecordKindInvoice
	}
	return r.Details.Kind()
}

// MetadataFields returns the printable metadata lines in display order,
// skipping unset dates and blank text values.
func (r Record) MetadataFields() []MetadataField {
	fields := dateField(nil, MetadataIssueDate, r.IssueDate)
	if r.Details != nil {
		fields = append(fields, r.Details.metadata()...)
	}
	return fields
}

// Title returns the human readable title, e.g. "Invoice INV-0001"
func (r Record) Title() string {
	title := r.Kind().DisplayName()
	if n := strings.TrimSpace(r.Number); n != "" {
		title += " " + n
	}
	return title
}

func dateField(fields []MetadataField, key MetadataKey, t time.Time) []MetadataField {
	if t.IsZero() {
		return fields
	}
	return append(fields, MetadataField{Key: key, Date: t})
}

func textField(fields []MetadataField, key MetadataKey, s string) []MetadataField {
	if strings.TrimSpace(s) == "" {
		return fields
	}
	return append(fields, MetadataField{Key: key, Text: strings.TrimSpace(s)})
}
