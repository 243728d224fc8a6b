package printing

// RecordKind represents the kind of business record being printed
type RecordKind string

const (
	RecordKindInvoice RecordKind = "INVOICE"
	RecordKindQuote   RecordKind = "QUOTE"
	RecordKindReceipt RecordKind = "RECEIPT"
)

// IsValid checks if the RecordKind is a valid value
func (k RecordKind) IsValid() bool {
	switch k {
	case RecordKindInvoice, RecordKindQuote, RecordKindReceipt:
		return true
	}
	return false
}

// String returns the string representation of RecordKind
func (k RecordKind) String() string {
	return string(k)
}

// DisplayName returns the document title printed for the kind
func (k RecordKind) DisplayName() string {
	switch k {
	case RecordKindInvoice:
		return "Invoice"
	case RecordKindQuote:
		return "Quote"
	case RecordKindReceipt:
		return "Receipt"
	default:
		return string(k)
	}
}

// AllRecordKinds returns all valid RecordKind values
func AllRecordKinds() []RecordKind {
	return []RecordKind{RecordKindInvoice, RecordKindQuote, RecordKindReceipt}
}

// PaperSize represents the paper size of a rendered document
type PaperSize string

const (
	PaperSizeA4     PaperSize = "A4"     // 210mm x 297mm
	PaperSizeA5     PaperSize = "A5"     // 148mm x 210mm
	PaperSizeLetter PaperSize = "LETTER" // 8.5in x 11in
	PaperSizeLegal  PaperSize = "LEGAL"  // 8.5in x 14in
)

// IsValid checks if the PaperSize is a valid value
func (p PaperSize) IsValid() bool {
	switch p {
	case PaperSizeA4, PaperSizeA5, PaperSizeLetter, PaperSizeLegal:
		return true
	}
	return false
}

// String returns the string representation of PaperSize
func (p PaperSize) String() string {
	return string(p)
}

// Dimensions returns the paper dimensions in points (width, height).
// Unknown sizes fall back to A4.
func (p PaperSize) Dimensions() (width, height float64) {
	switch p {
	case PaperSizeA5:
		return 419.53, 595.28
	case PaperSizeLetter:
		return 612, 792
	case PaperSizeLegal:
		return 612, 1008
	default:
		return 595.28, 841.89
	}
}

// AllPaperSizes returns all valid PaperSize values
func AllPaperSizes() []PaperSize {
	return []PaperSize{PaperSizeA4, PaperSizeA5, PaperSizeLetter, PaperSizeLegal}
}

// MetadataKey identifies one line of the record metadata block
type MetadataKey string

const (
	MetadataIssueDate     MetadataKey = "ISSUE_DATE"
	MetadataDueDate       MetadataKey = "DUE_DATE"
	MetadataValidUntil    MetadataKey = "VALID_UNTIL"
	MetadataPaidAt        MetadataKey = "PAID_AT"
	MetadataPaymentMethod MetadataKey = "PAYMENT_METHOD"
	MetadataReference     MetadataKey = "REFERENCE"
)

// IsDate reports whether the key carries a date value
func (k MetadataKey) IsDate() bool {
	switch k {
	case MetadataIssueDate, MetadataDueDate, MetadataValidUntil, MetadataPaidAt:
		return true
	}
	return false
}
