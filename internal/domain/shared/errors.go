package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError with the same code, so callers can test
// errors.Is(err, ErrInvalidLineItem) whatever the message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Document validation error codes
const (
	CodeInvalidDocument = "INVALID_DOCUMENT"
	CodeInvalidLineItem = "INVALID_LINE_ITEM"
	CodeInvalidTotals   = "INVALID_TOTALS"
)

// Sentinels for errors.Is; returned errors carry a more specific message
var (
	ErrInvalidDocument = NewDomainError(CodeInvalidDocument, "Invalid document")
	ErrInvalidLineItem = NewDomainError(CodeInvalidLineItem, "Invalid line item")
	ErrInvalidTotals   = NewDomainError(CodeInvalidTotals, "Invalid totals")
)
