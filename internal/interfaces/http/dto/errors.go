package dto

import (
	"net/http"

	"github.com/invoicing/backend/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Request error codes
const (
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	ErrCodeNotFound        = "ERR_NOT_FOUND"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when the tenant could not be authenticated
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeTokenExpired is used when the bearer token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the bearer token is malformed or badly signed
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	// ErrCodeTenantRequired is used when a tenant-scoped route has no tenant
	ErrCodeTenantRequired = "ERR_TENANT_REQUIRED"
)

// Document error codes
const (
	ErrCodeInvalidDocument = "ERR_INVALID_DOCUMENT"
	ErrCodeInvalidLineItem = "ERR_INVALID_LINE_ITEM"
	ErrCodeInvalidTotals   = "ERR_INVALID_TOTALS"
	ErrCodeRenderFailed    = "ERR_RENDER_FAILED"
	ErrCodeStorageFailed   = "ERR_STORAGE_FAILED"
	ErrCodeStorageDisabled = "ERR_STORAGE_DISABLED"
	ErrCodeRenderTimeout   = "ERR_RENDER_TIMEOUT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeNotFound:        http.StatusNotFound,

	ErrCodeUnauthorized:   http.StatusUnauthorized,
	ErrCodeTokenExpired:   http.StatusUnauthorized,
	ErrCodeTokenInvalid:   http.StatusUnauthorized,
	ErrCodeTenantRequired: http.StatusBadRequest,

	ErrCodeInvalidDocument: http.StatusUnprocessableEntity,
	ErrCodeInvalidLineItem: http.StatusUnprocessableEntity,
	ErrCodeInvalidTotals:   http.StatusUnprocessableEntity,
	ErrCodeRenderFailed:    http.StatusInternalServerError,
	ErrCodeStorageFailed:   http.StatusBadGateway,
	ErrCodeStorageDisabled: http.StatusNotImplemented,
	ErrCodeRenderTimeout:   http.StatusGatewayTimeout,
}

// GetHTTPStatus returns the HTTP status code for an error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps the unprefixed codes raised by the domain and
// the render engine to API error codes
var LegacyErrorCodeMapping = map[string]string{
	shared.CodeInvalidDocument: ErrCodeInvalidDocument,
	shared.CodeInvalidLineItem: ErrCodeInvalidLineItem,
	shared.CodeInvalidTotals:   ErrCodeInvalidTotals,
	"RENDER_FAILED":            ErrCodeRenderFailed,
	"SERIALIZATION_FAILED":     ErrCodeRenderFailed,
	"ASSET_UNAVAILABLE":        ErrCodeRenderFailed,
	"STORAGE_FAILED":           ErrCodeStorageFailed,
	"INVALID_INPUT":            ErrCodeBadRequest,
	"NOT_FOUND":                ErrCodeNotFound,
	"INTERNAL_ERROR":           ErrCodeInternal,
}

// NormalizeErrorCode converts an unprefixed code to its API form.
// Codes that are already in API form are returned unchanged.
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
