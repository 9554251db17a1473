package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes surfaced in API responses.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeNoValidRows       = "NO_VALID_ROWS"
	CodePayloadTooLarge   = "PAYLOAD_TOO_LARGE"
	CodeParseTimeout      = "PARSE_TIMEOUT"
	CodeStoreWrite        = "STORE_WRITE_FAILED"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnsupportedFormat(message string, err error) error {
	return &DomainError{
		Code:       CodeUnsupportedFormat,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewNoValidRows(rejected int) error {
	return &DomainError{
		Code:       CodeNoValidRows,
		Message:    "no valid leads found in the file",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"rejected": rejected},
	}
}

func NewPayloadTooLarge(limit int64) error {
	return &DomainError{
		Code:       CodePayloadTooLarge,
		Message:    fmt.Sprintf("file exceeds %d bytes", limit),
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}
}

func NewParseTimeout(err error) error {
	return &DomainError{
		Code:       CodeParseTimeout,
		Message:    "file processing timed out",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewStoreWriteError wraps a persistence failure. The message stays generic.
func NewStoreWriteError(err error) error {
	return &DomainError{
		Code:       CodeStoreWrite,
		Message:    "failed to access lead store",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewStoreConnectionError(err error) error {
	return &DomainError{
		Code:       CodeStoreUnavailable,
		Message:    "lead store unreachable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fromFiberError(fiberErr)
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func fromFiberError(err *fiber.Error) *DomainError {
	switch err.Code {
	case fiber.StatusNotFound:
		return &DomainError{Code: CodeNotFound, Message: "route not found", HTTPStatus: err.Code}
	case fiber.StatusRequestEntityTooLarge:
		return &DomainError{Code: CodePayloadTooLarge, Message: err.Message, HTTPStatus: err.Code}
	}
	if err.Code >= 500 {
		return &DomainError{Code: CodeInternal, Message: "internal server error", HTTPStatus: err.Code, Err: err}
	}
	return &DomainError{Code: CodeValidation, Message: err.Message, HTTPStatus: err.Code}
}
