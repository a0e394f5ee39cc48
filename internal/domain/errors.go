package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeAuthorization     ErrorType = "authorization"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypePrecondition      ErrorType = "precondition"
	ErrorTypeConflict          ErrorType = "conflict"
	ErrorTypeMalformedDocument ErrorType = "malformed_document"
	ErrorTypeStorage           ErrorType = "storage"
	ErrorTypeExtraction        ErrorType = "extraction"
	ErrorTypePersistence       ErrorType = "persistence"
	ErrorTypeAPI               ErrorType = "api"
	ErrorTypeConfig            ErrorType = "config"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("record not found")

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// TypeOf returns the ErrorType of the first DomainError in err's chain,
// or an empty string when there is none.
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// IsType reports whether err carries a DomainError of the given type.
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// Common error constructors
func AuthorizationError(message string, err error) *DomainError {
	return NewError(ErrorTypeAuthorization, message, err)
}

func NotFoundError(message string, err error) *DomainError {
	return NewError(ErrorTypeNotFound, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func PreconditionError(message string, err error) *DomainError {
	return NewError(ErrorTypePrecondition, message, err)
}

func ConflictError(message string, err error) *DomainError {
	return NewError(ErrorTypeConflict, message, err)
}

func MalformedDocumentError(message string, err error) *DomainError {
	return NewError(ErrorTypeMalformedDocument, message, err)
}

func StorageError(message string, err error) *DomainError {
	return NewError(ErrorTypeStorage, message, err)
}

func ExtractionError(message string, err error) *DomainError {
	return NewError(ErrorTypeExtraction, message, err)
}

func PersistenceError(message string, err error) *DomainError {
	return NewError(ErrorTypePersistence, message, err)
}

func APIError(message string, err error) *DomainError {
	return NewError(ErrorTypeAPI, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}
