package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON        = "INVALID_JSON"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeDuplicateName      = "DUPLICATE_NAME"
	ErrCodeInsufficientStock  = "INSUFFICIENT_STOCK"
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeStoreWrite         = "STORE_WRITE_ERROR"
	ErrCodeStoreUnknown       = "STORE_OUTCOME_UNKNOWN"
	ErrCodeStoreSubscription  = "STORE_SUBSCRIPTION_ERROR"
	ErrCodeCatalogUnavailable = "CATALOG_UNAVAILABLE"
	ErrCodeUnauthorised       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeConfirmation       = "CONFIRMATION_REQUIRED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
	Field   string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so that wrapped copies compare equal to
// the package sentinels.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Field == "" || t.Field == e.Field)
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error for a single form field.
func NewValidationError(field, message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// Common domain errors
var (
	ErrValidation        = NewDomainError(ErrCodeValidation, "Invalid product")
	ErrDuplicateName     = &DomainError{Code: ErrCodeDuplicateName, Message: "Product with this name already exists!", Field: FieldName}
	ErrInsufficientStock = NewDomainError(ErrCodeInsufficientStock, "Stock cannot go below zero")
	ErrProductNotFound   = NewDomainError(ErrCodeProductNotFound, "Product not found")
	ErrCatalogNotReady   = NewDomainError(ErrCodeCatalogUnavailable, "Catalog has not been loaded yet")
)

// IsValidation reports whether err was raised locally before reaching the
// store. Duplicate names and insufficient stock are validation failures too.
func IsValidation(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	switch de.Code {
	case ErrCodeValidation, ErrCodeDuplicateName, ErrCodeInsufficientStock:
		return true
	default:
		return false
	}
}

// ErrUnacknowledged is returned by stores that sent a write but never saw it
// acknowledged, so its outcome is unknown.
var ErrUnacknowledged = errors.New("write was not acknowledged")

// StoreWriteError reports a rejected or unacknowledged create, patch or remove.
type StoreWriteError struct {
	Op        string
	ProductID string
	// Unknown is set when the write may or may not have been applied. Callers
	// should re-read the snapshot instead of retrying.
	Unknown bool
	Err     error
}

// NewStoreWriteError wraps a store failure and classifies its outcome.
func NewStoreWriteError(op, productID string, err error) *StoreWriteError {
	return &StoreWriteError{
		Op:        op,
		ProductID: productID,
		Unknown:   UnknownOutcome(err),
		Err:       err,
	}
}

// UnknownOutcome reports whether a failed write may still have been applied.
func UnknownOutcome(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrUnacknowledged)
}

func (e *StoreWriteError) Error() string {
	outcome := "failed"
	if e.Unknown {
		outcome = "outcome unknown"
	}
	if e.ProductID != "" {
		return fmt.Sprintf("store %s of product %s %s: %v", e.Op, e.ProductID, outcome, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, outcome, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

// StoreSubscriptionError reports that the realtime channel to the store dropped.
type StoreSubscriptionError struct {
	Err error
}

func (e *StoreSubscriptionError) Error() string {
	return fmt.Sprintf("catalog subscription lost: %v", e.Err)
}

func (e *StoreSubscriptionError) Unwrap() error {
	return e.Err
}
