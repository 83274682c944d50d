package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an AppError for callers and for the JSON envelope
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindCouponInvalid      ErrorKind = "coupon_invalid"
	KindGatewayUnavailable ErrorKind = "gateway_unavailable"
	KindVerification       ErrorKind = "verification"
	KindConsistency        ErrorKind = "consistency"
	KindConflict           ErrorKind = "conflict"
	KindNotFound           ErrorKind = "not_found"
	KindBadRequest         ErrorKind = "bad_request"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindState              ErrorKind = "state"
	KindInternal           ErrorKind = "internal"
)

// AppError represents an application error
type AppError struct {
	Code    int         `json:"code"`
	Kind    ErrorKind   `json:"kind"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code int, kind ErrorKind, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// ValidationError creates a 422 error for malformed address or coupon input
func ValidationError(message string, details interface{}) *AppError {
	e := NewAppError(http.StatusUnprocessableEntity, KindValidation, message, nil)
	e.Details = details
	return e
}

// CouponInvalidError creates a 422 error for a coupon that cannot be applied
func CouponInvalidError(message string) *AppError {
	return NewAppError(http.StatusUnprocessableEntity, KindCouponInvalid, message, nil)
}

// GatewayUnavailableError creates a 503 error for an unusable payment gateway
func GatewayUnavailableError(message string, err error) *AppError {
	return NewAppError(http.StatusServiceUnavailable, KindGatewayUnavailable, message, err)
}

// VerificationError creates a 400 error for a payment that failed verification
func VerificationError(message string, err error) *AppError {
	return NewAppError(http.StatusBadRequest, KindVerification, message, err)
}

// ConsistencyError marks a verified payment whose order could not be recorded
func ConsistencyError(message string, err error) *AppError {
	return NewAppError(http.StatusInternalServerError, KindConsistency, message, err)
}

// ConflictError creates a 409 Conflict error
func ConflictError(message string, err error) *AppError {
	return NewAppError(http.StatusConflict, KindConflict, message, err)
}

// StateError creates a 409 error for an operation not allowed in the current checkout state
func StateError(message string) *AppError {
	return NewAppError(http.StatusConflict, KindState, message, nil)
}

// NotFoundError creates a 404 Not Found error
func NotFoundError(message string, err error) *AppError {
	return NewAppError(http.StatusNotFound, KindNotFound, message, err)
}

// BadRequestError creates a 400 Bad Request error
func BadRequestError(message string, err error) *AppError {
	return NewAppError(http.StatusBadRequest, KindBadRequest, message, err)
}

// UnauthorizedError creates a 401 Unauthorized error
func UnauthorizedError(message string, err error) *AppError {
	return NewAppError(http.StatusUnauthorized, KindUnauthorized, message, err)
}

// InternalError creates a 500 error
func InternalError(message string, err error) *AppError {
	return NewAppError(http.StatusInternalServerError, KindInternal, message, err)
}

// GetAppError returns the AppError anywhere in the chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// KindOf returns the error kind, KindInternal for foreign errors
func KindOf(err error) ErrorKind {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an AppError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// WrapError wraps an error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
