package common

import (
	"errors"
	"net/http"
)

// Common error types
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
	ErrConflict       = errors.New("resource conflict")
	ErrValidation     = errors.New("validation error")
	ErrUnavailable    = errors.New("service unavailable")
)

// Stable machine-readable error codes surfaced on the wire.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeRideAlreadyTaken  = "RIDE_ALREADY_TAKEN"
	CodeAlreadyRated      = "ALREADY_RATED"
	CodeInvalidOTP        = "INVALID_OTP"
	CodeConflict          = "CONFLICT"
	CodeUnavailable       = "UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// AppError represents an application error with HTTP status code and a
// stable error code the transport maps onto the response body.
type AppError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code int, errorCode, message string, err error) *AppError {
	return &AppError{
		Code:      code,
		ErrorCode: errorCode,
		Message:   message,
		Err:       err,
	}
}

func NewNotFoundError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusNotFound,
		ErrorCode: CodeNotFound,
		Message:   message,
		Err:       err,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:      http.StatusUnauthorized,
		ErrorCode: CodeUnauthorized,
		Message:   message,
		Err:       ErrUnauthorized,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:      http.StatusForbidden,
		ErrorCode: CodeForbidden,
		Message:   message,
		Err:       ErrForbidden,
	}
}

func NewBadRequestError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusBadRequest,
		ErrorCode: CodeValidation,
		Message:   message,
		Err:       err,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:      http.StatusBadRequest,
		ErrorCode: CodeValidation,
		Message:   message,
		Err:       ErrValidation,
	}
}

func NewInternalServerError(message string) *AppError {
	return &AppError{
		Code:      http.StatusInternalServerError,
		ErrorCode: CodeInternal,
		Message:   message,
		Err:       ErrInternalServer,
	}
}

func NewInternalErrorWithError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusInternalServerError,
		ErrorCode: CodeInternal,
		Message:   message,
		Err:       err,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:      http.StatusConflict,
		ErrorCode: CodeConflict,
		Message:   message,
		Err:       ErrConflict,
	}
}

// NewInvalidTransitionError marks a disallowed ride state transition.
func NewInvalidTransitionError(message string) *AppError {
	return &AppError{
		Code:      http.StatusConflict,
		ErrorCode: CodeInvalidTransition,
		Message:   message,
		Err:       ErrConflict,
	}
}

// NewRideAlreadyTakenError marks an optimistic-lock loss on ride acceptance.
func NewRideAlreadyTakenError() *AppError {
	return &AppError{
		Code:      http.StatusConflict,
		ErrorCode: CodeRideAlreadyTaken,
		Message:   "ride has already been taken by another driver",
		Err:       ErrConflict,
	}
}

// NewAlreadyRatedError marks a repeated rating submission for the same side.
func NewAlreadyRatedError() *AppError {
	return &AppError{
		Code:      http.StatusConflict,
		ErrorCode: CodeAlreadyRated,
		Message:   "ride has already been rated",
		Err:       ErrConflict,
	}
}

// NewInvalidOTPError marks a start-OTP mismatch. The expected value is
// never included in the message.
func NewInvalidOTPError() *AppError {
	return &AppError{
		Code:      http.StatusBadRequest,
		ErrorCode: CodeInvalidOTP,
		Message:   "invalid OTP",
		Err:       ErrBadRequest,
	}
}

// NewUnavailableError marks a downstream store unreachable after retries.
func NewUnavailableError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusServiceUnavailable,
		ErrorCode: CodeUnavailable,
		Message:   message,
		Err:       err,
	}
}
