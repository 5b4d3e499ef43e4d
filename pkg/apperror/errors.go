package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Authentication & Capabilities (SEC) ----

func ErrUnauthorized(capability string) *AppError {
	return New("SEC_001", fmt.Sprintf("Caller lacks %s capability", capability), http.StatusForbidden)
}

func ErrInvalidToken() *AppError {
	return New("SEC_002", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Vault Lifecycle & Settlement (VLT) ----

func ErrNotInitialized() *AppError {
	return New("VLT_001", "Vault is not initialized", http.StatusConflict)
}

func ErrAlreadyInitialized() *AppError {
	return New("VLT_002", "Vault is already initialized", http.StatusConflict)
}

func ErrInvalidArgument(reason string) *AppError {
	return New("VLT_003", reason, http.StatusBadRequest)
}

func ErrZeroAddress(field string) *AppError {
	return New("VLT_003", fmt.Sprintf("%s must not be the zero address", field), http.StatusBadRequest)
}

func ErrDomainNotAllowlisted(domain uint64) *AppError {
	return New("VLT_004", fmt.Sprintf("Domain %d is not allowlisted", domain), http.StatusUnprocessableEntity)
}

func ErrInsufficientBalance(balance string) *AppError {
	return New("VLT_005", fmt.Sprintf("Insufficient %s balance", balance), http.StatusPaymentRequired)
}

func ErrFeeQuoteFailed(err error) *AppError {
	return Wrap("VLT_006", "Relay fee quote failed", http.StatusBadGateway, err)
}

func ErrExternalTransferFailed(err error) *AppError {
	return Wrap("VLT_007", "Asset transfer failed", http.StatusBadGateway, err)
}

func ErrVaultPaused() *AppError {
	return New("VLT_008", "Vault is paused", http.StatusConflict)
}

func ErrVaultNotFound() *AppError {
	return New("VLT_009", "Vault not found", http.StatusNotFound)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a VLT_003-style validation error.
func Validation(message string) *AppError {
	return New("VLT_003", message, http.StatusBadRequest)
}
