package model

import (
	"errors"
	"fmt"
)

// =====================================================
// PREDEFINED ERRORS
// =====================================================

var (
	ErrInvalidAmount       = errors.New("invalid payment amount")
	ErrAmountExceedsLimit  = errors.New("payment amount exceeds limit")
	ErrMissingOrderID      = errors.New("missing order id")
	ErrRateLimited         = errors.New("too many payment attempts")
	ErrGatewayTimeout      = errors.New("gateway request timed out")
	ErrGatewayError        = errors.New("gateway returned an error")
	ErrSignatureInvalid    = errors.New("envelope signature verification failed")
	ErrDecryptionFailed    = errors.New("envelope decryption failed")
	ErrMalformedResponse   = errors.New("malformed gateway response")
	ErrTransactionNotFound = errors.New("payment transaction not found")

	// ErrTransactionFinalized is returned by conditional status updates when
	// the row already reached a terminal state. Callers treat it as an
	// idempotent no-op, not a failure.
	ErrTransactionFinalized = errors.New("payment transaction already finalized")
)

// =====================================================
// CUSTOM PAYMENT ERROR
// =====================================================

type PaymentError struct {
	Code    string
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// =====================================================
// ERROR CONSTRUCTORS
// =====================================================

func NewInvalidAmountError(amount string) *PaymentError {
	return NewPaymentError(
		ErrCodeInvalidAmount,
		fmt.Sprintf("Payment amount must be greater than zero, got: %s", amount),
		ErrInvalidAmount,
	)
}

func NewAmountExceedsLimitError(amount, limit string) *PaymentError {
	return NewPaymentError(
		ErrCodeAmountExceedsLimit,
		fmt.Sprintf("Payment amount %s exceeds the configured limit %s", amount, limit),
		ErrAmountExceedsLimit,
	)
}

func NewMissingOrderIDError() *PaymentError {
	return NewPaymentError(
		ErrCodeMissingOrderID,
		"Order id is required to initiate a payment",
		ErrMissingOrderID,
	)
}

func NewRateLimitedError(identifier string) *PaymentError {
	return NewPaymentError(
		ErrCodeRateLimited,
		fmt.Sprintf("Too many payment attempts for %s, retry after the window expires", identifier),
		ErrRateLimited,
	)
}

func NewGatewayTimeoutError(err error) *PaymentError {
	return NewPaymentError(
		ErrCodeGatewayTimeout,
		fmt.Sprintf("Gateway did not respond within %d seconds", GatewayTimeoutSeconds),
		fmt.Errorf("%w: %v", ErrGatewayTimeout, err),
	)
}

// NewGatewayErrorWithStatus keeps the upstream HTTP status and the decrypted
// error message (when one could be recovered) for the caller.
func NewGatewayErrorWithStatus(httpStatus int, message string) *PaymentError {
	if message == "" {
		message = "Gateway rejected the request"
	}
	return NewPaymentError(
		ErrCodeGatewayError,
		fmt.Sprintf("%s (HTTP %d)", message, httpStatus),
		ErrGatewayError,
	)
}

func NewSignatureInvalidError(err error) *PaymentError {
	return NewPaymentError(
		ErrCodeSignatureInvalid,
		"Gateway response signature verification failed - possible tampering",
		fmt.Errorf("%w: %v", ErrSignatureInvalid, err),
	)
}

func NewDecryptionFailedError(err error) *PaymentError {
	return NewPaymentError(
		ErrCodeDecryptionFailed,
		"Gateway response could not be decrypted",
		fmt.Errorf("%w: %v", ErrDecryptionFailed, err),
	)
}

func NewMalformedResponseError(reason string) *PaymentError {
	return NewPaymentError(
		ErrCodeMalformedResponse,
		fmt.Sprintf("Gateway response is malformed: %s", reason),
		ErrMalformedResponse,
	)
}

func NewTransactionNotFoundError(orderRef string) *PaymentError {
	return NewPaymentError(
		ErrCodeTransactionNotFound,
		fmt.Sprintf("Payment transaction not found for order: %s", orderRef),
		ErrTransactionNotFound,
	)
}
