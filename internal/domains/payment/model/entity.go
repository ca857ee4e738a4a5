package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// TRANSACTION ENTITY
// =====================================================

// Transaction is the server-side record of one payment attempt,
// identified by the merchant order reference. It is created in pending
// status before the order-create call goes out, so any callback that
// races the synchronous response always has a row to reconcile against.
type Transaction struct {
	ID       uuid.UUID `json:"id" db:"id"`
	OrderRef string    `json:"order_ref" db:"order_ref"`

	// Gateway information
	Gateway       string  `json:"gateway" db:"gateway"`
	BdOrderID     *string `json:"bd_order_id,omitempty" db:"bd_order_id"`
	TransactionID *string `json:"transaction_id,omitempty" db:"transaction_id"`
	TraceID       *string `json:"trace_id,omitempty" db:"trace_id"`

	// Amount
	Amount   decimal.Decimal `json:"amount" db:"amount"`
	Currency string          `json:"currency" db:"currency"`

	// Status tracking
	Status       string  `json:"status" db:"status"`
	ErrorCode    *string `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	// Metadata bag (gateway order id echoes, redirect params, raw last response)
	Metadata map[string]interface{} `json:"metadata,omitempty" db:"metadata"`

	// Timestamps
	InitiatedAt time.Time  `json:"initiated_at" db:"initiated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt    *time.Time `json:"failed_at,omitempty" db:"failed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal checks if the transaction reached success or failed
func (t *Transaction) IsTerminal() bool {
	return IsTerminalStatus(t.Status)
}

// IsStale checks if a pending transaction has waited longer than the
// staleness threshold without a callback
func (t *Transaction) IsStale(now time.Time) bool {
	if t.Status != TxStatusPending {
		return false
	}
	return now.Sub(t.InitiatedAt) > StaleAfterMinutes*time.Minute
}

// =====================================================
// DIAGNOSTIC EVENT ENTITY
// =====================================================

// DiagnosticEvent is one append-only support-escalation record keyed by
// trace id. Payloads are stored in full (that is the point of the log);
// credentials are redacted before the event is built.
type DiagnosticEvent struct {
	ID       uuid.UUID              `json:"id" db:"id"`
	TraceID  string                 `json:"trace_id" db:"trace_id"`
	OrderRef string                 `json:"order_ref" db:"order_ref"`
	Kind     string                 `json:"kind" db:"kind"`
	Message  string                 `json:"message" db:"message"`
	Payload  map[string]interface{} `json:"payload,omitempty" db:"payload"`

	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// Diagnostic event kinds
const (
	DiagKindRequest  = "gateway.request"
	DiagKindResponse = "gateway.response"
	DiagKindWebhook  = "gateway.webhook"
	DiagKindError    = "gateway.error"
)
