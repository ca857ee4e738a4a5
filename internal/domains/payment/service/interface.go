package service

import (
	"context"

	"github.com/google/uuid"

	"storefront-backend/internal/domains/payment/model"
)

// =====================================================
// PAYMENT SERVICE INTERFACE
// =====================================================
type PaymentService interface {
	// ============================================
	// USER ENDPOINTS
	// ============================================

	// CreatePayment initiates a BillDesk payment for an order.
	// Returns the checkout continuation descriptor (redirect or HTML).
	CreatePayment(ctx context.Context, orderRef string, caller CallerContext, req model.InitializePaymentRequest) (*model.InitializePaymentResponse, error)

	// GetPaymentStatus gets the stored payment status for an order.
	// A pending transaction past the staleness threshold triggers a
	// gateway poll and reconciliation before answering.
	GetPaymentStatus(ctx context.Context, orderRef string) (*model.PaymentStatusResponse, error)

	// RetrieveTransaction queries the gateway's view of an order without
	// touching local state. Network failure yields Success=false, not an error.
	RetrieveTransaction(ctx context.Context, orderRef string) *model.RetrieveResult

	// ============================================
	// CALLBACK PROCESSING
	// ============================================

	// ProcessResponse handles the browser return payload. It always
	// resolves to a result, never an error.
	ProcessResponse(ctx context.Context, raw string) model.ProcessResult

	// ProcessWebhook handles the server-to-server callback. Same contract
	// as ProcessResponse plus a best-effort duplicate-delivery marker.
	ProcessWebhook(ctx context.Context, raw string) model.ProcessResult

	// ============================================
	// BACKGROUND JOBS
	// ============================================

	// PollStaleTransactions reconciles pending transactions that waited
	// too long for a callback. Returns the number of rows finalized.
	PollStaleTransactions(ctx context.Context) (int, error)
}

// CallerContext carries request-scoped details of the initiating customer
// into the payment builder.
type CallerContext struct {
	UserID       uuid.UUID
	ClientIP     string
	UserAgent    string
	AcceptHeader string
}

// Limiter gates payment initiation per identifier
type Limiter interface {
	Admit(identifier string) bool
}
