package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"storefront-backend/internal/domains/payment/model"
)

// =====================================================
// GATEWAY INTERFACES
// =====================================================

// BillDeskGateway interface for the BillDesk payment gateway integration
type BillDeskGateway interface {
	// CreateOrder registers the order with BillDesk and returns the
	// checkout continuation (redirect link or verbatim HTML page)
	CreateOrder(ctx context.Context, req BillDeskOrderRequest) (*BillDeskOrderResult, error)

	// RetrieveTransaction queries the gateway's current view of an order.
	// Read-only; creates nothing on either side.
	RetrieveTransaction(ctx context.Context, orderID string) (map[string]interface{}, error)

	// BuildOrderPayload assembles the canonical plaintext order body
	// exactly as CreateOrder seals it, so callers can capture the
	// outbound request for diagnostics before the call goes out
	BuildOrderPayload(req BillDeskOrderRequest) model.OrderCreatePayload

	// DecodeEnvelope verifies and decrypts a callback envelope
	DecodeEnvelope(envelope string) ([]byte, error)

	// ResultURL gets the frontend result page URL
	ResultURL() string

	// LegacyOrderRecovery reports whether the most-recent-pending
	// fallback is enabled for callbacks lacking an order id
	LegacyOrderRecovery() bool
}

// =====================================================
// COMMON REQUEST/RESPONSE TYPES
// =====================================================

// BillDeskOrderRequest request to create a BillDesk order
type BillDeskOrderRequest struct {
	TraceID        string            // Correlation id for this call, <= 35 chars
	OrderID        string            // Merchant order reference
	Amount         decimal.Decimal   // Order total
	OrderDate      time.Time         // Order timestamp; zero means now
	ClientIP       string            // Customer IP for the device descriptor
	UserAgent      string            // Customer browser user agent
	AcceptHeader   string            // Customer browser Accept header
	Device         model.DeviceInfo  // Browser fingerprint fields (optional)
	AdditionalInfo map[string]string // Free-form slots, bounded
}

// BillDeskOrderResult response from the order create call
type BillDeskOrderResult struct {
	TraceID string
	// HTML is set when the gateway answered with a renderable page
	// instead of a JSON envelope; Order is nil in that case.
	HTML  *string
	Order *model.OrderCreateResponse
	Raw   map[string]interface{} // Full decoded response for audit
}
