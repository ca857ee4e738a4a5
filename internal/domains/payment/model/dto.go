package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// INITIALIZE PAYMENT REQUEST/RESPONSE
// =====================================================

// InitializePaymentRequest carries the browser fingerprint details the
// gateway wants alongside the order id from the URL. Everything here is
// optional; missing fields degrade to placeholders.
type InitializePaymentRequest struct {
	FingerprintID       string            `json:"fingerprint_id,omitempty"`
	BrowserTz           string            `json:"browser_tz,omitempty"`
	BrowserColorDepth   string            `json:"browser_color_depth,omitempty"`
	BrowserJavaEnabled  string            `json:"browser_java_enabled,omitempty"`
	BrowserScreenHeight string            `json:"browser_screen_height,omitempty"`
	BrowserScreenWidth  string            `json:"browser_screen_width,omitempty"`
	BrowserLanguage     string            `json:"browser_language,omitempty"`
	BrowserJSEnabled    string            `json:"browser_javascript_enabled,omitempty"`
	AdditionalInfo      map[string]string `json:"additional_info,omitempty"`
}

func (r *InitializePaymentRequest) Validate() error {
	if len(r.AdditionalInfo) > AdditionalInfoSlots {
		return fmt.Errorf("additional_info supports at most %d entries", AdditionalInfoSlots)
	}
	return nil
}

// InitializePaymentResponse is the continuation descriptor the frontend
// uses to hand the customer over to the gateway's checkout page.
type InitializePaymentResponse struct {
	Success        bool              `json:"success"`
	TransactionID  uuid.UUID         `json:"transaction_id"`
	OrderID        string            `json:"order_id"`
	BdOrderID      string            `json:"bd_order_id,omitempty"`
	AuthToken      string            `json:"auth_token,omitempty"`
	RedirectURL    string            `json:"redirect_url,omitempty"`
	RedirectParams map[string]string `json:"redirect_params,omitempty"`
	// HTML is set instead of the redirect fields when the gateway answered
	// with a ready-to-render page; the caller serves it verbatim.
	HTML *string `json:"html,omitempty"`
}

// =====================================================
// GATEWAY ORDER-CREATE WIRE DTOs
// =====================================================

// OrderCreatePayload is the canonical plaintext order payload, built
// field-complete before envelope encryption. Amounts are fixed
// two-decimal strings and timestamps carry the local UTC offset.
type OrderCreatePayload struct {
	MercID         string            `json:"mercid"`
	OrderID        string            `json:"orderid"`
	Amount         string            `json:"amount"`
	OrderDate      string            `json:"order_date"`
	Currency       string            `json:"currency"`
	RU             string            `json:"ru"`
	ItemCode       string            `json:"itemcode"`
	AdditionalInfo map[string]string `json:"additional_info,omitempty"`
	Device         DeviceInfo        `json:"device"`
}

// DeviceInfo describes the customer's browser to the gateway's risk engine.
type DeviceInfo struct {
	InitChannel         string `json:"init_channel"`
	IP                  string `json:"ip"`
	UserAgent           string `json:"user_agent"`
	AcceptHeader        string `json:"accept_header"`
	FingerprintID       string `json:"fingerprintid,omitempty"`
	BrowserTz           string `json:"browser_tz,omitempty"`
	BrowserColorDepth   string `json:"browser_color_depth,omitempty"`
	BrowserJavaEnabled  string `json:"browser_java_enabled,omitempty"`
	BrowserScreenHeight string `json:"browser_screen_height,omitempty"`
	BrowserScreenWidth  string `json:"browser_screen_width,omitempty"`
	BrowserLanguage     string `json:"browser_language,omitempty"`
	BrowserJSEnabled    string `json:"browser_javascript_enabled,omitempty"`
}

// GatewayLink is one HATEOAS link in an order-create response.
type GatewayLink struct {
	Href       string                 `json:"href"`
	Rel        string                 `json:"rel"`
	Type       string                 `json:"type,omitempty"`
	Method     string                 `json:"method"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Headers    map[string]interface{} `json:"headers,omitempty"`
}

// OrderCreateResponse is the decrypted body of a successful order create.
type OrderCreateResponse struct {
	ObjectID  string        `json:"objectid"`
	BdOrderID string        `json:"bdorderid"`
	OrderID   string        `json:"orderid"`
	Status    string        `json:"status"`
	Links     []GatewayLink `json:"links"`
}

// RedirectLink returns the checkout hand-off link, or nil when absent.
// The gateway tags it rel=redirect with the embedded-form media type;
// a rel-only match covers responses that omit the type.
func (r *OrderCreateResponse) RedirectLink() *GatewayLink {
	var relOnly *GatewayLink
	for i := range r.Links {
		if !strings.EqualFold(r.Links[i].Rel, "redirect") {
			continue
		}
		if strings.EqualFold(r.Links[i].Type, LinkTypeEmbeddedForm) {
			return &r.Links[i]
		}
		if relOnly == nil {
			relOnly = &r.Links[i]
		}
	}
	return relOnly
}

// AuthToken extracts the checkout auth token from the redirect link
// parameters when the gateway supplies one.
func (r *OrderCreateResponse) AuthToken() string {
	link := r.RedirectLink()
	if link == nil {
		return ""
	}
	for _, key := range []string{"rdata", "authorization", "token"} {
		if v, ok := link.Parameters[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

// =====================================================
// PROCESS RESULT (return/webhook)
// =====================================================

// ProcessResult is the always-resolving outcome of callback processing.
// OrderNumber is "unknown" when no order id could be recovered.
type ProcessResult struct {
	Success       bool   `json:"success"`
	Status        string `json:"status"`
	OrderNumber   string `json:"order_number"`
	TransactionID string `json:"transaction_id,omitempty"`
	Message       string `json:"message,omitempty"`
}

// UnknownOrderNumber marks callbacks whose order id could not be recovered
const UnknownOrderNumber = "unknown"

// =====================================================
// RETRIEVE RESULT (read-only gateway query)
// =====================================================

// RetrieveResult reports the gateway's current view of a transaction.
// A network or decode failure yields Success=false with a message
// instead of an error.
type RetrieveResult struct {
	Success bool                   `json:"success"`
	Status  string                 `json:"status,omitempty"`
	Message string                 `json:"message,omitempty"`
	Raw     map[string]interface{} `json:"raw,omitempty"`
}

// =====================================================
// PAYMENT STATUS RESPONSE
// =====================================================

type PaymentStatusResponse struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	OrderID       string          `json:"order_id"`
	Gateway       string          `json:"gateway"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	BdOrderID     *string         `json:"bd_order_id,omitempty"`
	ErrorCode     *string         `json:"error_code,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	InitiatedAt   time.Time       `json:"initiated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	FailedAt      *time.Time      `json:"failed_at,omitempty"`
	// Reconciled is true when the response reflects a fresh gateway poll
	// rather than only the stored row.
	Reconciled bool `json:"reconciled,omitempty"`
}
