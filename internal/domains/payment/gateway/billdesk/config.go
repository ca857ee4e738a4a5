package billdesk

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"
)

// =====================================================
// BILLDESK CONFIGURATION
// =====================================================

type Config struct {
	MercID       string // Merchant id (provided by BillDesk)
	ClientID     string // Client id carried in the JWS header
	ClientSecret string // Basic auth password for API calls

	EncSecret  string // Shared encryption secret (CEK = SHA-256 of this)
	EncKeyID   string // kid for the inner JWE header
	SignSecret string // HMAC-SHA256 signing secret for the outer JWS
	SignKeyID  string // kid for the outer JWS header

	BaseURL    string // Gateway API base, e.g. https://pgi.billdesk.com/payments/ve1_2
	ReturnURL  string // Browser return URL after checkout
	WebhookURL string // Server-to-server callback URL
	ResultURL  string // Frontend result page the return handler redirects to

	ItemCode  string          // Order item code (default: "DIRECT")
	MaxAmount decimal.Decimal // Per-transaction amount ceiling

	// LegacyOrderRecovery enables the most-recent-pending fallback when a
	// callback carries no order id at all. Off by default; a blind match
	// can attach a callback to the wrong transaction.
	LegacyOrderRecovery bool
}

// Validate validates configuration
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MercID, validation.Required),
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.ClientSecret, validation.Required),
		validation.Field(&c.EncSecret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.EncKeyID, validation.Required),
		validation.Field(&c.SignSecret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.SignKeyID, validation.Required),
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.ReturnURL, validation.Required, is.URL),
		validation.Field(&c.ResultURL, validation.Required, is.URL),
		validation.Field(&c.ItemCode, validation.Required),
		validation.Field(&c.MaxAmount, validation.By(positiveDecimal)),
	)
}

func positiveDecimal(value interface{}) error {
	d, ok := value.(decimal.Decimal)
	if !ok || d.LessThanOrEqual(decimal.Zero) {
		return validation.NewError("validation_positive", "must be a positive amount")
	}
	return nil
}

// CreateOrderURL returns the order create endpoint
func (c Config) CreateOrderURL() string {
	return c.BaseURL + "/orders/create"
}

// RetrieveTransactionURL returns the transaction retrieve endpoint
func (c Config) RetrieveTransactionURL() string {
	return c.BaseURL + "/transactions/get"
}
