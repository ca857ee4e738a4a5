package model

// =====================================================
// TRANSACTION STATUS
// =====================================================
// Lifecycle is strictly pending -> success | failed.
// Terminal states never transition again; the repository
// enforces this with a conditional update.
const (
	TxStatusPending = "pending"
	TxStatusSuccess = "success"
	TxStatusFailed  = "failed"
)

var ValidTxStatuses = []string{
	TxStatusPending,
	TxStatusSuccess,
	TxStatusFailed,
}

// IsTerminalStatus reports whether status is success or failed
func IsTerminalStatus(status string) bool {
	return status == TxStatusSuccess || status == TxStatusFailed
}

// =====================================================
// INTERNAL ERROR CODES
// =====================================================
const (
	ErrCodeInvalidAmount       = "PAY001"
	ErrCodeAmountExceedsLimit  = "PAY002"
	ErrCodeMissingOrderID      = "PAY003"
	ErrCodeRateLimited         = "PAY004"
	ErrCodeGatewayTimeout      = "PAY005"
	ErrCodeGatewayError        = "PAY006"
	ErrCodeSignatureInvalid    = "PAY007"
	ErrCodeDecryptionFailed    = "PAY008"
	ErrCodeMalformedResponse   = "PAY009"
	ErrCodeTransactionNotFound = "PAY010"
	ErrCodeInternalError       = "PAY011"
)

// =====================================================
// GATEWAY PROTOCOL CONSTANTS
// =====================================================
const (
	// GatewayBillDesk is the payment method tag stored on transactions
	GatewayBillDesk = "billdesk"

	// SentinelSignKeyID is the placeholder key id BillDesk puts in the
	// JWS header of some error responses instead of the real key id.
	// Verification tolerates it as a compatibility fallback; the
	// encryption key derivation never uses it.
	SentinelSignKeyID = "HMAC"

	// JOSEContentType is the media type for envelope request/response bodies
	JOSEContentType = "application/jose"

	// LinkTypeEmbeddedForm is the media type the gateway puts on the
	// redirect link meant for the embedded checkout form hand-off
	LinkTypeEmbeddedForm = "application/x-www-form-urlencoded"

	// CurrencyINRNumeric is the ISO 4217 numeric code for INR, used on the wire
	CurrencyINRNumeric = "356"

	// CurrencyINR is the alphabetic code stored on transactions
	CurrencyINR = "INR"

	// DefaultItemCode marks a direct payment order
	DefaultItemCode = "DIRECT"

	// DeviceChannelInternet is the init channel for browser-originated orders
	DeviceChannelInternet = "internet"

	// PlaceholderNA fills gateway fields whose value is unavailable
	PlaceholderNA = "NA"

	// TraceIDMaxLen is the longest trace id the gateway accepts
	TraceIDMaxLen = 35

	// AdditionalInfoSlots bounds the free-form additional_info map
	AdditionalInfoSlots = 10
)

// Gateway auth_status values mapped case-insensitively by the processor.
const (
	GatewayStatusSuccess = "SUCCESS"
	GatewayStatusFailed  = "FAILED"
)

// =====================================================
// TIMING / LIMITS
// =====================================================
const (
	// GatewayTimeoutSeconds bounds each outbound call
	GatewayTimeoutSeconds = 30

	// RateLimitWindowSeconds / RateLimitMax gate payment initiation
	// per (order id, client ip) identifier
	RateLimitWindowSeconds = 60
	RateLimitMax           = 5

	// StaleAfterMinutes is how long a pending transaction may wait for a
	// callback before the status endpoint (and the worker) poll the gateway
	StaleAfterMinutes = 60

	// LegacyRecoveryWindowMinutes bounds the last-resort order id recovery
	// lookup for error payloads that omit the order id entirely
	LegacyRecoveryWindowMinutes = 10
)
