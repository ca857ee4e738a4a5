package billdesk

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront-backend/internal/domains/payment/gateway"
	"storefront-backend/internal/domains/payment/model"
	"storefront-backend/pkg/logger"
)

// =====================================================
// BILLDESK CLIENT
// =====================================================

type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(config Config) (gateway.BillDeskGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid BillDesk config: %w", err)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: model.GatewayTimeoutSeconds * time.Second,
		},
	}, nil
}

// NewTraceID builds a per-call correlation id: second-resolution timestamp
// plus random suffix, capped at the gateway's 35-char limit.
func NewTraceID() string {
	buf := make([]byte, 10)
	_, _ = rand.Read(buf)
	id := time.Now().Format("20060102150405") + hex.EncodeToString(buf)
	if len(id) > model.TraceIDMaxLen {
		id = id[:model.TraceIDMaxLen]
	}
	return id
}

// =====================================================
// CREATE ORDER
// =====================================================

func (c *Client) CreateOrder(
	ctx context.Context,
	req gateway.BillDeskOrderRequest,
) (*gateway.BillDeskOrderResult, error) {
	if req.OrderID == "" {
		return nil, fmt.Errorf("order_id is required")
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be positive")
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = NewTraceID()
	}

	payload := c.BuildOrderPayload(req)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal order payload: %w", err)
	}

	envelope, err := EncryptAndSign(body, c.config)
	if err != nil {
		return nil, fmt.Errorf("seal order payload: %w", err)
	}

	status, contentType, respBody, err := c.post(ctx, c.config.CreateOrderURL(), envelope, traceID)
	if err != nil {
		return nil, err
	}

	// Non-2xx bodies are still signed envelopes (often under the sentinel
	// signing kid); decode best-effort for the error message.
	if status < 200 || status > 299 {
		return nil, c.gatewayError(status, respBody, traceID)
	}

	// Some gateway flows answer with a ready-to-render checkout page.
	// Hand it back verbatim instead of forcing it through the codec.
	if isHTML(contentType, respBody) {
		html := string(respBody)
		return &gateway.BillDeskOrderResult{TraceID: traceID, HTML: &html}, nil
	}

	raw, plaintext, err := c.decode(respBody)
	if err != nil {
		return nil, err
	}

	var order model.OrderCreateResponse
	if err := json.Unmarshal(plaintext, &order); err != nil {
		return nil, model.NewMalformedResponseError("order create body is not valid json")
	}
	if order.BdOrderID == "" {
		return nil, model.NewMalformedResponseError("missing bdorderid")
	}

	return &gateway.BillDeskOrderResult{
		TraceID: traceID,
		Order:   &order,
		Raw:     raw,
	}, nil
}

// BuildOrderPayload assembles the canonical plaintext order body. Exposed
// so the service layer can capture the exact request it is about to send;
// CreateOrder seals this same payload.
func (c *Client) BuildOrderPayload(req gateway.BillDeskOrderRequest) model.OrderCreatePayload {
	orderDate := req.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now()
	}

	device := req.Device
	device.InitChannel = model.DeviceChannelInternet
	device.IP = orNA(req.ClientIP)
	device.UserAgent = orNA(req.UserAgent)
	device.AcceptHeader = orNA(req.AcceptHeader)

	return model.OrderCreatePayload{
		MercID:         c.config.MercID,
		OrderID:        req.OrderID,
		Amount:         req.Amount.StringFixed(2),
		OrderDate:      orderDate.Format("2006-01-02T15:04:05-07:00"),
		Currency:       model.CurrencyINRNumeric,
		RU:             c.config.ReturnURL,
		ItemCode:       c.config.ItemCode,
		AdditionalInfo: additionalInfoSlots(req.AdditionalInfo),
		Device:         device,
	}
}

// additionalInfoSlots fills the fixed additional_info1..N slots, defaulting
// unset ones to the NA placeholder the gateway expects.
func additionalInfoSlots(extra map[string]string) map[string]string {
	slots := make(map[string]string, model.AdditionalInfoSlots)
	for i := 1; i <= model.AdditionalInfoSlots; i++ {
		slots[fmt.Sprintf("additional_info%d", i)] = model.PlaceholderNA
	}
	for k, v := range extra {
		if _, ok := slots[k]; ok && v != "" {
			slots[k] = v
		}
	}
	return slots
}

func orNA(s string) string {
	if s == "" {
		return model.PlaceholderNA
	}
	return s
}

// =====================================================
// RETRIEVE TRANSACTION
// =====================================================

func (c *Client) RetrieveTransaction(ctx context.Context, orderID string) (map[string]interface{}, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order_id is required")
	}

	body, err := json.Marshal(map[string]string{
		"mercid":  c.config.MercID,
		"orderid": orderID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal retrieve payload: %w", err)
	}

	envelope, err := EncryptAndSign(body, c.config)
	if err != nil {
		return nil, fmt.Errorf("seal retrieve payload: %w", err)
	}

	traceID := NewTraceID()
	status, _, respBody, err := c.post(ctx, c.config.RetrieveTransactionURL(), envelope, traceID)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, c.gatewayError(status, respBody, traceID)
	}

	raw, _, err := c.decode(respBody)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// =====================================================
// ENVELOPE / TRANSPORT HELPERS
// =====================================================

// DecodeEnvelope verifies and decrypts a callback envelope
func (c *Client) DecodeEnvelope(envelope string) ([]byte, error) {
	return VerifyAndDecrypt(envelope, c.config)
}

func (c *Client) ResultURL() string {
	return c.config.ResultURL
}

func (c *Client) LegacyOrderRecovery() bool {
	return c.config.LegacyOrderRecovery
}

// post sends a sealed envelope and returns status, content type and body.
// Timeouts map to the gateway-timeout sentinel so callers can distinguish
// them from hard transport failures.
func (c *Client) post(ctx context.Context, url, envelope, traceID string) (int, string, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, model.GatewayTimeoutSeconds*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(envelope))
	if err != nil {
		return 0, "", nil, fmt.Errorf("build gateway request: %w", err)
	}

	httpReq.Header.Set("Content-Type", model.JOSEContentType)
	httpReq.Header.Set("Accept", model.JOSEContentType)
	httpReq.Header.Set("BD-Traceid", traceID)
	httpReq.Header.Set("BD-Timestamp", time.Now().Format("20060102150405"))
	httpReq.SetBasicAuth(c.config.ClientID, c.config.ClientSecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return 0, "", nil, fmt.Errorf("%w: %v", model.ErrGatewayTimeout, err)
		}
		return 0, "", nil, fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", nil, fmt.Errorf("read gateway response: %w", err)
	}

	return resp.StatusCode, resp.Header.Get("Content-Type"), respBody, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// decode opens a response body: sealed envelope first, then plain JSON for
// the flows the gateway leaves unencrypted.
func (c *Client) decode(body []byte) (map[string]interface{}, []byte, error) {
	plaintext, err := VerifyAndDecrypt(string(body), c.config)
	if err != nil {
		var raw map[string]interface{}
		if jsonErr := json.Unmarshal(body, &raw); jsonErr == nil {
			return raw, body, nil
		}
		return nil, nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(plaintext, &raw); err != nil {
		return nil, nil, model.NewMalformedResponseError("decrypted body is not valid json")
	}
	return raw, plaintext, nil
}

// gatewayError builds the error for a non-2xx response, recovering the
// upstream message when the body can be opened. Credentials never appear
// in the decoded fields, only in request headers.
func (c *Client) gatewayError(status int, body []byte, traceID string) error {
	message := ""
	if raw, _, err := c.decode(body); err == nil {
		message = extractErrorMessage(raw)
	}

	logger.Error("billdesk gateway rejected request", fmt.Errorf("http %d trace %s: %s", status, traceID, message))
	return model.NewGatewayErrorWithStatus(status, message)
}

func extractErrorMessage(raw map[string]interface{}) string {
	for _, key := range []string{"message", "error_description", "emsg", "error", "status"} {
		if v, ok := raw[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '<'
}
