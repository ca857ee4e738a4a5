package handler

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront-backend/internal/domains/payment/gateway"
	"storefront-backend/internal/domains/payment/model"
	"storefront-backend/internal/domains/payment/service"
	res "storefront-backend/internal/shared/response"
	"storefront-backend/pkg/logger"
)

type PaymentHandler struct {
	paymentService  service.PaymentService
	billdeskGateway gateway.BillDeskGateway
}

// NewPaymentHandler creates new payment handler
func NewPaymentHandler(
	paymentService service.PaymentService,
	billdeskGateway gateway.BillDeskGateway,
) *PaymentHandler {
	return &PaymentHandler{
		paymentService:  paymentService,
		billdeskGateway: billdeskGateway,
	}
}

// =====================================================
// USER PAYMENT ENDPOINTS
// =====================================================

// InitializePayment starts a BillDesk payment for an order
// POST /api/v1/payments/billdesk/initialize/:order_id
func (h *PaymentHandler) InitializePayment(c *gin.Context) {
	// Step 1: Get user ID from context
	userID, err := getUserID(c)
	if err != nil {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	// Step 2: Get order ID from URL
	orderRef := c.Param("order_id")

	// Step 3: Bind request body. The browser fingerprint payload is
	// optional, an empty or absent body falls back to defaults.
	var req model.InitializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = model.InitializePaymentRequest{}
	}

	// Step 4: Validate request
	if err := req.Validate(); err != nil {
		res.ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	// Step 5: Call service
	caller := service.CallerContext{
		UserID:       userID,
		ClientIP:     clientIP(c),
		UserAgent:    c.GetHeader("User-Agent"),
		AcceptHeader: c.GetHeader("Accept"),
	}
	response, err := h.paymentService.CreatePayment(c.Request.Context(), orderRef, caller, req)
	if err != nil {
		statusCode, errCode := mapPaymentError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	// Step 6: HTML continuation pages are rendered verbatim by the browser
	if response.HTML != nil {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(*response.HTML))
		return
	}

	res.Success(c, http.StatusCreated, response)
}

// GetPaymentStatus gets the stored transaction status for an order
// GET /api/v1/payments/billdesk/status/:order_id
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	// Step 1: Get user ID
	if _, err := getUserID(c); err != nil {
		res.Unauthorized(c, "Unauthorized")
		return
	}

	// Step 2: Get order ID from URL
	orderRef := c.Param("order_id")

	// Step 3: Call service
	response, err := h.paymentService.GetPaymentStatus(c.Request.Context(), orderRef)
	if err != nil {
		statusCode, errCode := mapPaymentError(err)
		res.ErrorResponse(c, statusCode, errCode, err.Error())
		return
	}

	// Step 4: Return response
	res.Success(c, http.StatusOK, response)
}

// =====================================================
// GATEWAY CALLBACK ENDPOINTS (public, no auth)
// =====================================================

// HandleReturn handles the browser return POST from BillDesk and sends
// the customer back to the storefront result page
// POST /api/v1/payments/billdesk/return
func (h *PaymentHandler) HandleReturn(c *gin.Context) {
	// Step 1: Pull the sealed payload out of the form or the raw body
	raw := callbackPayload(c)
	if raw == "" {
		logger.Debug("return callback arrived without a payload")
	}

	// Step 2: Process. The pipeline never errors, every outcome is a result
	result := h.paymentService.ProcessResponse(c.Request.Context(), raw)

	// Step 3: Redirect the browser to the storefront result page
	target, err := url.Parse(h.billdeskGateway.ResultURL())
	if err != nil {
		logger.Error("invalid result url", err)
		c.JSON(http.StatusOK, result)
		return
	}
	q := target.Query()
	q.Set("order_id", result.OrderNumber)
	q.Set("status", result.Status)
	if result.TransactionID != "" {
		q.Set("transaction_id", result.TransactionID)
	}
	target.RawQuery = q.Encode()

	c.Redirect(http.StatusFound, target.String())
}

// HandleWebhook handles the server-to-server callback from BillDesk
// POST /api/v1/payments/billdesk/webhook
func (h *PaymentHandler) HandleWebhook(c *gin.Context) {
	// Step 1: Read the sealed payload
	raw := callbackPayload(c)

	// Step 2: Process webhook
	result := h.paymentService.ProcessWebhook(c.Request.Context(), raw)

	// Step 3: Always acknowledge with 200 so the gateway stops retrying.
	// Unresolved deliveries are settled later by the reconciliation poll.
	c.JSON(http.StatusOK, result)
}

// =====================================================
// ERROR MAPPING HELPER
// =====================================================

func mapPaymentError(err error) (statusCode int, errorCode string) {
	// Default
	statusCode = http.StatusInternalServerError
	errorCode = model.ErrCodeInternalError

	// Check if it's a PaymentError
	if paymentErr, ok := err.(*model.PaymentError); ok {
		errorCode = paymentErr.Code

		// Map error codes to HTTP status codes
		switch paymentErr.Code {
		case model.ErrCodeInvalidAmount,
			model.ErrCodeAmountExceedsLimit,
			model.ErrCodeMissingOrderID:
			statusCode = http.StatusBadRequest
		case model.ErrCodeRateLimited:
			statusCode = http.StatusTooManyRequests
		case model.ErrCodeGatewayTimeout:
			statusCode = http.StatusGatewayTimeout
		case model.ErrCodeGatewayError,
			model.ErrCodeSignatureInvalid,
			model.ErrCodeDecryptionFailed,
			model.ErrCodeMalformedResponse:
			statusCode = http.StatusBadGateway
		case model.ErrCodeTransactionNotFound:
			statusCode = http.StatusNotFound
		default:
			statusCode = http.StatusInternalServerError
		}
	}

	return statusCode, errorCode
}

// =====================================================
// HELPER FUNCTIONS
// =====================================================

// getUserID extracts user ID from JWT claims in context
func getUserID(c *gin.Context) (uuid.UUID, error) {
	value, exists := c.Get("userID")
	if !exists {
		return uuid.Nil, fmt.Errorf("userID not found in context")
	}

	userID, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid userID type")
	}

	return userID, nil
}

// clientIP prefers the value injected by the client IP middleware
func clientIP(c *gin.Context) string {
	if ip := c.GetString("client_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

// callbackPayload extracts the gateway payload from a callback request.
// BillDesk posts form-encoded with the envelope in transaction_response;
// some configurations post the envelope (or plain JSON) as the raw body.
func callbackPayload(c *gin.Context) string {
	if v := c.PostForm("transaction_response"); v != "" {
		return v
	}
	if v := c.PostForm("encrypted_response"); v != "" {
		return v
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logger.Error("failed to read callback body", err)
		return ""
	}
	return string(body)
}
