package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	ordersvc "storefront-backend/internal/domains/order/service"
	"storefront-backend/internal/domains/payment/gateway"
	"storefront-backend/internal/domains/payment/gateway/billdesk"
	"storefront-backend/internal/domains/payment/model"
	repo "storefront-backend/internal/domains/payment/repository"
	usersvc "storefront-backend/internal/domains/user/service"
	"storefront-backend/pkg/logger"
)

// =====================================================
// PAYMENT SERVICE IMPLEMENTATION
// =====================================================
type paymentService struct {
	txRepo   repo.TransactionRepository
	diagRepo repo.DiagnosticRepository

	billdeskGateway gateway.BillDeskGateway
	limiter         Limiter
	dedup           DedupCache

	// Cross-domain collaborators
	orderService ordersvc.OrderService
	userService  usersvc.UserService

	maxAmount decimal.Decimal
	now       func() time.Time
}

func NewPaymentService(
	txRepo repo.TransactionRepository,
	diagRepo repo.DiagnosticRepository,
	billdeskGateway gateway.BillDeskGateway,
	limiter Limiter,
	dedup DedupCache,
	orderService ordersvc.OrderService,
	userService usersvc.UserService,
	maxAmount decimal.Decimal,
) PaymentService {
	return &paymentService{
		txRepo:          txRepo,
		diagRepo:        diagRepo,
		billdeskGateway: billdeskGateway,
		limiter:         limiter,
		dedup:           dedup,
		orderService:    orderService,
		userService:     userService,
		maxAmount:       maxAmount,
		now:             time.Now,
	}
}

// =====================================================
// CREATE PAYMENT
// =====================================================

// CreatePayment initiates a BillDesk payment for an order
//
// Business Logic Flow:
// 1. Validate order identity and amount (before any side effect)
// 2. Rate-limit per (order, client IP)
// 3. Best-effort customer contact enrichment (placeholders on absence)
// 4. Persist pending transaction BEFORE the network call
// 5. Call the gateway order-create endpoint
// 6. Branch on outcome: error envelope, HTML page, or redirect descriptor
func (s *paymentService) CreatePayment(
	ctx context.Context,
	orderRef string,
	caller CallerContext,
	req model.InitializePaymentRequest,
) (*model.InitializePaymentResponse, error) {
	// Step 1: Validate before any side effect
	if strings.TrimSpace(orderRef) == "" {
		return nil, model.NewMissingOrderIDError()
	}

	order, err := s.orderService.GetOrderByNumber(ctx, orderRef)
	if err != nil {
		return nil, model.NewTransactionNotFoundError(orderRef)
	}

	if order.Total.LessThanOrEqual(decimal.Zero) {
		return nil, model.NewInvalidAmountError(order.Total.String())
	}
	if order.Total.GreaterThan(s.maxAmount) {
		return nil, model.NewAmountExceedsLimitError(order.Total.StringFixed(2), s.maxAmount.StringFixed(2))
	}

	// Step 2: Rate limit per (order, client IP)
	identifier := orderRef + "-" + caller.ClientIP
	if !s.limiter.Admit(identifier) {
		return nil, model.NewRateLimitedError(identifier)
	}

	// Step 3: Best-effort contact enrichment, never blocks the payment
	additionalInfo := make(map[string]string, len(req.AdditionalInfo)+2)
	for k, v := range req.AdditionalInfo {
		additionalInfo[k] = v
	}
	email, phone := s.lookupContact(ctx, order.UserID)
	if additionalInfo["additional_info1"] == "" {
		additionalInfo["additional_info1"] = email
	}
	if additionalInfo["additional_info2"] == "" {
		additionalInfo["additional_info2"] = phone
	}

	// Step 4: Persist the pending transaction BEFORE the network call,
	// so a callback racing the synchronous response finds its row
	traceID := billdesk.NewTraceID()
	tx := &model.Transaction{
		ID:          uuid.New(),
		OrderRef:    orderRef,
		Gateway:     model.GatewayBillDesk,
		TraceID:     &traceID,
		Amount:      order.Total,
		Currency:    model.CurrencyINR,
		Status:      model.TxStatusPending,
		InitiatedAt: s.now(),
	}
	if err := s.txRepo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create payment transaction: %w", err)
	}

	gwReq := gateway.BillDeskOrderRequest{
		TraceID:      traceID,
		OrderID:      orderRef,
		Amount:       order.Total,
		OrderDate:    s.now(),
		ClientIP:     caller.ClientIP,
		UserAgent:    caller.UserAgent,
		AcceptHeader: caller.AcceptHeader,
		Device: model.DeviceInfo{
			FingerprintID:       req.FingerprintID,
			BrowserTz:           req.BrowserTz,
			BrowserColorDepth:   req.BrowserColorDepth,
			BrowserJavaEnabled:  req.BrowserJavaEnabled,
			BrowserScreenHeight: req.BrowserScreenHeight,
			BrowserScreenWidth:  req.BrowserScreenWidth,
			BrowserLanguage:     req.BrowserLanguage,
			BrowserJSEnabled:    req.BrowserJSEnabled,
		},
		AdditionalInfo: additionalInfo,
	}

	// The request event stores the exact payload CreateOrder will seal
	s.diagRepo.Record(ctx, &model.DiagnosticEvent{
		TraceID:  traceID,
		OrderRef: orderRef,
		Kind:     model.DiagKindRequest,
		Message:  "order create dispatched",
		Payload: map[string]interface{}{
			"order_payload": s.billdeskGateway.BuildOrderPayload(gwReq),
			"client_ip":     caller.ClientIP,
		},
		RecordedAt: s.now(),
	})

	// Step 5: Call the gateway
	result, err := s.billdeskGateway.CreateOrder(ctx, gwReq)
	if err != nil {
		return nil, s.handleCreateOrderError(ctx, orderRef, traceID, err)
	}

	// Step 6a: HTML passthrough, the caller renders the page verbatim
	if result.HTML != nil {
		_ = s.txRepo.UpdateMetadata(ctx, tx.ID, map[string]interface{}{"html_continuation": true})
		s.diagRepo.Record(ctx, &model.DiagnosticEvent{
			TraceID:    result.TraceID,
			OrderRef:   orderRef,
			Kind:       model.DiagKindResponse,
			Message:    "gateway answered with a checkout page",
			RecordedAt: s.now(),
		})
		return &model.InitializePaymentResponse{
			Success:       true,
			TransactionID: tx.ID,
			OrderID:       orderRef,
			HTML:          result.HTML,
		}, nil
	}

	// Step 6b: Redirect descriptor
	resp := result.Order
	if err := s.txRepo.SetGatewayOrder(ctx, tx.ID, resp.BdOrderID); err != nil {
		logger.Error("failed to record gateway order id", err)
	}

	metadata := map[string]interface{}{
		"bdorderid": resp.BdOrderID,
		"trace_id":  result.TraceID,
	}
	response := &model.InitializePaymentResponse{
		Success:       true,
		TransactionID: tx.ID,
		OrderID:       orderRef,
		BdOrderID:     resp.BdOrderID,
		AuthToken:     resp.AuthToken(),
	}
	if link := resp.RedirectLink(); link != nil {
		response.RedirectURL = link.Href
		params := make(map[string]string, len(link.Parameters))
		for k, v := range link.Parameters {
			if sv, ok := v.(string); ok {
				params[k] = sv
			}
		}
		response.RedirectParams = params
		metadata["redirect_url"] = link.Href
		metadata["redirect_params"] = params
	}
	if err := s.txRepo.UpdateMetadata(ctx, tx.ID, metadata); err != nil {
		logger.Error("failed to update transaction metadata", err)
	}

	s.diagRepo.Record(ctx, &model.DiagnosticEvent{
		TraceID:    result.TraceID,
		OrderRef:   orderRef,
		Kind:       model.DiagKindResponse,
		Message:    "order registered with gateway",
		Payload:    result.Raw,
		RecordedAt: s.now(),
	})

	return response, nil
}

// handleCreateOrderError finalizes or preserves the pending row depending on
// whether the gateway outcome is known. A timeout leaves the row pending:
// the order may still have been created upstream, the poller settles it.
func (s *paymentService) handleCreateOrderError(ctx context.Context, orderRef, traceID string, err error) error {
	s.diagRepo.Record(ctx, &model.DiagnosticEvent{
		TraceID:    traceID,
		OrderRef:   orderRef,
		Kind:       model.DiagKindError,
		Message:    err.Error(),
		RecordedAt: s.now(),
	})

	if errors.Is(err, model.ErrGatewayTimeout) {
		return model.NewGatewayTimeoutError(err)
	}

	code := model.ErrCodeGatewayError
	message := "gateway call failed"
	var perr *model.PaymentError
	if errors.As(err, &perr) {
		code = perr.Code
		message = perr.Message
	}
	if markErr := s.txRepo.MarkAsFailed(ctx, orderRef, code, message, nil); markErr != nil &&
		!errors.Is(markErr, model.ErrTransactionFinalized) {
		logger.Error("failed to finalize transaction after gateway error", markErr)
	}

	return err
}

// lookupContact returns the customer's email and phone, degrading to the
// NA placeholders whenever the lookup cannot answer
func (s *paymentService) lookupContact(ctx context.Context, userID uuid.UUID) (string, string) {
	email, phone := model.PlaceholderNA, model.PlaceholderNA
	if s.userService == nil || userID == uuid.Nil {
		return email, phone
	}

	contact, err := s.userService.GetContactInfo(ctx, userID)
	if err != nil {
		logger.Debug("contact lookup failed, using placeholders")
		return email, phone
	}
	if contact.Email != "" {
		email = contact.Email
	}
	if contact.Phone != "" {
		phone = contact.Phone
	}
	return email, phone
}

// =====================================================
// CALLBACK PROCESSING
// =====================================================

// ProcessResponse handles the browser return payload
func (s *paymentService) ProcessResponse(ctx context.Context, raw string) model.ProcessResult {
	return s.process(ctx, raw, model.DiagKindResponse)
}

// ProcessWebhook handles the server-to-server callback. The dedup marker is
// advisory; replay safety comes from the conditional status update.
func (s *paymentService) ProcessWebhook(ctx context.Context, raw string) model.ProcessResult {
	if s.dedup != nil {
		digest := sha256.Sum256([]byte(raw))
		key := hex.EncodeToString(digest[:])
		if fresh, err := s.dedup.MarkOnce(ctx, key, time.Hour); err != nil {
			logger.Error("webhook dedup marker unavailable", err)
		} else if !fresh {
			logger.Info("duplicate webhook delivery", map[string]interface{}{"digest": key})
		}
	}
	return s.process(ctx, raw, model.DiagKindWebhook)
}

// process is the shared callback pipeline. It never propagates an error or
// panic: every path resolves to a ProcessResult.
func (s *paymentService) process(ctx context.Context, raw string, kind string) (res model.ProcessResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing gateway callback", fmt.Errorf("%v", r))
			res = failedResult(model.UnknownOrderNumber, "internal processing failure")
		}
	}()

	payload, err := s.decodeCallback(raw)
	if err != nil {
		s.diagRepo.Record(ctx, &model.DiagnosticEvent{
			TraceID:    model.UnknownOrderNumber,
			OrderRef:   model.UnknownOrderNumber,
			Kind:       model.DiagKindError,
			Message:    err.Error(),
			Payload:    map[string]interface{}{"raw_prefix": truncate(raw, 120)},
			RecordedAt: s.now(),
		})
		return failedResult(model.UnknownOrderNumber, "callback could not be decrypted")
	}

	// Nested envelope: decrypt and merge, the inner fields win
	orderRef := ""
	if nested, ok := payload["encrypted_response"].(string); ok && nested != "" {
		if inner, nestedErr := s.decodeEnvelopeJSON(nested); nestedErr == nil {
			for k, v := range inner {
				payload[k] = v
			}
		} else {
			logger.Error("failed to open nested encrypted_response", nestedErr)
			orderRef = orderRefFromSubObject(payload)
		}
	}

	if orderRef == "" {
		orderRef = stringField(payload, "orderid", "order_id", "order_no")
	}
	if orderRef == "" {
		orderRef = orderRefFromSubObject(payload)
	}
	if orderRef == "" && s.billdeskGateway.LegacyOrderRecovery() {
		cutoff := s.now().Add(-model.LegacyRecoveryWindowMinutes * time.Minute)
		if tx, lookupErr := s.txRepo.MostRecentPendingSince(ctx, cutoff); lookupErr == nil {
			orderRef = tx.OrderRef
			logger.Info("recovered order id via most-recent-pending lookup", map[string]interface{}{
				"order_ref": orderRef,
			})
		}
	}
	if orderRef == "" {
		return failedResult(model.UnknownOrderNumber, "callback carries no order id")
	}

	s.diagRepo.Record(ctx, &model.DiagnosticEvent{
		TraceID:    stringField(payload, "traceid", "trace_id"),
		OrderRef:   orderRef,
		Kind:       kind,
		Message:    "gateway callback received",
		Payload:    payload,
		RecordedAt: s.now(),
	})

	tx, err := s.txRepo.GetByOrderRef(ctx, orderRef)
	if err != nil {
		if errors.Is(err, model.ErrTransactionNotFound) {
			return model.ProcessResult{
				Success:     false,
				Status:      model.TxStatusFailed,
				OrderNumber: orderRef,
				Message:     "no transaction record for order",
			}
		}
		logger.Error("failed to load transaction for callback", err)
		return failedResult(orderRef, "transaction lookup failed")
	}

	status := mapAuthStatus(stringField(payload, "auth_status", "transaction_status", "status"))
	gatewayTxID := stringField(payload, "transactionid", "transaction_id", "txn_reference_no")

	switch status {
	case model.TxStatusSuccess:
		err = s.txRepo.MarkAsSuccess(ctx, orderRef, gatewayTxID, payload)
	case model.TxStatusFailed:
		errMessage := stringField(payload, "transaction_error_desc", "error_description", "message")
		if errMessage == "" {
			errMessage = "payment failed"
		}
		err = s.txRepo.MarkAsFailed(ctx, orderRef, stringField(payload, "auth_error_code", "error_code"), errMessage, payload)
	default:
		return model.ProcessResult{
			Success:       false,
			Status:        model.TxStatusPending,
			OrderNumber:   orderRef,
			TransactionID: tx.ID.String(),
			Message:       "gateway reports the payment still in progress",
		}
	}

	if err != nil {
		if errors.Is(err, model.ErrTransactionFinalized) {
			// Replay or return/webhook race: report the stored outcome
			if current, getErr := s.txRepo.GetByOrderRef(ctx, orderRef); getErr == nil {
				return model.ProcessResult{
					Success:       current.Status == model.TxStatusSuccess,
					Status:        current.Status,
					OrderNumber:   orderRef,
					TransactionID: current.ID.String(),
					Message:       "already processed",
				}
			}
		}
		logger.Error("failed to finalize transaction from callback", err)
		return failedResult(orderRef, "failed to persist callback outcome")
	}

	if status == model.TxStatusSuccess {
		s.markOrderPaid(ctx, orderRef)
	}

	message := "payment successful"
	if status != model.TxStatusSuccess {
		message = stringField(payload, "transaction_error_desc", "error_description", "message")
		if message == "" {
			message = "payment failed"
		}
	}

	return model.ProcessResult{
		Success:       status == model.TxStatusSuccess,
		Status:        status,
		OrderNumber:   orderRef,
		TransactionID: tx.ID.String(),
		Message:       message,
	}
}

// decodeCallback opens a raw callback: sealed envelope first, then plain
// JSON for callers that post the payload already decoded
func (s *paymentService) decodeCallback(raw string) (map[string]interface{}, error) {
	raw = strings.TrimSpace(raw)

	plaintext, err := s.billdeskGateway.DecodeEnvelope(raw)
	if err == nil {
		var payload map[string]interface{}
		if jsonErr := json.Unmarshal(plaintext, &payload); jsonErr != nil {
			return nil, fmt.Errorf("decrypted callback is not json: %w", jsonErr)
		}
		return payload, nil
	}

	var payload map[string]interface{}
	if jsonErr := json.Unmarshal([]byte(raw), &payload); jsonErr == nil {
		return payload, nil
	}
	return nil, err
}

func (s *paymentService) decodeEnvelopeJSON(envelope string) (map[string]interface{}, error) {
	plaintext, err := s.billdeskGateway.DecodeEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("nested payload is not json: %w", err)
	}
	return payload, nil
}

// =====================================================
// STATUS RETRIEVAL
// =====================================================

// GetPaymentStatus answers from the store, polling the gateway first when
// the pending row has waited past the staleness threshold
func (s *paymentService) GetPaymentStatus(ctx context.Context, orderRef string) (*model.PaymentStatusResponse, error) {
	if strings.TrimSpace(orderRef) == "" {
		return nil, model.NewMissingOrderIDError()
	}

	tx, err := s.txRepo.GetByOrderRef(ctx, orderRef)
	if err != nil {
		if errors.Is(err, model.ErrTransactionNotFound) {
			return nil, model.NewTransactionNotFoundError(orderRef)
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}

	reconciled := false
	if tx.IsStale(s.now()) {
		if res := s.RetrieveTransaction(ctx, orderRef); res.Success && model.IsTerminalStatus(res.Status) {
			if s.reconcile(ctx, orderRef, res) {
				if fresh, getErr := s.txRepo.GetByOrderRef(ctx, orderRef); getErr == nil {
					tx = fresh
					reconciled = true
				}
			}
		}
	}

	return &model.PaymentStatusResponse{
		TransactionID: tx.ID,
		OrderID:       tx.OrderRef,
		Gateway:       tx.Gateway,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		BdOrderID:     tx.BdOrderID,
		ErrorCode:     tx.ErrorCode,
		ErrorMessage:  tx.ErrorMessage,
		InitiatedAt:   tx.InitiatedAt,
		CompletedAt:   tx.CompletedAt,
		FailedAt:      tx.FailedAt,
		Reconciled:    reconciled,
	}, nil
}

// RetrieveTransaction queries the gateway without touching local state
func (s *paymentService) RetrieveTransaction(ctx context.Context, orderRef string) *model.RetrieveResult {
	raw, err := s.billdeskGateway.RetrieveTransaction(ctx, orderRef)
	if err != nil {
		logger.Error("transaction retrieve failed", err)
		return &model.RetrieveResult{
			Success: false,
			Message: fmt.Sprintf("gateway unreachable: %v", err),
		}
	}

	return &model.RetrieveResult{
		Success: true,
		Status:  mapAuthStatus(stringField(raw, "auth_status", "transaction_status", "status")),
		Raw:     raw,
	}
}

// reconcile writes a polled terminal outcome through the conditional
// update. Returns true when this call finalized the row.
func (s *paymentService) reconcile(ctx context.Context, orderRef string, res *model.RetrieveResult) bool {
	var err error
	switch res.Status {
	case model.TxStatusSuccess:
		err = s.txRepo.MarkAsSuccess(ctx, orderRef, stringField(res.Raw, "transactionid", "transaction_id"), res.Raw)
	case model.TxStatusFailed:
		message := stringField(res.Raw, "transaction_error_desc", "error_description", "message")
		if message == "" {
			message = "payment failed"
		}
		err = s.txRepo.MarkAsFailed(ctx, orderRef, stringField(res.Raw, "auth_error_code", "error_code"), message, res.Raw)
	default:
		return false
	}

	if err != nil {
		if !errors.Is(err, model.ErrTransactionFinalized) {
			logger.Error("failed to reconcile transaction", err)
		}
		return false
	}

	if res.Status == model.TxStatusSuccess {
		s.markOrderPaid(ctx, orderRef)
	}
	return true
}

// markOrderPaid propagates a successful payment to the order domain.
// Best-effort: the transaction row is the source of truth, a missed
// propagation is repaired by the next reconciliation.
func (s *paymentService) markOrderPaid(ctx context.Context, orderRef string) {
	order, err := s.orderService.GetOrderByNumber(ctx, orderRef)
	if err != nil {
		logger.Error("failed to load order for paid flag", err)
		return
	}
	if err := s.orderService.MarkOrderPaid(ctx, order.ID); err != nil {
		logger.Error("failed to mark order paid", err)
	}
}

// =====================================================
// BACKGROUND JOBS
// =====================================================

// PollStaleTransactions settles pending rows that waited too long for a
// callback. Called by the worker on a schedule.
func (s *paymentService) PollStaleTransactions(ctx context.Context) (int, error) {
	stale, err := s.txRepo.ListStalePending(ctx, model.StaleAfterMinutes*time.Minute, 50)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale transactions: %w", err)
	}

	finalized := 0
	for _, tx := range stale {
		res := s.RetrieveTransaction(ctx, tx.OrderRef)
		if !res.Success || !model.IsTerminalStatus(res.Status) {
			continue
		}
		if s.reconcile(ctx, tx.OrderRef, res) {
			finalized++
		}
	}

	if len(stale) > 0 {
		logger.Info("stale transaction poll finished", map[string]interface{}{
			"checked":   len(stale),
			"finalized": finalized,
		})
	}

	return finalized, nil
}

// =====================================================
// HELPERS
// =====================================================

// mapAuthStatus maps the gateway's auth_status to a stored status,
// case-insensitively; anything unrecognized stays pending
func mapAuthStatus(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case model.GatewayStatusSuccess:
		return model.TxStatusSuccess
	case model.GatewayStatusFailed:
		return model.TxStatusFailed
	default:
		return model.TxStatusPending
	}
}

// stringField returns the first non-empty string value among keys
func stringField(payload map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// orderRefFromSubObject digs the order id out of an embedded
// transaction sub-object when the top level lacks one
func orderRefFromSubObject(payload map[string]interface{}) string {
	for _, key := range []string{"transaction_response", "transaction", "txn"} {
		if sub, ok := payload[key].(map[string]interface{}); ok {
			if ref := stringField(sub, "orderid", "order_id"); ref != "" {
				return ref
			}
		}
	}
	return ""
}

func failedResult(orderRef, message string) model.ProcessResult {
	return model.ProcessResult{
		Success:     false,
		Status:      model.TxStatusFailed,
		OrderNumber: orderRef,
		Message:     message,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
