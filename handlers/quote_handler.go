package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"covergate-backend/models"
	"covergate-backend/services"
	"covergate-backend/storage/auth"
	"covergate-backend/storage/cover"
)

// QuoteHandler handles the quote lifecycle endpoints.
type QuoteHandler struct {
	*BaseHandler
	quotes *services.QuoteService
	qr     *services.QRCodeService
	keys   auth.APIKeyValidator
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(quotes *services.QuoteService, qr *services.QRCodeService, keys auth.APIKeyValidator) *QuoteHandler {
	return &QuoteHandler{
		BaseHandler: NewBaseHandler(),
		quotes:      quotes,
		qr:          qr,
		keys:        keys,
	}
}

// HandleQuotes handles POST /api/quotes (submit) and GET /api/quotes (list).
func (h *QuoteHandler) HandleQuotes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleSubmit(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// @Summary Submit a signed quote
// @Description Verifies the authorizing signature, pulls the payment, and escrows it under a new quote id.
// @Router /api/quotes [post]
func (h *QuoteHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitQuoteRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Payer) == "" {
		h.sendError(w, http.StatusBadRequest, "payer required")
		return
	}

	quote, err := h.quotes.Submit(r.Context(), services.SubmitRequest{
		Submission:       req.Submission,
		Signature:        req.Signature,
		CoveredAddresses: req.CoveredAddresses,
		IntegratorID:     req.IntegratorID,
		MintTo:           req.MintTo,
		Payer:            req.Payer,
		PaidValue:        req.PaidValue,
	})
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, models.NewSuccessResponse(quote))
}

// @Summary List quotes
// @Router /api/quotes [get]
func (h *QuoteHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := cover.QuoteFilter{
		Owner:        q.Get("owner"),
		PaymentAsset: q.Get("payment_asset"),
	}
	if v := q.Get("provider_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "invalid provider_id")
			return
		}
		filter.ProviderID = uint32(id)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.sendError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.sendError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	quotes, err := h.quotes.List(r.Context(), filter)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	h.sendSuccess(w, models.QuoteListResponse{Quotes: quotes, Total: len(quotes)})
}

// HandleQuoteByID dispatches /api/quotes/{id} and its sub-resources:
// status, qr, settle, refund, refund-unfulfilled.
func (h *QuoteHandler) HandleQuoteByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/quotes/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		h.sendError(w, http.StatusBadRequest, "quote id required")
		return
	}
	quoteID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid quote id")
		return
	}

	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch action {
	case "":
		h.handleGet(w, r, quoteID)
	case "status":
		h.handleStatus(w, r, quoteID)
	case "qr":
		h.handleQR(w, r, quoteID)
	case "settle":
		h.handleSettle(w, r, quoteID)
	case "refund":
		h.handleRefund(w, r, quoteID)
	case "refund-unfulfilled":
		h.handleRefundUnfulfilled(w, r, quoteID)
	default:
		h.sendError(w, http.StatusNotFound, "unknown quote action")
	}
}

// @Summary Get a quote
// @Router /api/quotes/{id} [get]
func (h *QuoteHandler) handleGet(w http.ResponseWriter, r *http.Request, quoteID uint64) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	quote, err := h.quotes.Get(r.Context(), quoteID)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	h.sendSuccess(w, quote)
}

// @Summary Derive a quote's lifecycle status
// @Router /api/quotes/{id}/status [get]
func (h *QuoteHandler) handleStatus(w http.ResponseWriter, r *http.Request, quoteID uint64) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	status, err := h.quotes.Status(r.Context(), quoteID)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	h.sendSuccess(w, models.QuoteStatusResponse{QuoteID: quoteID, Status: status})
}

// @Summary Payment QR code for a quote
// @Produce png
// @Router /api/quotes/{id}/qr [get]
func (h *QuoteHandler) handleQR(w http.ResponseWriter, r *http.Request, quoteID uint64) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	quote, err := h.quotes.Get(r.Context(), quoteID)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	img, err := h.qr.GenerateQuoteQR(quote.QuoteID, quote.PaymentAsset, quote.TotalPayment)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to generate QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

// @Summary Settle a quote (operator)
// @Router /api/quotes/{id}/settle [post]
func (h *QuoteHandler) handleSettle(w http.ResponseWriter, r *http.Request, quoteID uint64) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if _, ok := h.requireRole(w, r, h.keys, auth.RoleOperator); !ok {
		return
	}
	var req models.SettleQuoteRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.ExternalTxHash) == "" {
		h.sendError(w, http.StatusBadRequest, "external_tx_hash required")
		return
	}
	quote, err := h.quotes.Settle(r.Context(), quoteID, req.ExternalTxHash, req.CoverExpiresAt)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	h.sendSuccess(w, quote)
}

// @Summary Refund a quote to its owner (operator)
// @Router /api/quotes/{id}/refund [post]
func (h *QuoteHandler) handleRefund(w http.ResponseWriter, r *http.Request, quoteID uint64) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if _, ok := h.requireRole(w, r, h.keys, auth.RoleOperator); !ok {
		return
	}
	quote, err := h.quotes.Refund(r.Context(), quoteID)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	h.sendSuccess(w, quote)
}

// @Summary Reclaim an unfulfilled quote's escrow (owner)
// @Description The caller's wallet-bound API key must match the quote owner, and the settlement window must have lapsed.
// @Router /api/quotes/{id}/refund-unfulfilled [post]
func (h *QuoteHandler) handleRefundUnfulfilled(w http.ResponseWriter, r *http.Request, quoteID uint64) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	rec, ok := h.requireRole(w, r, h.keys, auth.RoleOwner)
	if !ok {
		return
	}
	if strings.TrimSpace(rec.Wallet) == "" {
		h.sendError(w, http.StatusForbidden, "API key has no wallet binding")
		return
	}
	var req models.RefundUnfulfilledRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json")
		return
	}
	withdrawTo := strings.TrimSpace(req.WithdrawTo)
	if withdrawTo == "" {
		withdrawTo = rec.Wallet
	}
	quote, err := h.quotes.RefundUnfulfilled(r.Context(), quoteID, rec.Wallet, withdrawTo)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	h.sendSuccess(w, quote)
}

// HandleCollect handles POST /api/collect (operator): pay out vault
// balance in excess of pending escrow.
func (h *QuoteHandler) HandleCollect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if _, ok := h.requireRole(w, r, h.keys, auth.RoleOperator); !ok {
		return
	}
	var req models.CollectRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.AssetAddress == "" || req.To == "" {
		h.sendError(w, http.StatusBadRequest, "asset_address and to required")
		return
	}
	if err := h.quotes.Collect(r.Context(), req.AssetAddress, req.To, req.Amount); err != nil {
		h.sendDomainError(w, err)
		return
	}
	h.sendSuccess(w, map[string]interface{}{
		"asset_address": req.AssetAddress,
		"to":            req.To,
		"amount":        req.Amount,
	})
}

// HandlePending handles GET /api/pending: the escrow ledger snapshot.
func (h *QuoteHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	amounts, err := h.quotes.PendingAmounts(r.Context())
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	h.sendSuccess(w, models.PendingAmountsResponse{Amounts: amounts})
}
