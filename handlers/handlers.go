package handlers

import (
	"encoding/json"
	"net/http"

	core "covergate-backend/core/cover"
	"covergate-backend/models"
	"covergate-backend/payments"
	"covergate-backend/services"
	"covergate-backend/storage/auth"
	"covergate-backend/storage/cover"
)

// BaseHandler provides common functionality for all handlers
type BaseHandler struct{}

// NewBaseHandler creates a new base handler
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// sendJSON sends a JSON response
func (h *BaseHandler) sendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// sendError sends an error response
func (h *BaseHandler) sendError(w http.ResponseWriter, statusCode int, message string) {
	errorResp := models.NewErrorResponse(message, statusCode)
	h.sendJSON(w, statusCode, errorResp)
}

// sendSuccess sends a success response
func (h *BaseHandler) sendSuccess(w http.ResponseWriter, data interface{}) {
	successResp := models.NewSuccessResponse(data)
	h.sendJSON(w, http.StatusOK, successResp)
}

// parseJSON parses JSON from request
func (h *BaseHandler) parseJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// sendDomainError maps lifecycle and validation errors onto HTTP status
// codes. Unknown errors fall through as 500.
func (h *BaseHandler) sendDomainError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch err {
	case core.ErrSubmissionExpired,
		core.ErrInvalidProvider,
		core.ErrInvalidProduct,
		core.ErrInvalidCoverAsset,
		core.ErrInvalidPaymentAsset,
		core.ErrInvalidCoverExpiry,
		core.ErrUnsupportedCoverAmount,
		core.ErrUnsupportedPaymentAmount,
		services.ErrIncorrectPaidValue,
		services.ErrExceedsExcess,
		cover.ErrCoverExpiryInPast:
		code = http.StatusUnprocessableEntity
	case core.ErrInvalidSignature, services.ErrUnauthorizedSigner, cover.ErrNotQuoteOwner:
		code = http.StatusForbidden
	case cover.ErrQuoteNotFound, cover.ErrProviderNotFound, cover.ErrProductNotFound, cover.ErrAssetNotFound:
		code = http.StatusNotFound
	case cover.ErrQuoteAlreadySettled, cover.ErrQuoteAlreadyRefunded, cover.ErrQuoteNotExpired, cover.ErrProviderDisabled:
		code = http.StatusConflict
	case payments.ErrInsufficientFunds:
		code = http.StatusPaymentRequired
	case payments.ErrInvalidAddress:
		code = http.StatusUnprocessableEntity
	case services.ErrServicePaused:
		code = http.StatusServiceUnavailable
	}
	h.sendError(w, code, err.Error())
}

// requireRole authenticates the request's API key against a role.
// Admin keys pass every check. The record is returned for handlers that
// need the wallet binding.
func (h *BaseHandler) requireRole(w http.ResponseWriter, r *http.Request, keys auth.APIKeyValidator, role string) (auth.APIKey, bool) {
	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		h.sendError(w, http.StatusUnauthorized, "API key required")
		return auth.APIKey{}, false
	}
	rec, ok := keys.Get(apiKey)
	if !ok {
		h.sendError(w, http.StatusForbidden, "Invalid API key")
		return auth.APIKey{}, false
	}
	if rec.Role != role && rec.Role != auth.RoleAdmin {
		h.sendError(w, http.StatusForbidden, "API key lacks required role")
		return auth.APIKey{}, false
	}
	return rec, true
}

// HealthHandler handles health check requests
type HealthHandler struct {
	*BaseHandler
	healthService *services.HealthService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(healthService *services.HealthService) *HealthHandler {
	return &HealthHandler{
		BaseHandler:   NewBaseHandler(),
		healthService: healthService,
	}
}

// HandleHealth handles health check requests
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	health := h.healthService.GetHealthStatus()
	h.sendSuccess(w, health)
}
