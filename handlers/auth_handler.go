package handlers

import (
	"net/http"
	"strings"

	auth "covergate-backend/storage/auth"
)

// APIKeyHandler issues owner API keys bound to verified wallet
// identities. Binding goes through a challenge: the wallet requests a
// nonce, signs it, and exchanges the signature for a key.
type APIKeyHandler struct {
	*BaseHandler
	issuer     auth.APIKeyIssuer
	validator  auth.APIKeyValidator
	challenges *auth.ChallengeStore
}

// NewAPIKeyHandler builds an APIKeyHandler with separate issuer/validator implementations.
func NewAPIKeyHandler(issuer auth.APIKeyIssuer, validator auth.APIKeyValidator, challenges *auth.ChallengeStore) *APIKeyHandler {
	return &APIKeyHandler{BaseHandler: NewBaseHandler(), issuer: issuer, validator: validator, challenges: challenges}
}

// HandleChallenge issues a signing challenge for a wallet identity.
// Request: {"wallet_address":"..."}
// Response: {"nonce":"...","expires_at":"..."}
func (h *APIKeyHandler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var body struct {
		Wallet string `json:"wallet_address"`
	}
	if err := h.parseJSON(r, &body); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json")
		return
	}
	wallet := strings.TrimSpace(body.Wallet)
	if wallet == "" {
		h.sendError(w, http.StatusBadRequest, "wallet_address required")
		return
	}

	ch, err := h.challenges.Issue(wallet)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to issue challenge")
		return
	}
	h.sendSuccess(w, map[string]interface{}{
		"nonce":      ch.Nonce,
		"expires_at": ch.ExpiresAt,
	})
}

// HandleRegister exchanges a signed challenge for an owner API key.
// Request: {"wallet_address":"...","signature":"<base64 compact>"}
// Response: {"api_key":"...","wallet":"..."}
func (h *APIKeyHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var body struct {
		Wallet    string `json:"wallet_address"`
		Signature string `json:"signature"`
	}
	if err := h.parseJSON(r, &body); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json")
		return
	}

	wallet := strings.TrimSpace(body.Wallet)
	if wallet == "" {
		h.sendError(w, http.StatusBadRequest, "wallet_address required")
		return
	}
	if !h.challenges.Verify(wallet, body.Signature) {
		h.sendError(w, http.StatusForbidden, "challenge verification failed")
		return
	}

	rec, err := h.issuer.Issue(auth.RoleOwner, wallet, "registration")
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to issue api key")
		return
	}
	h.sendSuccess(w, map[string]interface{}{
		"api_key":    rec.Key,
		"role":       rec.Role,
		"wallet":     rec.Wallet,
		"created_at": rec.CreatedAt,
	})
}

// HandleLogin verifies an existing API key.
// Request: {"api_key":"..."}
// Response: { "valid": true }
func (h *APIKeyHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := h.parseJSON(r, &body); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid json")
		return
	}

	rec, ok := h.validator.Get(strings.TrimSpace(body.APIKey))
	if !ok {
		h.sendError(w, http.StatusForbidden, "invalid api key")
		return
	}
	h.sendSuccess(w, map[string]interface{}{
		"valid":  true,
		"role":   rec.Role,
		"wallet": rec.Wallet,
	})
}
