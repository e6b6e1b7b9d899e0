package models

import (
	"time"

	core "covergate-backend/core/cover"
)

// SubmitQuoteRequest represents a signed quote submission
type SubmitQuoteRequest struct {
	Submission       core.QuoteSubmission `json:"submission"`
	Signature        string               `json:"signature"`
	CoveredAddresses []string             `json:"covered_addresses,omitempty"`
	IntegratorID     uint32               `json:"integrator_id,omitempty"`
	MintTo           string               `json:"mint_to,omitempty"`
	Payer            string               `json:"payer"`
	PaidValue        uint64               `json:"paid_value,omitempty"`
}

// SettleQuoteRequest represents an operator settlement request
type SettleQuoteRequest struct {
	ExternalTxHash string    `json:"external_tx_hash"`
	CoverExpiresAt time.Time `json:"cover_expires_at"`
}

// RefundUnfulfilledRequest represents an owner refund request
type RefundUnfulfilledRequest struct {
	WithdrawTo string `json:"withdraw_to"`
}

// CollectRequest represents an excess collection request
type CollectRequest struct {
	AssetAddress string `json:"asset_address"`
	To           string `json:"to"`
	Amount       uint64 `json:"amount"`
}

// QuoteStatusResponse represents a derived quote status
type QuoteStatusResponse struct {
	QuoteID uint64           `json:"quote_id"`
	Status  core.QuoteStatus `json:"status"`
}

// QuoteListResponse represents a filtered quote listing
type QuoteListResponse struct {
	Quotes []core.Quote `json:"quotes"`
	Total  int          `json:"total"`
}

// PendingAmountsResponse represents the escrow ledger snapshot
type PendingAmountsResponse struct {
	Amounts map[string]uint64 `json:"amounts"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorResponse represents API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code,omitempty"`
	Hint      string `json:"hint,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// APIResponse represents a generic API response
type APIResponse struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Error   *ErrorResponse         `json:"error,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) *APIResponse {
	return &APIResponse{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(error string, code int) *APIResponse {
	return &APIResponse{
		Success: false,
		Error: &ErrorResponse{
			Error:     error,
			Message:   error,
			Code:      code,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// NewErrorResponseWithHint creates an error response with a hint.
func NewErrorResponseWithHint(error string, code int, hint string) *APIResponse {
	resp := NewErrorResponse(error, code)
	if resp != nil && resp.Error != nil {
		resp.Error.Hint = hint
	}
	return resp
}

// NewSuccessResponseWithMeta creates a success response with metadata
func NewSuccessResponseWithMeta(data interface{}, meta map[string]interface{}) *APIResponse {
	return &APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	}
}
