package handlers

import (
	"net/http"

	"covergate-backend/services"
)

// AdminHandler handles the pause switch. Both endpoints are mounted
// behind admin-role middleware.
type AdminHandler struct {
	*BaseHandler
	quotes *services.QuoteService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(quotes *services.QuoteService) *AdminHandler {
	return &AdminHandler{BaseHandler: NewBaseHandler(), quotes: quotes}
}

// @Summary Pause mutating operations
// @Router /api/admin/pause [post]
func (h *AdminHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	h.quotes.Pause()
	h.sendSuccess(w, map[string]interface{}{"paused": true})
}

// @Summary Resume mutating operations
// @Router /api/admin/resume [post]
func (h *AdminHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	h.quotes.Resume()
	h.sendSuccess(w, map[string]interface{}{"paused": false})
}
