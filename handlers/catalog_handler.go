package handlers

import (
	"net/http"
	"strconv"
	"strings"

	core "covergate-backend/core/cover"
	"covergate-backend/services"
	"covergate-backend/storage/auth"
	"covergate-backend/storage/cover"
)

// PauseChecker reports whether mutating operations are paused.
type PauseChecker interface {
	Paused() bool
}

// CatalogHandler handles provider, product, and asset configuration.
// Reads are public; writes require the admin role and respect the
// service pause flag.
type CatalogHandler struct {
	*BaseHandler
	store cover.Store
	keys  auth.APIKeyValidator
	pause PauseChecker
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(store cover.Store, keys auth.APIKeyValidator, pause PauseChecker) *CatalogHandler {
	return &CatalogHandler{BaseHandler: NewBaseHandler(), store: store, keys: keys, pause: pause}
}

func (h *CatalogHandler) rejectWrite(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := h.requireRole(w, r, h.keys, auth.RoleAdmin); !ok {
		return true
	}
	if h.pause != nil && h.pause.Paused() {
		h.sendDomainError(w, services.ErrServicePaused)
		return true
	}
	return false
}

// HandleProviders handles /api/catalog/providers and everything below it.
func (h *CatalogHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/catalog/providers")
	path = strings.TrimPrefix(path, "/")
	parts := strings.Split(path, "/")

	if path == "" {
		h.handleProviderCollection(w, r)
		return
	}
	providerID64, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid provider id")
		return
	}
	providerID := uint32(providerID64)

	if len(parts) == 1 {
		h.handleProvider(w, r, providerID)
		return
	}
	switch parts[1] {
	case "products":
		h.handleProducts(w, r, providerID, parts[2:])
	case "assets":
		h.handleAssets(w, r, providerID, parts[2:])
	default:
		h.sendError(w, http.StatusNotFound, "unknown catalog resource")
	}
}

// @Summary List or upsert providers
// @Router /api/catalog/providers [get]
// @Router /api/catalog/providers [put]
func (h *CatalogHandler) handleProviderCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		providers, err := h.store.ListProviders(r.Context())
		if err != nil {
			h.sendDomainError(w, err)
			return
		}
		h.sendSuccess(w, providers)
	case http.MethodPut:
		if h.rejectWrite(w, r) {
			return
		}
		var p core.Provider
		if err := h.parseJSON(r, &p); err != nil {
			h.sendError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := h.store.SetProvider(r.Context(), p); err != nil {
			h.sendDomainError(w, err)
			return
		}
		h.sendSuccess(w, p)
	default:
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// @Summary Get one provider
// @Router /api/catalog/providers/{id} [get]
func (h *CatalogHandler) handleProvider(w http.ResponseWriter, r *http.Request, providerID uint32) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	p, err := h.store.GetProvider(r.Context(), providerID)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	h.sendSuccess(w, p)
}

// @Summary List, get, or upsert a provider's products
// @Router /api/catalog/providers/{id}/products [get]
// @Router /api/catalog/providers/{id}/products [put]
func (h *CatalogHandler) handleProducts(w http.ResponseWriter, r *http.Request, providerID uint32, rest []string) {
	if len(rest) > 0 && rest[0] != "" {
		productID64, err := strconv.ParseUint(rest[0], 10, 32)
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "invalid product id")
			return
		}
		if r.Method != http.MethodGet {
			h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		p, err := h.store.GetProduct(r.Context(), providerID, uint32(productID64))
		if err != nil {
			h.sendDomainError(w, err)
			return
		}
		h.sendSuccess(w, p)
		return
	}

	switch r.Method {
	case http.MethodGet:
		products, err := h.store.ListProducts(r.Context(), providerID)
		if err != nil {
			h.sendDomainError(w, err)
			return
		}
		h.sendSuccess(w, products)
	case http.MethodPut:
		if h.rejectWrite(w, r) {
			return
		}
		var p core.Product
		if err := h.parseJSON(r, &p); err != nil {
			h.sendError(w, http.StatusBadRequest, "invalid json")
			return
		}
		p.ProviderID = providerID
		if err := h.store.SetProduct(r.Context(), p); err != nil {
			h.sendDomainError(w, err)
			return
		}
		h.sendSuccess(w, p)
	default:
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// @Summary List, get, or upsert a provider's assets
// @Router /api/catalog/providers/{id}/assets [get]
// @Router /api/catalog/providers/{id}/assets [put]
func (h *CatalogHandler) handleAssets(w http.ResponseWriter, r *http.Request, providerID uint32, rest []string) {
	if len(rest) > 0 && rest[0] != "" {
		assetID64, err := strconv.ParseUint(rest[0], 10, 32)
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "invalid asset id")
			return
		}
		if r.Method != http.MethodGet {
			h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		a, err := h.store.GetAsset(r.Context(), providerID, uint32(assetID64))
		if err != nil {
			h.sendDomainError(w, err)
			return
		}
		h.sendSuccess(w, a)
		return
	}

	switch r.Method {
	case http.MethodGet:
		assets, err := h.store.ListAssets(r.Context(), providerID)
		if err != nil {
			h.sendDomainError(w, err)
			return
		}
		h.sendSuccess(w, assets)
	case http.MethodPut:
		if h.rejectWrite(w, r) {
			return
		}
		var a core.Asset
		if err := h.parseJSON(r, &a); err != nil {
			h.sendError(w, http.StatusBadRequest, "invalid json")
			return
		}
		a.ProviderID = providerID
		if err := h.store.SetAsset(r.Context(), a); err != nil {
			h.sendDomainError(w, err)
			return
		}
		h.sendSuccess(w, a)
	default:
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
