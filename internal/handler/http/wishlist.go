package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/EcommerceGo/storefront/internal/domain"
	"github.com/utafrali/EcommerceGo/storefront/internal/service"
	"github.com/utafrali/EcommerceGo/storefront/pkg/httputil"
	"github.com/utafrali/EcommerceGo/storefront/pkg/validator"
)

// WishlistHandler handles HTTP requests for wishlist endpoints.
type WishlistHandler struct {
	service *service.WishlistService
	logger  *slog.Logger
}

// NewWishlistHandler creates a new wishlist HTTP handler.
func NewWishlistHandler(svc *service.WishlistService, logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{
		service: svc,
		logger:  logger,
	}
}

// WishlistItemRequest is the JSON request body for adding or toggling a
// wishlist entry.
type WishlistItemRequest struct {
	ID    string  `json:"id" validate:"required,max=200"`
	Name  string  `json:"name" validate:"required,max=500"`
	Price float64 `json:"price" validate:"gte=0"`
	Image string  `json:"image" validate:"omitempty,http_url"`
}

func (r WishlistItemRequest) item() domain.LineItem {
	return domain.LineItem{ID: r.ID, Name: r.Name, Price: r.Price, Image: r.Image}
}

// membership is the response of the membership and toggle endpoints.
type membership struct {
	ID       string           `json:"id"`
	InList   bool             `json:"in_wishlist"`
	Item     *domain.LineItem `json:"item,omitempty"`
	Wishlist *service.View    `json:"wishlist,omitempty"`
}

// GetWishlist handles GET /api/v1/wishlist
func (h *WishlistHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.service.View())
}

// AddItem handles POST /api/v1/wishlist/items
func (h *WishlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req WishlistItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.service.AddItem(r.Context(), sessionFromContext(r.Context()), req.item()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, h.service.View())
}

// RemoveItem handles DELETE /api/v1/wishlist/items/{id}
func (h *WishlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.RemoveItem(r.Context(), sessionFromContext(r.Context()), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, h.service.View())
}

// GetItem handles GET /api/v1/wishlist/items/{id}. It always answers 200;
// in_wishlist tells whether the id is held.
func (h *WishlistHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resp := membership{ID: id}
	if item, ok := h.service.Item(id); ok {
		resp.InList = true
		resp.Item = &item
	}
	httputil.WriteData(w, http.StatusOK, resp)
}

// Toggle handles POST /api/v1/wishlist/toggle
func (h *WishlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req WishlistItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	held, err := h.service.Toggle(r.Context(), sessionFromContext(r.Context()), req.item())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	view := h.service.View()
	httputil.WriteData(w, http.StatusOK, membership{ID: req.ID, InList: held, Wishlist: &view})
}

// ClearWishlist handles DELETE /api/v1/wishlist
func (h *WishlistHandler) ClearWishlist(w http.ResponseWriter, r *http.Request) {
	h.service.Clear(r.Context())
	httputil.WriteData(w, http.StatusOK, h.service.View())
}
