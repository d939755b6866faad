package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/EcommerceGo/storefront/internal/domain"
	"github.com/utafrali/EcommerceGo/storefront/internal/service"
	"github.com/utafrali/EcommerceGo/storefront/pkg/httputil"
	"github.com/utafrali/EcommerceGo/storefront/pkg/validator"
)

// Connectivity is the online flag the embedding UI or OS pushes updates to.
// *connectivity.Monitor satisfies it.
type Connectivity interface {
	Online() bool
	SetOnline(online bool)
}

// QueueDepth reports how many calls wait for replay. *offline.Queue
// satisfies it.
type QueueDepth interface {
	Len() int
}

// SyncHandler serves session reconciliation, server pulls and the
// connectivity signal.
type SyncHandler struct {
	reconciler *service.Reconciler
	cart       *service.CartService
	wishlist   *service.WishlistService
	online     Connectivity
	queue      QueueDepth
	logger     *slog.Logger
}

// NewSyncHandler creates a new sync HTTP handler.
func NewSyncHandler(
	reconciler *service.Reconciler,
	cart *service.CartService,
	wishlist *service.WishlistService,
	online Connectivity,
	queue QueueDepth,
	logger *slog.Logger,
) *SyncHandler {
	return &SyncHandler{
		reconciler: reconciler,
		cart:       cart,
		wishlist:   wishlist,
		online:     online,
		queue:      queue,
		logger:     logger,
	}
}

// ConnectivityRequest is the JSON request body of the connectivity signal.
type ConnectivityRequest struct {
	Online *bool `json:"online" validate:"required"`
}

// StatusResponse describes connectivity, the offline backlog and the sync
// status of both collections.
type StatusResponse struct {
	Online   bool              `json:"online"`
	Queued   int               `json:"queued"`
	Cart     domain.SyncStatus `json:"cart"`
	Wishlist domain.SyncStatus `json:"wishlist"`
}

// LoginResponse is the outcome of a login reconciliation.
type LoginResponse struct {
	Reconciliation service.Reconciliation `json:"reconciliation"`
	Cart           service.View           `json:"cart"`
	Wishlist       service.View           `json:"wishlist"`
}

// Login handles POST /api/v1/session/login. It runs the login
// reconciliation for the session in the Authorization header.
func (h *SyncHandler) Login(w http.ResponseWriter, r *http.Request) {
	res, err := h.reconciler.OnLogin(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, LoginResponse{
		Reconciliation: res,
		Cart:           h.cart.View(),
		Wishlist:       h.wishlist.View(),
	})
}

// Pull handles POST /api/v1/sync/pull. Server state replaces both local
// collections.
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	if err := h.reconciler.PullAll(r.Context(), sessionFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string]service.View{
		"cart":     h.cart.View(),
		"wishlist": h.wishlist.View(),
	})
}

// Status handles GET /api/v1/sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.status())
}

// SetConnectivity handles PUT /api/v1/connectivity
func (h *SyncHandler) SetConnectivity(w http.ResponseWriter, r *http.Request) {
	var req ConnectivityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.online.SetOnline(*req.Online)
	httputil.WriteData(w, http.StatusOK, h.status())
}

func (h *SyncHandler) status() StatusResponse {
	return StatusResponse{
		Online:   h.online.Online(),
		Queued:   h.queue.Len(),
		Cart:     h.cart.Status(),
		Wishlist: h.wishlist.Status(),
	}
}
