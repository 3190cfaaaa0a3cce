// AngelaMos | 2026
// handler.go

package entitlement

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
	"github.com/carterperez-dev/templates/checkout-backend/internal/middleware"
	"github.com/carterperez-dev/templates/checkout-backend/internal/product"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.With(authenticator).Get("/entitlements", h.ListMine)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	owned, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	resp := make([]OwnedProductResponse, 0, len(owned))
	for _, o := range owned {
		resp = append(resp, OwnedProductResponse{
			ProductID:   o.ProductID,
			Title:       o.Title,
			Archived:    o.ProductStatus != product.StatusActive,
			PurchaseID:  o.PurchaseID,
			PurchasedAt: o.PurchasedAt,
		})
	}

	core.OK(w, resp)
}

type OwnedProductResponse struct {
	ProductID   string    `json:"product_id"`
	Title       string    `json:"title"`
	Archived    bool      `json:"archived"`
	PurchaseID  string    `json:"purchase_id"`
	PurchasedAt time.Time `json:"purchased_at"`
}
