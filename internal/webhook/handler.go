// AngelaMos | 2026
// handler.go

package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
	"github.com/carterperez-dev/templates/checkout-backend/internal/purchase"
)

const (
	TokenHeader     = "X-Callback-Token"
	CallbackPath    = "/payments/callback"
	dedupeKeyPrefix = "webhook:seen:"

	defaultDedupeTTL    = 24 * time.Hour
	defaultMaxBodyBytes = 1 << 20
)

type Reconciler interface {
	HandleCallback(ctx context.Context, cb purchase.Callback) (*purchase.ReconcileResult, error)
}

// Deduper remembers callback bodies already processed.
type Deduper interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Config struct {
	CallbackToken string
	EnforceToken  bool
	DedupeTTL     time.Duration
	MaxBodyBytes  int64
}

type Handler struct {
	reconciler Reconciler
	deduper    Deduper
	cfg        Config
	logger     *slog.Logger
}

func NewHandler(reconciler Reconciler, deduper Deduper, cfg Config, logger *slog.Logger) *Handler {
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = defaultDedupeTTL
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		reconciler: reconciler,
		deduper:    deduper,
		cfg:        cfg,
		logger:     logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post(CallbackPath, h.Callback)
}

// Ack is the body returned to the provider. Anything but a 2xx makes the
// provider redeliver.
type Ack struct {
	Status  string `json:"status"`
	Outcome string `json:"outcome,omitempty"`
}

const (
	AckProcessed = "processed"
	AckIgnored   = "ignored"
	AckDuplicate = "duplicate"
	AckRejected  = "rejected"
)

func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !core.TokenEquals(r.Header.Get(TokenHeader), h.cfg.CallbackToken) {
		if h.cfg.EnforceToken {
			h.logger.WarnContext(ctx, "callback rejected, bad token", "remote_addr", r.RemoteAddr)
			core.Unauthorized(w, "invalid callback token")
			return
		}
		h.logger.WarnContext(ctx, "callback token mismatch, accepting outside production",
			"remote_addr", r.RemoteAddr,
		)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		core.BadRequest(w, "unreadable callback body")
		return
	}

	cb, err := ParseCallback(body)
	if err != nil {
		h.logger.WarnContext(ctx, "callback payload ignored", "error", err)
		core.JSON(w, http.StatusOK, Ack{Status: AckIgnored})
		return
	}

	key := dedupeKeyPrefix + core.HashBytes(body)
	if h.deduper != nil {
		first, err := h.deduper.Claim(ctx, key, h.cfg.DedupeTTL)
		switch {
		case err != nil:
			h.logger.WarnContext(ctx, "callback dedupe unavailable", "error", err)
		case !first:
			h.logger.InfoContext(ctx, "duplicate callback dropped",
				"purchase_id", cb.PurchaseID,
				"reference", cb.ProviderReference,
			)
			core.JSON(w, http.StatusOK, Ack{Status: AckDuplicate})
			return
		}
	}

	res, err := h.reconciler.HandleCallback(ctx, cb)
	switch {
	case errors.Is(err, purchase.ErrPurchaseNotFound):
		h.logger.WarnContext(ctx, "callback for unknown purchase",
			"purchase_id", cb.PurchaseID,
			"reference", cb.ProviderReference,
			"status", cb.RawStatus,
		)
		core.JSON(w, http.StatusOK, Ack{Status: AckIgnored})
		return

	case errors.Is(err, purchase.ErrPurchaseClosed):
		core.JSON(w, http.StatusOK, Ack{Status: AckRejected})
		return

	case err != nil:
		h.release(ctx, key)
		core.InternalServerError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "callback processed",
		"purchase_id", res.Purchase.ID,
		"status", cb.RawStatus,
		"outcome", res.Outcome,
	)
	core.JSON(w, http.StatusOK, Ack{Status: AckProcessed, Outcome: string(res.Outcome)})
}

func (h *Handler) release(ctx context.Context, key string) {
	if h.deduper == nil {
		return
	}
	if err := h.deduper.Release(context.WithoutCancel(ctx), key); err != nil {
		h.logger.WarnContext(ctx, "callback dedupe release failed", "error", err)
	}
}
