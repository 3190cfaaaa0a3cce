// AngelaMos | 2026
// activity.go

package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
)

type Action string

const (
	ActionPurchaseCreated     Action = "PURCHASE_CREATED"
	ActionPaymentInitiated    Action = "PAYMENT_INITIATED"
	ActionPaymentIntentFailed Action = "PAYMENT_INTENT_FAILED"
	ActionPurchaseCompleted   Action = "PURCHASE_COMPLETED"
	ActionPurchaseFailed      Action = "PURCHASE_FAILED"
	ActionReconcileRejected   Action = "RECONCILE_REJECTED"
)

type Entry struct {
	UserID  string
	Action  Action
	Details map[string]any
}

// Repository is append-only. Nothing in the checkout core reads the log back.
type Repository interface {
	Append(ctx context.Context, entry Entry) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Append(ctx context.Context, entry Entry) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}

	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode activity details: %w", err)
	}

	var userID *string
	if entry.UserID != "" {
		userID = &entry.UserID
	}

	query := `
		INSERT INTO activity_logs (user_id, action, details)
		VALUES ($1, $2, $3::jsonb)`

	if _, err := r.db.ExecContext(ctx, query, userID, string(entry.Action), string(payload)); err != nil {
		return fmt.Errorf("append activity %s: %w", entry.Action, err)
	}

	return nil
}
