// AngelaMos | 2026
// repository.go

package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
	"github.com/carterperez-dev/templates/checkout-backend/internal/gateway"
)

type Repository interface {
	Create(ctx context.Context, p *Purchase) error
	GetByID(ctx context.Context, id string) (*Purchase, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*Purchase, error)
	ListItems(ctx context.Context, purchaseID string) ([]Item, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Purchase, int, error)
	AttachIntent(
		ctx context.Context,
		id string,
		method gateway.Method,
		reference string,
		expiresAt time.Time,
	) (*Purchase, bool, error)
	MarkCompleted(
		ctx context.Context,
		id, providerTxID string,
		at time.Time,
	) (*Purchase, bool, error)
	MarkFailed(
		ctx context.Context,
		id, reason string,
		at time.Time,
	) (*Purchase, bool, error)
	ListExpiredPending(
		ctx context.Context,
		intentCutoff, unpaidCutoff time.Time,
		limit int,
	) ([]Purchase, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const purchaseColumns = `
	id, user_id, total_amount, payment_method, payment_status, transaction_id,
	payment_proof, expires_at, completed_at, failed_at, failure_reason,
	contact_name, contact_email, contact_phone, ip_address, user_agent,
	created_at, updated_at`

func (r *repository) Create(ctx context.Context, p *Purchase) error {
	query := `
		INSERT INTO purchases (
			id, user_id, total_amount, payment_method, payment_status,
			contact_name, contact_email, contact_phone, ip_address, user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	row := r.db.QueryRowxContext(ctx, query,
		p.ID,
		p.UserID,
		p.TotalAmount,
		p.PaymentMethod,
		p.PaymentStatus,
		p.ContactName,
		p.ContactEmail,
		p.ContactPhone,
		p.IPAddress,
		p.UserAgent,
	)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create purchase: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create purchase: %w", err)
	}

	itemQuery := `
		INSERT INTO purchase_items (id, purchase_id, product_id, quantity, price_at_purchase)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	for i := range p.Items {
		item := &p.Items[i]
		item.PurchaseID = p.ID
		err := r.db.QueryRowxContext(ctx, itemQuery,
			item.ID,
			item.PurchaseID,
			item.ProductID,
			item.Quantity,
			item.PriceAtPurchase,
		).Scan(&item.CreatedAt)
		if err != nil {
			return fmt.Errorf("create purchase item %s: %w", item.ProductID, err)
		}
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = $1`
	return r.getOne(ctx, "get purchase", query, id)
}

func (r *repository) GetByTransactionID(
	ctx context.Context,
	transactionID string,
) (*Purchase, error) {
	query := `
		SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE transaction_id = $1
		   OR id = (SELECT purchase_id FROM payment_intents WHERE reference = $1)
		ORDER BY created_at DESC
		LIMIT 1`
	return r.getOne(ctx, "get purchase by transaction", query, transactionID)
}

func (r *repository) ListItems(
	ctx context.Context,
	purchaseID string,
) ([]Item, error) {
	query := `
		SELECT id, purchase_id, product_id, quantity, price_at_purchase, created_at
		FROM purchase_items
		WHERE purchase_id = $1
		ORDER BY created_at, id`

	items := []Item{}
	if err := r.db.SelectContext(ctx, &items, query, purchaseID); err != nil {
		return nil, fmt.Errorf("list purchase items: %w", err)
	}

	return items, nil
}

func (r *repository) ListByUser(
	ctx context.Context,
	userID string,
	limit, offset int,
) ([]Purchase, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM purchases WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("count purchases: %w", err)
	}

	query := `
		SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	purchases := []Purchase{}
	if err := r.db.SelectContext(ctx, &purchases, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list purchases: %w", err)
	}

	return purchases, total, nil
}

// AttachIntent records the provider reference of a freshly created payment
// intent. It only touches PENDING rows; the bool is false when the purchase
// settled first. The purchase row carries the newest intent, earlier
// references stay resolvable through payment_intents.
func (r *repository) AttachIntent(
	ctx context.Context,
	id string,
	method gateway.Method,
	reference string,
	expiresAt time.Time,
) (*Purchase, bool, error) {
	query := `
		UPDATE purchases
		SET payment_method = $2,
		    transaction_id = $3,
		    expires_at = $4,
		    updated_at = NOW()
		WHERE id = $1 AND payment_status = 'PENDING'
		RETURNING ` + purchaseColumns

	p, attached, err := r.transition(ctx, "attach payment intent", id, query, id, method, reference, expiresAt)
	if err != nil || !attached {
		return p, attached, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO payment_intents (reference, purchase_id, method, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (reference) DO NOTHING`,
		reference, id, method, expiresAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("record payment intent: %w", err)
	}

	return p, true, nil
}

// MarkCompleted is the PENDING to COMPLETED compare-and-swap. Exactly one
// caller gets changed=true for a purchase; everyone else receives the row
// as the winner left it.
func (r *repository) MarkCompleted(
	ctx context.Context,
	id, providerTxID string,
	at time.Time,
) (*Purchase, bool, error) {
	query := `
		UPDATE purchases
		SET payment_status = 'COMPLETED',
		    completed_at = $3,
		    transaction_id = COALESCE(transaction_id, NULLIF($2, '')),
		    updated_at = NOW()
		WHERE id = $1 AND payment_status = 'PENDING'
		RETURNING ` + purchaseColumns

	return r.transition(ctx, "mark purchase completed", id, query, id, providerTxID, at)
}

func (r *repository) MarkFailed(
	ctx context.Context,
	id, reason string,
	at time.Time,
) (*Purchase, bool, error) {
	query := `
		UPDATE purchases
		SET payment_status = 'FAILED',
		    failed_at = $3,
		    failure_reason = NULLIF($2, ''),
		    updated_at = NOW()
		WHERE id = $1 AND payment_status = 'PENDING'
		RETURNING ` + purchaseColumns

	return r.transition(ctx, "mark purchase failed", id, query, id, reason, at)
}

func (r *repository) ListExpiredPending(
	ctx context.Context,
	intentCutoff, unpaidCutoff time.Time,
	limit int,
) ([]Purchase, error) {
	query := `
		SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE payment_status = 'PENDING'
		  AND (
		    (expires_at IS NOT NULL AND expires_at < $1)
		    OR (expires_at IS NULL AND created_at < $2)
		  )
		ORDER BY created_at
		LIMIT $3`

	purchases := []Purchase{}
	if err := r.db.SelectContext(ctx, &purchases, query, intentCutoff, unpaidCutoff, limit); err != nil {
		return nil, fmt.Errorf("list expired purchases: %w", err)
	}

	return purchases, nil
}

func (r *repository) transition(
	ctx context.Context,
	op, id, query string,
	args ...any,
) (*Purchase, bool, error) {
	var p Purchase
	err := r.db.GetContext(ctx, &p, query, args...)
	if err == nil {
		return &p, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return current, false, nil
}

func (r *repository) getOne(
	ctx context.Context,
	op, query string,
	args ...any,
) (*Purchase, error) {
	var p Purchase
	err := r.db.GetContext(ctx, &p, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}
