// AngelaMos | 2026
// repository.go

package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
)

type Repository interface {
	Grant(
		ctx context.Context,
		userID, purchaseID string,
		productIDs []string,
		at time.Time,
	) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]OwnedProduct, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Grant inserts one row per product and silently skips pairs the user
// already owns. It returns how many new rows were written.
func (r *repository) Grant(
	ctx context.Context,
	userID, purchaseID string,
	productIDs []string,
	at time.Time,
) (int64, error) {
	query := `
		INSERT INTO user_products (user_id, product_id, purchase_id, purchased_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id) DO NOTHING`

	var granted int64
	for _, productID := range productIDs {
		res, err := r.db.ExecContext(ctx, query, userID, productID, purchaseID, at)
		if err != nil {
			return granted, fmt.Errorf("grant entitlement %s: %w", productID, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return granted, fmt.Errorf("grant entitlement rows affected: %w", err)
		}
		granted += n
	}

	return granted, nil
}

func (r *repository) ListByUser(
	ctx context.Context,
	userID string,
) ([]OwnedProduct, error) {
	query := `
		SELECT up.product_id, p.title, p.status, up.purchase_id, up.purchased_at
		FROM user_products up
		JOIN products p ON p.id = up.product_id
		WHERE up.user_id = $1
		ORDER BY up.purchased_at DESC`

	owned := []OwnedProduct{}
	if err := r.db.SelectContext(ctx, &owned, query, userID); err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}

	return owned, nil
}
