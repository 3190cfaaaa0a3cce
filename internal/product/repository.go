// AngelaMos | 2026
// repository.go

package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
)

type Repository interface {
	ListForCheckout(ctx context.Context, ids []string) ([]Product, error)
	ListByIDs(ctx context.Context, ids []string) ([]Product, error)
	UpdateStatus(ctx context.Context, id, status string) (*Product, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const productColumns = `id, title, price, status, created_at, updated_at`

// ListForCheckout reads the authoritative rows for ids and share-locks them,
// so an archive that races a checkout waits for the checkout transaction.
// Outside a transaction the lock is released immediately.
func (r *repository) ListForCheckout(
	ctx context.Context,
	ids []string,
) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		`SELECT `+productColumns+` FROM products WHERE id IN (?) ORDER BY id FOR SHARE`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("build checkout product query: %w", err)
	}

	var products []Product
	if err := r.db.SelectContext(ctx, &products, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list checkout products: %w", err)
	}

	return products, nil
}

func (r *repository) ListByIDs(
	ctx context.Context,
	ids []string,
) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		`SELECT `+productColumns+` FROM products WHERE id IN (?) ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("build product query: %w", err)
	}

	var products []Product
	if err := r.db.SelectContext(ctx, &products, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return products, nil
}

func (r *repository) UpdateStatus(
	ctx context.Context,
	id, status string,
) (*Product, error) {
	query := `
		UPDATE products
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	var p Product
	err := r.db.GetContext(ctx, &p, query, id, status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update product status: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update product status: %w", err)
	}

	return &p, nil
}
