// AngelaMos | 2026
// store.go

package purchase

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/checkout-backend/internal/activity"
	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
	"github.com/carterperez-dev/templates/checkout-backend/internal/entitlement"
	"github.com/carterperez-dev/templates/checkout-backend/internal/product"
)

const txAttempts = 3

// Store groups the repositories a checkout touches so a unit of work can
// run them against one transaction.
type Store interface {
	Purchases() Repository
	Products() product.Repository
	Entitlements() entitlement.Repository
	Activity() activity.Repository
	InTx(ctx context.Context, fn func(tx Store) error) error
}

type sqlStore struct {
	db *sqlx.DB
	q  core.DBTX
}

func NewStore(db *sqlx.DB) Store {
	return &sqlStore{db: db, q: db}
}

func (s *sqlStore) Purchases() Repository {
	return NewRepository(s.q)
}

func (s *sqlStore) Products() product.Repository {
	return product.NewRepository(s.q)
}

func (s *sqlStore) Entitlements() entitlement.Repository {
	return entitlement.NewRepository(s.q)
}

func (s *sqlStore) Activity() activity.Repository {
	return activity.NewRepository(s.q)
}

// InTx runs fn in a serialization-retrying transaction. Nested calls reuse
// the outer transaction.
func (s *sqlStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if _, ok := s.q.(*sqlx.Tx); ok {
		return fn(s)
	}

	return core.InTxWithRetry(ctx, s.db, txAttempts, func(tx *sqlx.Tx) error {
		return fn(&sqlStore{db: s.db, q: tx})
	})
}
