// AngelaMos | 2026
// entity.go

package entitlement

import (
	"time"
)

// Entitlement is a durable grant of a product to a user. It outlives the
// product's catalog status.
type Entitlement struct {
	UserID      string    `db:"user_id"`
	ProductID   string    `db:"product_id"`
	PurchaseID  string    `db:"purchase_id"`
	PurchasedAt time.Time `db:"purchased_at"`
}

type OwnedProduct struct {
	ProductID     string    `db:"product_id"`
	Title         string    `db:"title"`
	ProductStatus string    `db:"status"`
	PurchaseID    string    `db:"purchase_id"`
	PurchasedAt   time.Time `db:"purchased_at"`
}
