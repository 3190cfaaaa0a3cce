// AngelaMos | 2026
// entity.go

package purchase

import (
	"time"

	"github.com/carterperez-dev/templates/checkout-backend/internal/gateway"
)

type Purchase struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	TotalAmount   int64          `db:"total_amount"`
	PaymentMethod gateway.Method `db:"payment_method"`
	PaymentStatus Status         `db:"payment_status"`
	TransactionID *string        `db:"transaction_id"`
	PaymentProof  *string        `db:"payment_proof"`
	ExpiresAt     *time.Time     `db:"expires_at"`
	CompletedAt   *time.Time     `db:"completed_at"`
	FailedAt      *time.Time     `db:"failed_at"`
	FailureReason *string        `db:"failure_reason"`
	ContactName   string         `db:"contact_name"`
	ContactEmail  string         `db:"contact_email"`
	ContactPhone  string         `db:"contact_phone"`
	IPAddress     string         `db:"ip_address"`
	UserAgent     string         `db:"user_agent"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`

	Items []Item `db:"-"`
}

// Item is a line of a purchase. PriceAtPurchase is the unit price captured
// when the purchase was created and never changes afterwards.
type Item struct {
	ID              string    `db:"id"`
	PurchaseID      string    `db:"purchase_id"`
	ProductID       string    `db:"product_id"`
	Quantity        int       `db:"quantity"`
	PriceAtPurchase int64     `db:"price_at_purchase"`
	CreatedAt       time.Time `db:"created_at"`
}

func (i Item) LineTotal() int64 {
	return i.PriceAtPurchase * int64(i.Quantity)
}

type Contact struct {
	Name  string
	Email string
	Phone string
}

func (p *Purchase) IsOwnedBy(userID string) bool {
	return userID != "" && p.UserID == userID
}

func (p *Purchase) Transaction() string {
	if p.TransactionID == nil {
		return ""
	}
	return *p.TransactionID
}

// ProductIDs returns the distinct products on the purchase in item order.
func (p *Purchase) ProductIDs() []string {
	seen := make(map[string]struct{}, len(p.Items))
	ids := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
