// AngelaMos | 2026
// entity.go

package product

import (
	"time"
)

type Product struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Price     int64     `db:"price"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

const (
	StatusActive   = "ACTIVE"
	StatusArchived = "ARCHIVED"
)

func (p *Product) IsPurchasable() bool {
	return p.Status == StatusActive
}
