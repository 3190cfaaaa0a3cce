// AngelaMos | 2026
// dto.go

package product

import (
	"time"
)

type ProductResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Price     int64     `json:"price"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ToProductResponse(p *Product) ProductResponse {
	return ProductResponse{
		ID:        p.ID,
		Title:     p.Title,
		Price:     p.Price,
		Status:    p.Status,
		UpdatedAt: p.UpdatedAt,
	}
}
