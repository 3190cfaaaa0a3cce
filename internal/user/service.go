// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Contact resolves the name and address a receipt for userID goes to.
func (s *Service) Contact(ctx context.Context, userID string) (string, string, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("resolve contact: %w", err)
	}
	return u.Name, u.Email, nil
}
