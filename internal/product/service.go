// AngelaMos | 2026
// service.go

package product

import (
	"context"
	"log/slog"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Archive takes a product off sale. Existing entitlements are untouched and
// pending purchases that already captured it can still complete.
func (s *Service) Archive(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.UpdateStatus(ctx, id, StatusArchived)
	if err != nil {
		return nil, err
	}

	s.logger.Info("product archived", "product_id", p.ID)
	return p, nil
}

func (s *Service) Restore(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.UpdateStatus(ctx, id, StatusActive)
	if err != nil {
		return nil, err
	}

	s.logger.Info("product restored", "product_id", p.ID)
	return p, nil
}
