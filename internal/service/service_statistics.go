package service

import (
	"context"

	"github.com/shopspring/decimal"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
)

func (s *Service) Statistics(ctx context.Context, auth ports.AuthContext) (domain.Statistics, error) {
	if err := requireStaff(auth); err != nil {
		return domain.Statistics{}, err
	}
	stats, err := s.repo.Statistics(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}
	stats.SharesValue = s.config.SharePrice.Mul(decimal.NewFromInt(int64(stats.SharesTotal)))
	return stats, nil
}
