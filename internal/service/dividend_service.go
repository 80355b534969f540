package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"investfolio/internal/models"
	"investfolio/internal/repository"
	"investfolio/internal/timeseries"
)

// DividendService mutates dividend rows. Dividends feed the return
// aggregation and the fixed-income price model, so mutations re-consolidate
// the pair and drop cached aggregates.
type DividendService struct {
	Repo      repository.Repository
	Engine    Reconsolidator
	Positions *PositionService
	Logger    *zap.Logger
}

func (s *DividendService) log() *zap.Logger {
	if s == nil || s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *DividendService) List(ctx context.Context, portfolioID uint64, assetID *uint64) ([]models.Dividend, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListDividends(ctx, portfolioID, assetID)
}

func (s *DividendService) Create(ctx context.Context, item *models.Dividend) error {
	if s == nil || s.Repo == nil || item == nil {
		return nil
	}
	item.Date = timeseries.Day(item.Date)
	if err := s.Repo.CreateDividend(ctx, item); err != nil {
		return fmt.Errorf("create dividend: %w", err)
	}
	s.refresh(ctx, item.PortfolioID, item.AssetID)
	return nil
}

func (s *DividendService) Update(ctx context.Context, item *models.Dividend) error {
	if s == nil || s.Repo == nil || item == nil || item.ID == 0 {
		return nil
	}
	item.Date = timeseries.Day(item.Date)
	if err := s.Repo.UpdateDividend(ctx, item); err != nil {
		return fmt.Errorf("update dividend %d: %w", item.ID, err)
	}
	s.refresh(ctx, item.PortfolioID, item.AssetID)
	return nil
}

func (s *DividendService) Delete(ctx context.Context, id uint64) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	prev, err := s.Repo.GetDividendByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load dividend %d: %w", id, err)
	}
	if prev == nil {
		return nil
	}
	if err := s.Repo.DeleteDividend(ctx, id); err != nil {
		return fmt.Errorf("delete dividend %d: %w", id, err)
	}
	s.refresh(ctx, prev.PortfolioID, prev.AssetID)
	return nil
}

func (s *DividendService) refresh(ctx context.Context, portfolioID, assetID uint64) {
	if s.Engine != nil {
		if err := s.Engine.RecalculateAsset(ctx, portfolioID, assetID); err != nil {
			s.log().Warn("re-consolidation after dividend mutation failed",
				zap.Uint64("portfolio_id", portfolioID),
				zap.Uint64("asset_id", assetID),
				zap.Error(err))
		}
	}
	if s.Positions != nil {
		s.Positions.InvalidateCaches(ctx, portfolioID)
	}
}
