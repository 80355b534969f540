package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"investfolio/internal/models"
	"investfolio/internal/repository"
	"investfolio/internal/timeseries"
)

// EventService mutates corporate events. An event restates position
// quantities for every portfolio holding the asset, so mutations
// re-consolidate each of those pairs and drop their cached aggregates.
type EventService struct {
	Repo      repository.Repository
	Engine    Reconsolidator
	Positions *PositionService
	Logger    *zap.Logger
}

func (s *EventService) log() *zap.Logger {
	if s == nil || s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *EventService) List(ctx context.Context, assetID *uint64) ([]models.CorporateEvent, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	if assetID != nil {
		return s.Repo.ListEventsByAssetID(ctx, *assetID)
	}
	return s.Repo.ListEvents(ctx)
}

func (s *EventService) Create(ctx context.Context, item *models.CorporateEvent) error {
	if s == nil || s.Repo == nil || item == nil {
		return nil
	}
	item.Date = timeseries.Day(item.Date)
	if err := s.Repo.CreateEvent(ctx, item); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	s.refresh(ctx, item.AssetID)
	return nil
}

func (s *EventService) Delete(ctx context.Context, id uint64) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	prev, err := s.Repo.GetEventByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load event %d: %w", id, err)
	}
	if prev == nil {
		return nil
	}
	if err := s.Repo.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	s.refresh(ctx, prev.AssetID)
	return nil
}

func (s *EventService) refresh(ctx context.Context, assetID uint64) {
	portfolioIDs, err := s.Repo.ListPortfolioIDsByAsset(ctx, assetID)
	if err != nil {
		s.log().Warn("portfolio lookup after event mutation failed",
			zap.Uint64("asset_id", assetID),
			zap.Error(err))
		return
	}
	for _, portfolioID := range portfolioIDs {
		if s.Engine != nil {
			if err := s.Engine.RecalculateAsset(ctx, portfolioID, assetID); err != nil {
				s.log().Warn("re-consolidation after event mutation failed",
					zap.Uint64("portfolio_id", portfolioID),
					zap.Uint64("asset_id", assetID),
					zap.Error(err))
			}
		}
		if s.Positions != nil {
			s.Positions.InvalidateCaches(ctx, portfolioID)
		}
	}
}
