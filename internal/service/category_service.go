package service

import (
	"context"
	"fmt"

	"investfolio/internal/models"
	"investfolio/internal/repository"
)

// CategoryService manages reporting categories and their asset assignments.
// Categories only affect how aggregates are grouped, so mutations drop the
// cached payloads but never re-consolidate.
type CategoryService struct {
	Repo      repository.Repository
	Positions *PositionService
}

func (s *CategoryService) List(ctx context.Context, portfolioID uint64) ([]models.Category, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListCategories(ctx, portfolioID)
}

func (s *CategoryService) Create(ctx context.Context, item *models.Category) error {
	if s == nil || s.Repo == nil || item == nil {
		return nil
	}
	if err := s.Repo.CreateCategory(ctx, item); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (s *CategoryService) Update(ctx context.Context, item *models.Category) error {
	if s == nil || s.Repo == nil || item == nil || item.ID == 0 {
		return nil
	}
	if err := s.Repo.UpdateCategory(ctx, item); err != nil {
		return fmt.Errorf("update category %d: %w", item.ID, err)
	}
	s.invalidate(ctx, item.PortfolioID)
	return nil
}

func (s *CategoryService) Delete(ctx context.Context, portfolioID, id uint64) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	if err := s.Repo.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	s.invalidate(ctx, portfolioID)
	return nil
}

// Assign moves an asset into a category; the newest assignment wins.
func (s *CategoryService) Assign(ctx context.Context, portfolioID, categoryID, assetID uint64) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	if err := s.Repo.AssignCategory(ctx, portfolioID, categoryID, assetID); err != nil {
		return fmt.Errorf("assign asset %d to category %d: %w", assetID, categoryID, err)
	}
	s.invalidate(ctx, portfolioID)
	return nil
}

func (s *CategoryService) invalidate(ctx context.Context, portfolioID uint64) {
	if s.Positions != nil {
		s.Positions.InvalidateCaches(ctx, portfolioID)
	}
}
