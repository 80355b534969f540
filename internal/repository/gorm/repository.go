package gormrepository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"investfolio/internal/models"
	"investfolio/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Portfolios & assets ------------------------------------------------------

func (s *Store) ListPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Portfolio
	if err := s.db.WithContext(ctx).
		Model(&models.Portfolio{}).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetPortfolioByID(ctx context.Context, id uint64) (*models.Portfolio, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.Portfolio
	err := s.db.WithContext(ctx).Model(&models.Portfolio{}).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetAssetByID(ctx context.Context, id uint64) (*models.Asset, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.Asset
	err := s.db.WithContext(ctx).
		Model(&models.Asset{}).
		Preload("FixedIncome").
		Where("id = ?", id).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListAssetsByIDs(ctx context.Context, ids []uint64) ([]models.Asset, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.Asset
	if err := s.db.WithContext(ctx).
		Model(&models.Asset{}).
		Preload("FixedIncome").
		Where("id IN ?", ids).
		Order("ticker asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Market indexes -----------------------------------------------------------

func (s *Store) GetMarketIndexByID(ctx context.Context, id uint64) (*models.MarketIndex, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.MarketIndex
	err := s.db.WithContext(ctx).Model(&models.MarketIndex{}).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetMarketIndexBySymbol(ctx context.Context, symbol string) (*models.MarketIndex, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if symbol == "" {
		return nil, nil
	}
	var item models.MarketIndex
	err := s.db.WithContext(ctx).Model(&models.MarketIndex{}).Where("symbol = ?", symbol).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListMarketIndexes(ctx context.Context) ([]models.MarketIndex, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.MarketIndex
	if err := s.db.WithContext(ctx).
		Model(&models.MarketIndex{}).
		Order("symbol asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateMarketIndex(ctx context.Context, item *models.MarketIndex) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListIndexHistory(ctx context.Context, indexID uint64, since *time.Time) ([]models.IndexHistory, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if indexID == 0 {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.IndexHistory{}).
		Where("index_id = ?", indexID)
	if since != nil && !since.IsZero() {
		query = query.Where("date >= ?", since.UTC())
	}
	var items []models.IndexHistory
	if err := query.Order("date asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetLatestIndexHistory(ctx context.Context, indexID uint64) (*models.IndexHistory, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if indexID == 0 {
		return nil, nil
	}
	var item models.IndexHistory
	err := s.db.WithContext(ctx).
		Model(&models.IndexHistory{}).
		Where("index_id = ?", indexID).
		Order("date desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertIndexHistory(ctx context.Context, items []models.IndexHistory) error {
	if s == nil || s.db == nil {
		return nil
	}
	if len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "index_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"close", "raw"}),
	}).CreateInBatches(items, 500).Error
}

// --- Transactions -------------------------------------------------------------

func (s *Store) GetTransactionByID(ctx context.Context, id uint64) (*models.Transaction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.Transaction
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTransactions(ctx context.Context, params repository.ListTransactionsParams) ([]models.Transaction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Transaction{})
	if params.PortfolioID > 0 {
		query = query.Where("transactions.portfolio_id = ?", params.PortfolioID)
	}
	if params.AssetID != nil && *params.AssetID > 0 {
		query = query.Where("transactions.asset_id = ?", *params.AssetID)
	}
	if len(params.AssetClasses) > 0 {
		query = query.Joins("JOIN assets ON assets.id = transactions.asset_id").
			Where("assets.class IN ?", params.AssetClasses)
	}
	if params.CurrencyCode != nil && *params.CurrencyCode != "" {
		query = query.Where("transactions.currency_code = ?", *params.CurrencyCode)
	}
	var items []models.Transaction
	if err := query.Order("transactions.date asc, transactions.id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListTransactionAssetIDs(ctx context.Context, portfolioID uint64) ([]uint64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if portfolioID == 0 {
		return nil, nil
	}
	var ids []uint64
	err := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("portfolio_id = ?", portfolioID).
		Distinct().
		Order("asset_id asc").
		Pluck("asset_id", &ids).Error
	return ids, err
}

func (s *Store) ListPortfolioIDsByAsset(ctx context.Context, assetID uint64) ([]uint64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if assetID == 0 {
		return nil, nil
	}
	var ids []uint64
	err := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("asset_id = ?", assetID).
		Distinct().
		Order("portfolio_id asc").
		Pluck("portfolio_id", &ids).Error
	return ids, err
}

func (s *Store) CreateTransaction(ctx context.Context, item *models.Transaction) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateTransaction(ctx context.Context, item *models.Transaction) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) DeleteTransaction(ctx context.Context, id uint64) error {
	if s == nil || s.db == nil {
		return nil
	}
	if id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Transaction{}).Error
}

// --- Dividends ----------------------------------------------------------------

func (s *Store) GetDividendByID(ctx context.Context, id uint64) (*models.Dividend, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.Dividend
	err := s.db.WithContext(ctx).Model(&models.Dividend{}).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListDividends(ctx context.Context, portfolioID uint64, assetID *uint64) ([]models.Dividend, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Dividend{})
	if portfolioID > 0 {
		query = query.Where("portfolio_id = ?", portfolioID)
	}
	if assetID != nil && *assetID > 0 {
		query = query.Where("asset_id = ?", *assetID)
	}
	var items []models.Dividend
	if err := query.Order("date asc, id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateDividend(ctx context.Context, item *models.Dividend) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateDividend(ctx context.Context, item *models.Dividend) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) DeleteDividend(ctx context.Context, id uint64) error {
	if s == nil || s.db == nil {
		return nil
	}
	if id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Dividend{}).Error
}

// --- Corporate events ---------------------------------------------------------

func (s *Store) ListEvents(ctx context.Context) ([]models.CorporateEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.CorporateEvent
	if err := s.db.WithContext(ctx).
		Model(&models.CorporateEvent{}).
		Order("date asc, id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListEventsByAssetID(ctx context.Context, assetID uint64) ([]models.CorporateEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if assetID == 0 {
		return nil, nil
	}
	var items []models.CorporateEvent
	if err := s.db.WithContext(ctx).
		Model(&models.CorporateEvent{}).
		Where("asset_id = ?", assetID).
		Order("date asc, id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetEventByID(ctx context.Context, id uint64) (*models.CorporateEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.CorporateEvent
	err := s.db.WithContext(ctx).Model(&models.CorporateEvent{}).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateEvent(ctx context.Context, item *models.CorporateEvent) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) DeleteEvent(ctx context.Context, id uint64) error {
	if s == nil || s.db == nil {
		return nil
	}
	if id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.CorporateEvent{}).Error
}

// --- Positions ----------------------------------------------------------------

func (s *Store) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Position{})
	if params.PortfolioID > 0 {
		query = query.Where("portfolio_id = ?", params.PortfolioID)
	}
	if params.AssetID != nil && *params.AssetID > 0 {
		query = query.Where("asset_id = ?", *params.AssetID)
	}
	if len(params.AssetIDs) > 0 {
		query = query.Where("asset_id IN ?", params.AssetIDs)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("date >= ?", params.Since.UTC())
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("date <= ?", params.Until.UTC())
	}
	var items []models.Position
	if err := query.Order("asset_id asc, date asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListLatestPositions(ctx context.Context, portfolioID uint64) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if portfolioID == 0 {
		return nil, nil
	}
	sub := s.db.
		Model(&models.Position{}).
		Select("asset_id, MAX(date) AS max_date").
		Where("portfolio_id = ?", portfolioID).
		Group("asset_id")
	var items []models.Position
	if err := s.db.WithContext(ctx).
		Model(&models.Position{}).
		Joins("JOIN (?) AS latest ON latest.asset_id = positions.asset_id AND latest.max_date = positions.date", sub).
		Where("positions.portfolio_id = ?", portfolioID).
		Order("positions.asset_id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListRecentPositionAssetIDs(ctx context.Context, portfolioID uint64, window time.Duration) ([]uint64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if portfolioID == 0 {
		return nil, nil
	}
	since := time.Now().UTC().Add(-window)
	var ids []uint64
	err := s.db.WithContext(ctx).
		Model(&models.Position{}).
		Where("portfolio_id = ?", portfolioID).
		Where("date >= ?", since).
		Distinct().
		Order("asset_id asc").
		Pluck("asset_id", &ids).Error
	return ids, err
}

func (s *Store) DeletePositions(ctx context.Context, portfolioID, assetID uint64) error {
	if s == nil || s.db == nil {
		return nil
	}
	if portfolioID == 0 || assetID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("portfolio_id = ? AND asset_id = ?", portfolioID, assetID).
		Delete(&models.Position{}).Error
}

func (s *Store) DeletePositionsTx(ctx context.Context, tx *gorm.DB, portfolioID, assetID uint64) error {
	if tx == nil {
		return nil
	}
	if portfolioID == 0 || assetID == 0 {
		return nil
	}
	return tx.WithContext(ctx).
		Where("portfolio_id = ? AND asset_id = ?", portfolioID, assetID).
		Delete(&models.Position{}).Error
}

func (s *Store) UpsertPositionsTx(ctx context.Context, tx *gorm.DB, items []models.Position) error {
	if tx == nil {
		return nil
	}
	if len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "portfolio_id"}, {Name: "asset_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"quantity",
			"price",
			"average_price",
			"daily_return",
			"acc_return",
			"twelve_months_return",
			"price_usd",
			"average_price_usd",
			"daily_return_usd",
			"acc_return_usd",
			"twelve_months_return_usd",
			"updated_at",
		}),
	}).CreateInBatches(items, 500).Error
}

// --- Categories ---------------------------------------------------------------

func (s *Store) ListCategories(ctx context.Context, portfolioID uint64) ([]models.Category, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Category{})
	if portfolioID > 0 {
		query = query.Where("portfolio_id = ?", portfolioID)
	}
	var items []models.Category
	if err := query.Order("name asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateCategory(ctx context.Context, item *models.Category) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateCategory(ctx context.Context, item *models.Category) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) DeleteCategory(ctx context.Context, id uint64) error {
	if s == nil || s.db == nil {
		return nil
	}
	if id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category_id = ?", id).Delete(&models.CategoryAssignment{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Category{}).Error
	})
}

// AssignCategory moves the asset to the given category, replacing any
// assignment it had in other categories of the same portfolio.
func (s *Store) AssignCategory(ctx context.Context, portfolioID, categoryID, assetID uint64) error {
	if s == nil || s.db == nil {
		return nil
	}
	if portfolioID == 0 || categoryID == 0 || assetID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("asset_id = ?", assetID).
			Where("category_id IN (?)", tx.Model(&models.Category{}).
				Select("id").
				Where("portfolio_id = ?", portfolioID)).
			Delete(&models.CategoryAssignment{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.CategoryAssignment{CategoryID: categoryID, AssetID: assetID}).Error
	})
}

func (s *Store) CategoryNamesByAsset(ctx context.Context, portfolioID uint64) (map[uint64]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if portfolioID == 0 {
		return map[uint64]string{}, nil
	}
	var rows []struct {
		AssetID uint64
		Name    string
	}
	if err := s.db.WithContext(ctx).
		Table("category_assignments AS ca").
		Select("ca.asset_id AS asset_id, c.name AS name").
		Joins("JOIN categories AS c ON c.id = ca.category_id").
		Where("c.portfolio_id = ?", portfolioID).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := map[uint64]string{}
	for _, r := range rows {
		out[r.AssetID] = r.Name
	}
	return out, nil
}
