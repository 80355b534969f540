package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"investfolio/internal/models"
)

type ListTransactionsParams struct {
	PortfolioID  uint64
	AssetID      *uint64
	AssetClasses []string
	CurrencyCode *string
}

type ListPositionsParams struct {
	PortfolioID uint64
	AssetID     *uint64
	AssetIDs    []uint64
	Since       *time.Time
	Until       *time.Time
}

// Repository is the persistence port of the consolidation engine and the
// surrounding services: filtered reads, bulk upserts keyed on unique columns,
// and delete-by-filter, plus a transaction scope for atomic replace.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Portfolios and assets.
	ListPortfolios(ctx context.Context) ([]models.Portfolio, error)
	GetPortfolioByID(ctx context.Context, id uint64) (*models.Portfolio, error)
	GetAssetByID(ctx context.Context, id uint64) (*models.Asset, error)
	ListAssetsByIDs(ctx context.Context, ids []uint64) ([]models.Asset, error)

	// Market indexes and their daily history.
	GetMarketIndexByID(ctx context.Context, id uint64) (*models.MarketIndex, error)
	GetMarketIndexBySymbol(ctx context.Context, symbol string) (*models.MarketIndex, error)
	ListMarketIndexes(ctx context.Context) ([]models.MarketIndex, error)
	CreateMarketIndex(ctx context.Context, item *models.MarketIndex) error
	ListIndexHistory(ctx context.Context, indexID uint64, since *time.Time) ([]models.IndexHistory, error)
	GetLatestIndexHistory(ctx context.Context, indexID uint64) (*models.IndexHistory, error)
	UpsertIndexHistory(ctx context.Context, items []models.IndexHistory) error

	// Transactions.
	GetTransactionByID(ctx context.Context, id uint64) (*models.Transaction, error)
	ListTransactions(ctx context.Context, params ListTransactionsParams) ([]models.Transaction, error)
	ListTransactionAssetIDs(ctx context.Context, portfolioID uint64) ([]uint64, error)
	ListPortfolioIDsByAsset(ctx context.Context, assetID uint64) ([]uint64, error)
	CreateTransaction(ctx context.Context, item *models.Transaction) error
	UpdateTransaction(ctx context.Context, item *models.Transaction) error
	DeleteTransaction(ctx context.Context, id uint64) error

	// Dividends.
	GetDividendByID(ctx context.Context, id uint64) (*models.Dividend, error)
	ListDividends(ctx context.Context, portfolioID uint64, assetID *uint64) ([]models.Dividend, error)
	CreateDividend(ctx context.Context, item *models.Dividend) error
	UpdateDividend(ctx context.Context, item *models.Dividend) error
	DeleteDividend(ctx context.Context, id uint64) error

	// Corporate events.
	ListEvents(ctx context.Context) ([]models.CorporateEvent, error)
	ListEventsByAssetID(ctx context.Context, assetID uint64) ([]models.CorporateEvent, error)
	GetEventByID(ctx context.Context, id uint64) (*models.CorporateEvent, error)
	CreateEvent(ctx context.Context, item *models.CorporateEvent) error
	DeleteEvent(ctx context.Context, id uint64) error

	// Positions. The *Tx variants run inside an InTx scope so a
	// consolidation run replaces an asset's rows atomically.
	ListPositions(ctx context.Context, params ListPositionsParams) ([]models.Position, error)
	ListLatestPositions(ctx context.Context, portfolioID uint64) ([]models.Position, error)
	ListRecentPositionAssetIDs(ctx context.Context, portfolioID uint64, window time.Duration) ([]uint64, error)
	DeletePositions(ctx context.Context, portfolioID, assetID uint64) error
	DeletePositionsTx(ctx context.Context, tx *gorm.DB, portfolioID, assetID uint64) error
	UpsertPositionsTx(ctx context.Context, tx *gorm.DB, items []models.Position) error

	// Categories.
	ListCategories(ctx context.Context, portfolioID uint64) ([]models.Category, error)
	CreateCategory(ctx context.Context, item *models.Category) error
	UpdateCategory(ctx context.Context, item *models.Category) error
	DeleteCategory(ctx context.Context, id uint64) error
	AssignCategory(ctx context.Context, portfolioID, categoryID, assetID uint64) error
	CategoryNamesByAsset(ctx context.Context, portfolioID uint64) (map[uint64]string, error)
}
