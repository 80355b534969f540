package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is one materialized day of one holding, duplicated across the BRL
// and USD valuation tracks. Rows are fully recomputed per (portfolio, asset)
// on every consolidation run; uniqueness on (portfolio_id, asset_id, date) is
// a hard invariant enforced by upsert.
type Position struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	PortfolioID uint64    `gorm:"not null;uniqueIndex:idx_positions_key,priority:1" json:"portfolio_id"`
	AssetID     uint64    `gorm:"not null;uniqueIndex:idx_positions_key,priority:2" json:"asset_id"`
	Date        time.Time `gorm:"type:date;not null;uniqueIndex:idx_positions_key,priority:3" json:"date"`

	Quantity decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"quantity"`

	Price              decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"price"`
	AveragePrice       decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"average_price"`
	DailyReturn        float64         `gorm:"type:numeric(20,10);not null;default:0" json:"daily_return"`
	AccReturn          float64         `gorm:"type:numeric(20,10);not null;default:0" json:"acc_return"`
	TwelveMonthsReturn *float64        `gorm:"type:numeric(20,10)" json:"twelve_months_return"`

	PriceUSD              decimal.Decimal `gorm:"column:price_usd;type:numeric(20,10);not null" json:"price_usd"`
	AveragePriceUSD       decimal.Decimal `gorm:"column:average_price_usd;type:numeric(20,10);not null" json:"average_price_usd"`
	DailyReturnUSD        float64         `gorm:"column:daily_return_usd;type:numeric(20,10);not null;default:0" json:"daily_return_usd"`
	AccReturnUSD          float64         `gorm:"column:acc_return_usd;type:numeric(20,10);not null;default:0" json:"acc_return_usd"`
	TwelveMonthsReturnUSD *float64        `gorm:"column:twelve_months_return_usd;type:numeric(20,10)" json:"twelve_months_return_usd"`

	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"-"`
}

func (Position) TableName() string {
	return "positions"
}
