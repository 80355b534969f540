package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one buy (positive quantity) or sell (negative quantity) of
// an asset, priced per unit in the broker's currency. Any mutation must
// trigger re-consolidation of the (portfolio, asset) position history.
type Transaction struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PortfolioID uint64    `gorm:"not null;index:idx_transactions_portfolio_asset,priority:1" json:"portfolio_id"`
	AssetID     uint64    `gorm:"not null;index:idx_transactions_portfolio_asset,priority:2" json:"asset_id"`
	BrokerID    uint64    `gorm:"index" json:"broker_id"`
	Date        time.Time `gorm:"type:date;not null;index" json:"date"`

	Quantity     decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"quantity"`
	Price        decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"price"`
	CurrencyCode string          `gorm:"type:varchar(3);not null;default:'BRL'" json:"currency_code"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Dividend is a cash amount received on a holding at a date. It enters the
// return calculation as yield, never as a quantity change.
type Dividend struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	PortfolioID uint64          `gorm:"not null;index:idx_dividends_portfolio_asset,priority:1" json:"portfolio_id"`
	AssetID     uint64          `gorm:"not null;index:idx_dividends_portfolio_asset,priority:2" json:"asset_id"`
	Date        time.Time       `gorm:"type:date;not null;index" json:"date"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"amount"`
}

func (Dividend) TableName() string {
	return "dividends"
}

// CorporateEvent is a retroactive multiplicative adjustment (split) on all
// transactions of an asset dated strictly before the event date.
type CorporateEvent struct {
	ID      uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	AssetID uint64          `gorm:"not null;index" json:"asset_id"`
	Date    time.Time       `gorm:"type:date;not null" json:"date"`
	Factor  decimal.Decimal `gorm:"type:numeric(12,6);not null" json:"factor"`
	Kind    string          `gorm:"type:varchar(20);not null;default:'split'" json:"kind"`
}

func (CorporateEvent) TableName() string {
	return "corporate_events"
}
