package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset classes drive pricing strategy and tax treatment. Fixed-income and
// treasury assets are priced by the synthetic model; everything else comes
// from the market-data provider.
const (
	AssetClassStock       = "stock"
	AssetClassETF         = "etf"
	AssetClassBDR         = "bdr"
	AssetClassFII         = "fii"
	AssetClassCrypto      = "crypto"
	AssetClassFixedIncome = "fixed_income"
	AssetClassTreasury    = "treasury"
)

type Asset struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Ticker       string    `gorm:"type:varchar(30);not null;uniqueIndex" json:"ticker"`
	Name         string    `gorm:"type:varchar(150);not null" json:"name"`
	Class        string    `gorm:"type:varchar(20);not null;index" json:"class"`
	CurrencyCode string    `gorm:"type:varchar(3);not null;default:'BRL'" json:"currency_code"`
	CreatedAt    time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`

	FixedIncome *FixedIncomeTerms `gorm:"foreignKey:AssetID" json:"fixed_income,omitempty"`
}

func (Asset) TableName() string {
	return "assets"
}

// IsFixedIncome reports whether the asset is priced by the fixed-income model
// instead of a market quote.
func (a Asset) IsFixedIncome() bool {
	return a.Class == AssetClassFixedIncome || a.Class == AssetClassTreasury
}

// FixedIncomeTerms holds the contractual parameters of a fixed-income asset:
// the product kind (perc_index, index_plus, fixed_rate), its fee and the
// reference index.
type FixedIncomeTerms struct {
	ID      uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	AssetID uint64          `gorm:"not null;uniqueIndex" json:"asset_id"`
	Kind    string          `gorm:"type:varchar(20);not null" json:"kind"`
	Fee     decimal.Decimal `gorm:"type:numeric(12,8);not null" json:"fee"`
	IndexID uint64          `gorm:"not null;index" json:"index_id"`
}

func (FixedIncomeTerms) TableName() string {
	return "fixed_income_terms"
}
