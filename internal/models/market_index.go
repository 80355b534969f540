package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Index kinds: price indexes (IBOV, S&P500, USD/BRL) quote a level; rate
// indexes (CDI, IPCA) quote a daily percentage and are zero-filled over
// non-business days.
const (
	IndexKindPrice = "price"
	IndexKindRate  = "rate"
)

// Well-known index symbols the engine depends on.
const (
	IndexSymbolUSDBRL = "USDBRL"
	IndexSymbolCDI    = "CDI"
	IndexSymbolIPCA   = "IPCA"
)

type MarketIndex struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol       string `gorm:"type:varchar(30);not null;uniqueIndex" json:"symbol"`
	ShortName    string `gorm:"type:varchar(50);not null" json:"short_name"`
	Kind         string `gorm:"type:varchar(10);not null;default:'price'" json:"kind"`
	CurrencyCode string `gorm:"type:varchar(3);not null;default:'BRL'" json:"currency_code"`
}

func (MarketIndex) TableName() string {
	return "market_indexes"
}

// IndexHistory is one daily observation of an index. Raw keeps the provider
// payload the row was parsed from.
type IndexHistory struct {
	ID      uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	IndexID uint64          `gorm:"not null;uniqueIndex:idx_index_history_index_date,priority:1" json:"index_id"`
	Date    time.Time       `gorm:"type:date;not null;uniqueIndex:idx_index_history_index_date,priority:2" json:"date"`
	Close   decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"close"`
	Raw     datatypes.JSON  `gorm:"type:jsonb" json:"-"`
}

func (IndexHistory) TableName() string {
	return "index_history"
}
