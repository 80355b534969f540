package models

import (
	"time"
)

type Portfolio struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}

type Broker struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"type:varchar(100);not null" json:"name"`
	CurrencyCode string `gorm:"type:varchar(3);not null;default:'BRL'" json:"currency_code"`
}

func (Broker) TableName() string {
	return "brokers"
}
