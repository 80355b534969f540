package db

import (
	"investfolio/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Portfolio{},
		&models.Broker{},
		&models.Asset{},
		&models.FixedIncomeTerms{},
		&models.MarketIndex{},
		&models.IndexHistory{},
		&models.Transaction{},
		&models.Dividend{},
		&models.CorporateEvent{},
		&models.Position{},
		&models.Category{},
		&models.CategoryAssignment{},
	)
}
