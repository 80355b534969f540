package models

// Category groups assets for aggregate reporting within one portfolio.
type Category struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	PortfolioID uint64 `gorm:"not null;index" json:"portfolio_id"`
	Name        string `gorm:"type:varchar(100);not null" json:"name"`
}

func (Category) TableName() string {
	return "categories"
}

// CategoryAssignment binds an asset to a category. An asset has at most one
// category per portfolio; re-assigning replaces the previous row.
type CategoryAssignment struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	CategoryID uint64 `gorm:"not null;index" json:"category_id"`
	AssetID    uint64 `gorm:"not null;index" json:"asset_id"`
}

func (CategoryAssignment) TableName() string {
	return "category_assignments"
}
