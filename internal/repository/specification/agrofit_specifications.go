package specification

import "gorm.io/gorm"

// ProductSearch matches pesticide products by name or active ingredient.
// ILIKE keeps the match case-insensitive on Postgres.
type ProductSearch struct {
	Query string
}

func (s ProductSearch) Apply(db *gorm.DB) *gorm.DB {
	pattern := "%" + s.Query + "%"
	return db.Where("product_name ILIKE ? OR active_ingredient ILIKE ?", pattern, pattern)
}

// ByCrop filters products registered for a given crop.
type ByCrop struct {
	Crop string
}

func (s ByCrop) Apply(db *gorm.DB) *gorm.DB {
	pattern := "%" + s.Crop + "%"
	return db.Where("crops ILIKE ?", pattern)
}

// ByPest filters products registered against a given pest.
type ByPest struct {
	Pest string
}

func (s ByPest) Apply(db *gorm.DB) *gorm.DB {
	pattern := "%" + s.Pest + "%"
	return db.Where("pests ILIKE ?", pattern)
}
