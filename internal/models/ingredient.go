package models

import (
	"strings"

	"github.com/jinzhu/gorm"
)

// Ingredient represents a raw stock item consumed when a dish is sold.
// Stock levels are clamped to [0, MaxStock] and the status field is always
// derived from CurrentStock against MinStock; it is never set independently.
type Ingredient struct {
	gorm.Model
	Name         string `gorm:"unique_index"` // canonical (trimmed, lowercased)
	DisplayName  string
	CurrentStock float64
	MinStock     float64
	MaxStock     float64
	Unit         string
	Active       bool
	Status       string
}

// TableName sets the table name for Ingredient
func (Ingredient) TableName() string {
	return "ingredients"
}

// StockStatus represents the derived stock status of an ingredient
type StockStatus string

const (
	// Stock statuses
	StatusInStock    StockStatus = "in_stock"
	StatusLowStock   StockStatus = "low_stock"
	StatusOutOfStock StockStatus = "out_of_stock"
)

// CanonicalName normalizes an ingredient or dish name to its canonical form.
// All lookup maps and database keys use the canonical form; display names are
// stored separately.
func CanonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// StatusFor derives the stock status from current stock and the reorder
// threshold. Out of stock wins over low stock when current is exactly zero.
func StatusFor(current, min float64) StockStatus {
	switch {
	case current <= 0:
		return StatusOutOfStock
	case current <= min:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// ClampStock constrains a computed stock value into the valid [0, max] range.
func ClampStock(value, max float64) float64 {
	if value < 0 {
		return 0
	}
	if value > max {
		return max
	}
	return value
}

// Recompute refreshes the derived status from the current stock level.
func (i *Ingredient) Recompute() {
	i.Status = string(StatusFor(i.CurrentStock, i.MinStock))
}
