package models

import "github.com/jinzhu/gorm"

// DeductionEntry represents one row of the append-only deduction ledger.
// Entries are created once per ingredient deduction attempt and never updated
// or deleted afterwards; the ledger is audit history, not the system of record.
type DeductionEntry struct {
	gorm.Model
	Dish         string `gorm:"index"` // canonical dish name
	Ingredient   string `gorm:"index"` // canonical ingredient name
	IngredientID uint
	Quantity     float64 // quantity actually deducted
	Requested    float64 // quantity the sale called for
	Unit         string
	StockBefore  float64
	StockAfter   float64
	Outcome      string
	Reason       string
	OrderID      string
	Cashier      string
}

// TableName sets the table name for DeductionEntry
func (DeductionEntry) TableName() string {
	return "deduction_ledger"
}

// DeductionOutcome represents the outcome of a single deduction attempt
type DeductionOutcome string

const (
	// Deduction outcomes
	OutcomeSuccess DeductionOutcome = "success"
	OutcomePartial DeductionOutcome = "partial"
	OutcomeFailed  DeductionOutcome = "failed"
)
