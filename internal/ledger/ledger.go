// Package ledger is the append-only audit trail of stock deductions.
// Entries are written once and never updated or deleted; the ledger records
// what the inventory store already committed and is not the system of record.
package ledger

import (
	"fmt"

	"larder/internal/models"

	"github.com/jinzhu/gorm"
)

const defaultHistoryLimit = 50

// Ledger appends and queries deduction entries
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a ledger over the given database
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Append writes one entry and returns its generated id. Dish and ingredient
// are stored canonical so history queries match regardless of input casing.
func (l *Ledger) Append(entry *models.DeductionEntry) (uint, error) {
	entry.Dish = models.CanonicalName(entry.Dish)
	entry.Ingredient = models.CanonicalName(entry.Ingredient)
	if err := l.db.Create(entry).Error; err != nil {
		return 0, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return entry.ID, nil
}

// HistoryForDish returns the most recent entries attributed to a dish,
// newest first
func (l *Ledger) HistoryForDish(dish string, limit int) ([]models.DeductionEntry, error) {
	return l.history("dish = ?", models.CanonicalName(dish), limit)
}

// HistoryForIngredient returns the most recent entries touching an
// ingredient, newest first
func (l *Ledger) HistoryForIngredient(ingredient string, limit int) ([]models.DeductionEntry, error) {
	return l.history("ingredient = ?", models.CanonicalName(ingredient), limit)
}

// History returns the most recent entries across all dishes and ingredients
func (l *Ledger) History(limit int) ([]models.DeductionEntry, error) {
	return l.history("", nil, limit)
}

func (l *Ledger) history(query string, arg interface{}, limit int) ([]models.DeductionEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var entries []models.DeductionEntry
	scope := l.db.Order("id desc").Limit(limit)
	if query != "" {
		scope = scope.Where(query, arg)
	}
	if err := scope.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to query ledger history: %w", err)
	}
	return entries, nil
}
