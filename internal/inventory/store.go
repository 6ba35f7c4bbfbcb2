// Package inventory is the authoritative record of raw ingredient stock.
// All mutations go through the Store, which serializes writers per ingredient
// and keeps the derived status and outbound stock signals consistent with
// every committed change.
package inventory

import (
	"errors"
	"fmt"
	"sync"

	"larder/internal/models"
	"larder/internal/monitoring"
	"larder/internal/notify"

	"github.com/jinzhu/gorm"
)

var (
	// ErrNotFound indicates the named ingredient has no inventory record
	ErrNotFound = errors.New("ingredient not found")
	// ErrInvalidQuantity indicates a non-positive quantity was requested
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidCapacity indicates a non-positive max stock on creation
	ErrInvalidCapacity = errors.New("max stock must be positive")
)

// DeductResult reports the outcome of a single deduction. Deductions clamp at
// zero: when the requested quantity exceeds current stock the deduction still
// goes through partially, and Deducted tells the caller how much was removed.
type DeductResult struct {
	Requested   float64
	Deducted    float64
	StockBefore float64
	StockAfter  float64
	Clamped     bool
}

// Adjustment reports the stock level around a manual add or set operation
type Adjustment struct {
	StockBefore float64
	StockAfter  float64
}

// Store provides point reads and serialized read-modify-write updates over
// ingredient records
type Store struct {
	db      *gorm.DB
	events  notify.Sink
	metrics *monitoring.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a store over the given database. The event sink and
// metrics may be nil.
func NewStore(db *gorm.DB, events notify.Sink, metrics *monitoring.Metrics) *Store {
	return &Store{
		db:      db,
		events:  events,
		metrics: metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing writers for one canonical name.
// Mutexes are created on first use and kept for the process lifetime; the
// ingredient namespace is small and bounded.
func (s *Store) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	return lock
}

// Get returns the ingredient record for the given name
func (s *Store) Get(name string) (*models.Ingredient, error) {
	var item models.Ingredient
	err := s.db.Where("name = ?", models.CanonicalName(name)).First(&item).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ingredient %s: %w", name, err)
	}
	return &item, nil
}

// List returns all ingredient records ordered by name
func (s *Store) List() ([]models.Ingredient, error) {
	var items []models.Ingredient
	if err := s.db.Order("name").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	return items, nil
}

// Create adds a new ingredient record. The name is canonicalized and the
// derived status computed before the row is written. Every ingredient carries
// a positive capacity ceiling; stock stays within [0, MaxStock] from here on.
func (s *Store) Create(item *models.Ingredient) error {
	if item.DisplayName == "" {
		item.DisplayName = item.Name
	}
	item.Name = models.CanonicalName(item.DisplayName)
	if item.Name == "" {
		return fmt.Errorf("ingredient name is required")
	}
	if item.MaxStock <= 0 {
		return ErrInvalidCapacity
	}
	item.Active = true
	item.CurrentStock = models.ClampStock(item.CurrentStock, item.MaxStock)
	item.Recompute()

	if err := s.db.Create(item).Error; err != nil {
		return fmt.Errorf("failed to create ingredient %s: %w", item.DisplayName, err)
	}
	if item.Status == string(models.StatusOutOfStock) && s.metrics != nil {
		s.metrics.OutOfStockItems.Inc()
	}
	return nil
}

// SetActive flips the active flag. Ingredients are never hard-deleted, only
// deactivated.
func (s *Store) SetActive(name string, active bool) error {
	lock := s.lockFor(models.CanonicalName(name))
	lock.Lock()
	defer lock.Unlock()

	item, err := s.Get(name)
	if err != nil {
		return err
	}
	item.Active = active
	if err := s.db.Save(item).Error; err != nil {
		return fmt.Errorf("failed to update ingredient %s: %w", name, err)
	}
	return nil
}

// TryDeduct removes up to quantity units of stock. Stock never goes negative:
// an insufficient balance clamps at zero rather than failing, because the
// sale behind the deduction has already happened.
func (s *Store) TryDeduct(name string, quantity float64) (DeductResult, error) {
	if quantity <= 0 {
		return DeductResult{}, ErrInvalidQuantity
	}

	lock := s.lockFor(models.CanonicalName(name))
	lock.Lock()
	defer lock.Unlock()

	item, err := s.Get(name)
	if err != nil {
		return DeductResult{}, err
	}

	result := DeductResult{
		Requested:   quantity,
		StockBefore: item.CurrentStock,
	}
	result.Deducted = quantity
	if result.Deducted > item.CurrentStock {
		result.Deducted = item.CurrentStock
		result.Clamped = true
	}
	result.StockAfter = item.CurrentStock - result.Deducted

	if err := s.commit(item, result.StockAfter); err != nil {
		return DeductResult{}, err
	}
	return result, nil
}

// Add increases stock by quantity, clamping at the capacity ceiling
func (s *Store) Add(name string, quantity float64) (Adjustment, error) {
	if quantity <= 0 {
		return Adjustment{}, ErrInvalidQuantity
	}

	lock := s.lockFor(models.CanonicalName(name))
	lock.Lock()
	defer lock.Unlock()

	item, err := s.Get(name)
	if err != nil {
		return Adjustment{}, err
	}

	adj := Adjustment{StockBefore: item.CurrentStock}
	adj.StockAfter = models.ClampStock(item.CurrentStock+quantity, item.MaxStock)

	if err := s.commit(item, adj.StockAfter); err != nil {
		return Adjustment{}, err
	}
	return adj, nil
}

// SetAbsolute overwrites the stock level, clamped to [0, maxStock]. Used for
// manual stock corrections.
func (s *Store) SetAbsolute(name string, quantity float64) (Adjustment, error) {
	lock := s.lockFor(models.CanonicalName(name))
	lock.Lock()
	defer lock.Unlock()

	item, err := s.Get(name)
	if err != nil {
		return Adjustment{}, err
	}

	adj := Adjustment{StockBefore: item.CurrentStock}
	adj.StockAfter = models.ClampStock(quantity, item.MaxStock)

	if err := s.commit(item, adj.StockAfter); err != nil {
		return Adjustment{}, err
	}
	return adj, nil
}

// commit persists the new stock level with its recomputed status and emits
// status-transition signals. Must be called with the ingredient's lock held.
func (s *Store) commit(item *models.Ingredient, newStock float64) error {
	prev := models.StockStatus(item.Status)

	item.CurrentStock = newStock
	item.Recompute()

	if err := s.db.Save(item).Error; err != nil {
		return fmt.Errorf("failed to persist stock for %s: %w", item.Name, err)
	}

	s.signalTransition(item, prev)
	return nil
}

// signalTransition emits low/out-of-stock signals on entry into those states
// and a restored signal when stock comes back from zero
func (s *Store) signalTransition(item *models.Ingredient, prev models.StockStatus) {
	next := models.StockStatus(item.Status)
	if next == prev {
		return
	}

	if s.metrics != nil {
		if next == models.StatusOutOfStock {
			s.metrics.OutOfStockItems.Inc()
		} else if prev == models.StatusOutOfStock {
			s.metrics.OutOfStockItems.Dec()
		}
	}

	if s.events == nil {
		return
	}
	event := notify.Event{
		Ingredient:   item.Name,
		CurrentStock: item.CurrentStock,
		MinStock:     item.MinStock,
	}
	switch {
	case next == models.StatusOutOfStock:
		event.Type = notify.EventOutOfStock
	case next == models.StatusLowStock:
		event.Type = notify.EventLowStock
	case prev == models.StatusOutOfStock:
		event.Type = notify.EventStockRestored
	default:
		return
	}
	s.events.Publish(event)
}
