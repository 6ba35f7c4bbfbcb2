// Package availability keeps the cached dish-availability projection
// consistent with underlying ingredient stock. Recomputation is idempotent:
// it reads current state and overwrites the projection, so any pass can
// correct a stale flag left by an earlier failure.
package availability

import (
	"errors"
	"fmt"
	"log"

	"larder/internal/catalog"
	"larder/internal/inventory"
	"larder/internal/models"
	"larder/internal/monitoring"
	"larder/internal/notify"

	"github.com/jinzhu/gorm"
)

// Propagator recomputes dish availability after stock crosses the zero
// boundary in either direction
type Propagator struct {
	db      *gorm.DB
	catalog *catalog.Catalog
	store   *inventory.Store
	events  notify.Sink
	metrics *monitoring.Metrics
}

// NewPropagator creates a propagator. The event sink and metrics may be nil.
func NewPropagator(db *gorm.DB, cat *catalog.Catalog, store *inventory.Store, events notify.Sink, metrics *monitoring.Metrics) *Propagator {
	return &Propagator{
		db:      db,
		catalog: cat,
		store:   store,
		events:  events,
		metrics: metrics,
	}
}

// OnStockDepleted re-evaluates every dish depending on an ingredient whose
// stock just reached zero
func (p *Propagator) OnStockDepleted(ingredient string) error {
	return p.recomputeDependents(ingredient)
}

// OnStockReplenished re-evaluates every dish depending on an ingredient whose
// stock just rose from zero. A dish only flips back to available when all of
// its ingredients are satisfied, not just the one restocked.
func (p *Propagator) OnStockReplenished(ingredient string) error {
	return p.recomputeDependents(ingredient)
}

// recomputeDependents walks every dish using the ingredient and recomputes
// each one fully. A write failure on one dish does not stop the others; the
// next propagation pass corrects whatever was missed.
func (p *Propagator) recomputeDependents(ingredient string) error {
	dishes := p.catalog.DishesForIngredient(ingredient)
	var failed int
	for _, dish := range dishes {
		if _, err := p.RecomputeDish(dish); err != nil {
			failed++
			log.Printf("Failed to recompute availability for %s: %v", dish, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("availability recompute failed for %d of %d dishes", failed, len(dishes))
	}
	return nil
}

// RecomputeDish recomputes one dish's availability from scratch: available
// iff every required ingredient has an inventory record with stock above
// zero. A recipe ingredient with no inventory record at all counts as
// unavailable, same as depleted stock. Returns whether the flag flipped.
func (p *Propagator) RecomputeDish(dish string) (bool, error) {
	reqs := p.catalog.IngredientsForDish(dish)
	if len(reqs) == 0 {
		// No recipe entry means no constraint. Drop any projection row left
		// over from an earlier catalog version so the dish reads available.
		return p.dropProjection(dish)
	}

	var missing models.StringSlice
	for _, req := range reqs {
		item, err := p.store.Get(req.Name)
		if errors.Is(err, inventory.ErrNotFound) {
			missing = append(missing, req.Name)
			continue
		}
		if err != nil {
			return false, err
		}
		if item.CurrentStock <= 0 {
			missing = append(missing, req.Name)
		}
	}
	available := len(missing) == 0

	return p.persist(dish, available, missing)
}

// persist upserts the projection row and emits a change signal when the flag
// flips. Last write wins; the projection is a derived cache.
func (p *Propagator) persist(dish string, available bool, missing models.StringSlice) (bool, error) {
	key := models.CanonicalName(dish)

	var row models.DishAvailability
	err := p.db.Where("dish = ?", key).First(&row).Error
	switch {
	case gorm.IsRecordNotFoundError(err):
		row = models.DishAvailability{
			Dish:               key,
			DisplayName:        p.catalog.DisplayName(dish),
			Available:          available,
			MissingIngredients: missing,
		}
		if err := p.db.Create(&row).Error; err != nil {
			return false, fmt.Errorf("failed to create availability row for %s: %w", dish, err)
		}
		p.updateGauge()
		if !available {
			p.emit(row)
			return true, nil
		}
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to load availability row for %s: %w", dish, err)
	}

	changed := row.Available != available
	row.Available = available
	row.MissingIngredients = missing
	if err := p.db.Save(&row).Error; err != nil {
		return false, fmt.Errorf("failed to update availability row for %s: %w", dish, err)
	}

	if changed {
		p.updateGauge()
		p.emit(row)
	}
	return changed, nil
}

// dropProjection removes the projection row of a dish that no longer has a
// recipe entry. The hard delete keeps the unique dish index free for a later
// re-add of the recipe. Returns whether an unavailable flag was cleared.
func (p *Propagator) dropProjection(dish string) (bool, error) {
	key := models.CanonicalName(dish)

	var row models.DishAvailability
	err := p.db.Where("dish = ?", key).First(&row).Error
	if gorm.IsRecordNotFoundError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load availability row for %s: %w", dish, err)
	}
	if err := p.db.Unscoped().Delete(&row).Error; err != nil {
		return false, fmt.Errorf("failed to delete availability row for %s: %w", dish, err)
	}
	p.updateGauge()
	if !row.Available {
		row.Available = true
		row.MissingIngredients = nil
		p.emit(row)
		return true, nil
	}
	return false, nil
}

func (p *Propagator) emit(row models.DishAvailability) {
	if p.events == nil {
		return
	}
	p.events.Publish(notify.Event{
		Type:      notify.EventAvailabilityChanged,
		Dish:      row.Dish,
		Available: row.Available,
	})
}

func (p *Propagator) updateGauge() {
	if p.metrics == nil {
		return
	}
	var count int64
	if err := p.db.Model(&models.DishAvailability{}).Where("available = ?", false).Count(&count).Error; err != nil {
		return
	}
	p.metrics.UnavailableDishes.Set(float64(count))
}

// Sweep recomputes every dish in the catalog and drops projection rows for
// dishes the catalog no longer knows. Used as the periodic reconciliation
// pass that clears any drift left by mid-propagation failures or reloads.
func (p *Propagator) Sweep() error {
	var failed int
	dishes := p.catalog.Dishes()
	for _, dish := range dishes {
		if _, err := p.RecomputeDish(dish); err != nil {
			failed++
			log.Printf("Sweep failed to recompute %s: %v", dish, err)
		}
	}

	// Rows whose dish lost its recipe entry are orphans; clear them so the
	// dish reads available again.
	rows, err := p.List()
	if err != nil {
		return err
	}
	for _, row := range rows {
		if len(p.catalog.IngredientsForDish(row.Dish)) > 0 {
			continue
		}
		if _, err := p.dropProjection(row.Dish); err != nil {
			failed++
			log.Printf("Sweep failed to drop orphan row for %s: %v", row.Dish, err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("sweep failed for %d dishes", failed)
	}
	return nil
}

// List returns the current availability projection for all dishes
func (p *Propagator) List() ([]models.DishAvailability, error) {
	var rows []models.DishAvailability
	if err := p.db.Order("dish").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", err)
	}
	return rows, nil
}

// IsAvailable reports a dish's availability with respect to this engine.
// A dish with no recipe entry (and so no projection row) is always available.
func (p *Propagator) IsAvailable(dish string) (bool, error) {
	var row models.DishAvailability
	err := p.db.Where("dish = ?", models.CanonicalName(dish)).First(&row).Error
	if gorm.IsRecordNotFoundError(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load availability for %s: %w", dish, err)
	}
	return row.Available, nil
}
