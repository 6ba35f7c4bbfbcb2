// Package engine orchestrates recipe-driven stock deduction: on a sale it
// resolves the dish's ingredients, deducts each from inventory, writes ledger
// entries, and propagates availability for anything that ran out. A sale has
// already happened by the time it reaches the engine, so per-ingredient
// problems degrade to partial or failed outcomes instead of aborting.
package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"larder/internal/availability"
	"larder/internal/catalog"
	"larder/internal/inventory"
	"larder/internal/ledger"
	"larder/internal/models"
	"larder/internal/monitoring"
)

// ErrInvalidSale indicates a sale event that cannot be processed at all
var ErrInvalidSale = errors.New("sale must name a dish and a quantity of at least 1")

// Engine coordinates the catalog, inventory store, ledger and propagator
type Engine struct {
	catalog    *catalog.Catalog
	store      *inventory.Store
	ledger     *ledger.Ledger
	propagator *availability.Propagator
	metrics    *monitoring.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine wires the deduction engine. Metrics may be nil.
func NewEngine(cat *catalog.Catalog, store *inventory.Store, led *ledger.Ledger, prop *availability.Propagator, metrics *monitoring.Metrics) *Engine {
	return &Engine{
		catalog:    cat,
		store:      store,
		ledger:     led,
		propagator: prop,
		metrics:    metrics,
		locks:      make(map[string]*sync.Mutex),
	}
}

// lockFor serializes deduct-then-append per ingredient so the ledger's id
// order matches the order stock mutations were committed when sales race
func (e *Engine) lockFor(name string) *sync.Mutex {
	key := models.CanonicalName(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}

// RecordSale deducts stock for one sale of a finished menu item and returns
// the per-ingredient report. A dish without a recipe entry succeeds trivially
// with no deductions. Errors local to one ingredient never abort the others.
func (e *Engine) RecordSale(ctx context.Context, sale models.SaleEvent) (*models.DeductionReport, error) {
	if sale.Dish == "" || sale.Quantity < 1 {
		return nil, ErrInvalidSale
	}
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordSaleSeconds.Observe(time.Since(start).Seconds())
		}
	}()
	if e.metrics != nil {
		e.metrics.SalesTotal.Inc()
	}

	report := &models.DeductionReport{
		Dish:     sale.Dish,
		Quantity: sale.Quantity,
	}

	reqs := e.catalog.IngredientsForDish(sale.Dish)
	if len(reqs) == 0 {
		// No recipe constraint; nothing to deduct, nothing to log.
		report.Overall = models.OutcomeSuccess
		return report, nil
	}

	var depleted []string
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			// The caller gave up; deductions already committed stand.
			return nil, err
		}

		required := float64(sale.Quantity) * req.Quantity
		result := e.deductOne(sale, req, required)
		report.Results = append(report.Results, result)

		if e.metrics != nil {
			e.metrics.DeductionsTotal.WithLabelValues(string(result.Outcome)).Inc()
		}
		// Propagation is idempotent, so anything the sale left (or found) at
		// zero gets its dependent dishes re-evaluated, including ingredients
		// with no inventory record at all.
		if result.StockAfter == 0 {
			depleted = append(depleted, req.Name)
		}
	}
	report.Overall = models.OverallOutcome(report.Results)

	for _, name := range depleted {
		if err := e.propagator.OnStockDepleted(name); err != nil {
			// A later propagation pass or sweep corrects any stale flags.
			log.Printf("Availability propagation for %s incomplete: %v", name, err)
		}
	}

	return report, nil
}

// deductOne attempts a single ingredient deduction and appends its ledger
// entry regardless of outcome
func (e *Engine) deductOne(sale models.SaleEvent, req catalog.Requirement, required float64) models.IngredientResult {
	lock := e.lockFor(req.Name)
	lock.Lock()
	defer lock.Unlock()

	result := models.IngredientResult{
		Ingredient: req.Name,
		Requested:  required,
	}

	entry := &models.DeductionEntry{
		Dish:       sale.Dish,
		Ingredient: req.Name,
		Requested:  required,
		OrderID:    sale.Attribution.OrderID,
		Cashier:    sale.Attribution.Cashier,
	}

	deduction, err := e.store.TryDeduct(req.Name, required)
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		result.Outcome = models.OutcomeFailed
		result.Reason = "no inventory record"
	case err != nil:
		// Persistence trouble on this one ingredient only; siblings continue.
		result.Outcome = models.OutcomeFailed
		result.Reason = err.Error()
		log.Printf("Deduction of %s for %s failed: %v", req.Name, sale.Dish, err)
	default:
		result.Deducted = deduction.Deducted
		result.StockBefore = deduction.StockBefore
		result.StockAfter = deduction.StockAfter
		switch {
		case !deduction.Clamped:
			result.Outcome = models.OutcomeSuccess
		case deduction.Deducted > 0:
			result.Outcome = models.OutcomePartial
			result.Reason = "insufficient stock, clamped at zero"
		default:
			result.Outcome = models.OutcomeFailed
			result.Reason = "already out of stock"
		}

		if item, lookupErr := e.store.Get(req.Name); lookupErr == nil {
			entry.IngredientID = item.ID
			entry.Unit = item.Unit
		}
	}

	entry.Quantity = result.Deducted
	entry.StockBefore = result.StockBefore
	entry.StockAfter = result.StockAfter
	entry.Outcome = string(result.Outcome)
	entry.Reason = result.Reason

	// Ledger writes are fire-and-forget relative to the stock mutation: the
	// committed stock change stands even if the audit append fails.
	if _, err := e.ledger.Append(entry); err != nil {
		log.Printf("Failed to append ledger entry for %s/%s: %v", sale.Dish, req.Name, err)
		if e.metrics != nil {
			e.metrics.LedgerWriteErrors.Inc()
		}
	}

	return result
}

// AdjustStock increases an ingredient's stock (a delivery or manual
// correction) and propagates availability if the stock came back from zero
func (e *Engine) AdjustStock(name string, quantity float64, reason string) (inventory.Adjustment, error) {
	adj, err := e.store.Add(name, quantity)
	if err != nil {
		return adj, err
	}
	log.Printf("Stock adjustment: %s %.2f -> %.2f (%s)", name, adj.StockBefore, adj.StockAfter, reason)
	e.propagateBoundary(name, adj)
	return adj, nil
}

// SetStock overwrites an ingredient's stock level and propagates availability
// across the zero boundary in either direction
func (e *Engine) SetStock(name string, quantity float64, reason string) (inventory.Adjustment, error) {
	adj, err := e.store.SetAbsolute(name, quantity)
	if err != nil {
		return adj, err
	}
	log.Printf("Stock correction: %s %.2f -> %.2f (%s)", name, adj.StockBefore, adj.StockAfter, reason)
	e.propagateBoundary(name, adj)
	return adj, nil
}

// propagateBoundary triggers availability recomputation when an adjustment
// crossed the zero boundary
func (e *Engine) propagateBoundary(name string, adj inventory.Adjustment) {
	switch {
	case adj.StockBefore == 0 && adj.StockAfter > 0:
		if err := e.propagator.OnStockReplenished(name); err != nil {
			log.Printf("Availability propagation after restock of %s incomplete: %v", name, err)
		}
	case adj.StockBefore > 0 && adj.StockAfter == 0:
		if err := e.propagator.OnStockDepleted(name); err != nil {
			log.Printf("Availability propagation after depletion of %s incomplete: %v", name, err)
		}
	}
}
