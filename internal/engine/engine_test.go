package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"larder/internal/availability"
	"larder/internal/catalog"
	"larder/internal/database"
	"larder/internal/inventory"
	"larder/internal/ledger"
	"larder/internal/models"
	"larder/internal/monitoring"

	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine     *Engine
	store      *inventory.Store
	ledger     *ledger.Ledger
	propagator *availability.Propagator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open("sqlite3", filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	cat := catalog.New()
	cat.Reload([]catalog.RecipeEntry{
		{Dish: "Fried Chicken", Ingredients: []catalog.Requirement{
			{Name: "Chicken"}, {Name: "Cooking oil"}, {Name: "Salt"},
		}},
		{Dish: "Chicken Adobo", Ingredients: []catalog.Requirement{
			{Name: "Chicken"}, {Name: "Garlic"},
		}},
		{Dish: "Sinigang (Pork)", Ingredients: []catalog.Requirement{
			{Name: "Pork"}, {Name: "Garlic"},
		}},
		{Dish: "Garlic Rice", Ingredients: []catalog.Requirement{
			{Name: "Rice", Quantity: 0.25}, {Name: "Garlic", Quantity: 2},
		}},
	})

	metrics := monitoring.NewTestMetrics()
	store := inventory.NewStore(db, nil, metrics)
	led := ledger.NewLedger(db)
	prop := availability.NewPropagator(db, cat, store, nil, metrics)

	return &fixture{
		engine:     NewEngine(cat, store, led, prop, metrics),
		store:      store,
		ledger:     led,
		propagator: prop,
	}
}

func (f *fixture) seed(t *testing.T, name string, current, min, max float64) {
	t.Helper()
	require.NoError(t, f.store.Create(&models.Ingredient{
		DisplayName:  name,
		CurrentStock: current,
		MinStock:     min,
		MaxStock:     max,
		Unit:         "kg",
	}))
}

func (f *fixture) stock(t *testing.T, name string) float64 {
	t.Helper()
	item, err := f.store.Get(name)
	require.NoError(t, err)
	return item.CurrentStock
}

func sale(dish string, qty int) models.SaleEvent {
	return models.SaleEvent{
		Dish:     dish,
		Quantity: qty,
		Attribution: models.Attribution{
			OrderID: "order-1",
			Cashier: "ana",
		},
	}
}

func TestRecordSaleDeductsEveryIngredient(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Chicken", 5, 1, 60)
	f.seed(t, "Cooking oil", 10, 2, 40)
	f.seed(t, "Salt", 20, 2, 25)

	report, err := f.engine.RecordSale(context.Background(), sale("Fried Chicken", 1))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, report.Overall)
	require.Len(t, report.Results, 3)

	assert.Equal(t, 4.0, f.stock(t, "Chicken"))
	assert.Equal(t, 9.0, f.stock(t, "Cooking oil"))
	assert.Equal(t, 19.0, f.stock(t, "Salt"))

	entries, err := f.ledger.HistoryForDish("Fried Chicken", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, string(models.OutcomeSuccess), e.Outcome)
		assert.Equal(t, "order-1", e.OrderID)
		assert.Equal(t, "ana", e.Cashier)
		assert.Equal(t, e.StockBefore-e.Quantity, e.StockAfter)
	}
}

func TestRecordSaleWithDepletedIngredient(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Chicken", 5, 1, 60)
	f.seed(t, "Cooking oil", 0, 2, 40)
	f.seed(t, "Salt", 20, 2, 25)

	report, err := f.engine.RecordSale(context.Background(), sale("Fried Chicken", 1))
	require.NoError(t, err)

	// The oil was already out; the other deductions still go through
	assert.Equal(t, models.OutcomePartial, report.Overall)
	assert.Equal(t, 4.0, f.stock(t, "Chicken"))
	assert.Equal(t, 0.0, f.stock(t, "Cooking oil"))
	assert.Equal(t, 19.0, f.stock(t, "Salt"))

	var oil models.IngredientResult
	for _, r := range report.Results {
		if r.Ingredient == "Cooking oil" {
			oil = r
		}
	}
	assert.Equal(t, models.OutcomeFailed, oil.Outcome)
	assert.Equal(t, 0.0, oil.Deducted)

	// The dish flips unavailable because oil is at zero
	available, err := f.propagator.IsAvailable("Fried Chicken")
	require.NoError(t, err)
	assert.False(t, available)
}

func TestRestockRestoresAvailability(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Chicken", 5, 1, 60)
	f.seed(t, "Cooking oil", 0, 2, 40)
	f.seed(t, "Salt", 20, 2, 25)

	_, err := f.engine.RecordSale(context.Background(), sale("Fried Chicken", 1))
	require.NoError(t, err)
	available, _ := f.propagator.IsAvailable("Fried Chicken")
	require.False(t, available)

	_, err = f.engine.AdjustStock("Cooking oil", 10, "delivery")
	require.NoError(t, err)

	available, err = f.propagator.IsAvailable("Fried Chicken")
	require.NoError(t, err)
	assert.True(t, available)
}

func TestDishWithoutRecipeSucceedsTrivially(t *testing.T) {
	f := newFixture(t)

	report, err := f.engine.RecordSale(context.Background(), sale("Soda", 3))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, report.Overall)
	assert.Empty(t, report.Results)

	entries, err := f.ledger.HistoryForDish("Soda", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDepletionPropagatesToAllDependentDishes(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Chicken", 5, 1, 60)
	f.seed(t, "Garlic", 1, 1, 30)
	f.seed(t, "Pork", 10, 2, 50)
	f.seed(t, "Rice", 50, 10, 100)

	report, err := f.engine.RecordSale(context.Background(), sale("Chicken Adobo", 1))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, report.Overall)
	assert.Equal(t, 0.0, f.stock(t, "Garlic"))

	// Every dish listing garlic is rechecked, against all its own ingredients
	for _, dish := range []string{"Chicken Adobo", "Sinigang (Pork)", "Garlic Rice"} {
		available, err := f.propagator.IsAvailable(dish)
		require.NoError(t, err)
		assert.False(t, available, dish)
	}
	available, err := f.propagator.IsAvailable("Fried Chicken")
	require.NoError(t, err)
	assert.True(t, available)
}

func TestMissingInventoryRecordProducesFailedEntry(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Chicken", 5, 1, 60)
	// Garlic has no inventory record

	report, err := f.engine.RecordSale(context.Background(), sale("Chicken Adobo", 1))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePartial, report.Overall)

	// Chicken still deducted
	assert.Equal(t, 4.0, f.stock(t, "Chicken"))

	entries, err := f.ledger.HistoryForIngredient("Garlic", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(models.OutcomeFailed), entries[0].Outcome)
	assert.Equal(t, "no inventory record", entries[0].Reason)
}

func TestPerUnitQuantities(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Rice", 50, 10, 100)
	f.seed(t, "Garlic", 10, 1, 30)

	report, err := f.engine.RecordSale(context.Background(), sale("Garlic Rice", 4))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, report.Overall)

	// 4 x 0.25 rice, 4 x 2 garlic
	assert.Equal(t, 49.0, f.stock(t, "Rice"))
	assert.Equal(t, 2.0, f.stock(t, "Garlic"))
}

func TestInvalidSale(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.RecordSale(context.Background(), models.SaleEvent{Dish: "", Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidSale)

	_, err = f.engine.RecordSale(context.Background(), models.SaleEvent{Dish: "Soda", Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidSale)
}

func TestConcurrentSalesNeverLoseUpdates(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Chicken", 5, 1, 60)
	f.seed(t, "Garlic", 5, 1, 30)

	var wg sync.WaitGroup
	reports := make([]*models.DeductionReport, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], errs[i] = f.engine.RecordSale(context.Background(), models.SaleEvent{
				Dish:     "Chicken Adobo",
				Quantity: 3,
			})
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// Two sales of 3 against stock 5: serialized as 5->2 then 2->0 clamped
	assert.Equal(t, 0.0, f.stock(t, "Garlic"))
	assert.Equal(t, 0.0, f.stock(t, "Chicken"))

	entries, err := f.ledger.HistoryForIngredient("Garlic", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Ledger reflects actual application order: newest first, chains intact
	assert.Equal(t, 0.0, entries[0].StockAfter)
	assert.Equal(t, entries[1].StockAfter, entries[0].StockBefore)
	assert.Equal(t, 5.0, entries[1].StockBefore)
	assert.Equal(t, 2.0, entries[1].StockAfter)
	assert.Equal(t, string(models.OutcomePartial), entries[0].Outcome)
}

func TestSetStockPropagatesDepletion(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Chicken", 5, 1, 60)
	f.seed(t, "Garlic", 5, 1, 30)

	_, err := f.engine.SetStock("Garlic", 0, "spoilage")
	require.NoError(t, err)

	available, err := f.propagator.IsAvailable("Chicken Adobo")
	require.NoError(t, err)
	assert.False(t, available)
}
