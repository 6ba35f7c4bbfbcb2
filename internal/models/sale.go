package models

// Attribution identifies who and what a deduction is attributable to
type Attribution struct {
	OrderID string `json:"order_id"`
	Cashier string `json:"cashier"`
}

// SaleEvent represents a completed sale of a finished menu item.
// The sale has already happened at the point of sale; stock tracking reacts
// to it and never blocks or reverses it.
type SaleEvent struct {
	Dish        string      `json:"dish" binding:"required"`
	Quantity    int         `json:"quantity" binding:"required,min=1"`
	Attribution Attribution `json:"attribution"`
}

// IngredientResult reports the outcome of one ingredient deduction within a sale
type IngredientResult struct {
	Ingredient  string           `json:"ingredient"`
	Requested   float64          `json:"requested"`
	Deducted    float64          `json:"deducted"`
	StockBefore float64          `json:"stock_before"`
	StockAfter  float64          `json:"stock_after"`
	Outcome     DeductionOutcome `json:"outcome"`
	Reason      string           `json:"reason,omitempty"`
}

// DeductionReport aggregates the per-ingredient outcomes of one recorded sale
type DeductionReport struct {
	Dish     string             `json:"dish"`
	Quantity int                `json:"quantity"`
	Results  []IngredientResult `json:"results"`
	Overall  DeductionOutcome   `json:"overall"`
}

// OverallOutcome derives the dish-level status from the per-ingredient results.
// Full deductions everywhere means success; a mix degrades to partial; nothing
// deducted at all (with at least one requirement) means failed.
func OverallOutcome(results []IngredientResult) DeductionOutcome {
	if len(results) == 0 {
		return OutcomeSuccess
	}
	allFull := true
	anyDeducted := false
	for _, r := range results {
		if r.Outcome != OutcomeSuccess {
			allFull = false
		}
		if r.Deducted > 0 {
			anyDeducted = true
		}
	}
	switch {
	case allFull:
		return OutcomeSuccess
	case anyDeducted:
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}
