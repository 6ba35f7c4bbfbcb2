package models

import "testing"

func TestCanonicalName(t *testing.T) {
	cases := map[string]string{
		"  Fried Chicken ":    "fried chicken",
		"PANCIT BIHON (L)":    "pancit bihon (l)",
		"garlic":              "garlic",
		"\tCooking Oil\n":     "cooking oil",
		"":                    "",
	}
	for in, want := range cases {
		if got := CanonicalName(in); got != want {
			t.Errorf("CanonicalName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		current, min float64
		want         StockStatus
	}{
		{0, 5, StatusOutOfStock},
		{0, 0, StatusOutOfStock},
		{3, 5, StatusLowStock},
		{5, 5, StatusLowStock},
		{6, 5, StatusInStock},
		{100, 0, StatusInStock},
	}
	for _, c := range cases {
		if got := StatusFor(c.current, c.min); got != c.want {
			t.Errorf("StatusFor(%v, %v) = %v, want %v", c.current, c.min, got, c.want)
		}
	}
}

func TestClampStock(t *testing.T) {
	if got := ClampStock(-3, 10); got != 0 {
		t.Errorf("ClampStock(-3, 10) = %v, want 0", got)
	}
	if got := ClampStock(15, 10); got != 10 {
		t.Errorf("ClampStock(15, 10) = %v, want 10", got)
	}
	if got := ClampStock(7, 10); got != 7 {
		t.Errorf("ClampStock(7, 10) = %v, want 7", got)
	}
	if got := ClampStock(10, 10); got != 10 {
		t.Errorf("ClampStock(10, 10) = %v, want 10", got)
	}
}

func TestOverallOutcome(t *testing.T) {
	success := IngredientResult{Outcome: OutcomeSuccess, Deducted: 2}
	partial := IngredientResult{Outcome: OutcomePartial, Deducted: 1}
	failed := IngredientResult{Outcome: OutcomeFailed}

	cases := []struct {
		name    string
		results []IngredientResult
		want    DeductionOutcome
	}{
		{"no requirements", nil, OutcomeSuccess},
		{"all full", []IngredientResult{success, success}, OutcomeSuccess},
		{"one clamped", []IngredientResult{success, partial}, OutcomePartial},
		{"one failed", []IngredientResult{success, failed}, OutcomePartial},
		{"nothing deducted", []IngredientResult{failed, failed}, OutcomeFailed},
	}
	for _, c := range cases {
		if got := OverallOutcome(c.results); got != c.want {
			t.Errorf("%s: OverallOutcome = %v, want %v", c.name, got, c.want)
		}
	}
}
