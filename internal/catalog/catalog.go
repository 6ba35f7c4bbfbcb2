// Package catalog holds the recipe mapping between dishes and the raw
// ingredients they consume. The mapping is static configuration, loaded from
// a YAML file and swapped in atomically so concurrent readers never observe a
// half-built index.
package catalog

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync/atomic"

	"larder/internal/models"

	"gopkg.in/yaml.v3"
)

// Requirement represents one ingredient a dish needs per unit sold
type Requirement struct {
	Name     string  `yaml:"name"`
	Quantity float64 `yaml:"quantity"` // per unit sold; defaults to 1
}

// RecipeEntry represents one dish and its required ingredients
type RecipeEntry struct {
	Dish        string        `yaml:"dish"`
	Ingredients []Requirement `yaml:"ingredients"`
}

// File is the on-disk recipe configuration format
type File struct {
	Recipes []RecipeEntry `yaml:"recipes"`
}

// snapshot is one immutable build of the forward and inverse indexes.
// Both maps are keyed by canonical names; display names live in the entries.
type snapshot struct {
	byDish       map[string]RecipeEntry
	byIngredient map[string][]string // canonical ingredient -> canonical dishes
}

// Catalog provides lookups over the current recipe snapshot
type Catalog struct {
	snap atomic.Value // *snapshot
}

// New creates an empty catalog; lookups succeed trivially until a reload
func New() *Catalog {
	c := &Catalog{}
	c.snap.Store(&snapshot{
		byDish:       map[string]RecipeEntry{},
		byIngredient: map[string][]string{},
	})
	return c
}

// LoadFile parses the YAML recipe file and swaps in the rebuilt indexes
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read recipe file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse recipe file: %w", err)
	}

	c.Reload(file.Recipes)
	return nil
}

// Reload rebuilds both lookup directions off to the side and swaps the result
// in atomically. Malformed entries (empty dish name, no ingredients, duplicate
// dish keys) are logged and skipped; the rest of the catalog still loads.
func (c *Catalog) Reload(entries []RecipeEntry) {
	next := &snapshot{
		byDish:       make(map[string]RecipeEntry, len(entries)),
		byIngredient: make(map[string][]string),
	}

	for _, entry := range entries {
		dishKey := models.CanonicalName(entry.Dish)
		if dishKey == "" {
			log.Printf("Skipping recipe entry with empty dish name")
			continue
		}
		if len(entry.Ingredients) == 0 {
			log.Printf("Skipping recipe for %q: no ingredients listed", entry.Dish)
			continue
		}
		if _, exists := next.byDish[dishKey]; exists {
			log.Printf("Skipping duplicate recipe entry for %q", entry.Dish)
			continue
		}

		normalized := RecipeEntry{Dish: entry.Dish}
		seen := make(map[string]bool, len(entry.Ingredients))
		for _, req := range entry.Ingredients {
			key := models.CanonicalName(req.Name)
			if key == "" {
				log.Printf("Skipping empty ingredient name in recipe for %q", entry.Dish)
				continue
			}
			if seen[key] {
				log.Printf("Skipping duplicate ingredient %q in recipe for %q", req.Name, entry.Dish)
				continue
			}
			seen[key] = true
			if req.Quantity <= 0 {
				req.Quantity = 1
			}
			normalized.Ingredients = append(normalized.Ingredients, req)
			next.byIngredient[key] = append(next.byIngredient[key], dishKey)
		}
		if len(normalized.Ingredients) == 0 {
			log.Printf("Skipping recipe for %q: no valid ingredients", entry.Dish)
			continue
		}
		next.byDish[dishKey] = normalized
	}

	for key := range next.byIngredient {
		sort.Strings(next.byIngredient[key])
	}

	c.snap.Store(next)
}

// IngredientsForDish returns the dish's required ingredients. An unknown dish
// returns nil, which callers treat as "no recipe constraint", not an error.
func (c *Catalog) IngredientsForDish(dish string) []Requirement {
	snap := c.snap.Load().(*snapshot)
	entry, ok := snap.byDish[models.CanonicalName(dish)]
	if !ok {
		return nil
	}
	out := make([]Requirement, len(entry.Ingredients))
	copy(out, entry.Ingredients)
	return out
}

// DishesForIngredient returns the canonical names of every dish whose recipe
// uses the given ingredient
func (c *Catalog) DishesForIngredient(ingredient string) []string {
	snap := c.snap.Load().(*snapshot)
	dishes := snap.byIngredient[models.CanonicalName(ingredient)]
	out := make([]string, len(dishes))
	copy(out, dishes)
	return out
}

// DisplayName returns the configured display name for a canonical dish key
func (c *Catalog) DisplayName(dish string) string {
	snap := c.snap.Load().(*snapshot)
	if entry, ok := snap.byDish[models.CanonicalName(dish)]; ok {
		return entry.Dish
	}
	return dish
}

// Dishes returns the canonical names of every dish with a recipe entry
func (c *Catalog) Dishes() []string {
	snap := c.snap.Load().(*snapshot)
	out := make([]string, 0, len(snap.byDish))
	for key := range snap.byDish {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of loaded recipe entries
func (c *Catalog) Len() int {
	return len(c.snap.Load().(*snapshot).byDish)
}
