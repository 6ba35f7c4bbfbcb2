package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/jinzhu/gorm"
)

// StringSlice represents a slice of strings that can be stored in the database
type StringSlice []string

// Value converts the slice to a JSON string for storage
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	return json.Marshal(s)
}

// Scan converts the database value back to a slice
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("unsupported type for StringSlice")
	}
}

// DishAvailability is the cached availability projection for one dish.
// It is recomputed from inventory plus the recipe catalog and is never the
// source of truth; a dish is available iff every required ingredient exists
// and has stock above zero.
type DishAvailability struct {
	gorm.Model
	Dish               string `gorm:"unique_index"` // canonical dish name
	DisplayName        string
	Available          bool
	MissingIngredients StringSlice `gorm:"type:text"`
}

// TableName sets the table name for DishAvailability
func (DishAvailability) TableName() string {
	return "dish_availability"
}
