// Package models contains domain entities and business models for the counter tracking system
package models

import (
	"time"
)

// Counter color constants
const (
	CounterColorRed  = "red"
	CounterColorBlue = "blue"
)

// AllCounterColors lists every color that must exist as a counter row.
// Rows are seeded at startup and never deleted.
var AllCounterColors = []string{CounterColorRed, CounterColorBlue}

// IsValidCounterColor reports whether color names a known counter
func IsValidCounterColor(color string) bool {
	for _, c := range AllCounterColors {
		if c == color {
			return true
		}
	}
	return false
}

// Counter represents one durable named counter ("red" or "blue")
// Table: counters
// Unique by Color value; exactly one row per valid color exists after seeding
// Mutated only through the atomic increment/reset path under a row lock
type Counter struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Color string `gorm:"size:16;not null;uniqueIndex:uk_counters_color" json:"color"`
	Count int64  `gorm:"not null;default:0" json:"count"`

	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Counter) TableName() string {
	return "counters"
}

// CounterFilter represents filter criteria for counter queries
type CounterFilter struct {
	ID    *uint
	Color *string
}
