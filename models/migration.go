// Package models contains domain entities and business models for the counter tracking system
package models

import (
	"time"
)

// Migration records one applied schema migration by name.
// The ledger makes startup migrations idempotent across restarts.
type Migration struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:uk_migrations_name" json:"name"`
	AppliedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"applied_at"`
}

func (Migration) TableName() string {
	return "migrations"
}
