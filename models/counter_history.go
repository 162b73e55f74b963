// Package models contains domain entities and business models for the counter tracking system
package models

import (
	"encoding/json"
	"time"
)

// CounterHistory is an append-only audit record of one counter mutation.
// Invariant: NewCount = PreviousCount + IncrementAmount for every row.
// IncrementAmount is signed; resets are recorded as negative increments.
// Rows are never updated or deleted.
type CounterHistory struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Color           string `gorm:"size:16;not null;index:idx_counter_history_color" json:"color"`
	PreviousCount   int64  `gorm:"not null" json:"previous_count"`
	NewCount        int64  `gorm:"not null" json:"new_count"`
	IncrementAmount int64  `gorm:"not null" json:"increment_amount"`

	ClientInfo json.RawMessage `gorm:"type:jsonb" json:"client_info,omitempty"`
	SessionID  *string         `gorm:"size:255;index:idx_counter_history_session_id" json:"session_id,omitempty"`

	Timestamp time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_counter_history_timestamp" json:"timestamp"`
}

func (CounterHistory) TableName() string {
	return "counter_history"
}

// CounterHistoryFilter represents filter criteria for history queries.
// Limit is clamped to at most 1000 and Offset to at least 0 by the repository.
type CounterHistoryFilter struct {
	Color     *string
	SessionID *string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}
