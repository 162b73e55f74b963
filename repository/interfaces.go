// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/clickwars/clickwars/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// IncrementResult reports the outcome of one atomic counter increment
type IncrementResult struct {
	Color         string
	PreviousCount int64
	NewCount      int64
	UpdatedAt     time.Time
}

// CountersSnapshot holds the current value of every counter plus the most
// recent update time across all rows (nil when no counter was ever touched)
type CountersSnapshot struct {
	Counts      map[string]int64
	LastUpdated *time.Time
}

// CounterStats is a per-color aggregate over live counter values joined with
// history entries inside a time window
type CounterStats struct {
	Color                string     `json:"color"`
	CurrentCount         int64      `json:"current_count"`
	TotalIncrements      int64      `json:"total_increments"`
	TotalIncrementAmount int64      `json:"total_increment_amount"`
	AvgIncrement         float64    `json:"avg_increment"`
	FirstIncrementAt     *time.Time `json:"first_increment_at,omitempty"`
	LastIncrementAt      *time.Time `json:"last_increment_at,omitempty"`
}

// HistoryPage is one page of history entries plus pagination metadata
type HistoryPage struct {
	Entries    []*models.CounterHistory
	TotalCount int64
	HasMore    bool
	Limit      int
	Offset     int
}

// CounterRepository defines operations for counters
type CounterRepository interface {
	ByColor(ctx context.Context, color string) (*models.Counter, error)
	All(ctx context.Context) ([]*models.Counter, error)
	Increment(ctx context.Context, color string, amount int64, clientInfo json.RawMessage, sessionID *string) (*IncrementResult, error)
	ResetAll(ctx context.Context, clientInfo json.RawMessage, sessionID *string) error
	Read(ctx context.Context) (*CountersSnapshot, error)
	QueryStats(ctx context.Context, since time.Time) ([]*CounterStats, error)
	HealthCheck(ctx context.Context) error
}

// CounterHistoryRepository defines operations for the append-only history log
type CounterHistoryRepository interface {
	Save(ctx context.Context, entry *models.CounterHistory) error
	SaveBatch(ctx context.Context, entries []*models.CounterHistory) error
	Query(ctx context.Context, filter models.CounterHistoryFilter) (*HistoryPage, error)
	CountByColor(ctx context.Context, color string) (int64, error)
}
