package dto

import (
	"encoding/json"
)

// IncrementRequest is the body for incrementing a single counter.
// IncrementBy defaults to 1 when omitted; zero and negative values are
// rejected before touching storage.
type IncrementRequest struct {
	IncrementBy *int64 `json:"increment_by,omitempty" validate:"omitempty,gte=1"`
	SessionID   string `json:"session_id,omitempty" validate:"omitempty,max=255"`
}

// IncrementResponse reports the outcome of one successful increment
type IncrementResponse struct {
	Color         string `json:"color"`
	PreviousCount int64  `json:"previous_count"`
	NewCount      int64  `json:"new_count"`
	IncrementedBy int64  `json:"incremented_by"`
	Timestamp     string `json:"timestamp"`
}

// BatchIncrementItem is one entry in a batch increment request
type BatchIncrementItem struct {
	Color       string `json:"color" validate:"required"`
	IncrementBy *int64 `json:"increment_by,omitempty"`
}

// BatchIncrementRequest increments several counters in one call. Items are
// processed independently and sequentially; there is no atomicity across
// the batch.
type BatchIncrementRequest struct {
	Increments []BatchIncrementItem `json:"increments" validate:"required,min=1,max=100,dive"`
	SessionID  string               `json:"session_id,omitempty" validate:"omitempty,max=255"`
}

// BatchItemResult is the inspectable per-item outcome of a batch increment
type BatchItemResult struct {
	Index   int                `json:"index"`
	Color   string             `json:"color"`
	Success bool               `json:"success"`
	Data    *IncrementResponse `json:"data,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// BatchIncrementSummary counts batch outcomes
type BatchIncrementSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BatchIncrementResponse partitions batch outcomes. Success is false
// whenever any item failed, even if others succeeded; callers inspect the
// per-item results for detail.
type BatchIncrementResponse struct {
	Success bool                  `json:"success"`
	Summary BatchIncrementSummary `json:"summary"`
	Results []BatchItemResult     `json:"results"`
}

// ResetResponse confirms an all-counters reset
type ResetResponse struct {
	Message string `json:"message"`
	ResetAt string `json:"reset_at"`
}

// CurrentCountersResponse is a full snapshot of every counter
type CurrentCountersResponse struct {
	Counters    map[string]int64 `json:"counters"`
	LastUpdated *string          `json:"last_updated,omitempty"`
}

// CounterStatsItem is one per-color aggregate inside a statistics response
type CounterStatsItem struct {
	Color                string  `json:"color"`
	CurrentCount         int64   `json:"current_count"`
	TotalIncrements      int64   `json:"total_increments"`
	TotalIncrementAmount int64   `json:"total_increment_amount"`
	AvgIncrement         float64 `json:"avg_increment"`
	FirstIncrementAt     *string `json:"first_increment_at,omitempty"`
	LastIncrementAt      *string `json:"last_increment_at,omitempty"`
}

// StatisticsResponse aggregates counter activity over a time window
type StatisticsResponse struct {
	TimeRange   string             `json:"time_range"`
	GeneratedAt string             `json:"generated_at"`
	Counters    []CounterStatsItem `json:"counters"`
}

// HistoryQuery carries history filters from the boundary into the flow.
// Dates are RFC3339 strings; limit and offset are clamped downstream.
type HistoryQuery struct {
	Color     string `json:"color,omitempty" validate:"omitempty,oneof=red blue"`
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=255"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// HistoryEntryItem is one audit record in a history response
type HistoryEntryItem struct {
	ID              uint            `json:"id"`
	Color           string          `json:"color"`
	PreviousCount   int64           `json:"previous_count"`
	NewCount        int64           `json:"new_count"`
	IncrementAmount int64           `json:"increment_amount"`
	ClientInfo      json.RawMessage `json:"client_info,omitempty"`
	SessionID       *string         `json:"session_id,omitempty"`
	Timestamp       string          `json:"timestamp"`
}

// HistoryResponse is one page of history entries plus pagination metadata
type HistoryResponse struct {
	Entries    []HistoryEntryItem `json:"entries"`
	TotalCount int64              `json:"total_count"`
	HasMore    bool               `json:"has_more"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

// HealthResponse reports service and storage health
type HealthResponse struct {
	Status    string           `json:"status"`
	Database  string           `json:"database"`
	Counters  map[string]int64 `json:"counters,omitempty"`
	Timestamp string           `json:"timestamp"`
}
