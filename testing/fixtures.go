package testing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/clickwars/clickwars/models"
	"github.com/clickwars/clickwars/utils"
)

// SetCounterValue overwrites one counter's value directly, bypassing the
// increment path. Used to arrange state before exercising reads.
func (tdb *TestDB) SetCounterValue(color string, count int64) error {
	result := tdb.DB.Model(&models.Counter{}).
		Where("color = ?", color).
		Updates(map[string]any{
			"count":      count,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set counter %s: %w", color, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("counter %s not found", color)
	}
	return nil
}

// InsertHistoryEntry appends one audit record with the given color, amount,
// and timestamp offset from now
func (tdb *TestDB) InsertHistoryEntry(color string, amount int64, age time.Duration) (*models.CounterHistory, error) {
	entry := &models.CounterHistory{
		Color:           color,
		PreviousCount:   0,
		NewCount:        amount,
		IncrementAmount: amount,
		ClientInfo:      json.RawMessage(`{"ip_address":"127.0.0.1","user_agent":"fixtures"}`),
		Timestamp:       utils.UTCNow().Add(-age),
	}
	if err := tdb.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to insert history entry: %w", err)
	}
	return entry, nil
}

// InsertHistoryEntries appends n one-step increments for a color, spaced one
// second apart going back in time
func (tdb *TestDB) InsertHistoryEntries(color string, n int) ([]*models.CounterHistory, error) {
	entries := make([]*models.CounterHistory, 0, n)
	for i := 0; i < n; i++ {
		entry, err := tdb.InsertHistoryEntry(color, 1, time.Duration(i)*time.Second)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
