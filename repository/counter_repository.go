package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clickwars/clickwars/models"
	"github.com/clickwars/clickwars/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CounterRepositoryImpl implements CounterRepository interface
type CounterRepositoryImpl struct {
	*BaseRepository[models.Counter, models.CounterFilter]
}

// NewCounterRepository creates a new counter repository
func NewCounterRepository(db *gorm.DB) CounterRepository {
	return &CounterRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Counter, models.CounterFilter](db),
	}
}

// ByColor finds a counter by its color
func (r *CounterRepositoryImpl) ByColor(ctx context.Context, color string) (*models.Counter, error) {
	db := r.getDB(ctx)
	var counter models.Counter
	err := db.Where("color = ?", color).Last(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &counter, nil
}

// All returns every counter row ordered by color
func (r *CounterRepositoryImpl) All(ctx context.Context) ([]*models.Counter, error) {
	db := r.getDB(ctx)
	var counters []*models.Counter
	if err := db.Order("color ASC").Find(&counters).Error; err != nil {
		return nil, err
	}
	return counters, nil
}

// Increment atomically adds amount to the counter identified by color and
// appends one history entry in the same transaction. The target row is locked
// with SELECT ... FOR UPDATE so concurrent increments on the same color
// serialize; increments on different colors proceed independently.
func (r *CounterRepositoryImpl) Increment(ctx context.Context, color string, amount int64, clientInfo json.RawMessage, sessionID *string) (*IncrementResult, error) {
	if amount < 1 {
		return nil, fmt.Errorf("increment amount must be positive, got %d", amount)
	}

	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	var counter models.Counter
	err = db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("color = ?", color).
		First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = fmt.Errorf("counter %q: %w", color, gorm.ErrRecordNotFound)
		}
		return nil, err
	}

	previous := counter.Count
	now := utils.UTCNow()

	err = db.Model(&models.Counter{}).
		Where("id = ?", counter.ID).
		Updates(map[string]any{
			"count":      previous + amount,
			"updated_at": now,
		}).Error
	if err != nil {
		return nil, err
	}

	entry := &models.CounterHistory{
		Color:           color,
		PreviousCount:   previous,
		NewCount:        previous + amount,
		IncrementAmount: amount,
		ClientInfo:      clientInfo,
		SessionID:       sessionID,
		Timestamp:       now,
	}
	if err = db.Create(entry).Error; err != nil {
		return nil, err
	}

	return &IncrementResult{
		Color:         color,
		PreviousCount: previous,
		NewCount:      previous + amount,
		UpdatedAt:     now,
	}, nil
}

// ResetAll sets every counter to zero in one transaction and appends one
// history entry per previously non-zero counter, recording the pre-reset
// value as a negative increment. Either all counters reset or none do.
func (r *CounterRepositoryImpl) ResetAll(ctx context.Context, clientInfo json.RawMessage, sessionID *string) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	// Deterministic lock order keeps concurrent resets and increments
	// from deadlocking against each other.
	var counters []*models.Counter
	err = db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("color ASC").
		Find(&counters).Error
	if err != nil {
		return err
	}

	now := utils.UTCNow()
	for _, counter := range counters {
		if counter.Count == 0 {
			continue
		}

		err = db.Model(&models.Counter{}).
			Where("id = ?", counter.ID).
			Updates(map[string]any{
				"count":      0,
				"updated_at": now,
			}).Error
		if err != nil {
			return err
		}

		entry := &models.CounterHistory{
			Color:           counter.Color,
			PreviousCount:   counter.Count,
			NewCount:        0,
			IncrementAmount: -counter.Count,
			ClientInfo:      clientInfo,
			SessionID:       sessionID,
			Timestamp:       now,
		}
		if err = db.Create(entry).Error; err != nil {
			return err
		}
	}

	return nil
}

// Read returns the current value of every counter and the most recent
// updated_at across rows
func (r *CounterRepositoryImpl) Read(ctx context.Context) (*CountersSnapshot, error) {
	counters, err := r.All(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &CountersSnapshot{
		Counts: make(map[string]int64, len(counters)),
	}
	for _, counter := range counters {
		snapshot.Counts[counter.Color] = counter.Count
		if snapshot.LastUpdated == nil || counter.UpdatedAt.After(*snapshot.LastUpdated) {
			t := counter.UpdatedAt
			snapshot.LastUpdated = &t
		}
	}

	return snapshot, nil
}

// QueryStats joins live counter values with history entries recorded at or
// after since. Only positive increments count toward the aggregates; resets
// are excluded so the averages stay meaningful.
func (r *CounterRepositoryImpl) QueryStats(ctx context.Context, since time.Time) ([]*CounterStats, error) {
	db := r.getDB(ctx)

	var stats []*CounterStats
	err := db.Table("counters").
		Select(`counters.color,
			counters.count AS current_count,
			COUNT(h.id) AS total_increments,
			COALESCE(SUM(h.increment_amount), 0) AS total_increment_amount,
			COALESCE(AVG(h.increment_amount), 0) AS avg_increment,
			MIN(h.timestamp) AS first_increment_at,
			MAX(h.timestamp) AS last_increment_at`).
		Joins(`LEFT JOIN counter_history h
			ON h.color = counters.color
			AND h.increment_amount > 0
			AND h.timestamp >= ?`, since).
		Group("counters.color, counters.count").
		Order("counters.color ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// HealthCheck verifies database connectivity
func (r *CounterRepositoryImpl) HealthCheck(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
