package repository

import (
	"context"

	"github.com/clickwars/clickwars/models"
	"gorm.io/gorm"
)

// History pagination bounds. Requests above MaxHistoryLimit are served as if
// they had asked for exactly MaxHistoryLimit; negative offsets are served
// from the start.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 1000
)

// CounterHistoryRepositoryImpl implements CounterHistoryRepository interface
type CounterHistoryRepositoryImpl struct {
	*BaseRepository[models.CounterHistory, models.CounterHistoryFilter]
}

// NewCounterHistoryRepository creates a new counter history repository
func NewCounterHistoryRepository(db *gorm.DB) CounterHistoryRepository {
	return &CounterHistoryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CounterHistory, models.CounterHistoryFilter](db),
	}
}

func applyHistoryFilter(db *gorm.DB, filter models.CounterHistoryFilter) *gorm.DB {
	if filter.Color != nil {
		db = db.Where("color = ?", *filter.Color)
	}
	if filter.SessionID != nil {
		db = db.Where("session_id = ?", *filter.SessionID)
	}
	if filter.StartDate != nil {
		db = db.Where("timestamp >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		db = db.Where("timestamp <= ?", *filter.EndDate)
	}
	return db
}

// Query returns one page of history entries ordered by timestamp descending
// (most recent first), plus the total match count and a has-more flag.
func (r *CounterHistoryRepositoryImpl) Query(ctx context.Context, filter models.CounterHistoryFilter) (*HistoryPage, error) {
	db := r.getDB(ctx)

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var total int64
	query := applyHistoryFilter(db.Model(&models.CounterHistory{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var entries []*models.CounterHistory
	err := applyHistoryFilter(db.Model(&models.CounterHistory{}), filter).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	return &HistoryPage{
		Entries:    entries,
		TotalCount: total,
		HasMore:    int64(offset+len(entries)) < total,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

// CountByColor returns the number of history entries recorded for a color
func (r *CounterHistoryRepositoryImpl) CountByColor(ctx context.Context, color string) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.CounterHistory{}).Where("color = ?", color).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
