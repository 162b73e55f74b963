package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/clickwars/clickwars/app/dto"
	"github.com/clickwars/clickwars/config"
	"github.com/clickwars/clickwars/models"
	"github.com/clickwars/clickwars/repository"
	"github.com/clickwars/clickwars/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CounterFlow defines the counter use cases consumed by HTTP and WebSocket
// handlers. All failures surface as BusinessError; raw storage errors never
// cross this boundary.
type CounterFlow interface {
	IncrementCounter(ctx context.Context, color string, req *dto.IncrementRequest, metadata *ClientMetadata) (*dto.IncrementResponse, error)
	BatchIncrement(ctx context.Context, req *dto.BatchIncrementRequest, metadata *ClientMetadata) (*dto.BatchIncrementResponse, error)
	ResetAll(ctx context.Context, metadata *ClientMetadata) (*dto.ResetResponse, error)
	GetStatistics(ctx context.Context, timeRange string) (*dto.StatisticsResponse, error)
	GetHistory(ctx context.Context, query *dto.HistoryQuery) (*dto.HistoryResponse, error)
	GetCurrentCounters(ctx context.Context) (*dto.CurrentCountersResponse, error)
	GetHealth(ctx context.Context) (*dto.HealthResponse, error)

	SetNotifier(notifier MutationNotifier)
}

// timeWindows maps the accepted time-range labels to durations. Unknown
// labels deliberately fall back to the 24-hour default instead of being
// rejected; the statistics endpoint stays permissive for analytics use.
var timeWindows = map[string]time.Duration{
	"1 hour":   time.Hour,
	"6 hours":  6 * time.Hour,
	"12 hours": 12 * time.Hour,
	"24 hours": 24 * time.Hour,
	"7 days":   7 * 24 * time.Hour,
	"30 days":  30 * 24 * time.Hour,
}

// ResolveTimeRange returns the canonical label and duration for a requested
// time range, falling back to the 24-hour default for unrecognized labels
func ResolveTimeRange(label string) (string, time.Duration) {
	if d, ok := timeWindows[label]; ok {
		return label, d
	}
	return utils.DefaultTimeRange, timeWindows[utils.DefaultTimeRange]
}

type CounterFlowImpl struct {
	counterRepo repository.CounterRepository
	historyRepo repository.CounterHistoryRepository
	db          *gorm.DB
	rc          *redis.Client
	cacheConfig *config.CacheConfig
	notifier    MutationNotifier
}

func NewCounterFlow(
	counterRepo repository.CounterRepository,
	historyRepo repository.CounterHistoryRepository,
	db *gorm.DB,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
) CounterFlow {
	return &CounterFlowImpl{
		counterRepo: counterRepo,
		historyRepo: historyRepo,
		db:          db,
		rc:          rc,
		cacheConfig: cacheConfig,
		notifier:    NoopNotifier{},
	}
}

// SetNotifier wires the broadcast dispatcher in after construction. The flow
// and the dispatcher reference each other, so one side has to be attached
// late; a NoopNotifier covers the gap.
func (s *CounterFlowImpl) SetNotifier(notifier MutationNotifier) {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	s.notifier = notifier
}

// IncrementCounter validates inputs and delegates the atomic increment to
// the repository. On success the mutation is broadcast to subscribed
// WebSocket clients.
func (s *CounterFlowImpl) IncrementCounter(ctx context.Context, color string, req *dto.IncrementRequest, metadata *ClientMetadata) (resp *dto.IncrementResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("INCREMENT_COUNTER_FAILED", "Failed to increment counter", err)
		}
	}()

	if req == nil {
		req = &dto.IncrementRequest{}
	}

	result, err := s.incrementOne(ctx, color, req.IncrementBy, req.SessionID, metadata)
	if err != nil {
		return nil, err
	}

	s.invalidateStatsCache(ctx)
	s.notifier.NotifyMutation()

	return result, nil
}

// incrementOne performs validation plus one repository increment. Shared by
// the single and batch paths; does not invalidate caches or notify.
func (s *CounterFlowImpl) incrementOne(ctx context.Context, color string, incrementBy *int64, sessionID string, metadata *ClientMetadata) (*dto.IncrementResponse, error) {
	if !models.IsValidCounterColor(color) {
		return nil, ErrInvalidColor
	}

	amount := int64(1)
	if incrementBy != nil {
		amount = *incrementBy
	}
	if amount < 1 {
		return nil, ErrInvalidAmount
	}

	if metadata == nil {
		metadata = NewClientMetadata("", "")
	}
	if sessionID != "" {
		metadata.SetSessionID(sessionID)
	}

	var sessionPtr *string
	if metadata.SessionID != "" {
		sessionPtr = utils.ToPtr(metadata.SessionID)
	}

	result, err := s.counterRepo.Increment(ctx, color, amount, metadata.ToJSON(), sessionPtr)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The row is seeded at startup; a miss here is a
			// data-integrity signal, not a caller mistake.
			return nil, ErrCounterNotFound
		}
		return nil, err
	}

	return &dto.IncrementResponse{
		Color:         result.Color,
		PreviousCount: result.PreviousCount,
		NewCount:      result.NewCount,
		IncrementedBy: amount,
		Timestamp:     result.UpdatedAt.Format(time.RFC3339),
	}, nil
}

// BatchIncrement processes entries independently and sequentially. There is
// no atomicity across the batch: a failing item does not undo earlier ones.
// The overall Success flag is false whenever any item failed, even though
// each item's outcome remains inspectable.
func (s *CounterFlowImpl) BatchIncrement(ctx context.Context, req *dto.BatchIncrementRequest, metadata *ClientMetadata) (resp *dto.BatchIncrementResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("BATCH_INCREMENT_FAILED", "Failed to process batch increment", err)
		}
	}()

	if req == nil || len(req.Increments) == 0 {
		return nil, ErrBatchEmpty
	}
	if len(req.Increments) > utils.MaxBatchIncrementItems {
		return nil, ErrBatchTooLarge
	}

	results := make([]dto.BatchItemResult, 0, len(req.Increments))
	succeeded := 0

	for i, item := range req.Increments {
		itemResult := dto.BatchItemResult{
			Index: i,
			Color: item.Color,
		}

		data, itemErr := s.incrementOne(ctx, item.Color, item.IncrementBy, req.SessionID, metadata)
		if itemErr != nil {
			itemResult.Error = itemErr.Error()
		} else {
			itemResult.Success = true
			itemResult.Data = data
			succeeded++
		}

		results = append(results, itemResult)
	}

	if succeeded > 0 {
		s.invalidateStatsCache(ctx)
		s.notifier.NotifyMutation()
	}

	return &dto.BatchIncrementResponse{
		Success: succeeded == len(req.Increments),
		Summary: dto.BatchIncrementSummary{
			Total:     len(req.Increments),
			Succeeded: succeeded,
			Failed:    len(req.Increments) - succeeded,
		},
		Results: results,
	}, nil
}

// ResetAll atomically zeroes every counter. Admin attribution, when carried
// in the metadata, is logged but not required; the service has no account
// model.
func (s *CounterFlowImpl) ResetAll(ctx context.Context, metadata *ClientMetadata) (resp *dto.ResetResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("RESET_COUNTERS_FAILED", "Failed to reset counters", err)
		}
	}()

	if metadata == nil {
		metadata = NewClientMetadata("", "")
	}
	if actor := metadata.Additional["admin_actor"]; actor != "" {
		log.Printf("Counter reset requested by %s from %s", actor, metadata.IPAddress)
	}

	var sessionPtr *string
	if metadata.SessionID != "" {
		sessionPtr = utils.ToPtr(metadata.SessionID)
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.counterRepo.ResetAll(txCtx, metadata.ToJSON(), sessionPtr)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStatsCache(ctx)
	s.notifier.NotifyMutation()

	return &dto.ResetResponse{
		Message: "All counters reset successfully",
		ResetAt: utils.UTCNowRFC3339(),
	}, nil
}

// GetStatistics aggregates counter activity over a time window. Results are
// cached briefly in Redis per canonical label and invalidated on every
// successful mutation.
func (s *CounterFlowImpl) GetStatistics(ctx context.Context, timeRange string) (resp *dto.StatisticsResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("GET_STATISTICS_FAILED", "Failed to compute statistics", err)
		}
	}()

	label, window := ResolveTimeRange(timeRange)

	if s.rc != nil {
		if bs, cacheErr := s.rc.Get(ctx, s.statsCacheKey(label)).Bytes(); cacheErr == nil && len(bs) > 0 {
			var cached dto.StatisticsResponse
			if json.Unmarshal(bs, &cached) == nil {
				return &cached, nil
			}
		}
	}

	stats, err := s.counterRepo.QueryStats(ctx, utils.UTCNow().Add(-window))
	if err != nil {
		return nil, err
	}

	items := make([]dto.CounterStatsItem, 0, len(stats))
	for _, st := range stats {
		items = append(items, dto.CounterStatsItem{
			Color:                st.Color,
			CurrentCount:         st.CurrentCount,
			TotalIncrements:      st.TotalIncrements,
			TotalIncrementAmount: st.TotalIncrementAmount,
			AvgIncrement:         st.AvgIncrement,
			FirstIncrementAt:     formatTimePtr(st.FirstIncrementAt),
			LastIncrementAt:      formatTimePtr(st.LastIncrementAt),
		})
	}

	result := &dto.StatisticsResponse{
		TimeRange:   label,
		GeneratedAt: utils.UTCNowRFC3339(),
		Counters:    items,
	}

	if s.rc != nil {
		if bs, marshalErr := json.Marshal(result); marshalErr == nil {
			ttl := 30 * time.Second
			if s.cacheConfig != nil && s.cacheConfig.DefaultTTL > 0 {
				ttl = s.cacheConfig.DefaultTTL
			}
			_ = s.rc.Set(ctx, s.statsCacheKey(label), bs, ttl).Err()
		}
	}

	return result, nil
}

// GetHistory returns one page of the append-only audit log, most recent
// first. Limit and offset clamping happens in the repository.
func (s *CounterFlowImpl) GetHistory(ctx context.Context, query *dto.HistoryQuery) (resp *dto.HistoryResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("GET_HISTORY_FAILED", "Failed to query history", err)
		}
	}()

	if query == nil {
		query = &dto.HistoryQuery{}
	}

	filter := models.CounterHistoryFilter{
		Limit:  query.Limit,
		Offset: query.Offset,
	}

	if query.Color != "" {
		if !models.IsValidCounterColor(query.Color) {
			return nil, ErrInvalidColor
		}
		filter.Color = utils.ToPtr(query.Color)
	}
	if query.SessionID != "" {
		filter.SessionID = utils.ToPtr(query.SessionID)
	}

	if query.StartDate != "" {
		t, parseErr := time.Parse(time.RFC3339, query.StartDate)
		if parseErr != nil {
			return nil, ErrInvalidDateFormat
		}
		filter.StartDate = utils.ToPtr(t.UTC())
	}
	if query.EndDate != "" {
		t, parseErr := time.Parse(time.RFC3339, query.EndDate)
		if parseErr != nil {
			return nil, ErrInvalidDateFormat
		}
		filter.EndDate = utils.ToPtr(t.UTC())
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return nil, ErrStartDateAfterEndDate
	}

	page, err := s.historyRepo.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	entries := make([]dto.HistoryEntryItem, 0, len(page.Entries))
	for _, e := range page.Entries {
		entries = append(entries, dto.HistoryEntryItem{
			ID:              e.ID,
			Color:           e.Color,
			PreviousCount:   e.PreviousCount,
			NewCount:        e.NewCount,
			IncrementAmount: e.IncrementAmount,
			ClientInfo:      e.ClientInfo,
			SessionID:       e.SessionID,
			Timestamp:       e.Timestamp.Format(time.RFC3339),
		})
	}

	return &dto.HistoryResponse{
		Entries:    entries,
		TotalCount: page.TotalCount,
		HasMore:    page.HasMore,
		Limit:      page.Limit,
		Offset:     page.Offset,
	}, nil
}

// GetCurrentCounters returns a fresh snapshot of every counter
func (s *CounterFlowImpl) GetCurrentCounters(ctx context.Context) (resp *dto.CurrentCountersResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("GET_COUNTERS_FAILED", "Failed to read counters", err)
		}
	}()

	snapshot, err := s.counterRepo.Read(ctx)
	if err != nil {
		return nil, err
	}

	var lastUpdated *string
	if snapshot.LastUpdated != nil {
		lastUpdated = utils.ToPtr(snapshot.LastUpdated.UTC().Format(time.RFC3339))
	}

	return &dto.CurrentCountersResponse{
		Counters:    snapshot.Counts,
		LastUpdated: lastUpdated,
	}, nil
}

// GetHealth aggregates the storage health check with a counter snapshot.
// It never returns an error; failures degrade the reported status instead.
func (s *CounterFlowImpl) GetHealth(ctx context.Context) (*dto.HealthResponse, error) {
	resp := &dto.HealthResponse{
		Status:    "healthy",
		Database:  "connected",
		Timestamp: utils.UTCNowRFC3339(),
	}

	if err := s.counterRepo.HealthCheck(ctx); err != nil {
		log.Printf("Health check: database unreachable: %v", err)
		resp.Status = "unhealthy"
		resp.Database = "unreachable"
		return resp, nil
	}

	snapshot, err := s.counterRepo.Read(ctx)
	if err != nil {
		log.Printf("Health check: counter snapshot failed: %v", err)
		resp.Status = "unhealthy"
		return resp, nil
	}

	resp.Counters = snapshot.Counts
	return resp, nil
}

func (s *CounterFlowImpl) statsCacheKey(label string) string {
	prefix := "clickwars"
	if s.cacheConfig != nil && s.cacheConfig.RedisPrefix != "" {
		prefix = s.cacheConfig.RedisPrefix
	}
	return prefix + ":stats:" + label
}

// invalidateStatsCache drops every cached statistics window. Best-effort;
// a failed delete only means one stale read within the TTL.
func (s *CounterFlowImpl) invalidateStatsCache(ctx context.Context) {
	if s.rc == nil {
		return
	}
	for label := range timeWindows {
		_ = s.rc.Del(ctx, s.statsCacheKey(label)).Err()
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return utils.ToPtr(t.UTC().Format(time.RFC3339))
}
