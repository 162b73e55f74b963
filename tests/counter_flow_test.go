package tests

import (
	"testing"
	"time"

	"github.com/clickwars/clickwars/app/dto"
	businessflow "github.com/clickwars/clickwars/business_flow"
	"github.com/clickwars/clickwars/models"
	"github.com/clickwars/clickwars/repository"
	testingutil "github.com/clickwars/clickwars/testing"
	"github.com/clickwars/clickwars/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// countingNotifier records how often the flow announced a mutation
type countingNotifier struct {
	calls int
}

func (n *countingNotifier) NotifyMutation() {
	n.calls++
}

func newTestFlow(db *gorm.DB) businessflow.CounterFlow {
	counterRepo := repository.NewCounterRepository(db)
	historyRepo := repository.NewCounterHistoryRepository(db)
	return businessflow.NewCounterFlow(counterRepo, historyRepo, db, nil, nil)
}

func TestCounterFlowIncrement(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTestFlow(testDB.DB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "tests")

		t.Run("DefaultsToOne", func(t *testing.T) {
			resp, err := flow.IncrementCounter(ctx, models.CounterColorRed, &dto.IncrementRequest{}, metadata)
			require.NoError(t, err)
			assert.Equal(t, int64(1), resp.IncrementedBy)
			assert.Equal(t, int64(0), resp.PreviousCount)
			assert.Equal(t, int64(1), resp.NewCount)
		})

		t.Run("ExplicitAmount", func(t *testing.T) {
			resp, err := flow.IncrementCounter(ctx, models.CounterColorRed, &dto.IncrementRequest{
				IncrementBy: utils.ToPtr(int64(10)),
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, int64(10), resp.IncrementedBy)
			assert.Equal(t, int64(11), resp.NewCount)
		})

		t.Run("NilRequest", func(t *testing.T) {
			resp, err := flow.IncrementCounter(ctx, models.CounterColorBlue, nil, metadata)
			require.NoError(t, err)
			assert.Equal(t, int64(1), resp.IncrementedBy)
		})

		t.Run("InvalidColor", func(t *testing.T) {
			_, err := flow.IncrementCounter(ctx, "green", &dto.IncrementRequest{}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidColor(err))
		})

		t.Run("InvalidAmount", func(t *testing.T) {
			_, err := flow.IncrementCounter(ctx, models.CounterColorRed, &dto.IncrementRequest{
				IncrementBy: utils.ToPtr(int64(0)),
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidAmount(err))

			_, err = flow.IncrementCounter(ctx, models.CounterColorRed, &dto.IncrementRequest{
				IncrementBy: utils.ToPtr(int64(-5)),
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidAmount(err))
		})

		t.Run("NotifiesOnSuccess", func(t *testing.T) {
			notifier := &countingNotifier{}
			flow.SetNotifier(notifier)
			defer flow.SetNotifier(nil)

			_, err := flow.IncrementCounter(ctx, models.CounterColorRed, &dto.IncrementRequest{}, metadata)
			require.NoError(t, err)
			assert.Equal(t, 1, notifier.calls)

			_, err = flow.IncrementCounter(ctx, "green", &dto.IncrementRequest{}, metadata)
			require.Error(t, err)
			assert.Equal(t, 1, notifier.calls)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCounterFlowBatchIncrement(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTestFlow(testDB.DB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "tests")

		t.Run("AllSucceed", func(t *testing.T) {
			resp, err := flow.BatchIncrement(ctx, &dto.BatchIncrementRequest{
				Increments: []dto.BatchIncrementItem{
					{Color: models.CounterColorRed},
					{Color: models.CounterColorBlue, IncrementBy: utils.ToPtr(int64(3))},
				},
			}, metadata)
			require.NoError(t, err)
			assert.True(t, resp.Success)
			assert.Equal(t, 2, resp.Summary.Total)
			assert.Equal(t, 2, resp.Summary.Succeeded)
			assert.Zero(t, resp.Summary.Failed)
		})

		t.Run("PartialFailure", func(t *testing.T) {
			resp, err := flow.BatchIncrement(ctx, &dto.BatchIncrementRequest{
				Increments: []dto.BatchIncrementItem{
					{Color: models.CounterColorRed},
					{Color: "green"},
					{Color: models.CounterColorBlue},
				},
			}, metadata)
			require.NoError(t, err)

			// Any failed item makes the whole response unsuccessful, but the
			// successful items are not rolled back
			assert.False(t, resp.Success)
			assert.Equal(t, 3, resp.Summary.Total)
			assert.Equal(t, 2, resp.Summary.Succeeded)
			assert.Equal(t, 1, resp.Summary.Failed)

			require.Len(t, resp.Results, 3)
			assert.True(t, resp.Results[0].Success)
			assert.False(t, resp.Results[1].Success)
			assert.NotEmpty(t, resp.Results[1].Error)
			assert.True(t, resp.Results[2].Success)

			counters, err := flow.GetCurrentCounters(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(2), counters.Counters[models.CounterColorRed])
		})

		t.Run("Empty", func(t *testing.T) {
			_, err := flow.BatchIncrement(ctx, &dto.BatchIncrementRequest{}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsBatchEmpty(err))
		})

		t.Run("TooLarge", func(t *testing.T) {
			items := make([]dto.BatchIncrementItem, utils.MaxBatchIncrementItems+1)
			for i := range items {
				items[i] = dto.BatchIncrementItem{Color: models.CounterColorRed}
			}
			_, err := flow.BatchIncrement(ctx, &dto.BatchIncrementRequest{Increments: items}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsBatchTooLarge(err))
		})

		t.Run("NotifiesOncePerBatch", func(t *testing.T) {
			notifier := &countingNotifier{}
			flow.SetNotifier(notifier)
			defer flow.SetNotifier(nil)

			_, err := flow.BatchIncrement(ctx, &dto.BatchIncrementRequest{
				Increments: []dto.BatchIncrementItem{
					{Color: models.CounterColorRed},
					{Color: models.CounterColorBlue},
				},
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, 1, notifier.calls)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCounterFlowResetAll(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTestFlow(testDB.DB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "tests")
		metadata.AddAdditional("admin_actor", "ops@example.com")

		require.NoError(t, testDB.SetCounterValue(models.CounterColorRed, 42))
		require.NoError(t, testDB.SetCounterValue(models.CounterColorBlue, 17))

		resp, err := flow.ResetAll(ctx, metadata)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.ResetAt)

		counters, err := flow.GetCurrentCounters(ctx)
		require.NoError(t, err)
		assert.Zero(t, counters.Counters[models.CounterColorRed])
		assert.Zero(t, counters.Counters[models.CounterColorBlue])

		return nil
	})
	require.NoError(t, err)
}

func TestCounterFlowStatistics(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTestFlow(testDB.DB)
		ctx := testingutil.CreateTestContext()

		_, err := testDB.InsertHistoryEntry(models.CounterColorRed, 2, 30*time.Minute)
		require.NoError(t, err)
		_, err = testDB.InsertHistoryEntry(models.CounterColorRed, 4, 3*time.Hour)
		require.NoError(t, err)

		t.Run("KnownRange", func(t *testing.T) {
			resp, err := flow.GetStatistics(ctx, "1 hour")
			require.NoError(t, err)
			assert.Equal(t, "1 hour", resp.TimeRange)
			require.Len(t, resp.Counters, 2)

			for _, item := range resp.Counters {
				if item.Color == models.CounterColorRed {
					assert.Equal(t, int64(1), item.TotalIncrements)
					assert.Equal(t, int64(2), item.TotalIncrementAmount)
				}
			}
		})

		t.Run("UnknownRangeFallsBack", func(t *testing.T) {
			resp, err := flow.GetStatistics(ctx, "17 fortnights")
			require.NoError(t, err)
			assert.Equal(t, utils.DefaultTimeRange, resp.TimeRange)

			for _, item := range resp.Counters {
				if item.Color == models.CounterColorRed {
					assert.Equal(t, int64(2), item.TotalIncrements)
				}
			}
		})

		t.Run("EmptyRangeFallsBack", func(t *testing.T) {
			resp, err := flow.GetStatistics(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, utils.DefaultTimeRange, resp.TimeRange)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCounterFlowHistory(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTestFlow(testDB.DB)
		ctx := testingutil.CreateTestContext()

		_, err := testDB.InsertHistoryEntries(models.CounterColorRed, 4)
		require.NoError(t, err)

		t.Run("Defaults", func(t *testing.T) {
			resp, err := flow.GetHistory(ctx, &dto.HistoryQuery{})
			require.NoError(t, err)
			assert.Len(t, resp.Entries, 4)
			assert.Equal(t, repository.DefaultHistoryLimit, resp.Limit)
		})

		t.Run("InvalidColor", func(t *testing.T) {
			_, err := flow.GetHistory(ctx, &dto.HistoryQuery{Color: "green"})
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidColor(err))
		})

		t.Run("InvalidDateFormat", func(t *testing.T) {
			_, err := flow.GetHistory(ctx, &dto.HistoryQuery{StartDate: "yesterday"})
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidDateFormat(err))
		})

		t.Run("StartAfterEnd", func(t *testing.T) {
			now := utils.UTCNow()
			_, err := flow.GetHistory(ctx, &dto.HistoryQuery{
				StartDate: now.Format(time.RFC3339),
				EndDate:   now.Add(-time.Hour).Format(time.RFC3339),
			})
			require.Error(t, err)
			assert.True(t, businessflow.IsStartDateAfterEndDate(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCounterFlowHealth(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTestFlow(testDB.DB)
		ctx := testingutil.CreateTestContext()

		resp, err := flow.GetHealth(ctx)
		require.NoError(t, err)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "connected", resp.Database)
		assert.Contains(t, resp.Counters, models.CounterColorRed)
		assert.Contains(t, resp.Counters, models.CounterColorBlue)

		return nil
	})
	require.NoError(t, err)
}

func TestResolveTimeRange(t *testing.T) {
	label, window := businessflow.ResolveTimeRange("7 days")
	assert.Equal(t, "7 days", label)
	assert.Equal(t, 7*24*time.Hour, window)

	label, window = businessflow.ResolveTimeRange("nonsense")
	assert.Equal(t, utils.DefaultTimeRange, label)
	assert.Equal(t, 24*time.Hour, window)
}
