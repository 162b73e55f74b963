// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/clickwars/clickwars/models"
	"github.com/clickwars/clickwars/repository"
	testingutil "github.com/clickwars/clickwars/testing"
	"github.com/clickwars/clickwars/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClientInfo = json.RawMessage(`{"ip_address":"127.0.0.1","user_agent":"tests"}`)

func TestCounterRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewCounterRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		t.Run("SeededCounters", func(t *testing.T) {
			counters, err := repo.All(ctx)
			require.NoError(t, err)
			require.Len(t, counters, 2)
			assert.Equal(t, models.CounterColorBlue, counters[0].Color)
			assert.Equal(t, models.CounterColorRed, counters[1].Color)
			assert.Zero(t, counters[0].Count)
			assert.Zero(t, counters[1].Count)
		})

		t.Run("ByColor", func(t *testing.T) {
			counter, err := repo.ByColor(ctx, models.CounterColorRed)
			require.NoError(t, err)
			require.NotNil(t, counter)
			assert.Equal(t, models.CounterColorRed, counter.Color)
		})

		t.Run("ByColorNotFound", func(t *testing.T) {
			counter, err := repo.ByColor(ctx, "green")
			assert.NoError(t, err)
			assert.Nil(t, counter)
		})

		t.Run("Increment", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			require.NoError(t, testDB.DB.Create(&models.Counter{Color: models.CounterColorRed, Count: 0, UpdatedAt: utils.UTCNow()}).Error)
			require.NoError(t, testDB.DB.Create(&models.Counter{Color: models.CounterColorBlue, Count: 0, UpdatedAt: utils.UTCNow()}).Error)

			result, err := repo.Increment(ctx, models.CounterColorRed, 3, testClientInfo, nil)
			require.NoError(t, err)
			assert.Equal(t, int64(0), result.PreviousCount)
			assert.Equal(t, int64(3), result.NewCount)

			result, err = repo.Increment(ctx, models.CounterColorRed, 1, testClientInfo, nil)
			require.NoError(t, err)
			assert.Equal(t, int64(3), result.PreviousCount)
			assert.Equal(t, int64(4), result.NewCount)

			// The other counter is untouched
			blue, err := repo.ByColor(ctx, models.CounterColorBlue)
			require.NoError(t, err)
			assert.Zero(t, blue.Count)
		})

		t.Run("IncrementWritesHistory", func(t *testing.T) {
			historyRepo := repository.NewCounterHistoryRepository(testDB.DB)

			before, err := historyRepo.CountByColor(ctx, models.CounterColorBlue)
			require.NoError(t, err)

			sessionID := "session-abc"
			_, err = repo.Increment(ctx, models.CounterColorBlue, 5, testClientInfo, &sessionID)
			require.NoError(t, err)

			after, err := historyRepo.CountByColor(ctx, models.CounterColorBlue)
			require.NoError(t, err)
			assert.Equal(t, before+1, after)

			page, err := historyRepo.Query(ctx, models.CounterHistoryFilter{
				Color: utils.ToPtr(models.CounterColorBlue),
				Limit: 1,
			})
			require.NoError(t, err)
			require.Len(t, page.Entries, 1)
			entry := page.Entries[0]
			assert.Equal(t, int64(5), entry.IncrementAmount)
			require.NotNil(t, entry.SessionID)
			assert.Equal(t, sessionID, *entry.SessionID)
		})

		t.Run("IncrementUnknownColor", func(t *testing.T) {
			result, err := repo.Increment(ctx, "green", 1, testClientInfo, nil)
			assert.Error(t, err)
			assert.Nil(t, result)
		})

		t.Run("IncrementRejectsNonPositive", func(t *testing.T) {
			_, err := repo.Increment(ctx, models.CounterColorRed, 0, testClientInfo, nil)
			assert.Error(t, err)
			_, err = repo.Increment(ctx, models.CounterColorRed, -2, testClientInfo, nil)
			assert.Error(t, err)
		})

		t.Run("ConcurrentIncrements", func(t *testing.T) {
			require.NoError(t, testDB.SetCounterValue(models.CounterColorRed, 0))

			const workers = 10
			const perWorker = 5

			var wg sync.WaitGroup
			errs := make(chan error, workers*perWorker)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < perWorker; j++ {
						if _, err := repo.Increment(ctx, models.CounterColorRed, 1, testClientInfo, nil); err != nil {
							errs <- err
						}
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			counter, err := repo.ByColor(ctx, models.CounterColorRed)
			require.NoError(t, err)
			assert.Equal(t, int64(workers*perWorker), counter.Count)
		})

		t.Run("Read", func(t *testing.T) {
			require.NoError(t, testDB.SetCounterValue(models.CounterColorRed, 7))
			require.NoError(t, testDB.SetCounterValue(models.CounterColorBlue, 2))

			snapshot, err := repo.Read(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(7), snapshot.Counts[models.CounterColorRed])
			assert.Equal(t, int64(2), snapshot.Counts[models.CounterColorBlue])
			assert.NotNil(t, snapshot.LastUpdated)
		})

		t.Run("ResetAll", func(t *testing.T) {
			historyRepo := repository.NewCounterHistoryRepository(testDB.DB)

			require.NoError(t, testDB.SetCounterValue(models.CounterColorRed, 9))
			require.NoError(t, testDB.SetCounterValue(models.CounterColorBlue, 0))

			redBefore, err := historyRepo.CountByColor(ctx, models.CounterColorRed)
			require.NoError(t, err)
			blueBefore, err := historyRepo.CountByColor(ctx, models.CounterColorBlue)
			require.NoError(t, err)

			require.NoError(t, repo.ResetAll(ctx, testClientInfo, nil))

			snapshot, err := repo.Read(ctx)
			require.NoError(t, err)
			assert.Zero(t, snapshot.Counts[models.CounterColorRed])
			assert.Zero(t, snapshot.Counts[models.CounterColorBlue])

			// Only the previously non-zero counter gets a history entry
			redAfter, err := historyRepo.CountByColor(ctx, models.CounterColorRed)
			require.NoError(t, err)
			assert.Equal(t, redBefore+1, redAfter)
			blueAfter, err := historyRepo.CountByColor(ctx, models.CounterColorBlue)
			require.NoError(t, err)
			assert.Equal(t, blueBefore, blueAfter)

			// The reset entry records the pre-reset value as a negative amount
			page, err := historyRepo.Query(ctx, models.CounterHistoryFilter{
				Color: utils.ToPtr(models.CounterColorRed),
				Limit: 1,
			})
			require.NoError(t, err)
			require.Len(t, page.Entries, 1)
			assert.Equal(t, int64(-9), page.Entries[0].IncrementAmount)
			assert.Equal(t, int64(9), page.Entries[0].PreviousCount)
			assert.Equal(t, int64(0), page.Entries[0].NewCount)
		})

		t.Run("QueryStats", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			require.NoError(t, testDB.DB.Create(&models.Counter{Color: models.CounterColorRed, Count: 0, UpdatedAt: utils.UTCNow()}).Error)
			require.NoError(t, testDB.DB.Create(&models.Counter{Color: models.CounterColorBlue, Count: 0, UpdatedAt: utils.UTCNow()}).Error)

			// Two recent increments plus one outside the window and one reset
			_, err := testDB.InsertHistoryEntry(models.CounterColorRed, 2, time.Minute)
			require.NoError(t, err)
			_, err = testDB.InsertHistoryEntry(models.CounterColorRed, 4, 2*time.Minute)
			require.NoError(t, err)
			_, err = testDB.InsertHistoryEntry(models.CounterColorRed, 10, 48*time.Hour)
			require.NoError(t, err)
			_, err = testDB.InsertHistoryEntry(models.CounterColorRed, -6, time.Minute)
			require.NoError(t, err)

			stats, err := repo.QueryStats(ctx, utils.UTCNow().Add(-24*time.Hour))
			require.NoError(t, err)
			require.Len(t, stats, 2)

			var red *repository.CounterStats
			for _, st := range stats {
				if st.Color == models.CounterColorRed {
					red = st
				}
			}
			require.NotNil(t, red)
			assert.Equal(t, int64(2), red.TotalIncrements)
			assert.Equal(t, int64(6), red.TotalIncrementAmount)
			assert.InDelta(t, 3.0, red.AvgIncrement, 0.001)
			assert.NotNil(t, red.FirstIncrementAt)
			assert.NotNil(t, red.LastIncrementAt)

			// A counter with no activity still appears with zero aggregates
			var blue *repository.CounterStats
			for _, st := range stats {
				if st.Color == models.CounterColorBlue {
					blue = st
				}
			}
			require.NotNil(t, blue)
			assert.Zero(t, blue.TotalIncrements)
			assert.Nil(t, blue.FirstIncrementAt)
		})

		t.Run("HealthCheck", func(t *testing.T) {
			assert.NoError(t, repo.HealthCheck(ctx))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCounterHistoryRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewCounterHistoryRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		_, err := testDB.InsertHistoryEntries(models.CounterColorRed, 5)
		require.NoError(t, err)
		_, err = testDB.InsertHistoryEntries(models.CounterColorBlue, 3)
		require.NoError(t, err)

		t.Run("QueryAll", func(t *testing.T) {
			page, err := repo.Query(ctx, models.CounterHistoryFilter{})
			require.NoError(t, err)
			assert.Len(t, page.Entries, 8)
			assert.Equal(t, int64(8), page.TotalCount)
			assert.False(t, page.HasMore)
			assert.Equal(t, repository.DefaultHistoryLimit, page.Limit)
		})

		t.Run("QueryByColor", func(t *testing.T) {
			page, err := repo.Query(ctx, models.CounterHistoryFilter{
				Color: utils.ToPtr(models.CounterColorBlue),
			})
			require.NoError(t, err)
			assert.Len(t, page.Entries, 3)
			for _, entry := range page.Entries {
				assert.Equal(t, models.CounterColorBlue, entry.Color)
			}
		})

		t.Run("OrderedMostRecentFirst", func(t *testing.T) {
			page, err := repo.Query(ctx, models.CounterHistoryFilter{})
			require.NoError(t, err)
			for i := 1; i < len(page.Entries); i++ {
				assert.False(t, page.Entries[i-1].Timestamp.Before(page.Entries[i].Timestamp))
			}
		})

		t.Run("Pagination", func(t *testing.T) {
			page, err := repo.Query(ctx, models.CounterHistoryFilter{Limit: 3})
			require.NoError(t, err)
			assert.Len(t, page.Entries, 3)
			assert.True(t, page.HasMore)

			page, err = repo.Query(ctx, models.CounterHistoryFilter{Limit: 3, Offset: 6})
			require.NoError(t, err)
			assert.Len(t, page.Entries, 2)
			assert.False(t, page.HasMore)
		})

		t.Run("LimitClamped", func(t *testing.T) {
			page, err := repo.Query(ctx, models.CounterHistoryFilter{Limit: 5000})
			require.NoError(t, err)
			assert.Equal(t, repository.MaxHistoryLimit, page.Limit)

			page, err = repo.Query(ctx, models.CounterHistoryFilter{Limit: -1})
			require.NoError(t, err)
			assert.Equal(t, repository.DefaultHistoryLimit, page.Limit)
		})

		t.Run("OffsetClamped", func(t *testing.T) {
			page, err := repo.Query(ctx, models.CounterHistoryFilter{Offset: -10})
			require.NoError(t, err)
			assert.Zero(t, page.Offset)
			assert.Len(t, page.Entries, 8)
		})

		t.Run("DateWindow", func(t *testing.T) {
			_, err := testDB.InsertHistoryEntry(models.CounterColorRed, 1, 3*time.Hour)
			require.NoError(t, err)

			page, err := repo.Query(ctx, models.CounterHistoryFilter{
				StartDate: utils.ToPtr(utils.UTCNow().Add(-time.Hour)),
				EndDate:   utils.ToPtr(utils.UTCNow()),
			})
			require.NoError(t, err)
			assert.Equal(t, int64(8), page.TotalCount)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()

		// SetupTestDB already ran migrations once; a second run must be a no-op
		require.NoError(t, repository.RunMigrations(ctx, testDB.DB))

		var counters int64
		require.NoError(t, testDB.DB.Model(&models.Counter{}).Count(&counters).Error)
		assert.Equal(t, int64(2), counters)

		var applied int64
		require.NoError(t, testDB.DB.Model(&models.Migration{}).Count(&applied).Error)
		assert.Equal(t, int64(3), applied)

		return nil
	})
	require.NoError(t, err)
}
