package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/cache"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/jobs"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/storage"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/streak"
)

func newTestTracker(c *cache.Cache, queue jobs.Queue) (*Tracker, *storage.Memory) {
	store := storage.NewMemory()
	return NewTracker(store, streak.NewTracker(store, nil), c, queue, nil), store
}

func testCache() *cache.Cache {
	return cache.New(&cache.Config{Enabled: true, Timeout: time.Second})
}

func validCompletion(at time.Time) models.Completion {
	return models.Completion{
		ExerciseID:      "morgen-routine",
		BodyArea:        models.BodyAreaMovement,
		CompletedAt:     at,
		DurationMinutes: 15,
		DifficultyLevel: models.DifficultyBeginner,
	}
}

func TestRecordCompletionAppendsAndAdvancesStreaks(t *testing.T) {
	tracker, store := newTestTracker(nil, nil)
	ctx := context.Background()
	at := time.Date(2026, 4, 10, 7, 30, 0, 0, time.UTC)

	entry, err := tracker.RecordCompletion(ctx, "alice", validCompletion(at))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "alice", entry.UserID)
	assert.Equal(t, at, entry.CompletedAt)

	count, err := store.CountEntries(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	daily, err := store.GetStreak(ctx, "alice", models.StreakTypeDaily)
	require.NoError(t, err)
	require.NotNil(t, daily)
	assert.Equal(t, 1, daily.CurrentCount)

	area, err := store.GetStreak(ctx, "alice", models.StreakTypeForArea(models.BodyAreaMovement))
	require.NoError(t, err)
	require.NotNil(t, area)
	assert.Equal(t, 1, area.CurrentCount)
}

func TestRecordCompletionDefaultsTimestamp(t *testing.T) {
	tracker, _ := newTestTracker(nil, nil)

	entry, err := tracker.RecordCompletion(context.Background(), "alice", validCompletion(time.Time{}))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), entry.CompletedAt, 5*time.Second)
}

func TestRecordCompletionValidation(t *testing.T) {
	tracker, store := newTestTracker(nil, nil)
	ctx := context.Background()
	at := time.Date(2026, 4, 10, 7, 30, 0, 0, time.UTC)

	cases := []struct {
		name       string
		userID     string
		completion models.Completion
		field      string
	}{
		{"empty user", "", validCompletion(at), "userId"},
		{"empty exercise", "alice", models.Completion{
			BodyArea:        models.BodyAreaMovement,
			DifficultyLevel: models.DifficultyBeginner,
		}, "exerciseId"},
		{"unknown body area", "alice", models.Completion{
			ExerciseID:      "ex-1",
			BodyArea:        "cardio",
			DifficultyLevel: models.DifficultyBeginner,
		}, "bodyArea"},
		{"unknown difficulty", "alice", models.Completion{
			ExerciseID:      "ex-1",
			BodyArea:        models.BodyAreaMovement,
			DifficultyLevel: "Expert",
		}, "difficultyLevel"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tracker.RecordCompletion(ctx, tc.userID, tc.completion)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	// A rejected write leaves no trace in the ledger or streaks
	count, err := store.CountEntries(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	daily, err := store.GetStreak(ctx, "alice", models.StreakTypeDaily)
	require.NoError(t, err)
	assert.Nil(t, daily)
}

func TestGetUserStatsCacheAside(t *testing.T) {
	c := testCache()
	tracker, _ := newTestTracker(c, nil)
	ctx := context.Background()
	at := time.Date(2026, 4, 10, 7, 30, 0, 0, time.UTC)

	_, err := tracker.RecordCompletion(ctx, "alice", validCompletion(at))
	require.NoError(t, err)

	// First read computes and caches
	stats, err := tracker.GetUserStats(ctx, "alice", models.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSessions)

	before := c.GetStats()

	// Second read must be a cache hit
	stats, err = tracker.GetUserStats(ctx, "alice", models.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSessions)

	after := c.GetStats()
	assert.Equal(t, before.Hits+1, after.Hits)
	assert.Equal(t, before.Misses, after.Misses)
}

func TestRecordCompletionInvalidatesCaches(t *testing.T) {
	c := testCache()
	tracker, _ := newTestTracker(c, nil)
	ctx := context.Background()
	day1 := time.Date(2026, 4, 10, 7, 30, 0, 0, time.UTC)

	_, err := tracker.RecordCompletion(ctx, "alice", validCompletion(day1))
	require.NoError(t, err)

	// Populate all three derived caches
	_, err = tracker.GetUserStats(ctx, "alice", models.DateRange{})
	require.NoError(t, err)
	_, err = tracker.GetBodyAreaStats(ctx, "alice", models.BodyAreaMovement)
	require.NoError(t, err)
	_, err = tracker.GetStreakData(ctx, "alice")
	require.NoError(t, err)

	// Next completion must evict them so reads see the new entry
	_, err = tracker.RecordCompletion(ctx, "alice", validCompletion(day1.Add(24*time.Hour)))
	require.NoError(t, err)

	stats, err := tracker.GetUserStats(ctx, "alice", models.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSessions)

	areaStats, err := tracker.GetBodyAreaStats(ctx, "alice", models.BodyAreaMovement)
	require.NoError(t, err)
	assert.Equal(t, 2, areaStats.TotalSessions)

	streaks, err := tracker.GetStreakData(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, streaks)
	for _, s := range streaks {
		assert.Equal(t, 2, s.CurrentCount)
	}
}

func TestInvalidateThenReadIsMiss(t *testing.T) {
	c := testCache()
	tracker, _ := newTestTracker(c, nil)
	ctx := context.Background()

	_, err := tracker.GetUserStats(ctx, "alice", models.DateRange{})
	require.NoError(t, err)

	tracker.InvalidateUserCaches(ctx, "alice", "")

	before := c.GetStats()
	_, err = tracker.GetUserStats(ctx, "alice", models.DateRange{})
	require.NoError(t, err)
	after := c.GetStats()

	assert.Equal(t, before.Misses+1, after.Misses, "read after invalidation must miss")
}

func TestInvalidationScopedToUser(t *testing.T) {
	c := testCache()
	tracker, _ := newTestTracker(c, nil)
	ctx := context.Background()

	_, err := tracker.GetUserStats(ctx, "alice", models.DateRange{})
	require.NoError(t, err)
	_, err = tracker.GetUserStats(ctx, "bob", models.DateRange{})
	require.NoError(t, err)

	tracker.InvalidateUserCaches(ctx, "alice", "")

	before := c.GetStats()
	_, err = tracker.GetUserStats(ctx, "bob", models.DateRange{})
	require.NoError(t, err)
	after := c.GetStats()

	assert.Equal(t, before.Hits+1, after.Hits, "bob's cached stats must survive alice's invalidation")
}

func TestRecordCompletionEnqueuesRecompute(t *testing.T) {
	queue := jobs.NewMemoryQueue()
	tracker, _ := newTestTracker(nil, queue)
	ctx := context.Background()

	var mu sync.Mutex
	var received []jobs.Job
	require.NoError(t, queue.Subscribe(func(job jobs.Job) {
		mu.Lock()
		received = append(received, job)
		mu.Unlock()
	}))

	_, err := tracker.RecordCompletion(ctx, "alice", validCompletion(time.Date(2026, 4, 10, 7, 30, 0, 0, time.UTC)))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)

	types := map[string]jobs.Job{}
	for _, job := range received {
		types[job.Type] = job
	}
	require.Contains(t, types, jobs.TypeRecomputeStats)
	require.Contains(t, types, jobs.TypeRecomputeArea)
	assert.Equal(t, "alice", types[jobs.TypeRecomputeStats].UserID)
	assert.Equal(t, models.BodyAreaMovement, types[jobs.TypeRecomputeArea].BodyArea)
}

func TestEnqueueInsightGenerationTargetsActiveUsers(t *testing.T) {
	queue := jobs.NewMemoryQueue()
	tracker, store := newTestTracker(nil, queue)
	ctx := context.Background()
	now := time.Now().UTC()
	window := 30 * 24 * time.Hour

	seed := func(userID string, at time.Time) {
		entry := &models.ProgressEntry{
			ID:              userID + "-entry",
			UserID:          userID,
			ExerciseID:      "morgen-routine",
			BodyArea:        models.BodyAreaMovement,
			CompletedAt:     at,
			DurationMinutes: 15,
			DifficultyLevel: models.DifficultyBeginner,
		}
		require.NoError(t, store.AppendEntry(ctx, entry))
	}
	seed("alice", now.Add(-24*time.Hour))
	seed("bob", now.Add(-7*24*time.Hour))
	seed("carol", now.Add(-60*24*time.Hour))

	var mu sync.Mutex
	var received []jobs.Job
	require.NoError(t, queue.Subscribe(func(job jobs.Job) {
		mu.Lock()
		received = append(received, job)
		mu.Unlock()
	}))

	enqueued, err := tracker.EnqueueInsightGeneration(ctx, window)
	require.NoError(t, err)
	assert.Equal(t, 2, enqueued)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)

	users := map[string]bool{}
	for _, job := range received {
		assert.Equal(t, jobs.TypeGenerateInsights, job.Type)
		assert.NotEmpty(t, job.ID)
		users[job.UserID] = true
	}
	assert.True(t, users["alice"])
	assert.True(t, users["bob"])
	assert.False(t, users["carol"])
}

func TestEnqueueInsightGenerationWithoutQueue(t *testing.T) {
	tracker, _ := newTestTracker(nil, nil)

	enqueued, err := tracker.EnqueueInsightGeneration(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, enqueued)
}

func TestConcurrentCompletionsCompose(t *testing.T) {
	tracker, store := newTestTracker(testCache(), jobs.NewMemoryQueue())
	ctx := context.Background()
	at := time.Date(2026, 4, 10, 7, 30, 0, 0, time.UTC)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tracker.RecordCompletion(ctx, "alice", validCompletion(at))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := store.CountEntries(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, writers, count)

	// Same-day repeats never double-increment the streak
	daily, err := store.GetStreak(ctx, "alice", models.StreakTypeDaily)
	require.NoError(t, err)
	require.NotNil(t, daily)
	assert.Equal(t, 1, daily.CurrentCount)
}

func TestTrackerWithoutCacheOrQueue(t *testing.T) {
	tracker, _ := newTestTracker(nil, nil)
	ctx := context.Background()
	at := time.Date(2026, 4, 10, 7, 30, 0, 0, time.UTC)

	_, err := tracker.RecordCompletion(ctx, "alice", validCompletion(at))
	require.NoError(t, err)

	stats, err := tracker.GetUserStats(ctx, "alice", models.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSessions)

	areaStats, err := tracker.GetBodyAreaStats(ctx, "alice", models.BodyAreaMovement)
	require.NoError(t, err)
	assert.Equal(t, 1, areaStats.TotalSessions)

	streaks, err := tracker.GetStreakData(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, streaks, 2)

	require.NoError(t, tracker.WarmUserStats(ctx, "alice"))
	require.NoError(t, tracker.WarmBodyAreaStats(ctx, "alice", models.BodyAreaMovement))
}

func TestGetBodyAreaStatsRejectsUnknownArea(t *testing.T) {
	tracker, _ := newTestTracker(nil, nil)

	_, err := tracker.GetBodyAreaStats(context.Background(), "alice", "cardio")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestDateRangeStatsFilterLedger(t *testing.T) {
	tracker, _ := newTestTracker(testCache(), nil)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := tracker.RecordCompletion(ctx, "alice", validCompletion(base.AddDate(0, 0, i)))
		require.NoError(t, err)
	}

	ranged, err := tracker.GetUserStats(ctx, "alice", models.DateRange{
		From: base.AddDate(0, 0, 2),
		To:   base.AddDate(0, 0, 3),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, ranged.TotalSessions)

	// The bounded and unbounded ranges cache under distinct keys
	all, err := tracker.GetUserStats(ctx, "alice", models.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 5, all.TotalSessions)
}

func TestWarmUserStatsPopulatesCache(t *testing.T) {
	c := testCache()
	tracker, _ := newTestTracker(c, nil)
	ctx := context.Background()

	_, err := tracker.RecordCompletion(ctx, "alice", validCompletion(time.Date(2026, 4, 10, 7, 30, 0, 0, time.UTC)))
	require.NoError(t, err)

	require.NoError(t, tracker.WarmUserStats(ctx, "alice"))

	before := c.GetStats()
	stats, err := tracker.GetUserStats(ctx, "alice", models.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSessions)
	after := c.GetStats()
	assert.Equal(t, before.Hits+1, after.Hits, "warmed stats must serve the next read")
}
