package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/cache"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/jobs"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/metrics"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/storage"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/streak"
)

// topExerciseCount caps the top-exercises list in user stats
const topExerciseCount = 5

// Tracker is the progress engine's write-and-read service. The write path
// is a strict pipeline: ledger append, streak transition, cache
// invalidation, recompute enqueue. Only the first two can fail the call;
// cache and queue are best-effort.
type Tracker struct {
	store   storage.Store
	streaks *streak.Tracker
	cache   *cache.Cache // nil disables caching
	queue   jobs.Queue   // nil disables background recompute
	metrics *metrics.Metrics

	userLocks sync.Map // userID -> *sync.Mutex
}

// NewTracker constructs the service. cache and queue may be nil; the
// tracker stays correct without them, every read just hits the ledger.
func NewTracker(store storage.Store, streaks *streak.Tracker, c *cache.Cache, queue jobs.Queue, m *metrics.Metrics) *Tracker {
	return &Tracker{
		store:   store,
		streaks: streaks,
		cache:   c,
		queue:   queue,
		metrics: m,
	}
}

func (t *Tracker) lockUser(userID string) *sync.Mutex {
	mu, _ := t.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// RecordCompletion validates and appends a completion event, advances the
// user's streaks, invalidates derived caches, and enqueues background
// recompute. Serialized per user so concurrent completions compose.
func (t *Tracker) RecordCompletion(ctx context.Context, userID string, completion models.Completion) (*models.ProgressEntry, error) {
	if err := validateCompletion(userID, completion); err != nil {
		return nil, err
	}

	start := time.Now()

	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = time.Now().UTC()
	}

	entry := &models.ProgressEntry{
		ID:              uuid.NewString(),
		UserID:          userID,
		ExerciseID:      completion.ExerciseID,
		BodyArea:        completion.BodyArea,
		CompletedAt:     completion.CompletedAt,
		DurationMinutes: completion.DurationMinutes,
		DifficultyLevel: completion.DifficultyLevel,
		SessionNotes:    completion.SessionNotes,
		Mood:            completion.Mood,
		EnergyLevel:     completion.EnergyLevel,
		Biometrics:      completion.Biometrics,
	}

	mu := t.lockUser(userID)
	mu.Lock()
	defer mu.Unlock()

	if err := t.store.AppendEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append completion: %w", err)
	}

	if _, err := t.streaks.RecordActivity(ctx, userID, models.StreakTypeDaily, entry.CompletedAt); err != nil {
		return nil, fmt.Errorf("failed to advance daily streak: %w", err)
	}
	if _, err := t.streaks.RecordActivity(ctx, userID, models.StreakTypeForArea(entry.BodyArea), entry.CompletedAt); err != nil {
		return nil, fmt.Errorf("failed to advance body area streak: %w", err)
	}

	// Post-write: a reader racing between here and the deletes may still
	// see a stale aggregate until TTL expiry. Accepted consistency window.
	t.InvalidateUserCaches(ctx, userID, entry.BodyArea)
	t.enqueueRecompute(ctx, userID, entry.BodyArea)

	if t.metrics != nil {
		t.metrics.CompletionsRecorded.WithLabelValues(string(entry.BodyArea), string(entry.DifficultyLevel)).Inc()
		t.metrics.CompletionDuration.Observe(time.Since(start).Seconds())
	}

	return entry, nil
}

func validateCompletion(userID string, completion models.Completion) error {
	if userID == "" {
		return &ValidationError{Field: "userId", Reason: "cannot be empty"}
	}
	if completion.ExerciseID == "" {
		return &ValidationError{Field: "exerciseId", Reason: "cannot be empty"}
	}
	if !completion.BodyArea.Valid() {
		return &ValidationError{Field: "bodyArea", Reason: fmt.Sprintf("%q is not a known body area", completion.BodyArea)}
	}
	if !completion.DifficultyLevel.Valid() {
		return &ValidationError{Field: "difficultyLevel", Reason: fmt.Sprintf("%q is not a known difficulty level", completion.DifficultyLevel)}
	}
	return nil
}

// InvalidateUserCaches deletes every cache key that could hold a stale
// aggregate for the user. Best-effort: failures log and move on.
func (t *Tracker) InvalidateUserCaches(ctx context.Context, userID string, area models.BodyArea) {
	if t.cache == nil {
		return
	}

	patterns := []string{
		cache.UserStatsPattern(userID),
		cache.StreaksKey(userID),
	}
	if area != "" {
		patterns = append(patterns, cache.BodyAreaStatsKey(userID, area))
	} else {
		patterns = append(patterns, cache.BodyAreaStatsPattern(userID))
	}

	for _, pattern := range patterns {
		t.cache.DeletePattern(ctx, pattern)
		if t.metrics != nil {
			t.metrics.CacheInvalidations.WithLabelValues(pattern).Inc()
		}
	}
}

func (t *Tracker) enqueueRecompute(ctx context.Context, userID string, area models.BodyArea) {
	if t.queue == nil {
		return
	}

	queued := []jobs.Job{
		{ID: uuid.NewString(), Type: jobs.TypeRecomputeStats, UserID: userID, CreatedAt: time.Now().UTC()},
		{ID: uuid.NewString(), Type: jobs.TypeRecomputeArea, UserID: userID, BodyArea: area, CreatedAt: time.Now().UTC()},
	}

	for _, job := range queued {
		if err := t.queue.Enqueue(ctx, job); err != nil {
			// Best-effort: the next read recomputes from the ledger anyway
			log.Printf("[Progress] Failed to enqueue %s for %s, proceeding: %v", job.Type, userID, err)
			continue
		}
		if t.metrics != nil {
			t.metrics.JobsEnqueued.WithLabelValues(job.Type).Inc()
		}
	}
}

// EnqueueInsightGeneration queues an insight-generation job for every user
// with ledger activity inside the window. It returns the number of jobs
// enqueued; individual enqueue failures log and move on.
func (t *Tracker) EnqueueInsightGeneration(ctx context.Context, window time.Duration) (int, error) {
	if t.queue == nil {
		return 0, nil
	}

	since := time.Now().UTC().Add(-window)
	users, err := t.store.ListActiveUsers(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to list active users: %w", err)
	}

	enqueued := 0
	for _, userID := range users {
		job := jobs.Job{ID: uuid.NewString(), Type: jobs.TypeGenerateInsights, UserID: userID, CreatedAt: time.Now().UTC()}
		if err := t.queue.Enqueue(ctx, job); err != nil {
			log.Printf("[Progress] Failed to enqueue %s for %s, proceeding: %v", job.Type, userID, err)
			continue
		}
		if t.metrics != nil {
			t.metrics.JobsEnqueued.WithLabelValues(job.Type).Inc()
		}
		enqueued++
	}
	return enqueued, nil
}

// GetUserStats returns aggregate statistics for the user, cache-aside
func (t *Tracker) GetUserStats(ctx context.Context, userID string, dateRange models.DateRange) (*models.UserStats, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Reason: "cannot be empty"}
	}

	key := cache.UserStatsKey(userID, dateRange)
	if stats, ok := cacheGet[models.UserStats](ctx, t.cache, key); ok {
		t.recordCacheLookup(true)
		return stats, nil
	}
	t.recordCacheLookup(false)

	start := time.Now()
	stats, err := t.store.ComputeUserStats(ctx, userID, dateRange, topExerciseCount)
	if err != nil {
		return nil, fmt.Errorf("failed to compute user stats: %w", err)
	}
	if t.metrics != nil {
		t.metrics.AggregateComputeDuration.WithLabelValues("user_stats").Observe(time.Since(start).Seconds())
	}

	cacheSet(ctx, t.cache, key, stats, cache.TTLMedium)
	return stats, nil
}

// GetBodyAreaStats returns per-area statistics for the user, cache-aside
func (t *Tracker) GetBodyAreaStats(ctx context.Context, userID string, area models.BodyArea) (*models.BodyAreaStats, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Reason: "cannot be empty"}
	}
	if !area.Valid() {
		return nil, &ValidationError{Field: "bodyArea", Reason: fmt.Sprintf("%q is not a known body area", area)}
	}

	key := cache.BodyAreaStatsKey(userID, area)
	if stats, ok := cacheGet[models.BodyAreaStats](ctx, t.cache, key); ok {
		t.recordCacheLookup(true)
		return stats, nil
	}
	t.recordCacheLookup(false)

	start := time.Now()
	stats, err := t.store.ComputeBodyAreaStats(ctx, userID, area)
	if err != nil {
		return nil, fmt.Errorf("failed to compute body area stats: %w", err)
	}
	if t.metrics != nil {
		t.metrics.AggregateComputeDuration.WithLabelValues("body_area_stats").Observe(time.Since(start).Seconds())
	}

	cacheSet(ctx, t.cache, key, stats, cache.TTLLong)
	return stats, nil
}

// GetStreakData returns all streak records for the user, cache-aside
func (t *Tracker) GetStreakData(ctx context.Context, userID string) ([]*models.StreakState, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Reason: "cannot be empty"}
	}

	key := cache.StreaksKey(userID)
	if states, ok := cacheGet[[]*models.StreakState](ctx, t.cache, key); ok {
		t.recordCacheLookup(true)
		return *states, nil
	}
	t.recordCacheLookup(false)

	states, err := t.store.ListStreaks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list streaks: %w", err)
	}

	cacheSet(ctx, t.cache, key, &states, cache.TTLShort)
	return states, nil
}

// QueryEntries exposes filtered ledger reads for the analytics engines
func (t *Tracker) QueryEntries(ctx context.Context, userID string, filter models.EntryFilter) ([]*models.ProgressEntry, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Reason: "cannot be empty"}
	}
	return t.store.QueryEntries(ctx, userID, filter)
}

// WarmUserStats recomputes and caches a user's unbounded stats. Used by
// the recompute worker; recomputing from the ledger is idempotent.
func (t *Tracker) WarmUserStats(ctx context.Context, userID string) error {
	if t.cache == nil {
		return nil
	}

	stats, err := t.store.ComputeUserStats(ctx, userID, models.DateRange{}, topExerciseCount)
	if err != nil {
		return fmt.Errorf("failed to recompute user stats: %w", err)
	}

	cacheSet(ctx, t.cache, cache.UserStatsKey(userID, models.DateRange{}), stats, cache.TTLMedium)
	return nil
}

// WarmBodyAreaStats recomputes and caches a user's per-area stats
func (t *Tracker) WarmBodyAreaStats(ctx context.Context, userID string, area models.BodyArea) error {
	if t.cache == nil {
		return nil
	}
	if !area.Valid() {
		return &ValidationError{Field: "bodyArea", Reason: fmt.Sprintf("%q is not a known body area", area)}
	}

	stats, err := t.store.ComputeBodyAreaStats(ctx, userID, area)
	if err != nil {
		return fmt.Errorf("failed to recompute body area stats: %w", err)
	}

	cacheSet(ctx, t.cache, cache.BodyAreaStatsKey(userID, area), stats, cache.TTLLong)
	return nil
}

func (t *Tracker) recordCacheLookup(hit bool) {
	if t.metrics == nil {
		return
	}
	if hit {
		t.metrics.CacheHits.Inc()
	} else {
		t.metrics.CacheMisses.Inc()
	}
}

// cacheGet decodes a cached JSON payload. Any failure is a miss.
func cacheGet[T any](ctx context.Context, c *cache.Cache, key string) (*T, bool) {
	if c == nil {
		return nil, false
	}
	data, found := c.Get(ctx, key)
	if !found {
		return nil, false
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		log.Printf("[Progress] Corrupt cache entry %s, treating as miss: %v", key, err)
		c.Delete(ctx, key)
		return nil, false
	}
	return &value, true
}

// cacheSet encodes and stores a payload, best-effort
func cacheSet(ctx context.Context, c *cache.Cache, key string, value interface{}, ttl cache.TTLClass) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("[Progress] Failed to marshal cache entry %s, skipping: %v", key, err)
		return
	}
	c.Set(ctx, key, data, ttl)
}
