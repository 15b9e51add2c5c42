package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
)

func entryAt(userID, exerciseID string, area models.BodyArea, completedAt time.Time, minutes int) *models.ProgressEntry {
	return &models.ProgressEntry{
		ID:              exerciseID + completedAt.Format("20060102T150405"),
		UserID:          userID,
		ExerciseID:      exerciseID,
		BodyArea:        area,
		CompletedAt:     completedAt,
		DurationMinutes: minutes,
		DifficultyLevel: models.DifficultyBeginner,
	}
}

func TestMemoryListActiveUsers(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendEntry(ctx, entryAt("carol", "ex-1", models.BodyAreaMovement, base.Add(-40*24*time.Hour), 10)))
	require.NoError(t, store.AppendEntry(ctx, entryAt("bob", "ex-2", models.BodyAreaSleep, base.Add(-2*24*time.Hour), 20)))
	require.NoError(t, store.AppendEntry(ctx, entryAt("alice", "ex-1", models.BodyAreaMovement, base.Add(-40*24*time.Hour), 10)))
	require.NoError(t, store.AppendEntry(ctx, entryAt("alice", "ex-3", models.BodyAreaBreathing, base, 15)))

	users, err := store.ListActiveUsers(ctx, base.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)

	// Cutoff is inclusive
	users, err = store.ListActiveUsers(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, users)

	users, err = store.ListActiveUsers(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestMemoryQueryEntries_OrderAndFilters(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendEntry(ctx, entryAt("alice", "ex-1", models.BodyAreaMovement, base, 10)))
	require.NoError(t, store.AppendEntry(ctx, entryAt("alice", "ex-2", models.BodyAreaBreathing, base.Add(24*time.Hour), 20)))
	require.NoError(t, store.AppendEntry(ctx, entryAt("alice", "ex-1", models.BodyAreaMovement, base.Add(48*time.Hour), 15)))
	require.NoError(t, store.AppendEntry(ctx, entryAt("bob", "ex-9", models.BodyAreaSleep, base, 30)))

	// Descending by completedAt
	entries, err := store.QueryEntries(ctx, "alice", models.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].CompletedAt.After(entries[1].CompletedAt))
	assert.True(t, entries[1].CompletedAt.After(entries[2].CompletedAt))

	// Body area filter
	entries, err = store.QueryEntries(ctx, "alice", models.EntryFilter{BodyArea: models.BodyAreaMovement})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Exercise filter
	entries, err = store.QueryEntries(ctx, "alice", models.EntryFilter{ExerciseID: "ex-2"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Date range filter
	entries, err = store.QueryEntries(ctx, "alice", models.EntryFilter{
		DateRange: models.DateRange{From: base.Add(12 * time.Hour)},
	})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Limit
	entries, err = store.QueryEntries(ctx, "alice", models.EntryFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, base.Add(48*time.Hour), entries[0].CompletedAt)
}

func TestMemoryComputeUserStats(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendEntry(ctx, entryAt("alice", "ex-1", models.BodyAreaMovement, base, 10)))
	require.NoError(t, store.AppendEntry(ctx, entryAt("alice", "ex-1", models.BodyAreaMovement, base.Add(24*time.Hour), 20)))
	require.NoError(t, store.AppendEntry(ctx, entryAt("alice", "ex-2", models.BodyAreaBreathing, base.Add(48*time.Hour), 30)))

	stats, err := store.ComputeUserStats(ctx, "alice", models.DateRange{}, 5)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalSessions)
	assert.Equal(t, 60, stats.TotalMinutes)
	assert.InDelta(t, 20.0, stats.AverageSessionDuration, 0.001)
	assert.Equal(t, 2, stats.BodyAreaBreakdown[models.BodyAreaMovement])
	assert.Equal(t, 1, stats.BodyAreaBreakdown[models.BodyAreaBreathing])

	require.Len(t, stats.TopExercises, 2)
	assert.Equal(t, "ex-1", stats.TopExercises[0].ExerciseID)
	assert.Equal(t, 2, stats.TopExercises[0].Count)
}

func TestMemoryComputeUserStats_TieBrokenByRecency(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	// ex-old and ex-new both have one session; ex-new is more recent
	require.NoError(t, store.AppendEntry(ctx, entryAt("alice", "ex-old", models.BodyAreaMovement, base, 10)))
	require.NoError(t, store.AppendEntry(ctx, entryAt("alice", "ex-new", models.BodyAreaMovement, base.Add(time.Hour), 10)))

	stats, err := store.ComputeUserStats(ctx, "alice", models.DateRange{}, 5)
	require.NoError(t, err)

	require.Len(t, stats.TopExercises, 2)
	assert.Equal(t, "ex-new", stats.TopExercises[0].ExerciseID)
}

func TestMemoryComputeBodyAreaStats(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendEntry(ctx, entryAt("alice", "ex-1", models.BodyAreaMovement, base, 10)))
	require.NoError(t, store.AppendEntry(ctx, entryAt("alice", "ex-1", models.BodyAreaMovement, base.Add(time.Hour), 30)))
	require.NoError(t, store.AppendEntry(ctx, entryAt("alice", "ex-2", models.BodyAreaSleep, base, 45)))

	stats, err := store.ComputeBodyAreaStats(ctx, "alice", models.BodyAreaMovement)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 40, stats.TotalMinutes)
	assert.InDelta(t, 20.0, stats.AverageMinutes, 0.001)
	assert.Equal(t, base.Add(time.Hour), stats.LastCompleted)
}

func TestMemoryInsights(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	first := &models.Insight{
		ID:          "ins-1",
		UserID:      "alice",
		InsightType: models.InsightMotivation,
		Content:     models.InsightContent{Title: "Bleib dran", Priority: models.PriorityMedium},
		GeneratedAt: now,
	}
	second := &models.Insight{
		ID:          "ins-2",
		UserID:      "alice",
		InsightType: models.InsightPatternAnalysis,
		Content:     models.InsightContent{Title: "Deine Praxis-Muster", Priority: models.PriorityMedium},
		GeneratedAt: now.Add(time.Hour),
	}
	require.NoError(t, store.SaveInsight(ctx, first))
	require.NoError(t, store.SaveInsight(ctx, second))

	unviewed, err := store.ListInsights(ctx, "alice", true, 0)
	require.NoError(t, err)
	require.Len(t, unviewed, 2)
	assert.Equal(t, "ins-2", unviewed[0].ID) // newest first

	require.NoError(t, store.MarkInsightsViewed(ctx, "alice", []string{"ins-1"}, now.Add(2*time.Hour)))

	unviewed, err = store.ListInsights(ctx, "alice", true, 0)
	require.NoError(t, err)
	require.Len(t, unviewed, 1)
	assert.Equal(t, "ins-2", unviewed[0].ID)

	all, err := store.ListInsights(ctx, "alice", false, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
