package insights

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/config"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/storage"
)

func newTestEngine(t *testing.T, now time.Time) (*Engine, *storage.Memory) {
	t.Helper()
	store := storage.NewMemory()
	engine := NewEngine(store, config.DefaultThresholds(), nil)
	engine.SetClock(func() time.Time { return now })
	return engine, store
}

func seedEntries(t *testing.T, store *storage.Memory, userID string, n int, last time.Time, area models.BodyArea, level models.DifficultyLevel, minutes int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.AppendEntry(context.Background(), &models.ProgressEntry{
			ID:              userID + "-" + string(area) + "-" + last.AddDate(0, 0, -i).Format("20060102"),
			UserID:          userID,
			ExerciseID:      "ex-" + string(area),
			BodyArea:        area,
			CompletedAt:     last.AddDate(0, 0, -i),
			DurationMinutes: minutes,
			DifficultyLevel: level,
		}))
	}
}

func insightTypes(generated []*models.Insight) map[models.InsightType]*models.Insight {
	byType := make(map[models.InsightType]*models.Insight, len(generated))
	for _, insight := range generated {
		byType[insight.InsightType] = insight
	}
	return byType
}

func TestGenerateInsightsNewUser(t *testing.T) {
	now := time.Date(2026, 4, 13, 12, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(t, now)

	generated, err := engine.GenerateInsights(context.Background(), "alice")
	require.NoError(t, err)

	// Only motivation fires for an empty ledger
	require.Len(t, generated, 1)
	assert.Equal(t, models.InsightMotivation, generated[0].InsightType)
	assert.Contains(t, generated[0].Content.Message, "Jeder Tag ist eine neue Chance")
}

func TestGenerateInsightsActiveUser(t *testing.T) {
	now := time.Date(2026, 4, 13, 12, 0, 0, 0, time.UTC)
	engine, store := newTestEngine(t, now)
	ctx := context.Background()

	// Twelve consecutive morning sessions, all Beginner, long breathing plus
	// short movement so pattern, plateau, and optimization all fire
	last := time.Date(2026, 4, 13, 7, 0, 0, 0, time.UTC)
	seedEntries(t, store, "alice", 12, last, models.BodyAreaBreathing, models.DifficultyBeginner, 30)
	seedEntries(t, store, "alice", 12, last, models.BodyAreaMovement, models.DifficultyBeginner, 10)
	require.NoError(t, store.UpsertStreak(ctx, &models.StreakState{
		UserID:           "alice",
		StreakType:       models.StreakTypeDaily,
		CurrentCount:     12,
		BestCount:        12,
		LastActivityDate: models.DateOnly(last),
		StartedAt:        models.DateOnly(last.AddDate(0, 0, -11)),
	}))

	generated, err := engine.GenerateInsights(ctx, "alice")
	require.NoError(t, err)

	byType := insightTypes(generated)
	require.Contains(t, byType, models.InsightPatternAnalysis)
	require.Contains(t, byType, models.InsightPlateauDetection)
	require.Contains(t, byType, models.InsightOptimization)
	assert.NotContains(t, byType, models.InsightMotivation, "a 12-day streak needs no encouragement")

	assert.Equal(t, "Morgen", byType[models.InsightPatternAnalysis].Content.Data["peak_time"])
	assert.Equal(t, string(models.BodyAreaBreathing), byType[models.InsightOptimization].Content.Data["strongest_area"])

	// Everything generated is persisted unviewed
	unviewed, err := engine.GetUnviewedInsights(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, unviewed, len(generated))
}

func TestGenerateInsightsWindowExcludesOldEntries(t *testing.T) {
	now := time.Date(2026, 4, 13, 12, 0, 0, 0, time.UTC)
	engine, store := newTestEngine(t, now)

	// Plenty of history, but all of it older than the trailing window
	seedEntries(t, store, "alice", 12, now.AddDate(0, 0, -40), models.BodyAreaMovement, models.DifficultyBeginner, 15)

	generated, err := engine.GenerateInsights(context.Background(), "alice")
	require.NoError(t, err)

	byType := insightTypes(generated)
	assert.NotContains(t, byType, models.InsightPatternAnalysis)
	assert.NotContains(t, byType, models.InsightPlateauDetection)
}

func TestGenerateInsightsRejectsEmptyUser(t *testing.T) {
	engine, _ := newTestEngine(t, time.Now())

	_, err := engine.GenerateInsights(context.Background(), "")
	assert.Error(t, err)
}

func TestRunAnalyzerIsolatesPanic(t *testing.T) {
	engine, _ := newTestEngine(t, time.Now())

	content := engine.runAnalyzer(namedAnalyzer{
		insightType: models.InsightPatternAnalysis,
		fn: func(input AnalyzerInput) (*models.InsightContent, error) {
			panic("analyzer bug")
		},
	}, AnalyzerInput{UserID: "alice"})

	assert.Nil(t, content)
}

func TestMarkInsightsAsViewed(t *testing.T) {
	now := time.Date(2026, 4, 13, 12, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(t, now)
	ctx := context.Background()

	generated, err := engine.GenerateInsights(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, generated)

	require.NoError(t, engine.MarkInsightsAsViewed(ctx, "alice", []string{generated[0].ID}))

	unviewed, err := engine.GetUnviewedInsights(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, unviewed)

	all, err := engine.ListInsights(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].ViewedAt)
	assert.Equal(t, now, all[0].ViewedAt.UTC())

	// Marking nothing is a no-op
	require.NoError(t, engine.MarkInsightsAsViewed(ctx, "alice", nil))
}
