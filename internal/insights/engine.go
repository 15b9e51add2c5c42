package insights

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/config"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/metrics"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/storage"
)

// Engine runs the heuristic analyzers and persists their output.
// It reads the ledger and streak state directly: insight output is rarely
// repeated identically, so the aggregate cache is bypassed.
type Engine struct {
	store      storage.Store
	thresholds config.Thresholds
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewEngine creates an insight engine over the given store
func NewEngine(store storage.Store, thresholds config.Thresholds, m *metrics.Metrics) *Engine {
	return &Engine{
		store:      store,
		thresholds: thresholds,
		metrics:    m,
		now:        time.Now,
	}
}

// SetClock overrides the engine's clock (tests only)
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

type namedAnalyzer struct {
	insightType models.InsightType
	fn          Analyzer
}

func (e *Engine) analyzers() []namedAnalyzer {
	return []namedAnalyzer{
		{models.InsightPatternAnalysis, AnalyzePattern},
		{models.InsightPlateauDetection, AnalyzePlateau},
		{models.InsightMotivation, AnalyzeMotivation},
		{models.InsightOptimization, AnalyzeOptimization},
	}
}

// GenerateInsights runs every analyzer against the user's recent window
// and persists whatever they produce. Analyzer failures are isolated: one
// failing analyzer never suppresses the others.
func (e *Engine) GenerateInsights(ctx context.Context, userID string) ([]*models.Insight, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	now := e.now().UTC()

	window, err := e.store.QueryEntries(ctx, userID, models.EntryFilter{
		DateRange: windowRange(now, e.thresholds.PatternWindowDays),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load recent entries: %w", err)
	}

	dailyStreak, err := e.store.GetStreak(ctx, userID, models.StreakTypeDaily)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily streak: %w", err)
	}

	lifetime, err := e.store.CountEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	input := AnalyzerInput{
		UserID:        userID,
		Window:        window,
		DailyStreak:   dailyStreak,
		LifetimeCount: lifetime,
		Thresholds:    e.thresholds,
	}

	var generated []*models.Insight
	for _, analyzer := range e.analyzers() {
		content := e.runAnalyzer(analyzer, input)
		if content == nil {
			continue
		}

		insight := &models.Insight{
			ID:          uuid.NewString(),
			UserID:      userID,
			InsightType: analyzer.insightType,
			Content:     *content,
			GeneratedAt: now,
		}

		if err := e.store.SaveInsight(ctx, insight); err != nil {
			log.Printf("[Insights] Failed to persist %s insight for %s: %v", analyzer.insightType, userID, err)
			continue
		}

		if e.metrics != nil {
			e.metrics.InsightsGenerated.WithLabelValues(string(analyzer.insightType)).Inc()
		}
		generated = append(generated, insight)
	}

	return generated, nil
}

// runAnalyzer isolates one analyzer's failure domain, panics included
func (e *Engine) runAnalyzer(analyzer namedAnalyzer, input AnalyzerInput) (content *models.InsightContent) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Insights] Analyzer %s panicked for %s: %v", analyzer.insightType, input.UserID, r)
			content = nil
		}
	}()

	content, err := analyzer.fn(input)
	if err != nil {
		log.Printf("[Insights] Analyzer %s failed for %s: %v", analyzer.insightType, input.UserID, err)
		return nil
	}
	return content
}

// GetUnviewedInsights returns the user's insights not yet marked viewed
func (e *Engine) GetUnviewedInsights(ctx context.Context, userID string, limit int) ([]*models.Insight, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	return e.store.ListInsights(ctx, userID, true, limit)
}

// ListInsights returns the user's insights, newest first
func (e *Engine) ListInsights(ctx context.Context, userID string, limit int) ([]*models.Insight, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	return e.store.ListInsights(ctx, userID, false, limit)
}

// MarkInsightsAsViewed stamps the given insights with the current time
func (e *Engine) MarkInsightsAsViewed(ctx context.Context, userID string, insightIDs []string) error {
	if userID == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	if len(insightIDs) == 0 {
		return nil
	}
	if err := e.store.MarkInsightsViewed(ctx, userID, insightIDs, e.now().UTC()); err != nil {
		return fmt.Errorf("failed to mark insights viewed: %w", err)
	}
	return nil
}
