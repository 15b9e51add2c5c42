package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/config"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/metrics"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/storage"
)

// Rule priorities. Higher surfaces first.
const (
	priorityComeback    = 9
	priorityNeglected   = 8
	priorityProgression = 7
	priorityRecovery    = 6
)

// Engine computes ephemeral, priority-ranked recommendations from the
// trailing ledger window. Nothing here is persisted or cached.
type Engine struct {
	ledger     storage.LedgerStore
	thresholds config.Thresholds
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewEngine creates a recommendation engine over the ledger
func NewEngine(ledger storage.LedgerStore, thresholds config.Thresholds, m *metrics.Metrics) *Engine {
	return &Engine{
		ledger:     ledger,
		thresholds: thresholds,
		metrics:    m,
		now:        time.Now,
	}
}

// SetClock overrides the engine's clock (tests only)
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// GetRecommendations evaluates every rule against the trailing window and
// returns the triggered recommendations sorted by priority descending.
// The sort is stable: equal priorities keep generation order.
func (e *Engine) GetRecommendations(ctx context.Context, userID string) ([]*models.Recommendation, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	now := e.now().UTC()
	window, err := e.ledger.QueryEntries(ctx, userID, models.EntryFilter{
		DateRange: models.DateRange{From: now.AddDate(0, 0, -e.thresholds.RecommendWindowDays), To: now},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load recent entries: %w", err)
	}

	var recommendations []*models.Recommendation
	recommendations = append(recommendations, e.comebackRule(ctx, userID, window, now)...)
	recommendations = append(recommendations, e.neglectedAreaRule(window)...)
	recommendations = append(recommendations, e.progressionRule(window)...)
	recommendations = append(recommendations, e.recoveryRule(window, now)...)

	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Priority > recommendations[j].Priority
	})

	if e.metrics != nil {
		e.metrics.RecommendationsComputed.Inc()
	}

	return recommendations, nil
}

// neglectedAreaRule flags body areas with no sessions in the window,
// capped and in enumeration order for deterministic output.
func (e *Engine) neglectedAreaRule(window []*models.ProgressEntry) []*models.Recommendation {
	seen := make(map[models.BodyArea]bool)
	for _, entry := range window {
		seen[entry.BodyArea] = true
	}

	var recs []*models.Recommendation
	for _, area := range models.AllBodyAreas {
		if seen[area] {
			continue
		}
		recs = append(recs, &models.Recommendation{
			ID:               uuid.NewString(),
			Type:             models.RecommendationExercise,
			Title:            fmt.Sprintf("Zeit für %s", area),
			Description:      fmt.Sprintf("Der Bereich %s kam in den letzten %d Tagen nicht vor.", area, e.thresholds.RecommendWindowDays),
			BodyArea:         area,
			Priority:         priorityNeglected,
			Reasoning:        fmt.Sprintf("Keine Einheiten im Bereich %s im %d-Tage-Fenster", area, e.thresholds.RecommendWindowDays),
			EstimatedBenefit: "Ausgewogene Praxis über alle Bereiche",
		})
		if len(recs) >= e.thresholds.NeglectedMaxResults {
			break
		}
	}

	return recs
}

// progressionRule suggests advancing in the busiest area of the window
func (e *Engine) progressionRule(window []*models.ProgressEntry) []*models.Recommendation {
	counts := make(map[models.BodyArea]int)
	for _, entry := range window {
		counts[entry.BodyArea]++
	}

	var top models.BodyArea
	topCount := 0
	for _, area := range models.AllBodyAreas {
		if counts[area] > topCount {
			top = area
			topCount = counts[area]
		}
	}

	if topCount < e.thresholds.ProgressionMinSessions {
		return nil
	}

	return []*models.Recommendation{{
		ID:               uuid.NewString(),
		Type:             models.RecommendationProgression,
		Title:            fmt.Sprintf("Steigere dich in %s", top),
		Description:      fmt.Sprintf("%d Einheiten im Bereich %s in den letzten %d Tagen — Zeit für mehr Anspruch.", topCount, top, e.thresholds.RecommendWindowDays),
		BodyArea:         top,
		Priority:         priorityProgression,
		Reasoning:        fmt.Sprintf("Höchste Aktivität (%d Einheiten) im Bereich %s", topCount, top),
		EstimatedBenefit: "Fortschritt durch gezielte Steigerung",
	}}
}

// comebackRule fires when the user has been idle for several days. The
// most recent entry anywhere counts, not just the window.
func (e *Engine) comebackRule(ctx context.Context, userID string, window []*models.ProgressEntry, now time.Time) []*models.Recommendation {
	var last time.Time
	if len(window) > 0 {
		last = window[0].CompletedAt
	} else {
		// Window empty: check the full ledger for the most recent entry
		recent, err := e.ledger.QueryEntries(ctx, userID, models.EntryFilter{Limit: 1})
		if err != nil || len(recent) == 0 {
			return nil
		}
		last = recent[0].CompletedAt
	}

	idleDays := int(now.Sub(last).Hours() / 24)
	if idleDays < e.thresholds.ComebackGapDays {
		return nil
	}

	return []*models.Recommendation{{
		ID:               uuid.NewString(),
		Type:             models.RecommendationSchedule,
		Title:            "Zurück in die Routine",
		Description:      fmt.Sprintf("Deine letzte Einheit liegt %d Tage zurück. Ein sanfter Wiedereinstieg reicht völlig.", idleDays),
		Priority:         priorityComeback,
		Reasoning:        fmt.Sprintf("%d Tage ohne Einheit", idleDays),
		EstimatedBenefit: "Routine wieder aufnehmen, bevor die Pause wächst",
	}}
}

// recoveryRule suggests rest after an unusually dense trailing stretch
func (e *Engine) recoveryRule(window []*models.ProgressEntry, now time.Time) []*models.Recommendation {
	cutoff := now.AddDate(0, 0, -e.thresholds.RecoveryWindowDays)
	recent := 0
	for _, entry := range window {
		if !entry.CompletedAt.Before(cutoff) {
			recent++
		}
	}

	if recent < e.thresholds.RecoveryMinSessions {
		return nil
	}

	return []*models.Recommendation{{
		ID:               uuid.NewString(),
		Type:             models.RecommendationRecovery,
		Title:            "Gönn dir Erholung",
		Description:      fmt.Sprintf("%d Einheiten in %d Tagen — dein Körper braucht auch Pausen.", recent, e.thresholds.RecoveryWindowDays),
		BodyArea:         models.BodyAreaRecovery,
		Priority:         priorityRecovery,
		Reasoning:        fmt.Sprintf("%d Einheiten im %d-Tage-Fenster", recent, e.thresholds.RecoveryWindowDays),
		EstimatedBenefit: "Regeneration schützt vor Überlastung",
	}}
}
