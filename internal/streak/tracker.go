package streak

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/metrics"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/storage"
)

// Tracker maintains the per-(user, streakType) streak state machine.
// The read-modify-write for each key is serialized through a keyed lock so
// concurrent completions for the same user compose without lost updates.
type Tracker struct {
	store   storage.StreakStore
	metrics *metrics.Metrics // nil disables instrumentation
	locks   sync.Map         // "userID|streakType" -> *sync.Mutex
}

// NewTracker creates a streak tracker over the given store
func NewTracker(store storage.StreakStore, m *metrics.Metrics) *Tracker {
	return &Tracker{store: store, metrics: m}
}

func (t *Tracker) lockFor(userID string, streakType models.StreakType) *sync.Mutex {
	key := userID + "|" + string(streakType)
	mu, _ := t.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// RecordActivity applies one completion event to the streak for
// (userID, streakType) and returns the resulting state.
//
// Transitions, with D = date component of completedAt:
//   - no record          -> {current:1, best:1, lastActivity:D, startedAt:D}
//   - D == lastActivity  -> no-op (same-day repeats never double-increment)
//   - D == lastActivity+1day -> current+1, best = max(best, current)
//   - D  > lastActivity+1day -> current resets to 1, best preserved
//   - D  < lastActivity  -> ignored; backfilled events never decrement
func (t *Tracker) RecordActivity(ctx context.Context, userID string, streakType models.StreakType, completedAt time.Time) (*models.StreakState, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	mu := t.lockFor(userID, streakType)
	mu.Lock()
	defer mu.Unlock()

	state, err := t.store.GetStreak(ctx, userID, streakType)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak: %w", err)
	}

	day := models.DateOnly(completedAt)

	if state == nil {
		state = &models.StreakState{
			UserID:           userID,
			StreakType:       streakType,
			CurrentCount:     1,
			BestCount:        1,
			LastActivityDate: day,
			StartedAt:        day,
		}
		if err := t.store.UpsertStreak(ctx, state); err != nil {
			return nil, fmt.Errorf("failed to persist streak: %w", err)
		}
		t.recordTransition(streakType, "started")
		return state, nil
	}

	next := Advance(*state, day)
	if next == *state {
		t.recordTransition(streakType, "noop")
		return state, nil
	}

	if err := t.store.UpsertStreak(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to persist streak: %w", err)
	}
	if next.CurrentCount > state.CurrentCount {
		t.recordTransition(streakType, "extended")
	} else {
		t.recordTransition(streakType, "reset")
	}
	return &next, nil
}

func (t *Tracker) recordTransition(streakType models.StreakType, transition string) {
	if t.metrics != nil {
		t.metrics.StreakTransitions.WithLabelValues(string(streakType), transition).Inc()
	}
}

// Advance computes the transition for an existing streak record.
// It is a pure function so the state machine is testable in isolation.
func Advance(state models.StreakState, day time.Time) models.StreakState {
	day = models.DateOnly(day)
	last := models.DateOnly(state.LastActivityDate)

	switch {
	case day.Equal(last):
		// Same-day repeat session
		return state
	case day.Before(last):
		// Backfilled event: ignored, never decrements
		return state
	case day.Equal(last.AddDate(0, 0, 1)):
		state.CurrentCount++
		if state.CurrentCount > state.BestCount {
			state.BestCount = state.CurrentCount
		}
		state.LastActivityDate = day
		return state
	default:
		// Gap of more than one day: streak breaks, best preserved
		state.CurrentCount = 1
		state.LastActivityDate = day
		state.StartedAt = day
		return state
	}
}
