package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
)

// Memory provides in-memory storage for the progress engine
type Memory struct {
	entries  map[string][]*models.ProgressEntry                   // userID -> entries
	streaks  map[string]map[models.StreakType]*models.StreakState // userID -> type -> state
	insights map[string][]*models.Insight                         // userID -> insights
	mu       sync.RWMutex
}

// NewMemory creates a new in-memory store
func NewMemory() *Memory {
	return &Memory{
		entries:  make(map[string][]*models.ProgressEntry),
		streaks:  make(map[string]map[models.StreakType]*models.StreakState),
		insights: make(map[string][]*models.Insight),
	}
}

// AppendEntry adds a completion event to the ledger
func (m *Memory) AppendEntry(ctx context.Context, entry *models.ProgressEntry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *entry
	m.entries[entry.UserID] = append(m.entries[entry.UserID], &stored)
	return nil
}

// QueryEntries returns a user's entries matching the filter, newest first
func (m *Memory) QueryEntries(ctx context.Context, userID string, filter models.EntryFilter) ([]*models.ProgressEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*models.ProgressEntry, 0)
	for _, entry := range m.entries[userID] {
		if filter.BodyArea != "" && entry.BodyArea != filter.BodyArea {
			continue
		}
		if filter.ExerciseID != "" && entry.ExerciseID != filter.ExerciseID {
			continue
		}
		if !filter.DateRange.Contains(entry.CompletedAt) {
			continue
		}
		copied := *entry
		matched = append(matched, &copied)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CompletedAt.After(matched[j].CompletedAt)
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

// CountEntries returns a user's lifetime entry count
func (m *Memory) CountEntries(ctx context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries[userID]), nil
}

// ListActiveUsers returns every user with at least one entry at or after
// since, sorted for deterministic output
func (m *Memory) ListActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]string, 0)
	for userID, entries := range m.entries {
		for _, entry := range entries {
			if !entry.CompletedAt.Before(since) {
				users = append(users, userID)
				break
			}
		}
	}
	sort.Strings(users)
	return users, nil
}

// ComputeUserStats aggregates a user's entries within the date range
func (m *Memory) ComputeUserStats(ctx context.Context, userID string, dateRange models.DateRange, topN int) (*models.UserStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.UserStats{
		UserID:            userID,
		BodyAreaBreakdown: make(map[models.BodyArea]int),
	}

	type exerciseAgg struct {
		count int
		last  time.Time
	}
	byExercise := make(map[string]*exerciseAgg)

	for _, entry := range m.entries[userID] {
		if !dateRange.Contains(entry.CompletedAt) {
			continue
		}
		stats.TotalSessions++
		stats.TotalMinutes += entry.DurationMinutes
		stats.BodyAreaBreakdown[entry.BodyArea]++

		agg, ok := byExercise[entry.ExerciseID]
		if !ok {
			agg = &exerciseAgg{}
			byExercise[entry.ExerciseID] = agg
		}
		agg.count++
		if entry.CompletedAt.After(agg.last) {
			agg.last = entry.CompletedAt
		}
	}

	if stats.TotalSessions > 0 {
		stats.AverageSessionDuration = float64(stats.TotalMinutes) / float64(stats.TotalSessions)
	}

	top := make([]models.ExerciseCount, 0, len(byExercise))
	for id, agg := range byExercise {
		top = append(top, models.ExerciseCount{ExerciseID: id, Count: agg.count, LastCompleted: agg.last})
	}
	// Frequency first, ties broken by most recent completion
	sort.SliceStable(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].LastCompleted.After(top[j].LastCompleted)
	})
	if topN > 0 && len(top) > topN {
		top = top[:topN]
	}
	stats.TopExercises = top

	return stats, nil
}

// ComputeBodyAreaStats aggregates a user's entries for one body area
func (m *Memory) ComputeBodyAreaStats(ctx context.Context, userID string, area models.BodyArea) (*models.BodyAreaStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.BodyAreaStats{UserID: userID, BodyArea: area}
	for _, entry := range m.entries[userID] {
		if entry.BodyArea != area {
			continue
		}
		stats.TotalSessions++
		stats.TotalMinutes += entry.DurationMinutes
		if entry.CompletedAt.After(stats.LastCompleted) {
			stats.LastCompleted = entry.CompletedAt
		}
	}
	if stats.TotalSessions > 0 {
		stats.AverageMinutes = float64(stats.TotalMinutes) / float64(stats.TotalSessions)
	}

	return stats, nil
}

// GetStreak returns the streak record for (userID, streakType), nil if absent
func (m *Memory) GetStreak(ctx context.Context, userID string, streakType models.StreakType) (*models.StreakState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byType, ok := m.streaks[userID]
	if !ok {
		return nil, nil
	}
	state, ok := byType[streakType]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

// ListStreaks returns all streak records for a user
func (m *Memory) ListStreaks(ctx context.Context, userID string) ([]*models.StreakState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]*models.StreakState, 0, len(m.streaks[userID]))
	for _, state := range m.streaks[userID] {
		copied := *state
		states = append(states, &copied)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].StreakType < states[j].StreakType
	})

	return states, nil
}

// UpsertStreak stores a streak record, replacing any existing one
func (m *Memory) UpsertStreak(ctx context.Context, state *models.StreakState) error {
	if state == nil {
		return fmt.Errorf("streak state cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	byType, ok := m.streaks[state.UserID]
	if !ok {
		byType = make(map[models.StreakType]*models.StreakState)
		m.streaks[state.UserID] = byType
	}

	copied := *state
	byType[state.StreakType] = &copied
	return nil
}

// SaveInsight persists a generated insight
func (m *Memory) SaveInsight(ctx context.Context, insight *models.Insight) error {
	if insight == nil {
		return fmt.Errorf("insight cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *insight
	m.insights[insight.UserID] = append(m.insights[insight.UserID], &copied)
	return nil
}

// ListInsights returns a user's insights, newest first
func (m *Memory) ListInsights(ctx context.Context, userID string, unviewedOnly bool, limit int) ([]*models.Insight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*models.Insight, 0)
	for _, insight := range m.insights[userID] {
		if unviewedOnly && insight.ViewedAt != nil {
			continue
		}
		copied := *insight
		matched = append(matched, &copied)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].GeneratedAt.After(matched[j].GeneratedAt)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

// MarkInsightsViewed sets ViewedAt on the given insights
func (m *Memory) MarkInsightsViewed(ctx context.Context, userID string, insightIDs []string, viewedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make(map[string]bool, len(insightIDs))
	for _, id := range insightIDs {
		ids[id] = true
	}

	for _, insight := range m.insights[userID] {
		if ids[insight.ID] && insight.ViewedAt == nil {
			t := viewedAt
			insight.ViewedAt = &t
		}
	}

	return nil
}
