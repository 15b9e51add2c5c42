package storage

import (
	"context"
	"time"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
)

// Store is the persistence contract required by the progress engine.
// internal/database provides the Postgres implementation; Memory below
// backs tests and degraded single-process deployments.
type Store interface {
	LedgerStore
	AggregateStore
	StreakStore
	InsightStore
}

// LedgerStore is the append-only completion-event ledger
type LedgerStore interface {
	AppendEntry(ctx context.Context, entry *models.ProgressEntry) error
	QueryEntries(ctx context.Context, userID string, filter models.EntryFilter) ([]*models.ProgressEntry, error)
	CountEntries(ctx context.Context, userID string) (int, error)
	ListActiveUsers(ctx context.Context, since time.Time) ([]string, error)
}

// AggregateStore runs the grouping queries behind the cache-aside reads.
// Implementations push the work into SQL where they can; the in-memory
// store computes the same shapes in Go.
type AggregateStore interface {
	ComputeUserStats(ctx context.Context, userID string, dateRange models.DateRange, topN int) (*models.UserStats, error)
	ComputeBodyAreaStats(ctx context.Context, userID string, area models.BodyArea) (*models.BodyAreaStats, error)
}

// StreakStore persists per-(user, streakType) streak records
type StreakStore interface {
	GetStreak(ctx context.Context, userID string, streakType models.StreakType) (*models.StreakState, error)
	ListStreaks(ctx context.Context, userID string) ([]*models.StreakState, error)
	UpsertStreak(ctx context.Context, state *models.StreakState) error
}

// InsightStore persists generated insights
type InsightStore interface {
	SaveInsight(ctx context.Context, insight *models.Insight) error
	ListInsights(ctx context.Context, userID string, unviewedOnly bool, limit int) ([]*models.Insight, error)
	MarkInsightsViewed(ctx context.Context, userID string, insightIDs []string, viewedAt time.Time) error
}
