package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
)

// GetStreak returns the streak record for (userID, streakType), nil if absent
func (d *Database) GetStreak(ctx context.Context, userID string, streakType models.StreakType) (*models.StreakState, error) {
	query := `
		SELECT user_id, streak_type, current_count, best_count, last_activity_date, started_at
		FROM streaks
		WHERE user_id = ? AND streak_type = ?
	`

	state := &models.StreakState{}
	var streakTypeStr string
	err := d.db.QueryRowContext(ctx, rebind(query), userID, string(streakType)).Scan(
		&state.UserID,
		&streakTypeStr,
		&state.CurrentCount,
		&state.BestCount,
		&state.LastActivityDate,
		&state.StartedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}

	state.StreakType = models.StreakType(streakTypeStr)
	state.LastActivityDate = models.DateOnly(state.LastActivityDate)
	return state, nil
}

// ListStreaks returns all streak records for a user
func (d *Database) ListStreaks(ctx context.Context, userID string) ([]*models.StreakState, error) {
	query := `
		SELECT user_id, streak_type, current_count, best_count, last_activity_date, started_at
		FROM streaks
		WHERE user_id = ?
		ORDER BY streak_type
	`

	rows, err := d.db.QueryContext(ctx, rebind(query), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list streaks: %w", err)
	}
	defer rows.Close()

	var states []*models.StreakState
	for rows.Next() {
		state := &models.StreakState{}
		var streakTypeStr string
		err := rows.Scan(
			&state.UserID,
			&streakTypeStr,
			&state.CurrentCount,
			&state.BestCount,
			&state.LastActivityDate,
			&state.StartedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan streak: %w", err)
		}
		state.StreakType = models.StreakType(streakTypeStr)
		state.LastActivityDate = models.DateOnly(state.LastActivityDate)
		states = append(states, state)
	}

	return states, rows.Err()
}

// UpsertStreak stores a streak record, replacing any existing one
func (d *Database) UpsertStreak(ctx context.Context, state *models.StreakState) error {
	if state == nil {
		return fmt.Errorf("streak state cannot be nil")
	}

	query := `
		INSERT INTO streaks (user_id, streak_type, current_count, best_count, last_activity_date, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, streak_type) DO UPDATE SET
			current_count = excluded.current_count,
			best_count = excluded.best_count,
			last_activity_date = excluded.last_activity_date,
			started_at = excluded.started_at
	`

	_, err := d.db.ExecContext(ctx, rebind(query),
		state.UserID,
		string(state.StreakType),
		state.CurrentCount,
		state.BestCount,
		state.LastActivityDate,
		state.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert streak: %w", err)
	}

	return nil
}
