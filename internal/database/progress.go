package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
)

// AppendEntry inserts a completion event into the ledger.
// Entries are append-only: there is no update or delete path.
func (d *Database) AppendEntry(ctx context.Context, entry *models.ProgressEntry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	biometricsJSON := ""
	if entry.Biometrics != nil {
		b, err := json.Marshal(entry.Biometrics)
		if err != nil {
			return fmt.Errorf("failed to marshal biometrics: %w", err)
		}
		biometricsJSON = string(b)
	}

	query := `
		INSERT INTO progress_entries (
			id, user_id, exercise_id, body_area, completed_at,
			duration_minutes, difficulty_level, session_notes, mood,
			energy_level, biometrics_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(ctx, rebind(query),
		entry.ID,
		entry.UserID,
		entry.ExerciseID,
		string(entry.BodyArea),
		entry.CompletedAt,
		entry.DurationMinutes,
		string(entry.DifficultyLevel),
		sqlNullString(entry.SessionNotes),
		nullInt(entry.Mood),
		nullInt(entry.EnergyLevel),
		sqlNullString(biometricsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to append progress entry: %w", err)
	}

	return nil
}

// QueryEntries returns a user's ledger entries matching the filter,
// ordered by completed_at descending.
func (d *Database) QueryEntries(ctx context.Context, userID string, filter models.EntryFilter) ([]*models.ProgressEntry, error) {
	query := `
		SELECT id, user_id, exercise_id, body_area, completed_at,
			   duration_minutes, difficulty_level, session_notes, mood,
			   energy_level, biometrics_json
		FROM progress_entries
		WHERE user_id = ?
	`
	args := []interface{}{userID}

	if filter.BodyArea != "" {
		query += " AND body_area = ?"
		args = append(args, string(filter.BodyArea))
	}
	if filter.ExerciseID != "" {
		query += " AND exercise_id = ?"
		args = append(args, filter.ExerciseID)
	}
	if !filter.DateRange.From.IsZero() {
		query += " AND completed_at >= ?"
		args = append(args, filter.DateRange.From)
	}
	if !filter.DateRange.To.IsZero() {
		query += " AND completed_at <= ?"
		args = append(args, filter.DateRange.To)
	}

	query += " ORDER BY completed_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := d.db.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.ProgressEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// CountEntries returns a user's lifetime entry count
func (d *Database) CountEntries(ctx context.Context, userID string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, rebind(`SELECT COUNT(*) FROM progress_entries WHERE user_id = ?`), userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count progress entries: %w", err)
	}
	return count, nil
}

// ListActiveUsers returns every user with at least one entry at or after since
func (d *Database) ListActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, rebind(`SELECT DISTINCT user_id FROM progress_entries WHERE completed_at >= ? ORDER BY user_id`), since)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, userID)
	}

	return users, rows.Err()
}

// ComputeUserStats aggregates a user's entries within the date range
func (d *Database) ComputeUserStats(ctx context.Context, userID string, dateRange models.DateRange, topN int) (*models.UserStats, error) {
	where := "user_id = ?"
	args := []interface{}{userID}
	if !dateRange.From.IsZero() {
		where += " AND completed_at >= ?"
		args = append(args, dateRange.From)
	}
	if !dateRange.To.IsZero() {
		where += " AND completed_at <= ?"
		args = append(args, dateRange.To)
	}

	stats := &models.UserStats{
		UserID:            userID,
		BodyAreaBreakdown: make(map[models.BodyArea]int),
	}

	totalsQuery := `SELECT COUNT(*), COALESCE(SUM(duration_minutes), 0) FROM progress_entries WHERE ` + where
	if err := d.db.QueryRowContext(ctx, rebind(totalsQuery), args...).Scan(&stats.TotalSessions, &stats.TotalMinutes); err != nil {
		return nil, fmt.Errorf("failed to compute totals: %w", err)
	}
	if stats.TotalSessions > 0 {
		stats.AverageSessionDuration = float64(stats.TotalMinutes) / float64(stats.TotalSessions)
	}

	areaQuery := `SELECT body_area, COUNT(*) FROM progress_entries WHERE ` + where + ` GROUP BY body_area`
	rows, err := d.db.QueryContext(ctx, rebind(areaQuery), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute body area breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var area string
		var count int
		if err := rows.Scan(&area, &count); err != nil {
			return nil, fmt.Errorf("failed to scan body area row: %w", err)
		}
		stats.BodyAreaBreakdown[models.BodyArea(area)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate body area rows: %w", err)
	}

	// Top exercises by frequency, ties broken by most recent completion
	topQuery := `
		SELECT exercise_id, COUNT(*) AS sessions, MAX(completed_at) AS last_completed
		FROM progress_entries WHERE ` + where + `
		GROUP BY exercise_id
		ORDER BY sessions DESC, last_completed DESC
	`
	topArgs := args
	if topN > 0 {
		topQuery += " LIMIT ?"
		topArgs = append(append([]interface{}{}, args...), topN)
	}
	topRows, err := d.db.QueryContext(ctx, rebind(topQuery), topArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute top exercises: %w", err)
	}
	defer topRows.Close()
	for topRows.Next() {
		var ec models.ExerciseCount
		if err := topRows.Scan(&ec.ExerciseID, &ec.Count, &ec.LastCompleted); err != nil {
			return nil, fmt.Errorf("failed to scan top exercise row: %w", err)
		}
		stats.TopExercises = append(stats.TopExercises, ec)
	}
	if err := topRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top exercise rows: %w", err)
	}

	return stats, nil
}

// ComputeBodyAreaStats aggregates a user's entries for one body area
func (d *Database) ComputeBodyAreaStats(ctx context.Context, userID string, area models.BodyArea) (*models.BodyAreaStats, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(duration_minutes), 0), MAX(completed_at)
		FROM progress_entries
		WHERE user_id = ? AND body_area = ?
	`

	stats := &models.BodyAreaStats{UserID: userID, BodyArea: area}
	var last sql.NullTime
	err := d.db.QueryRowContext(ctx, rebind(query), userID, string(area)).Scan(&stats.TotalSessions, &stats.TotalMinutes, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to compute body area stats: %w", err)
	}
	if last.Valid {
		stats.LastCompleted = last.Time
	}
	if stats.TotalSessions > 0 {
		stats.AverageMinutes = float64(stats.TotalMinutes) / float64(stats.TotalSessions)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*models.ProgressEntry, error) {
	entry := &models.ProgressEntry{}
	var bodyArea, difficulty string
	var notes, biometricsJSON sql.NullString
	var mood, energy sql.NullInt64

	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.ExerciseID,
		&bodyArea,
		&entry.CompletedAt,
		&entry.DurationMinutes,
		&difficulty,
		&notes,
		&mood,
		&energy,
		&biometricsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan progress entry: %w", err)
	}

	entry.BodyArea = models.BodyArea(bodyArea)
	entry.DifficultyLevel = models.DifficultyLevel(difficulty)
	entry.SessionNotes = notes.String
	entry.Mood = int(mood.Int64)
	entry.EnergyLevel = int(energy.Int64)
	if biometricsJSON.Valid && biometricsJSON.String != "" {
		snapshot := &models.BiometricSnapshot{}
		if err := json.Unmarshal([]byte(biometricsJSON.String), snapshot); err == nil {
			entry.Biometrics = snapshot
		}
	}

	return entry, nil
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}
