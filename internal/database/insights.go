package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
)

// SaveInsight persists a generated insight
func (d *Database) SaveInsight(ctx context.Context, insight *models.Insight) error {
	if insight == nil {
		return fmt.Errorf("insight cannot be nil")
	}

	contentJSON, err := json.Marshal(insight.Content)
	if err != nil {
		return fmt.Errorf("failed to marshal insight content: %w", err)
	}

	query := `
		INSERT INTO insights (id, user_id, insight_type, content_json, generated_at, viewed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var viewedAt sql.NullTime
	if insight.ViewedAt != nil {
		viewedAt = sql.NullTime{Time: *insight.ViewedAt, Valid: true}
	}

	_, err = d.db.ExecContext(ctx, rebind(query),
		insight.ID,
		insight.UserID,
		string(insight.InsightType),
		string(contentJSON),
		insight.GeneratedAt,
		viewedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save insight: %w", err)
	}

	return nil
}

// ListInsights returns a user's insights, newest first
func (d *Database) ListInsights(ctx context.Context, userID string, unviewedOnly bool, limit int) ([]*models.Insight, error) {
	query := `
		SELECT id, user_id, insight_type, content_json, generated_at, viewed_at
		FROM insights
		WHERE user_id = ?
	`
	args := []interface{}{userID}

	if unviewedOnly {
		query += " AND viewed_at IS NULL"
	}
	query += " ORDER BY generated_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer rows.Close()

	var insights []*models.Insight
	for rows.Next() {
		insight := &models.Insight{}
		var insightType, contentJSON string
		var viewedAt sql.NullTime
		err := rows.Scan(
			&insight.ID,
			&insight.UserID,
			&insightType,
			&contentJSON,
			&insight.GeneratedAt,
			&viewedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		insight.InsightType = models.InsightType(insightType)
		if err := json.Unmarshal([]byte(contentJSON), &insight.Content); err != nil {
			return nil, fmt.Errorf("failed to unmarshal insight content: %w", err)
		}
		if viewedAt.Valid {
			t := viewedAt.Time
			insight.ViewedAt = &t
		}
		insights = append(insights, insight)
	}

	return insights, rows.Err()
}

// MarkInsightsViewed sets viewed_at on the given insights.
// Already-viewed insights keep their original timestamp.
func (d *Database) MarkInsightsViewed(ctx context.Context, userID string, insightIDs []string, viewedAt time.Time) error {
	if len(insightIDs) == 0 {
		return nil
	}

	query := `UPDATE insights SET viewed_at = ? WHERE user_id = ? AND viewed_at IS NULL AND id IN (`
	args := []interface{}{viewedAt, userID}
	for i, id := range insightIDs {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, id)
	}
	query += ")"

	if _, err := d.db.ExecContext(ctx, rebind(query), args...); err != nil {
		return fmt.Errorf("failed to mark insights viewed: %w", err)
	}

	return nil
}
