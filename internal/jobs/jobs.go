package jobs

import (
	"context"
	"time"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
)

// Job types understood by the recompute worker
const (
	TypeRecomputeStats   = "recompute_stats"
	TypeRecomputeArea    = "recompute_body_area"
	TypeGenerateInsights = "generate_insights"
)

// Job is the payload handed to the background runner. Jobs are
// fire-and-forget and may be delivered more than once or out of order,
// so every handler must be idempotent.
type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	UserID    string          `json:"user_id"`
	BodyArea  models.BodyArea `json:"body_area,omitempty"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue is the job-queue collaborator contract. Enqueue returns without
// waiting for execution; callers treat failures as best-effort no-ops.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Close() error
}

// Handler executes one job. Returning an error triggers a bounded retry.
type Handler func(ctx context.Context, job Job) error
