package models

import "time"

// BodyArea is one of the eight practice categories used to bucket completions
type BodyArea string

const (
	BodyAreaMovement    BodyArea = "movement"
	BodyAreaBreathing   BodyArea = "breathing"
	BodyAreaCirculation BodyArea = "circulation"
	BodyAreaMobility    BodyArea = "mobility"
	BodyAreaMindfulness BodyArea = "mindfulness"
	BodyAreaRecovery    BodyArea = "recovery"
	BodyAreaNutrition   BodyArea = "nutrition"
	BodyAreaSleep       BodyArea = "sleep"
)

// AllBodyAreas lists every body area in enumeration order.
// Order matters: neglected-area recommendations use it for deterministic output.
var AllBodyAreas = []BodyArea{
	BodyAreaMovement,
	BodyAreaBreathing,
	BodyAreaCirculation,
	BodyAreaMobility,
	BodyAreaMindfulness,
	BodyAreaRecovery,
	BodyAreaNutrition,
	BodyAreaSleep,
}

// Valid reports whether the body area is one of the enumerated categories
func (b BodyArea) Valid() bool {
	for _, area := range AllBodyAreas {
		if area == b {
			return true
		}
	}
	return false
}

// DifficultyLevel is one of the three ordered difficulty tiers
type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "Beginner"
	DifficultyIntermediate DifficultyLevel = "Intermediate"
	DifficultyAdvanced     DifficultyLevel = "Advanced"
)

// AllDifficultyLevels lists the tiers in ascending order
var AllDifficultyLevels = []DifficultyLevel{
	DifficultyBeginner,
	DifficultyIntermediate,
	DifficultyAdvanced,
}

// Valid reports whether the difficulty level is one of the enumerated tiers
func (d DifficultyLevel) Valid() bool {
	for _, level := range AllDifficultyLevels {
		if level == d {
			return true
		}
	}
	return false
}

// Next returns the tier above this one. Advanced has no next tier and
// returns itself.
func (d DifficultyLevel) Next() DifficultyLevel {
	for i, level := range AllDifficultyLevels {
		if level == d && i+1 < len(AllDifficultyLevels) {
			return AllDifficultyLevels[i+1]
		}
	}
	return d
}

// BiometricSnapshot is an optional structured payload captured at completion time
type BiometricSnapshot struct {
	HeartRate       int     `json:"heart_rate,omitempty"`
	HRV             float64 `json:"hrv,omitempty"`
	SleepHours      float64 `json:"sleep_hours,omitempty"`
	RestingPulse    int     `json:"resting_pulse,omitempty"`
	BodyTempCelsius float64 `json:"body_temp_celsius,omitempty"`
}

// ProgressEntry is an immutable ledger row recording one exercise completion.
// Once appended it is never mutated or deleted.
type ProgressEntry struct {
	ID              string             `json:"id"`
	UserID          string             `json:"user_id"`
	ExerciseID      string             `json:"exercise_id"`
	BodyArea        BodyArea           `json:"body_area"`
	CompletedAt     time.Time          `json:"completed_at"`
	DurationMinutes int                `json:"duration_minutes,omitempty"`
	DifficultyLevel DifficultyLevel    `json:"difficulty_level"`
	SessionNotes    string             `json:"session_notes,omitempty"`
	Mood            int                `json:"mood,omitempty"`
	EnergyLevel     int                `json:"energy_level,omitempty"`
	Biometrics      *BiometricSnapshot `json:"biometrics,omitempty"`
}

// Completion is the caller-supplied input for recording a completion event
type Completion struct {
	ExerciseID      string             `json:"exercise_id"`
	BodyArea        BodyArea           `json:"body_area"`
	CompletedAt     time.Time          `json:"completed_at"`
	DurationMinutes int                `json:"duration_minutes,omitempty"`
	DifficultyLevel DifficultyLevel    `json:"difficulty_level"`
	SessionNotes    string             `json:"session_notes,omitempty"`
	Mood            int                `json:"mood,omitempty"`
	EnergyLevel     int                `json:"energy_level,omitempty"`
	Biometrics      *BiometricSnapshot `json:"biometrics,omitempty"`
}

// StreakType identifies a streak series for a user
type StreakType string

// StreakTypeDaily counts consecutive calendar days with at least one
// completion of any kind. Per-body-area streaks use the area name as type.
const StreakTypeDaily StreakType = "daily"

// StreakTypeForArea returns the streak type tracking a single body area
func StreakTypeForArea(area BodyArea) StreakType {
	return StreakType("area:" + string(area))
}

// StreakState is the per-(user, streakType) streak record.
// Invariants: BestCount >= CurrentCount, CurrentCount >= 0.
type StreakState struct {
	UserID           string     `json:"user_id"`
	StreakType       StreakType `json:"streak_type"`
	CurrentCount     int        `json:"current_count"`
	BestCount        int        `json:"best_count"`
	LastActivityDate time.Time  `json:"last_activity_date"` // date-only, UTC midnight
	StartedAt        time.Time  `json:"started_at"`
}

// InsightType classifies a generated insight
type InsightType string

const (
	InsightPatternAnalysis  InsightType = "pattern_analysis"
	InsightPlateauDetection InsightType = "plateau_detection"
	InsightMotivation       InsightType = "motivation"
	InsightOptimization     InsightType = "optimization"
	InsightRecommendation   InsightType = "recommendation"
)

// InsightPriority orders insights for presentation
type InsightPriority string

const (
	PriorityLow    InsightPriority = "low"
	PriorityMedium InsightPriority = "medium"
	PriorityHigh   InsightPriority = "high"
)

// InsightContent is the human-readable payload of an insight
type InsightContent struct {
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	ActionItems []string               `json:"action_items,omitempty"`
	Priority    InsightPriority        `json:"priority"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Insight is a persisted observation about a user's activity pattern.
// Mutated only to set ViewedAt.
type Insight struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	InsightType InsightType    `json:"insight_type"`
	Content     InsightContent `json:"content"`
	GeneratedAt time.Time      `json:"generated_at"`
	ViewedAt    *time.Time     `json:"viewed_at,omitempty"`
}

// RecommendationType classifies an on-demand recommendation
type RecommendationType string

const (
	RecommendationExercise    RecommendationType = "exercise"
	RecommendationSchedule    RecommendationType = "schedule"
	RecommendationProgression RecommendationType = "progression"
	RecommendationRecovery    RecommendationType = "recovery"
)

// Recommendation is an ephemeral, priority-ranked suggestion.
// Computed on demand and never persisted.
type Recommendation struct {
	ID               string             `json:"id"`
	Type             RecommendationType `json:"type"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	BodyArea         BodyArea           `json:"body_area,omitempty"`
	Priority         int                `json:"priority"`
	Reasoning        string             `json:"reasoning"`
	EstimatedBenefit string             `json:"estimated_benefit"`
}

// ExerciseCount pairs an exercise with its completion frequency
type ExerciseCount struct {
	ExerciseID    string    `json:"exercise_id"`
	Count         int       `json:"count"`
	LastCompleted time.Time `json:"last_completed"`
}

// UserStats is the aggregate statistics payload returned by the cache-aside reads
type UserStats struct {
	UserID                 string           `json:"user_id"`
	TotalSessions          int              `json:"total_sessions"`
	TotalMinutes           int              `json:"total_minutes"`
	AverageSessionDuration float64          `json:"average_session_duration"`
	BodyAreaBreakdown      map[BodyArea]int `json:"body_area_breakdown"`
	TopExercises           []ExerciseCount  `json:"top_exercises"`
}

// BodyAreaStats is the per-area aggregate payload
type BodyAreaStats struct {
	UserID         string    `json:"user_id"`
	BodyArea       BodyArea  `json:"body_area"`
	TotalSessions  int       `json:"total_sessions"`
	TotalMinutes   int       `json:"total_minutes"`
	AverageMinutes float64   `json:"average_minutes"`
	LastCompleted  time.Time `json:"last_completed"`
}

// DateRange bounds a ledger query. Zero values mean unbounded on that side.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// IsZero reports whether the range is unbounded on both sides
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether t falls inside the range (inclusive bounds)
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// EntryFilter narrows a ledger query
type EntryFilter struct {
	BodyArea   BodyArea
	ExerciseID string
	DateRange  DateRange
	Limit      int
}

// DateOnly truncates a timestamp to UTC midnight for streak comparisons
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
