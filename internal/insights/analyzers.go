package insights

import (
	"fmt"
	"time"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/config"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
)

// AnalyzerInput is everything an analyzer may look at. Analyzers are pure
// functions of this snapshot: no store access, no side effects.
type AnalyzerInput struct {
	UserID        string
	Window        []*models.ProgressEntry // trailing window, newest first
	DailyStreak   *models.StreakState     // nil if the user has no streak yet
	LifetimeCount int
	Thresholds    config.Thresholds
}

// Analyzer produces zero or one insight content from the input
type Analyzer func(input AnalyzerInput) (*models.InsightContent, error)

// Time-of-day buckets for pattern analysis
const (
	bucketMorning = "Morgen"
	bucketMidday  = "Mittag"
	bucketEvening = "Abend"
)

var weekdayNames = [...]string{
	"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag",
}

// AnalyzePattern reports the user's preferred practice time and weekday.
// Requires at least Thresholds.PatternMinEntries in the trailing window.
func AnalyzePattern(input AnalyzerInput) (*models.InsightContent, error) {
	if len(input.Window) < input.Thresholds.PatternMinEntries {
		return nil, nil
	}

	hourSum := 0
	weekdayCounts := [7]int{}
	for _, entry := range input.Window {
		local := entry.CompletedAt.UTC()
		hourSum += local.Hour()
		weekdayCounts[int(local.Weekday())]++
	}

	meanHour := float64(hourSum) / float64(len(input.Window))
	bucket := bucketMidday
	switch {
	case meanHour < 10:
		bucket = bucketMorning
	case meanHour > 18:
		bucket = bucketEvening
	}

	// Ties break toward the lowest weekday index
	topWeekday := 0
	for i := 1; i < 7; i++ {
		if weekdayCounts[i] > weekdayCounts[topWeekday] {
			topWeekday = i
		}
	}

	return &models.InsightContent{
		Title: "Deine Praxis-Muster",
		Message: fmt.Sprintf(
			"Du übst am liebsten am %s, meistens am %s. Regelmäßigkeit zur gleichen Tageszeit festigt deine Routine.",
			bucket, weekdayNames[topWeekday]),
		ActionItems: []string{
			fmt.Sprintf("Plane deine nächste Einheit wieder am %s", bucket),
			"Blocke dir feste Zeiten im Kalender",
		},
		Priority: models.PriorityMedium,
		Data: map[string]interface{}{
			"peak_time":   bucket,
			"mean_hour":   meanHour,
			"top_weekday": weekdayNames[topWeekday],
			"window_size": len(input.Window),
		},
	}, nil
}

// AnalyzePlateau fires when every entry in the window shares one difficulty
// level and the window is large enough. Suggests the next tier.
func AnalyzePlateau(input AnalyzerInput) (*models.InsightContent, error) {
	if len(input.Window) < input.Thresholds.PlateauMinEntries {
		return nil, nil
	}

	level := input.Window[0].DifficultyLevel
	for _, entry := range input.Window[1:] {
		if entry.DifficultyLevel != level {
			return nil, nil
		}
	}

	next := level.Next()
	if next == level {
		// Already at the top tier, nothing to suggest
		return nil, nil
	}

	return &models.InsightContent{
		Title: "Zeit für die nächste Stufe",
		Message: fmt.Sprintf(
			"Deine letzten %d Einheiten waren alle auf dem Level %s. Du bist bereit für %s.",
			len(input.Window), level, next),
		ActionItems: []string{
			fmt.Sprintf("Probiere eine Übung auf dem Level %s", next),
			"Steigere die Dauer einzelner Einheiten",
		},
		Priority: models.PriorityHigh,
		Data: map[string]interface{}{
			"current_level":   string(level),
			"suggested_level": string(next),
			"session_count":   len(input.Window),
		},
	}, nil
}

// AnalyzeMotivation encourages users with a short or missing daily streak.
// The framing differs for brand-new users (empty window) vs returning ones.
func AnalyzeMotivation(input AnalyzerInput) (*models.InsightContent, error) {
	current := 0
	if input.DailyStreak != nil {
		current = input.DailyStreak.CurrentCount
	}
	if current >= input.Thresholds.MotivationMaxStreak {
		return nil, nil
	}

	content := &models.InsightContent{
		Title:    "Bleib dran",
		Priority: models.PriorityMedium,
		Data: map[string]interface{}{
			"current_streak": current,
		},
	}

	if len(input.Window) == 0 {
		content.Message = "Jeder Tag ist eine neue Chance. Starte heute mit deiner ersten Einheit und baue deine Serie auf."
		content.ActionItems = []string{
			"Wähle eine kurze Übung für den Einstieg",
			"Nimm dir für heute nur fünf Minuten vor",
		}
	} else {
		content.Message = fmt.Sprintf(
			"Deine Serie steht bei %d. Schon drei Tage in Folge machen einen spürbaren Unterschied — heute zählt.",
			current)
		content.ActionItems = []string{
			"Übe heute, um deine Serie zu verlängern",
			"Stelle dir eine feste Erinnerung",
		}
	}

	return content, nil
}

// AnalyzeOptimization highlights the body area with the highest average
// session duration as the user's strength. Requires a minimum lifetime
// history and a minimum number of sessions per qualifying area.
func AnalyzeOptimization(input AnalyzerInput) (*models.InsightContent, error) {
	if input.LifetimeCount < input.Thresholds.OptimizationMinLifetime {
		return nil, nil
	}

	type areaAgg struct {
		sessions int
		minutes  int
	}
	byArea := make(map[models.BodyArea]*areaAgg)
	for _, entry := range input.Window {
		agg, ok := byArea[entry.BodyArea]
		if !ok {
			agg = &areaAgg{}
			byArea[entry.BodyArea] = agg
		}
		agg.sessions++
		agg.minutes += entry.DurationMinutes
	}

	var best models.BodyArea
	bestAvg := 0.0
	// Enumeration order keeps ties deterministic
	for _, area := range models.AllBodyAreas {
		agg, ok := byArea[area]
		if !ok || agg.sessions < input.Thresholds.OptimizationMinSessions {
			continue
		}
		avg := float64(agg.minutes) / float64(agg.sessions)
		if avg > bestAvg {
			best = area
			bestAvg = avg
		}
	}

	if best == "" {
		return nil, nil
	}

	return &models.InsightContent{
		Title: "Deine Stärke",
		Message: fmt.Sprintf(
			"Im Bereich %s hältst du mit durchschnittlich %.0f Minuten pro Einheit am längsten durch. Das ist deine Stärke.",
			best, bestAvg),
		ActionItems: []string{
			fmt.Sprintf("Nutze %s als Anker für neue Routinen", best),
			"Übertrage die Ausdauer auf einen schwächeren Bereich",
		},
		Priority: models.PriorityLow,
		Data: map[string]interface{}{
			"strongest_area":   string(best),
			"average_duration": bestAvg,
		},
	}, nil
}

// windowRange returns the trailing window bounds ending now
func windowRange(now time.Time, days int) models.DateRange {
	return models.DateRange{From: now.AddDate(0, 0, -days), To: now}
}
