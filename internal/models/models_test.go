package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBodyAreaValid(t *testing.T) {
	for _, area := range AllBodyAreas {
		assert.True(t, area.Valid(), "%s", area)
	}
	assert.False(t, BodyArea("cardio").Valid())
	assert.False(t, BodyArea("").Valid())
}

func TestDifficultyNext(t *testing.T) {
	assert.Equal(t, DifficultyIntermediate, DifficultyBeginner.Next())
	assert.Equal(t, DifficultyAdvanced, DifficultyIntermediate.Next())
	assert.Equal(t, DifficultyAdvanced, DifficultyAdvanced.Next())
}

func TestStreakTypeForArea(t *testing.T) {
	assert.Equal(t, StreakType("area:movement"), StreakTypeForArea(BodyAreaMovement))
	assert.NotEqual(t, StreakTypeDaily, StreakTypeForArea(BodyAreaSleep))
}

func TestDateOnly(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	assert.NoError(t, err)

	// 00:30 Berlin on Mar 2 is still Mar 1 in UTC
	local := time.Date(2026, 3, 2, 0, 30, 0, 0, berlin)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), DateOnly(local))

	utc := time.Date(2026, 3, 2, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), DateOnly(utc))
}

func TestDateRangeContains(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	bounded := DateRange{From: from, To: to}
	assert.True(t, bounded.Contains(from), "bounds are inclusive")
	assert.True(t, bounded.Contains(to), "bounds are inclusive")
	assert.False(t, bounded.Contains(from.Add(-time.Second)))
	assert.False(t, bounded.Contains(to.Add(time.Second)))

	assert.True(t, DateRange{}.Contains(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, DateRange{From: from}.Contains(to.AddDate(10, 0, 0)))
	assert.True(t, DateRange{}.IsZero())
	assert.False(t, bounded.IsZero())
}
