package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
)

// Key builders. Invalidation patterns in the write path must cover every
// key shape produced here.

// UserStatsKey builds the cache key for a user's aggregate stats.
// The date range is hashed so equivalent ranges always map to one key.
func UserStatsKey(userID string, dateRange models.DateRange) string {
	return fmt.Sprintf("user_stats:%s:%s", userID, rangeHash(dateRange))
}

// UserStatsPattern matches every user_stats key for a user
func UserStatsPattern(userID string) string {
	return fmt.Sprintf("user_stats:%s:*", userID)
}

// BodyAreaStatsKey builds the cache key for per-area stats
func BodyAreaStatsKey(userID string, area models.BodyArea) string {
	return fmt.Sprintf("body_area_stats:%s:%s", userID, area)
}

// BodyAreaStatsPattern matches every body_area_stats key for a user
func BodyAreaStatsPattern(userID string) string {
	return fmt.Sprintf("body_area_stats:%s:*", userID)
}

// StreaksKey builds the cache key for a user's streak summary
func StreaksKey(userID string) string {
	return fmt.Sprintf("streaks:%s", userID)
}

func rangeHash(dateRange models.DateRange) string {
	if dateRange.IsZero() {
		return "all"
	}
	hasher := sha256.New()
	fmt.Fprintf(hasher, "%d:%d", unixOrZero(dateRange.From), unixOrZero(dateRange.To))
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
