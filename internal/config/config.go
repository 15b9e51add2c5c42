package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the progress engine configuration
type Config struct {
	DatabaseURL string
	RedisAddr   string
	RedisDB     int
	NatsURL     string
	MetricsAddr string

	CacheTimeout time.Duration
	QueueTimeout time.Duration

	Thresholds Thresholds
}

// Thresholds collects every heuristic threshold used by the insight and
// recommendation engines so they are tunable and testable in one place.
type Thresholds struct {
	// Insight engine
	PatternMinEntries       int `yaml:"pattern_min_entries"`
	PatternWindowDays       int `yaml:"pattern_window_days"`
	PlateauMinEntries       int `yaml:"plateau_min_entries"`
	MotivationMaxStreak     int `yaml:"motivation_max_streak"`
	OptimizationMinLifetime int `yaml:"optimization_min_lifetime"`
	OptimizationMinSessions int `yaml:"optimization_min_sessions"`

	// Recommendation engine
	RecommendWindowDays    int `yaml:"recommend_window_days"`
	NeglectedMaxResults    int `yaml:"neglected_max_results"`
	ProgressionMinSessions int `yaml:"progression_min_sessions"`
	ComebackGapDays        int `yaml:"comeback_gap_days"`
	RecoveryWindowDays     int `yaml:"recovery_window_days"`
	RecoveryMinSessions    int `yaml:"recovery_min_sessions"`
}

// DefaultThresholds returns the production heuristic thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		PatternMinEntries:       7,
		PatternWindowDays:       30,
		PlateauMinEntries:       10,
		MotivationMaxStreak:     3,
		OptimizationMinLifetime: 20,
		OptimizationMinSessions: 5,

		RecommendWindowDays:    14,
		NeglectedMaxResults:    2,
		ProgressionMinSessions: 5,
		ComebackGapDays:        3,
		RecoveryWindowDays:     3,
		RecoveryMinSessions:    6,
	}
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  os.Getenv("PROGRESS_DATABASE_URL"),
		RedisAddr:    getEnv("PROGRESS_REDIS_ADDR", "localhost:6379"),
		NatsURL:      getEnv("PROGRESS_NATS_URL", "nats://localhost:4222"),
		MetricsAddr:  getEnv("PROGRESS_METRICS_ADDR", ":9190"),
		CacheTimeout: 2 * time.Second,
		QueueTimeout: 5 * time.Second,
		Thresholds:   DefaultThresholds(),
	}

	if v := os.Getenv("PROGRESS_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PROGRESS_REDIS_DB %q: %w", v, err)
		}
		cfg.RedisDB = db
	}

	if path := os.Getenv("PROGRESS_THRESHOLDS_FILE"); path != "" {
		thresholds, err := LoadThresholds(path)
		if err != nil {
			return nil, err
		}
		cfg.Thresholds = thresholds
	}

	return cfg, nil
}

// LoadThresholds reads a YAML thresholds file. Fields left at zero fall back
// to the defaults so partial files stay valid.
func LoadThresholds(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Thresholds{}, fmt.Errorf("failed to read thresholds file: %w", err)
	}

	thresholds := DefaultThresholds()
	if err := yaml.Unmarshal(data, &thresholds); err != nil {
		return Thresholds{}, fmt.Errorf("failed to parse thresholds file: %w", err)
	}

	return thresholds, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
