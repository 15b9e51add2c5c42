package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/cache"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/config"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/database"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/insights"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/jobs"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/logging"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/metrics"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/models"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/progress"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/recommend"
	"github.com/miscarriage87/HumanBodyManual-sub000/internal/streak"
)

const version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "progressd",
		Short:   "Progress engine - exercise completion ledger, streaks, and analytics",
		Version: version,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newRecomputeCommand())
	rootCmd.AddCommand(newInsightsCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// services bundles the wired engine components
type services struct {
	db       *database.Database
	cache    *cache.Cache
	queue    jobs.Queue
	tracker  *progress.Tracker
	insights *insights.Engine
	recs     *recommend.Engine
	metrics  *metrics.Metrics
	logs     *logging.Manager
}

// buildServices constructs the dependency graph once at startup. Cache
// and queue degrade to nil when their backends are unreachable: the
// engine stays correct, every read just falls back to the ledger.
func buildServices(ctx context.Context, cfg *config.Config, withQueue bool) (*services, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("PROGRESS_DATABASE_URL is required")
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logManager := logging.NewManager(db.DB())
	logManager.InstallLogInterceptor()

	m := metrics.NewMetrics()

	var c *cache.Cache
	backend, err := cache.NewRedisBackend(ctx, cache.RedisConfig{
		Addr:   cfg.RedisAddr,
		DB:     cfg.RedisDB,
		Prefix: "progress",
	})
	if err != nil {
		log.Printf("[Main] Redis unavailable, running without cache: %v", err)
	} else {
		cacheConfig := cache.DefaultConfig()
		cacheConfig.Timeout = cfg.CacheTimeout
		c = cache.NewWithBackend(backend, cacheConfig)
	}

	var queue jobs.Queue
	var natsQueue *jobs.NatsQueue
	if withQueue {
		natsQueue, err = jobs.NewNatsQueue(jobs.NatsConfig{URL: cfg.NatsURL, Timeout: cfg.QueueTimeout})
		if err != nil {
			log.Printf("[Main] NATS unavailable, running without background recompute: %v", err)
		} else {
			queue = natsQueue
		}
	}

	tracker := progress.NewTracker(db, streak.NewTracker(db, m), c, queue, m)

	svc := &services{
		db:       db,
		cache:    c,
		queue:    queue,
		tracker:  tracker,
		insights: insights.NewEngine(db, cfg.Thresholds, m),
		recs:     recommend.NewEngine(db, cfg.Thresholds, m),
		metrics:  m,
		logs:     logManager,
	}

	return svc, nil
}

func (s *services) close() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			log.Printf("[Main] Failed to close cache: %v", err)
		}
	}
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			log.Printf("[Main] Failed to close queue: %v", err)
		}
	}
	if err := s.db.Close(); err != nil {
		log.Printf("[Main] Failed to close database: %v", err)
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the recompute worker and metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			svc, err := buildServices(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer svc.close()

			// Recompute worker: handlers warm the cache from the ledger,
			// so duplicate and out-of-order deliveries are harmless.
			worker := jobs.NewWorker(map[string]jobs.Handler{
				jobs.TypeRecomputeStats: func(ctx context.Context, job jobs.Job) error {
					if err := svc.tracker.WarmUserStats(ctx, job.UserID); err != nil {
						return err
					}
					svc.logs.Info("jobs", "Recomputed user stats", map[string]interface{}{
						"user_id":  job.UserID,
						"job_type": job.Type,
					})
					return nil
				},
				jobs.TypeRecomputeArea: func(ctx context.Context, job jobs.Job) error {
					if err := svc.tracker.WarmBodyAreaStats(ctx, job.UserID, job.BodyArea); err != nil {
						return err
					}
					svc.logs.Info("jobs", "Recomputed body area stats", map[string]interface{}{
						"user_id":   job.UserID,
						"body_area": string(job.BodyArea),
						"job_type":  job.Type,
					})
					return nil
				},
				jobs.TypeGenerateInsights: func(ctx context.Context, job jobs.Job) error {
					generated, err := svc.insights.GenerateInsights(ctx, job.UserID)
					if err != nil {
						return err
					}
					svc.logs.Info("jobs", fmt.Sprintf("Generated %d insights", len(generated)), map[string]interface{}{
						"user_id":  job.UserID,
						"job_type": job.Type,
					})
					return nil
				},
			}, jobs.WorkerConfig{Metrics: svc.metrics})

			if natsQueue, ok := svc.queue.(*jobs.NatsQueue); ok {
				if err := worker.Start(natsQueue); err != nil {
					return fmt.Errorf("failed to start recompute worker: %w", err)
				}
				defer worker.Stop()
			}

			// Periodic maintenance
			scheduler := gocron.NewScheduler(time.UTC)
			if svc.cache != nil {
				if _, err := scheduler.Every(5).Minutes().Do(svc.cache.Cleanup); err != nil {
					log.Printf("[Main] Failed to schedule cache cleanup: %v", err)
				}
			}
			if svc.queue != nil {
				insightWindow := time.Duration(cfg.Thresholds.PatternWindowDays) * 24 * time.Hour
				if _, err := scheduler.Every(1).Day().At("03:00").Do(func() {
					enqueued, err := svc.tracker.EnqueueInsightGeneration(ctx, insightWindow)
					if err != nil {
						log.Printf("[Main] Failed to enqueue insight generation: %v", err)
						return
					}
					log.Printf("[Main] Enqueued insight generation for %d active users", enqueued)
				}); err != nil {
					log.Printf("[Main] Failed to schedule insight generation: %v", err)
				}
			}
			scheduler.StartAsync()
			defer scheduler.Stop()

			http.Handle("/metrics", promhttp.Handler())
			server := &http.Server{Addr: cfg.MetricsAddr}
			go func() {
				log.Printf("[Main] Serving metrics on %s", cfg.MetricsAddr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("[Main] Metrics server failed: %v", err)
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			log.Printf("[Main] Shutting down")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

func newRecomputeCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute and warm a user's cached aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, err := buildServices(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer svc.close()

			if err := svc.tracker.WarmUserStats(ctx, userID); err != nil {
				return err
			}
			for _, area := range models.AllBodyAreas {
				if err := svc.tracker.WarmBodyAreaStats(ctx, userID, area); err != nil {
					return err
				}
			}

			fmt.Printf("Recomputed aggregates for %s\n", userID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID to recompute")
	return cmd
}

func newInsightsCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Generate and print insights for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, err := buildServices(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer svc.close()

			generated, err := svc.insights.GenerateInsights(ctx, userID)
			if err != nil {
				return err
			}

			recommendations, err := svc.recs.GetRecommendations(ctx, userID)
			if err != nil {
				return err
			}

			output := map[string]interface{}{
				"insights":        generated,
				"recommendations": recommendations,
			}
			data, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal output: %w", err)
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID to analyze")
	return cmd
}
