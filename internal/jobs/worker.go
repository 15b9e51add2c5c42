package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/miscarriage87/HumanBodyManual-sub000/internal/metrics"
)

// Subscriber is implemented by queues that can push jobs to a handler
type Subscriber interface {
	Subscribe(handler func(Job)) error
}

// Worker executes recompute jobs on a bounded pool of goroutines with
// bounded exponential-backoff retries. Jobs carry no ordering guarantee,
// so handlers must be idempotent.
type Worker struct {
	handlers    map[string]Handler
	maxWorkers  int
	maxAttempts int
	baseBackoff time.Duration
	metrics     *metrics.Metrics

	jobs    chan Job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
}

// WorkerConfig tunes the worker pool
type WorkerConfig struct {
	MaxWorkers  int              // Concurrent executors (default 4)
	MaxAttempts int              // Attempts per job including the first (default 3)
	BaseBackoff time.Duration    // First retry delay, doubled per attempt (default 250ms)
	Metrics     *metrics.Metrics // nil disables instrumentation
}

// NewWorker creates a worker pool with the given handlers keyed by job type
func NewWorker(handlers map[string]Handler, cfg WorkerConfig) *Worker {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 250 * time.Millisecond
	}

	return &Worker{
		handlers:    handlers,
		maxWorkers:  cfg.MaxWorkers,
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
		metrics:     cfg.Metrics,
		jobs:        make(chan Job, 256),
	}
}

// Start launches the executor goroutines and subscribes to the queue
func (w *Worker) Start(queue Subscriber) error {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	for i := 0; i < w.maxWorkers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}

	return queue.Subscribe(w.Submit)
}

// Submit queues a job for execution. Full buffer drops the job: recompute
// is best-effort and the next write or TTL expiry will redo the work.
func (w *Worker) Submit(job Job) {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case w.jobs <- job:
	default:
		log.Printf("[Jobs] Worker buffer full, dropping job %s (%s)", job.ID, job.Type)
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			w.execute(ctx, job)
		}
	}
}

func (w *Worker) execute(ctx context.Context, job Job) {
	handler, ok := w.handlers[job.Type]
	if !ok {
		log.Printf("[Jobs] No handler for job type %s, dropping %s", job.Type, job.ID)
		return
	}

	backoff := w.baseBackoff
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := handler(ctx, job)
		if err == nil {
			w.recordExecution(job.Type, "success")
			return
		}

		if attempt == w.maxAttempts {
			log.Printf("[Jobs] Job %s (%s) failed after %d attempts: %v", job.ID, job.Type, attempt, err)
			w.recordExecution(job.Type, "failure")
			return
		}

		log.Printf("[Jobs] Job %s (%s) attempt %d failed, retrying in %s: %v", job.ID, job.Type, attempt, backoff, err)
		if w.metrics != nil {
			w.metrics.JobRetries.Inc()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (w *Worker) recordExecution(jobType, result string) {
	if w.metrics != nil {
		w.metrics.JobsExecuted.WithLabelValues(jobType, result).Inc()
	}
}

// Stop drains the pool and waits for in-flight jobs
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
