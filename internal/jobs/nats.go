package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "progress.jobs."

// NatsQueue implements Queue using NATS with JetStream for durable delivery
type NatsQueue struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	streamName string
	sub        *nats.Subscription
}

// NatsConfig holds NATS configuration
type NatsConfig struct {
	URL        string        // NATS server URL, e.g. "nats://localhost:4222"
	StreamName string        // JetStream stream name (default: "PROGRESS")
	Timeout    time.Duration // Connection timeout
}

// NewNatsQueue connects to NATS and ensures the jobs stream exists
func NewNatsQueue(cfg NatsConfig) (*NatsQueue, error) {
	if cfg.URL == "" {
		cfg.URL = "nats://localhost:4222"
	}
	if cfg.StreamName == "" {
		cfg.StreamName = "PROGRESS"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("[Jobs] NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[Jobs] NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	q := &NatsQueue{conn: nc, js: js, streamName: cfg.StreamName}
	if err := q.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	return q, nil
}

func (q *NatsQueue) ensureStream() error {
	streamConfig := &nats.StreamConfig{
		Name:      q.streamName,
		Subjects:  []string{subjectPrefix + ">"},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
		Replicas:  1,
		Discard:   nats.DiscardOld,
	}

	if _, err := q.js.StreamInfo(q.streamName); err != nil {
		if _, err := q.js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		log.Printf("[Jobs] Created JetStream stream %s", q.streamName)
	}

	return nil
}

// Enqueue publishes a job. The runner picks it up through Subscribe.
func (q *NatsQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	subject := subjectPrefix + job.Type
	if _, err := q.js.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish job to %s: %w", subject, err)
	}

	return nil
}

// Subscribe registers the job handler on a durable work-queue consumer.
// Messages are acked once handed to the handler, before the work runs,
// so delivery is best-effort: a job lost after ack is redone by the next
// write or falls out when the cached value expires. MaxDeliver bounds
// redelivery of messages that were never acked.
func (q *NatsQueue) Subscribe(handler func(Job)) error {
	sub, err := q.js.Subscribe(subjectPrefix+">", func(msg *nats.Msg) {
		var job Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			log.Printf("[Jobs] Failed to unmarshal job: %v", err)
			msg.Nak()
			return
		}
		handler(job)
		msg.Ack()
	},
		nats.Durable("progress-recompute"),
		nats.AckExplicit(),
		nats.MaxDeliver(3),
		nats.AckWait(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to jobs: %w", err)
	}

	q.sub = sub
	return nil
}

// Close drains the subscription and closes the connection
func (q *NatsQueue) Close() error {
	if q.sub != nil {
		_ = q.sub.Unsubscribe()
	}
	q.conn.Close()
	return nil
}

// Health returns an error if the NATS connection or stream is unhealthy
func (q *NatsQueue) Health() error {
	if q.conn.IsClosed() {
		return fmt.Errorf("NATS connection is closed")
	}
	if !q.conn.IsConnected() {
		return fmt.Errorf("NATS is not connected")
	}
	if _, err := q.js.StreamInfo(q.streamName); err != nil {
		return fmt.Errorf("JetStream stream %s is unhealthy: %w", q.streamName, err)
	}
	return nil
}
