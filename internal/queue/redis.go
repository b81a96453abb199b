// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/avtoolkit/encodarr/internal/config"
	xglog "github.com/avtoolkit/encodarr/internal/log"
)

// Redis keys backing the queue.
const (
	queueKey      = "encode:queue"
	processingKey = "encode:processing"
	deadLetterKey = "encode:dead_letter"
	jobPrefix     = "encode:job:"
)

// Sentinel errors. Callers match with errors.Is to distinguish a
// missing record from a lost connection or a corrupt record.
var (
	// ErrJobNotFound is returned when an operation references a job ID
	// with no stored record.
	ErrJobNotFound = errors.New("job not found")

	// ErrConnection wraps Redis transport failures.
	ErrConnection = errors.New("redis connection error")

	// ErrSerialization wraps job record encode and decode failures.
	ErrSerialization = errors.New("job serialization error")
)

// Manager owns the Redis-backed job queue: a pending list, an
// in-flight set, a dead-letter list, and one JSON record per job.
type Manager struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewManager connects to Redis and verifies the connection.
func NewManager(cfg config.RedisConfig) (*Manager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("queue: %w: %w", ErrConnection, err)
	}

	logger := xglog.WithComponent("queue")
	logger.Info().Str("addr", cfg.Addr()).Int("db", cfg.DB).Msg("connected to redis")

	return &Manager{client: client, logger: logger}, nil
}

// NewManagerWithClient wraps an existing client. Used by tests and by
// callers that share one connection pool.
func NewManagerWithClient(client *redis.Client) *Manager {
	return &Manager{client: client, logger: xglog.WithComponent("queue")}
}

// Client exposes the underlying connection for sibling subsystems
// that share it (config cache, metrics refresh).
func (m *Manager) Client() *redis.Client {
	return m.client
}

// Close releases the Redis connection.
func (m *Manager) Close() error {
	return m.client.Close()
}

func jobKey(id string) string {
	return jobPrefix + id
}

// Enqueue stores the job record and appends its ID to the pending
// list. The job is visible for dequeue when this returns.
func (m *Manager) Enqueue(ctx context.Context, job *Job) error {
	if err := m.writeJob(ctx, job); err != nil {
		return err
	}
	if err := m.client.RPush(ctx, queueKey, job.ID).Err(); err != nil {
		return fmt.Errorf("queue: enqueue %s: %w: %w", job.ID, ErrConnection, err)
	}
	return nil
}

// Dequeue pops the head of the pending list and moves it to the
// in-flight set. Returns nil when the queue is empty.
func (m *Manager) Dequeue(ctx context.Context) (*Job, error) {
	id, err := m.client.LPop(ctx, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: dequeue: %w: %w", ErrConnection, err)
	}

	if err := m.client.SAdd(ctx, processingKey, id).Err(); err != nil {
		return nil, fmt.Errorf("queue: dequeue %s: %w: %w", id, ErrConnection, err)
	}

	job, err := m.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		// Record vanished between pop and read. Drop the orphan ID.
		m.logger.Warn().Str(xglog.FieldJobID, id).Msg("dequeued id without job record")
		m.client.SRem(ctx, processingKey, id)
		return nil, nil
	}
	return job, nil
}

// GetJob reads one job record. Returns nil when absent.
func (m *Manager) GetJob(ctx context.Context, id string) (*Job, error) {
	data, err := m.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: get job %s: %w: %w", id, ErrConnection, err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("queue: decode job %s: %w: %w", id, ErrSerialization, err)
	}
	return &job, nil
}

// UpdateJob overwrites the job record without touching any list.
func (m *Manager) UpdateJob(ctx context.Context, job *Job) error {
	return m.writeJob(ctx, job)
}

// CompleteJob writes the final record and removes the job from the
// in-flight set.
func (m *Manager) CompleteJob(ctx context.Context, job *Job) error {
	if err := m.writeJob(ctx, job); err != nil {
		return err
	}
	if err := m.client.SRem(ctx, processingKey, job.ID).Err(); err != nil {
		return fmt.Errorf("queue: complete %s: %w: %w", job.ID, ErrConnection, err)
	}
	return nil
}

// RetryJob writes the record, removes the job from the in-flight set,
// and prepends it to the pending list so retries run before new work.
func (m *Manager) RetryJob(ctx context.Context, job *Job) error {
	if err := m.writeJob(ctx, job); err != nil {
		return err
	}
	if err := m.client.SRem(ctx, processingKey, job.ID).Err(); err != nil {
		return fmt.Errorf("queue: retry %s: %w: %w", job.ID, ErrConnection, err)
	}
	if err := m.client.LPush(ctx, queueKey, job.ID).Err(); err != nil {
		return fmt.Errorf("queue: retry %s: %w: %w", job.ID, ErrConnection, err)
	}
	return nil
}

// DeadLetter writes the record, removes the job from the in-flight
// set, and appends it to the dead-letter list.
func (m *Manager) DeadLetter(ctx context.Context, job *Job) error {
	if err := m.writeJob(ctx, job); err != nil {
		return err
	}
	if err := m.client.SRem(ctx, processingKey, job.ID).Err(); err != nil {
		return fmt.Errorf("queue: dead-letter %s: %w: %w", job.ID, ErrConnection, err)
	}
	if err := m.client.RPush(ctx, deadLetterKey, job.ID).Err(); err != nil {
		return fmt.Errorf("queue: dead-letter %s: %w: %w", job.ID, ErrConnection, err)
	}
	return nil
}

// RetryDeadLetter moves one job from the dead-letter list back to the
// pending list and resets it. Returns ErrJobNotFound when the ID has
// no record.
func (m *Manager) RetryDeadLetter(ctx context.Context, id string) error {
	if err := m.client.LRem(ctx, deadLetterKey, 1, id).Err(); err != nil {
		return fmt.Errorf("queue: retry dead-letter %s: %w: %w", id, ErrConnection, err)
	}

	job, err := m.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("queue: retry dead-letter %s: %w", id, ErrJobNotFound)
	}

	job.Retry()
	if err := m.writeJob(ctx, job); err != nil {
		return err
	}
	if err := m.client.RPush(ctx, queueKey, id).Err(); err != nil {
		return fmt.Errorf("queue: retry dead-letter %s: %w: %w", id, ErrConnection, err)
	}
	return nil
}

// QueueLength returns the number of pending job IDs.
func (m *Manager) QueueLength(ctx context.Context) (int64, error) {
	n, err := m.client.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: length: %w: %w", ErrConnection, err)
	}
	return n, nil
}

// ProcessingCount returns the size of the in-flight set.
func (m *Manager) ProcessingCount(ctx context.Context) (int64, error) {
	n, err := m.client.SCard(ctx, processingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: processing count: %w: %w", ErrConnection, err)
	}
	return n, nil
}

// DeadLetterCount returns the number of dead-lettered job IDs.
func (m *Manager) DeadLetterCount(ctx context.Context) (int64, error) {
	n, err := m.client.LLen(ctx, deadLetterKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: dead-letter count: %w: %w", ErrConnection, err)
	}
	return n, nil
}

// ListQueue returns the records of all pending jobs. IDs with no
// record are skipped.
func (m *Manager) ListQueue(ctx context.Context) ([]*Job, error) {
	return m.listJobs(ctx, queueKey)
}

// ListDeadLetter returns the records of all dead-lettered jobs.
func (m *Manager) ListDeadLetter(ctx context.Context) ([]*Job, error) {
	return m.listJobs(ctx, deadLetterKey)
}

func (m *Manager) listJobs(ctx context.Context, key string) ([]*Job, error) {
	ids, err := m.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: list %s: %w: %w", key, ErrConnection, err)
	}

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := m.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// ClearQueue removes the pending list and returns its prior length.
// In-flight and dead-letter entries are untouched.
func (m *Manager) ClearQueue(ctx context.Context) (int64, error) {
	n, err := m.QueueLength(ctx)
	if err != nil {
		return 0, err
	}
	if err := m.client.Del(ctx, queueKey).Err(); err != nil {
		return 0, fmt.Errorf("queue: clear: %w: %w", ErrConnection, err)
	}
	return n, nil
}

func (m *Manager) writeJob(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: encode job %s: %w: %w", job.ID, ErrSerialization, err)
	}
	if err := m.client.Set(ctx, jobKey(job.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("queue: write job %s: %w: %w", job.ID, ErrConnection, err)
	}
	return nil
}
