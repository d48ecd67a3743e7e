package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FactExtractionJob is the unit of background work queued at transcript
// ingest time and consumed by the worker process.
type FactExtractionJob struct {
	SessionID string `json:"sessionId"`
	Division  string `json:"division"`
}

// EnqueueResult reports the queue-assigned job id for audit correlation.
type EnqueueResult struct {
	Queued bool
	JobID  string
}

// FactExtractionQueue decouples transcript ingest from fact extraction.
// Implementations must be safe for concurrent use.
type FactExtractionQueue interface {
	Enqueue(ctx context.Context, job FactExtractionJob) (EnqueueResult, error)
	// Dequeue blocks up to timeout for the next job. ok is false when the
	// queue was empty for the full wait.
	Dequeue(ctx context.Context, timeout time.Duration) (FactExtractionJob, bool, error)
	Close() error
}

func jobID(job FactExtractionJob) string {
	return job.SessionID + ":fact-extract"
}

const readyKey = "factqueue:ready"

// RedisFactExtractionQueue is the durable queue used when REDIS_URL is set.
type RedisFactExtractionQueue struct {
	client *redis.Client
}

func NewRedisFactExtractionQueue(redisURL string) (*RedisFactExtractionQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisFactExtractionQueue{client: redis.NewClient(opts)}, nil
}

func (q *RedisFactExtractionQueue) Enqueue(ctx context.Context, job FactExtractionJob) (EnqueueResult, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("marshal fact extraction job: %w", err)
	}
	if err := q.client.RPush(ctx, readyKey, payload).Err(); err != nil {
		return EnqueueResult{}, fmt.Errorf("enqueue fact extraction job: %w", err)
	}
	return EnqueueResult{Queued: true, JobID: jobID(job)}, nil
}

func (q *RedisFactExtractionQueue) Dequeue(ctx context.Context, timeout time.Duration) (FactExtractionJob, bool, error) {
	res, err := q.client.BLPop(ctx, timeout, readyKey).Result()
	if err == redis.Nil {
		return FactExtractionJob{}, false, nil
	}
	if err != nil {
		return FactExtractionJob{}, false, fmt.Errorf("dequeue fact extraction job: %w", err)
	}

	// BLPop returns [key, value].
	var job FactExtractionJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return FactExtractionJob{}, false, fmt.Errorf("unmarshal fact extraction job: %w", err)
	}
	return job, true, nil
}

func (q *RedisFactExtractionQueue) Close() error {
	return q.client.Close()
}

// MemoryFactExtractionQueue is the development/test fallback used when no
// Redis is configured.
type MemoryFactExtractionQueue struct {
	mu   sync.Mutex
	jobs []FactExtractionJob
}

func NewMemoryFactExtractionQueue() *MemoryFactExtractionQueue {
	return &MemoryFactExtractionQueue{}
}

func (q *MemoryFactExtractionQueue) Enqueue(_ context.Context, job FactExtractionJob) (EnqueueResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return EnqueueResult{Queued: true, JobID: jobID(job)}, nil
}

func (q *MemoryFactExtractionQueue) Dequeue(_ context.Context, _ time.Duration) (FactExtractionJob, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return FactExtractionJob{}, false, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true, nil
}

func (q *MemoryFactExtractionQueue) Close() error { return nil }
