package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueArchive is the Redis list key for audio archive jobs.
	QueueArchive = "worker:archive"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

// JobTypeAudioArchive copies a synthesized audio blob into the S3 archive bucket.
const JobTypeAudioArchive JobType = "audio_archive"

// AudioArchivePayload is the payload for audio archive jobs. The audio bytes are
// parked in Redis under StagingKey by the enqueuer; the worker reads and deletes
// that key.
type AudioArchivePayload struct {
	StagingKey string `json:"staging_key"`
	Filename   string `json:"filename"`
	Voice      string `json:"voice"`
	Language   string `json:"language"`
	SizeBytes  int64  `json:"size_bytes"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueAudioArchive stages the audio bytes in Redis and enqueues an archive job.
func (q *Queue) EnqueueAudioArchive(ctx context.Context, audio []byte, payload AudioArchivePayload) error {
	if payload.StagingKey == "" {
		payload.StagingKey = "archive:staging:" + uuid.New().String()
	}
	payload.SizeBytes = int64(len(audio))
	// Staged bytes expire on their own if the worker never picks the job up.
	if err := q.client.Set(ctx, payload.StagingKey, audio, 1*time.Hour).Err(); err != nil {
		return fmt.Errorf("stage audio: %w", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeAudioArchive,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueArchive, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued audio archive job",
		zap.String("job_id", job.ID),
		zap.String("filename", payload.Filename),
		zap.Int64("size_bytes", payload.SizeBytes))
	return nil
}

// FetchStagedAudio reads and deletes the staged audio bytes for a job.
func (q *Queue) FetchStagedAudio(ctx context.Context, stagingKey string) ([]byte, error) {
	data, err := q.client.GetDel(ctx, stagingKey).Bytes()
	if err != nil {
		return nil, fmt.Errorf("fetch staged audio: %w", err)
	}
	return data, nil
}

// Dequeue blocks until a job is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, 0, QueueArchive).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, QueueArchive, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
