package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gauner-audio/backend/pkg/queue"
	"github.com/gauner-audio/backend/pkg/storage"
)

// Archiver processes audio archive jobs: read staged bytes from Redis, upload
// to the S3 archive bucket.
type Archiver struct {
	s3     *storage.S3
	queue  *queue.Queue
	logger *zap.Logger
}

// NewArchiver creates an audio archive processor.
func NewArchiver(s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{s3: s3, queue: q, logger: logger}
}

// Process executes one archive job.
func (a *Archiver) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeAudioArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.AudioArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	audio, err := a.queue.FetchStagedAudio(ctx, payload.StagingKey)
	if err != nil {
		return fmt.Errorf("staged audio gone: %w", err)
	}

	key := storage.AudioKey(payload.Filename)
	url, err := a.s3.UploadAudio(ctx, key, audio)
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	a.logger.Info("audio archived",
		zap.String("job_id", job.ID),
		zap.String("s3_key", key),
		zap.String("url", url),
		zap.Int("size_bytes", len(audio)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (a *Archiver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archive worker stopping")
			return
		default:
		}

		job, err := a.queue.Dequeue(ctx)
		if err != nil {
			a.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		a.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := a.Process(ctx, job); err != nil {
			a.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := a.queue.Retry(ctx, job); reErr != nil {
				a.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
