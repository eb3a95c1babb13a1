package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoJobsAvailable is returned by Dequeue when the queue is empty.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Queue is the database-backed job queue.
type Queue struct {
	db *gorm.DB
}

func NewQueue(db *gorm.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue persists a new pending job.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload interface{}) (*Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	job := &Job{
		Type:       jobType,
		Payload:    payloadJSON,
		Status:     StatusPending,
		MaxRetries: 3,
	}

	if err := q.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	return job, nil
}

// Dequeue atomically claims the oldest pending job. SKIP LOCKED keeps
// concurrent workers from claiming the same row: a second worker moves on
// to the next pending job instead of waiting on the first one's lock.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	var job Job

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", StatusPending).
			Order("created_at ASC").
			Limit(1).
			First(&job).Error
		if err != nil {
			return err
		}

		now := time.Now()
		job.Status = StatusProcessing
		job.StartedAt = &now
		job.Attempts++

		return tx.Save(&job).Error
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoJobsAvailable
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	return &job, nil
}

// MarkCompleted finishes a job successfully.
func (q *Queue) MarkCompleted(ctx context.Context, jobID uuid.UUID) error {
	now := time.Now()
	return q.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":       StatusCompleted,
			"completed_at": now,
		}).Error
}

// MarkFailed records a failure, re-queueing the job while retries remain.
func (q *Queue) MarkFailed(ctx context.Context, job *Job, jobErr error) error {
	status := StatusPending
	if job.Attempts >= job.MaxRetries {
		status = StatusFailed
	}
	return q.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status": status,
			"error":  jobErr.Error(),
		}).Error
}

// PurgeFinished deletes completed and failed jobs older than the cutoff.
func (q *Queue) PurgeFinished(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := q.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []JobStatus{StatusCompleted, StatusFailed}, cutoff).
		Delete(&Job{})
	return res.RowsAffected, res.Error
}
