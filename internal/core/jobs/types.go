package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobStatus is the lifecycle state of a background job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job is a persisted unit of background work. The pipeline enqueues and
// moves on; workers pick jobs up on their own schedule, so a slow or down
// collaborator can never stall the reply path.
type Job struct {
	ID      uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Type    string         `gorm:"type:varchar(100);not null;index"`
	Payload datatypes.JSON `gorm:"type:jsonb"`

	Status     JobStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	Attempts   int       `gorm:"not null;default:0"`
	MaxRetries int       `gorm:"not null;default:3"`

	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Job) TableName() string {
	return "jobs"
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// Handler processes jobs of one type.
type Handler interface {
	Handle(ctx context.Context, job *Job) error
	Type() string
}

// WorkerConfig tunes the worker pool.
type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
	Timeout      time.Duration
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Concurrency:  2,
		PollInterval: time.Second,
		Timeout:      30 * time.Second,
	}
}
