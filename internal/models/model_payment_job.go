package models

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

const DefaultJobMaxAttempts = 5

// PaymentJob is one enqueued webhook delivery awaiting asynchronous
// processing. pending ↔ processing → {completed, failed}; the reaper owns the
// processing → pending edge for expired leases.
type PaymentJob struct {
	ID          string         `gorm:"column:id;primary_key;type:uuid" json:"id"`
	EventID     string         `gorm:"column:event_id;type:varchar(128);not null;uniqueIndex:unique_job_event_id" json:"event_id"`
	ObjectID    string         `gorm:"column:object_id;type:varchar(128);not null" json:"object_id"`
	EventType   string         `gorm:"column:event_type;type:varchar(128);not null" json:"event_type"`
	ProviderTS  int64          `gorm:"column:provider_ts;type:bigint;not null" json:"provider_ts"`
	RawEvent    datatypes.JSON `gorm:"column:raw_event;type:jsonb" json:"raw_event"`
	Status      JobStatus      `gorm:"column:status;type:varchar(16);not null;index:idx_job_status_scheduled_at,priority:1;check:status IN ('pending','processing','completed','failed')" json:"status"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	MaxAttempts int            `gorm:"column:max_attempts;not null;default:5" json:"max_attempts"`
	LastError   *string        `gorm:"column:last_error;type:text" json:"last_error"`
	ScheduledAt time.Time      `gorm:"column:scheduled_at;not null;index:idx_job_status_scheduled_at,priority:2" json:"scheduled_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (PaymentJob) TableName() string { return "payment_jobs" }
