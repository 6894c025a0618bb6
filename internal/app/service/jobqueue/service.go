package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coralpay/paysync/internal/models"
	"github.com/coralpay/paysync/pkg/metrics"
	"github.com/coralpay/paysync/pkg/tool"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultStaleThreshold is the lease: a processing job untouched for longer is
// considered abandoned and reclaimed.
const DefaultStaleThreshold = 120 * time.Second

// Service is the durable job queue over payment_jobs. At-least-once: a claimed
// job that never completes comes back via ReapStale; consumers must be
// idempotent.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	m   *metrics.Domain
}

func New(db *gorm.DB, log *zap.SugaredLogger, m *metrics.Domain) *Service {
	return &Service{db: db, log: log, m: m}
}

// EnqueueRequest carries one webhook delivery into the queue.
type EnqueueRequest struct {
	EventID    string
	ObjectID   string
	EventType  string
	ProviderTS int64
	RawEvent   datatypes.JSON
}

// Enqueue inserts a pending job, deduplicated on event_id. Returns whether the
// row was newly created; a duplicate is a benign no-op.
func (s *Service) Enqueue(ctx context.Context, req *EnqueueRequest) (bool, error) {
	now := time.Now()
	r := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&models.PaymentJob{
			ID:          tool.GenerateUUIDV7(),
			EventID:     req.EventID,
			ObjectID:    req.ObjectID,
			EventType:   req.EventType,
			ProviderTS:  req.ProviderTS,
			RawEvent:    req.RawEvent,
			Status:      models.JobStatusPending,
			MaxAttempts: models.DefaultJobMaxAttempts,
			ScheduledAt: now,
		})
	if r.Error != nil {
		return false, fmt.Errorf("failed to enqueue job: %w", r.Error)
	}
	return r.RowsAffected > 0, nil
}

// Claim atomically takes one due pending job: oldest scheduled_at first,
// transitioned to processing with attempts incremented. Concurrent workers get
// distinct rows (SKIP LOCKED on postgres). Returns nil when the queue is empty.
func (s *Service) Claim(ctx context.Context, now time.Time) (*models.PaymentJob, error) {
	var job *models.PaymentJob

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.PaymentJob
		q := tx.Where("status = ? AND scheduled_at <= ?", models.JobStatusPending, now).
			Order("scheduled_at asc")
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("failed to select pending job: %w", err)
		}

		row.Status = models.JobStatusProcessing
		row.Attempts++
		row.UpdatedAt = now
		if err := tx.Model(&models.PaymentJob{}).Where("id = ?", row.ID).Updates(map[string]any{
			"status":     models.JobStatusProcessing,
			"attempts":   row.Attempts,
			"updated_at": now,
		}).Error; err != nil {
			return fmt.Errorf("failed to claim job: %w", err)
		}
		job = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	if job != nil {
		s.m.ObserveClaim()
	}
	return job, nil
}

// Complete transitions a processing job to completed.
func (s *Service) Complete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Model(&models.PaymentJob{}).Where("id = ?", id).Updates(map[string]any{
		"status":     models.JobStatusCompleted,
		"updated_at": time.Now(),
	}).Error; err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// Fail records a transient failure. Below max_attempts the job goes back to
// pending with scheduled_at = now + 2^attempts seconds; at max_attempts it is
// terminally failed. attempts was already incremented by Claim.
func (s *Service) Fail(ctx context.Context, id string, failure string, now time.Time) error {
	var terminal bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.PaymentJob
		if err := tx.Where("id = ?", id).First(&job).Error; err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}

		updates := map[string]any{
			"last_error": failure,
			"updated_at": now,
		}
		if job.Attempts >= job.MaxAttempts {
			terminal = true
			updates["status"] = models.JobStatusFailed
		} else {
			updates["status"] = models.JobStatusPending
			updates["scheduled_at"] = now.Add(Backoff(job.Attempts))
		}
		if err := tx.Model(&models.PaymentJob{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to record job failure: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.m.ObserveFailure(terminal)
	if terminal {
		s.log.Errorw("job exhausted retries", "job_id", id, "error", failure)
	}
	return nil
}

// FailPermanent terminally fails a job regardless of remaining attempts. Used
// for validation errors, which no retry can cure.
func (s *Service) FailPermanent(ctx context.Context, id string, failure string) error {
	if err := s.db.WithContext(ctx).Model(&models.PaymentJob{}).Where("id = ?", id).Updates(map[string]any{
		"status":     models.JobStatusFailed,
		"last_error": failure,
		"updated_at": time.Now(),
	}).Error; err != nil {
		return fmt.Errorf("failed to permanently fail job: %w", err)
	}
	s.m.ObserveFailure(true)
	return nil
}

// ReapStale resets every processing job whose lease expired back to pending,
// due immediately. Recovers work from hard-killed workers.
func (s *Service) ReapStale(ctx context.Context, now time.Time, threshold time.Duration) (int64, error) {
	r := s.db.WithContext(ctx).Model(&models.PaymentJob{}).
		Where("status = ? AND updated_at < ?", models.JobStatusProcessing, now.Add(-threshold)).
		Updates(map[string]any{
			"status":       models.JobStatusPending,
			"scheduled_at": now,
			"updated_at":   now,
		})
	if r.Error != nil {
		return 0, fmt.Errorf("failed to reap stale jobs: %w", r.Error)
	}
	if r.RowsAffected > 0 {
		s.m.ObserveReaped(r.RowsAffected)
	}
	return r.RowsAffected, nil
}

// Retry resets a terminally failed job to pending with a fresh attempt budget.
// The admin-side "external intervention" for exhausted jobs.
func (s *Service) Retry(ctx context.Context, id string) error {
	now := time.Now()
	r := s.db.WithContext(ctx).Model(&models.PaymentJob{}).
		Where("id = ? AND status = ?", id, models.JobStatusFailed).
		Updates(map[string]any{
			"status":       models.JobStatusPending,
			"attempts":     0,
			"last_error":   nil,
			"scheduled_at": now,
			"updated_at":   now,
		})
	if r.Error != nil {
		return fmt.Errorf("failed to retry job: %w", r.Error)
	}
	if r.RowsAffected == 0 {
		return fmt.Errorf("job %s is not in failed state", id)
	}
	return nil
}

// List pages jobs by status for the admin surface.
func (s *Service) List(ctx context.Context, status models.JobStatus, from, size int) ([]*models.PaymentJob, int64, error) {
	if size <= 0 {
		size = 10
	}
	tx := s.db.WithContext(ctx).Model(&models.PaymentJob{})
	if status != "" {
		tx = tx.Where("status = ?", status)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	var rows []*models.PaymentJob
	q := tx.Order("created_at desc").Limit(size)
	if from > 0 {
		q = q.Offset(from)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	return rows, total, nil
}

// Backoff is the retry curve: 2^n seconds after the nth attempt.
func Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 30 {
		attempts = 30
	}
	return time.Duration(int64(1)<<uint(attempts)) * time.Second
}

var Module = fx.Options(
	fx.Provide(New),
)
