package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/coralpay/paysync/internal/models"
	"github.com/coralpay/paysync/pkg/metrics"
)

func newTestQueue(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PaymentJob{}))
	return New(db, zap.NewNop().Sugar(), metrics.NewDomain(prometheus.NewRegistry())), db
}

func enqueueReq(eventID string) *EnqueueRequest {
	return &EnqueueRequest{
		EventID:    eventID,
		ObjectID:   "pi_A",
		EventType:  "payment_intent.succeeded",
		ProviderTS: 1000,
		RawEvent:   datatypes.JSON(`{"id":"` + eventID + `"}`),
	}
}

func TestEnqueue_DedupByEventID(t *testing.T) {
	q, db := newTestQueue(t)
	ctx := context.Background()

	created, err := q.Enqueue(ctx, enqueueReq("evt_1"))
	require.NoError(t, err)
	require.True(t, created)

	created, err = q.Enqueue(ctx, enqueueReq("evt_1"))
	require.NoError(t, err)
	require.False(t, created)

	var n int64
	require.NoError(t, db.Model(&models.PaymentJob{}).Count(&n).Error)
	require.EqualValues(t, 1, n)
}

func TestClaim_OrderAndLease(t *testing.T) {
	q, db := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, enqueueReq("evt_1"))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, enqueueReq("evt_2"))
	require.NoError(t, err)
	now := time.Now()

	// Push evt_1 later so evt_2 is due first.
	require.NoError(t, db.Model(&models.PaymentJob{}).Where("event_id = ?", "evt_1").
		UpdateColumn("scheduled_at", now.Add(time.Second)).Error)

	job, err := q.Claim(ctx, now)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, "evt_2", job.EventID)
	require.Equal(t, models.JobStatusProcessing, job.Status)
	require.Equal(t, 1, job.Attempts)

	// evt_1 is not due yet.
	job, err = q.Claim(ctx, now)
	require.NoError(t, err)
	require.Nil(t, job)

	job, err = q.Claim(ctx, now.Add(2*time.Second))
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, "evt_1", job.EventID)

	// Everything is leased out; the queue is empty.
	job, err = q.Claim(ctx, now.Add(2*time.Second))
	require.NoError(t, err)
	require.Nil(t, job)
}

func TestComplete(t *testing.T) {
	q, db := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, enqueueReq("evt_1"))
	require.NoError(t, err)
	job, err := q.Claim(ctx, time.Now())
	require.NoError(t, err)

	require.NoError(t, q.Complete(ctx, job.ID))

	var row models.PaymentJob
	require.NoError(t, db.Where("id = ?", job.ID).First(&row).Error)
	require.Equal(t, models.JobStatusCompleted, row.Status)
}

func TestFail_BackoffThenTerminal(t *testing.T) {
	q, db := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, enqueueReq("evt_1"))
	require.NoError(t, err)
	now := time.Now()
	job, err := q.Claim(ctx, now)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, q.Fail(ctx, job.ID, "db unavailable", now))

	var row models.PaymentJob
	require.NoError(t, db.Where("id = ?", job.ID).First(&row).Error)
	require.Equal(t, models.JobStatusPending, row.Status)
	require.NotNil(t, row.LastError)
	require.Equal(t, "db unavailable", *row.LastError)
	// After attempt 1, backoff is 2^1 seconds.
	require.WithinDuration(t, now.Add(2*time.Second), row.ScheduledAt, time.Second)

	// Exhaust the budget: the fifth failed attempt is terminal.
	require.NoError(t, db.Model(&models.PaymentJob{}).Where("id = ?", job.ID).
		UpdateColumn("attempts", row.MaxAttempts).Error)
	require.NoError(t, q.Fail(ctx, job.ID, "still down", now))

	require.NoError(t, db.Where("id = ?", job.ID).First(&row).Error)
	require.Equal(t, models.JobStatusFailed, row.Status)
	require.Equal(t, "still down", *row.LastError)
}

func TestFailPermanent(t *testing.T) {
	q, db := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, enqueueReq("evt_1"))
	require.NoError(t, err)
	job, err := q.Claim(ctx, time.Now())
	require.NoError(t, err)

	require.NoError(t, q.FailPermanent(ctx, job.ID, "unknown currency"))

	var row models.PaymentJob
	require.NoError(t, db.Where("id = ?", job.ID).First(&row).Error)
	require.Equal(t, models.JobStatusFailed, row.Status)
	require.Equal(t, 1, row.Attempts, "permanent failure burns no extra attempts")
}

func TestReapStale(t *testing.T) {
	q, db := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, enqueueReq("evt_1"))
	require.NoError(t, err)
	now := time.Now()
	job, err := q.Claim(ctx, now)
	require.NoError(t, err)
	require.NotNil(t, job)

	// Fresh lease: nothing to reap.
	n, err := q.ReapStale(ctx, now, DefaultStaleThreshold)
	require.NoError(t, err)
	require.EqualValues(t, 0, n)

	// Simulate a hard-killed worker: the lease ages past the threshold.
	require.NoError(t, db.Model(&models.PaymentJob{}).Where("id = ?", job.ID).
		UpdateColumn("updated_at", now.Add(-3*time.Minute)).Error)

	n, err = q.ReapStale(ctx, now, DefaultStaleThreshold)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	var row models.PaymentJob
	require.NoError(t, db.Where("id = ?", job.ID).First(&row).Error)
	require.Equal(t, models.JobStatusPending, row.Status)

	reclaimed, err := q.Claim(ctx, now.Add(time.Second))
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	require.Equal(t, 2, reclaimed.Attempts)
}

func TestRetry_OnlyFailedJobs(t *testing.T) {
	q, db := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, enqueueReq("evt_1"))
	require.NoError(t, err)
	job, err := q.Claim(ctx, time.Now())
	require.NoError(t, err)

	require.Error(t, q.Retry(ctx, job.ID), "processing jobs cannot be retried")

	require.NoError(t, q.FailPermanent(ctx, job.ID, "boom"))
	require.NoError(t, q.Retry(ctx, job.ID))

	var row models.PaymentJob
	require.NoError(t, db.Where("id = ?", job.ID).First(&row).Error)
	require.Equal(t, models.JobStatusPending, row.Status)
	require.Equal(t, 0, row.Attempts)
	require.Nil(t, row.LastError)
}

func TestBackoffCurve(t *testing.T) {
	require.Equal(t, time.Second, Backoff(0))
	require.Equal(t, 2*time.Second, Backoff(1))
	require.Equal(t, 4*time.Second, Backoff(2))
	require.Equal(t, 32*time.Second, Backoff(5))
}
