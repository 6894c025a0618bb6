package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/coralpay/paysync/internal/app/service/normalizer"
	"github.com/coralpay/paysync/internal/app/service/pipeline"
	"github.com/coralpay/paysync/internal/models"
	"github.com/coralpay/paysync/internal/platform/stripe"
)

type stubQueue struct {
	mu        sync.Mutex
	jobs      []*models.PaymentJob
	completed []string
	failed    []string
	permanent []string
}

func (s *stubQueue) Claim(_ context.Context, _ time.Time) (*models.PaymentJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		return nil, nil
	}
	job := s.jobs[0]
	s.jobs = s.jobs[1:]
	return job, nil
}

func (s *stubQueue) Complete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, id)
	return nil
}

func (s *stubQueue) Fail(_ context.Context, id string, _ string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, id)
	return nil
}

func (s *stubQueue) FailPermanent(_ context.Context, id string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permanent = append(s.permanent, id)
	return nil
}

func (s *stubQueue) ReapStale(_ context.Context, _ time.Time, _ time.Duration) (int64, error) {
	return 0, nil
}

func (s *stubQueue) snapshot() (completed, failed, permanent []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.completed...), append([]string(nil), s.failed...), append([]string(nil), s.permanent...)
}

type stubProcessor struct {
	err error
}

func (s *stubProcessor) ProcessPaymentEvent(_ context.Context, _ *pipeline.NewPayment, _ string) (*pipeline.ProcessResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &pipeline.ProcessResult{Outcome: pipeline.OutcomeCreated}, nil
}

func (s *stubProcessor) LogPassthroughEvent(_ context.Context, _ *pipeline.PassthroughEvent) (*pipeline.ProcessResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &pipeline.ProcessResult{Outcome: pipeline.OutcomeLogged}, nil
}

type stubNormalizer struct {
	err         error
	passthrough bool
}

func (s *stubNormalizer) Normalize(_ context.Context, ev *stripe.Event, actor string) (*normalizer.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.passthrough {
		return &normalizer.Result{Passthrough: &pipeline.PassthroughEvent{EventID: "evt_1", Actor: actor}}, nil
	}
	return &normalizer.Result{Payment: &pipeline.NewPayment{}}, nil
}

func testJob(id string) *models.PaymentJob {
	return &models.PaymentJob{
		ID:       id,
		EventID:  "evt_" + id,
		RawEvent: datatypes.JSON(`{"id":"evt_1","type":"payment_intent.succeeded","created":1,"data":{"object":{}}}`),
		Attempts: 1,
	}
}

func runPoolUntil(t *testing.T, q *stubQueue, proc Processor, norm Normalizer, done func() bool) {
	t.Helper()
	p := NewPool(q, proc, norm, zap.NewNop().Sugar(), Options{
		Workers:      2,
		PollInterval: 5 * time.Millisecond,
		ReapInterval: time.Hour,
	})
	p.Start()
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if done() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("pool did not finish work in time")
}

func TestPool_CompletesProcessedJobs(t *testing.T) {
	q := &stubQueue{jobs: []*models.PaymentJob{testJob("a"), testJob("b")}}

	runPoolUntil(t, q, &stubProcessor{}, &stubNormalizer{}, func() bool {
		completed, _, _ := q.snapshot()
		return len(completed) == 2
	})

	completed, failed, permanent := q.snapshot()
	require.ElementsMatch(t, []string{"a", "b"}, completed)
	require.Empty(t, failed)
	require.Empty(t, permanent)
}

func TestPool_TransientErrorSchedulesRetry(t *testing.T) {
	q := &stubQueue{jobs: []*models.PaymentJob{testJob("a")}}

	runPoolUntil(t, q, &stubProcessor{err: fmt.Errorf("db unavailable")}, &stubNormalizer{}, func() bool {
		_, failed, _ := q.snapshot()
		return len(failed) == 1
	})

	completed, failed, permanent := q.snapshot()
	require.Empty(t, completed)
	require.Equal(t, []string{"a"}, failed)
	require.Empty(t, permanent)
}

func TestPool_ValidationErrorFailsPermanently(t *testing.T) {
	q := &stubQueue{jobs: []*models.PaymentJob{testJob("a")}}
	norm := &stubNormalizer{err: fmt.Errorf("%w: unknown currency", normalizer.ErrValidation)}

	runPoolUntil(t, q, &stubProcessor{}, norm, func() bool {
		_, _, permanent := q.snapshot()
		return len(permanent) == 1
	})

	completed, failed, permanent := q.snapshot()
	require.Empty(t, completed)
	require.Empty(t, failed)
	require.Equal(t, []string{"a"}, permanent)
}

func TestPool_UnparseablePayloadFailsPermanently(t *testing.T) {
	bad := testJob("a")
	bad.RawEvent = datatypes.JSON(`not json`)
	q := &stubQueue{jobs: []*models.PaymentJob{bad}}

	runPoolUntil(t, q, &stubProcessor{}, &stubNormalizer{}, func() bool {
		_, _, permanent := q.snapshot()
		return len(permanent) == 1
	})
}

func TestPool_PassthroughJobs(t *testing.T) {
	q := &stubQueue{jobs: []*models.PaymentJob{testJob("a")}}

	runPoolUntil(t, q, &stubProcessor{}, &stubNormalizer{passthrough: true}, func() bool {
		completed, _, _ := q.snapshot()
		return len(completed) == 1
	})
}

func TestPool_StopInterruptsIdleWorkers(t *testing.T) {
	q := &stubQueue{}
	p := NewPool(q, &stubProcessor{}, &stubNormalizer{}, zap.NewNop().Sugar(), Options{
		Workers:      4,
		PollInterval: time.Hour, // workers park in the poll sleep
		ReapInterval: time.Hour,
	})
	p.Start()

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt sleeping workers")
	}
}
