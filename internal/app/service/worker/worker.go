package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coralpay/paysync/internal/app/service/jobqueue"
	"github.com/coralpay/paysync/internal/app/service/normalizer"
	"github.com/coralpay/paysync/internal/app/service/pipeline"
	"github.com/coralpay/paysync/internal/models"
	"github.com/coralpay/paysync/internal/platform/stripe"

	"go.uber.org/zap"
)

const workerActor = "worker:stripe"

// Queue is the slice of the job queue the workers drive.
type Queue interface {
	Claim(ctx context.Context, now time.Time) (*models.PaymentJob, error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, failure string, now time.Time) error
	FailPermanent(ctx context.Context, id string, failure string) error
	ReapStale(ctx context.Context, now time.Time, threshold time.Duration) (int64, error)
}

// Processor runs the event-to-state pipeline for one normalized event.
type Processor interface {
	ProcessPaymentEvent(ctx context.Context, np *pipeline.NewPayment, actor string) (*pipeline.ProcessResult, error)
	LogPassthroughEvent(ctx context.Context, pt *pipeline.PassthroughEvent) (*pipeline.ProcessResult, error)
}

// Normalizer maps a provider envelope to a pipeline input.
type Normalizer interface {
	Normalize(ctx context.Context, ev *stripe.Event, actor string) (*normalizer.Result, error)
}

type Options struct {
	Workers       int
	PollInterval  time.Duration
	LeaseDuration time.Duration
	ReapInterval  time.Duration
}

// Pool polls the queue with a fixed set of workers plus one reaper. Workers
// stop between iterations on Stop; an in-flight job runs to completion and a
// hard-killed worker's job comes back through the reaper.
type Pool struct {
	queue Queue
	proc  Processor
	norm  Normalizer
	log   *zap.SugaredLogger
	opts  Options

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewPool(queue Queue, proc Processor, norm Normalizer, log *zap.SugaredLogger, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.LeaseDuration <= 0 {
		opts.LeaseDuration = jobqueue.DefaultStaleThreshold
	}
	if opts.ReapInterval <= 0 {
		opts.ReapInterval = time.Minute
	}
	return &Pool{queue: queue, proc: proc, norm: norm, log: log, opts: opts, stop: make(chan struct{})}
}

func (p *Pool) Start() {
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}
	p.wg.Add(1)
	go p.runReaper()
	p.log.Infow("worker pool started", "workers", p.opts.Workers)
}

// Stop signals every worker and the reaper, then waits for in-flight jobs.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
	p.log.Infow("worker pool stopped")
}

func (p *Pool) runWorker(n int) {
	defer p.wg.Done()
	log := p.log.With("worker", n)

	for {
		select {
		case <-p.stop:
			return
		default:
		}

		job, err := p.queue.Claim(context.Background(), time.Now())
		if err != nil {
			log.Errorw("claim failed", "error", err)
			if p.sleep() {
				return
			}
			continue
		}
		if job == nil {
			if p.sleep() {
				return
			}
			continue
		}

		p.processJob(context.Background(), log, job)
	}
}

// sleep waits one poll interval; returns true when shutdown interrupted it.
func (p *Pool) sleep() bool {
	select {
	case <-p.stop:
		return true
	case <-time.After(p.opts.PollInterval):
		return false
	}
}

func (p *Pool) processJob(ctx context.Context, log *zap.SugaredLogger, job *models.PaymentJob) {
	ev, err := stripe.ParseEvent(job.RawEvent)
	if err != nil {
		log.Warnw("unparseable job payload, failing permanently", "job_id", job.ID, "error", err)
		p.failPermanent(ctx, log, job.ID, err)
		return
	}

	res, err := p.runPipeline(ctx, ev)
	switch {
	case err == nil:
		log.Infow("job processed", "job_id", job.ID, "event_id", job.EventID, "outcome", res.Outcome)
		if err := p.queue.Complete(ctx, job.ID); err != nil {
			log.Errorw("failed to complete job", "job_id", job.ID, "error", err)
		}
	case errors.Is(err, normalizer.ErrValidation):
		log.Warnw("validation error, failing permanently", "job_id", job.ID, "error", err)
		p.failPermanent(ctx, log, job.ID, err)
	default:
		log.Errorw("job failed, scheduling retry", "job_id", job.ID, "attempt", job.Attempts, "error", err)
		if ferr := p.queue.Fail(ctx, job.ID, err.Error(), time.Now()); ferr != nil {
			log.Errorw("failed to record job failure", "job_id", job.ID, "error", ferr)
		}
	}
}

func (p *Pool) runPipeline(ctx context.Context, ev *stripe.Event) (*pipeline.ProcessResult, error) {
	result, err := p.norm.Normalize(ctx, ev, workerActor)
	if err != nil {
		return nil, err
	}
	if result.Payment != nil {
		return p.proc.ProcessPaymentEvent(ctx, result.Payment, workerActor)
	}
	return p.proc.LogPassthroughEvent(ctx, result.Passthrough)
}

func (p *Pool) failPermanent(ctx context.Context, log *zap.SugaredLogger, jobID string, cause error) {
	if err := p.queue.FailPermanent(ctx, jobID, cause.Error()); err != nil {
		log.Errorw("failed to permanently fail job", "job_id", jobID, "error", err)
	}
}

func (p *Pool) runReaper() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.opts.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			n, err := p.queue.ReapStale(context.Background(), time.Now(), p.opts.LeaseDuration)
			switch {
			case err != nil:
				p.log.Errorw("reaper error", "error", err)
			case n > 0:
				p.log.Infow("reaped stale jobs", "count", n)
			}
		}
	}
}
