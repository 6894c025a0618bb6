package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coralpay/paysync/internal/app/service/jobqueue"
	"github.com/coralpay/paysync/internal/app/service/normalizer"
	"github.com/coralpay/paysync/internal/app/service/pipeline"
	"github.com/coralpay/paysync/internal/platform/stripe"
	cfgpkg "github.com/coralpay/paysync/pkg/config"
	"github.com/coralpay/paysync/pkg/logctx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const intakeActor = "webhook:stripe"

// Enqueuer is the queue-side contract of the intake path.
type Enqueuer interface {
	Enqueue(ctx context.Context, req *jobqueue.EnqueueRequest) (bool, error)
}

// PassthroughLogger records auxiliary events synchronously at intake.
type PassthroughLogger interface {
	LogPassthroughEvent(ctx context.Context, pt *pipeline.PassthroughEvent) (*pipeline.ProcessResult, error)
}

// EventNormalizer classifies and validates a parsed envelope.
type EventNormalizer interface {
	Normalize(ctx context.Context, ev *stripe.Event, actor string) (*normalizer.Result, error)
}

// AnomalyRecorder keeps a trace of deliveries we accepted but could not use.
type AnomalyRecorder interface {
	RecordAnomaly(ctx context.Context, eventID *string, actor, reason string, raw []byte)
}

// ApiStripeWebhook ingests signed provider deliveries. Success means we hold
// durable responsibility or decided the event is ignorable; only signature
// failures (401) and storage failures (5xx) tell the provider otherwise.
func ApiStripeWebhook(cfg *cfgpkg.Config, log *zap.SugaredLogger, norm EventNormalizer, queue Enqueuer, pipe PassthroughLogger, anomalies AnomalyRecorder) gin.HandlerFunc {
	tolerance := time.Duration(cfg.Stripe.ToleranceSeconds) * time.Second

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		reqLog := logctx.FromGin(c, log)

		body, err := c.GetRawData()
		if err != nil {
			reqLog.Errorw("webhook_read_body_error", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read body"})
			return
		}

		sig := c.GetHeader("Stripe-Signature")
		if err := stripe.VerifySignature(body, sig, cfg.Stripe.WebhookSecret, time.Now(), tolerance); err != nil {
			reqLog.Warnw("webhook_signature_invalid", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		ev, err := stripe.ParseEvent(body)
		if err != nil {
			// The payload is authentic but unusable; answer success so the
			// provider stops retrying, and keep the evidence.
			reqLog.Warnw("webhook_unparseable_payload", "error", err)
			anomalies.RecordAnomaly(ctx, nil, intakeActor, err.Error(), body)
			c.JSON(http.StatusOK, gin.H{"status": "ignored_invalid_payload"})
			return
		}

		reqLog = reqLog.With("event_id", ev.ID, "event_type", ev.Type)
		reqLog.Infow("webhook_received")

		result, err := norm.Normalize(ctx, ev, intakeActor)
		if err != nil {
			if errors.Is(err, normalizer.ErrValidation) {
				reqLog.Warnw("webhook_validation_failed", "error", err)
				eventID := ev.ID
				anomalies.RecordAnomaly(ctx, &eventID, intakeActor, err.Error(), body)
				c.JSON(http.StatusOK, gin.H{"status": "ignored_invalid_data"})
				return
			}
			reqLog.Errorw("webhook_normalize_error", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "normalization failed"})
			return
		}

		if result.Passthrough != nil {
			res, err := pipe.LogPassthroughEvent(ctx, result.Passthrough)
			if err != nil {
				reqLog.Errorw("webhook_passthrough_error", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record event"})
				return
			}
			reqLog.Infow("webhook_passthrough_logged", "outcome", res.Outcome)
			c.JSON(http.StatusOK, gin.H{"status": string(res.Outcome)})
			return
		}

		created, err := queue.Enqueue(ctx, &jobqueue.EnqueueRequest{
			EventID:    ev.ID,
			ObjectID:   result.Payment.ExternalID.String(),
			EventType:  ev.Type,
			ProviderTS: ev.Created,
			RawEvent:   result.Payment.RawEvent,
		})
		if err != nil {
			// 5xx makes the provider the retry engine for pre-enqueue failures.
			reqLog.Errorw("webhook_enqueue_error", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue"})
			return
		}

		status := "queued"
		if !created {
			status = "duplicate"
		}
		reqLog.Infow("webhook_enqueued", "status", status)
		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}

func RegisterWebhookRoutes(r gin.IRouter, cfg *cfgpkg.Config, log *zap.SugaredLogger, norm EventNormalizer, queue Enqueuer, pipe PassthroughLogger, anomalies AnomalyRecorder) {
	r.POST("/webhook", ApiStripeWebhook(cfg, log, norm, queue, pipe, anomalies))
}
