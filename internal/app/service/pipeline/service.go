package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coralpay/paysync/internal/app/service/audit"
	"github.com/coralpay/paysync/internal/models"
	"github.com/coralpay/paysync/internal/platform/db"
	"github.com/coralpay/paysync/pkg/logctx"
	"github.com/coralpay/paysync/pkg/metrics"
	"github.com/coralpay/paysync/pkg/tool"
	"github.com/coralpay/paysync/pkg/types"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service runs the event-to-state pipeline: dedup, per-payment serialization,
// state-machine-gated mutation, and the audit entry, all in one transaction.
type Service struct {
	dbc   *gorm.DB
	log   *zap.SugaredLogger
	audit *audit.Service
	m     *metrics.Domain
}

func New(dbc *gorm.DB, log *zap.SugaredLogger, aud *audit.Service, m *metrics.Domain) *Service {
	return &Service{dbc: dbc, log: log, audit: aud, m: m}
}

// ProcessPaymentEvent applies one normalized payment event. Idempotent: the
// same event processed twice yields its first outcome, then Duplicate. The
// dedup insert, payment mutation, and audit entry commit or roll back together.
func (s *Service) ProcessPaymentEvent(ctx context.Context, np *NewPayment, actor string) (*ProcessResult, error) {
	res := &ProcessResult{}
	now := time.Now()

	err := s.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.insertProviderEvent(ctx, tx, np.LastEventID.String(), np.ExternalID.String(), np.EventType, np.ProviderTS, np.RawEvent, now)
		if err != nil {
			return err
		}
		if !inserted {
			res.Outcome = OutcomeDuplicate
			return nil
		}

		// Serialize all processing for this external id. Unrelated payments
		// hash to different keys and proceed concurrently.
		if err := db.AdvisoryXactLock(tx, np.ExternalID.String()); err != nil {
			return fmt.Errorf("failed to take advisory lock: %w", err)
		}

		var existing models.Payment
		found := true
		if err := tx.WithContext(ctx).Where("external_id = ?", np.ExternalID.String()).First(&existing).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to load payment: %w", err)
			}
			found = false
		}

		var current *types.PaymentStatus
		var currentTS int64
		if found {
			current, currentTS = existing.CurrentStatus()
		}

		switch types.DecideTransition(current, currentTS, np.Status, np.ProviderTS) {
		case types.DecisionInsert:
			return s.insertPayment(ctx, tx, np, actor, now, res)
		case types.DecisionSkipStale:
			return s.skipEvent(ctx, tx, &existing, np, actor, "stale", OutcomeStale, res)
		case types.DecisionSkipAnomalous:
			logctx.FromCtx(ctx, s.log).Warnw("invalid status transition, logged as anomaly",
				"external_id", np.ExternalID.String(), "from", existing.Status, "to", np.Status)
			return s.skipEvent(ctx, tx, &existing, np, actor, "anomalous", OutcomeAnomalous, res)
		case types.DecisionSkipDuplicateStatus:
			return s.touchPayment(ctx, tx, &existing, np, actor, res)
		default:
			return s.advancePayment(ctx, tx, &existing, np, actor, now, res)
		}
	})
	if err != nil {
		return nil, err
	}

	s.m.ObserveOutcome(string(res.Outcome))
	return res, nil
}

func (s *Service) insertProviderEvent(ctx context.Context, tx *gorm.DB, eventID, objectID, eventType string, providerTS int64, payload datatypes.JSON, now time.Time) (bool, error) {
	r := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&models.ProviderEvent{
			EventID:    eventID,
			ObjectID:   objectID,
			EventType:  eventType,
			ProviderTS: providerTS,
			Payload:    payload,
			ReceivedAt: now,
		})
	if r.Error != nil {
		return false, fmt.Errorf("failed to record provider event: %w", r.Error)
	}
	return r.RowsAffected > 0, nil
}

func (s *Service) insertPayment(ctx context.Context, tx *gorm.DB, np *NewPayment, actor string, now time.Time, res *ProcessResult) error {
	row := &models.Payment{
		ID:             tool.GenerateUUIDV7(),
		ExternalID:     np.ExternalID.String(),
		Source:         np.Source,
		EventType:      np.EventType,
		Direction:      np.Direction,
		Amount:         np.Money.Amount.Int64(),
		Currency:       np.Money.Currency,
		Status:         np.Status,
		Metadata:       np.Metadata,
		RawEvent:       np.RawEvent,
		LastEventID:    np.LastEventID.String(),
		LastProviderTS: np.ProviderTS,
		ReceivedAt:     now,
	}
	if np.ParentExternalID != nil {
		parent := np.ParentExternalID.String()
		row.ParentExternalID = &parent
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	if _, err := s.audit.Append(ctx, tx, s.auditEntry(np, &row.ID, models.AuditActionCreated, actor, map[string]any{
		"event_type": np.EventType,
		"amount":     np.Money.Amount.Int64(),
		"currency":   np.Money.Currency.String(),
		"status":     np.Status.String(),
	})); err != nil {
		return err
	}
	res.Outcome = OutcomeCreated
	res.PaymentID = row.ID
	return nil
}

// skipEvent audits a stale or anomalous event without touching the payment row.
func (s *Service) skipEvent(ctx context.Context, tx *gorm.DB, existing *models.Payment, np *NewPayment, actor, reason string, outcome Outcome, res *ProcessResult) error {
	if _, err := s.audit.Append(ctx, tx, s.auditEntry(np, &existing.ID, models.AuditActionEventReceived, actor, map[string]any{
		"event_type":      np.EventType,
		"reason":          reason,
		"current_status":  existing.Status.String(),
		"incoming_status": np.Status.String(),
	})); err != nil {
		return err
	}
	res.Outcome = outcome
	res.PaymentID = existing.ID
	return nil
}

// touchPayment handles a same-status redelivery: tracking columns advance,
// status does not.
func (s *Service) touchPayment(ctx context.Context, tx *gorm.DB, existing *models.Payment, np *NewPayment, actor string, res *ProcessResult) error {
	ts := existing.LastProviderTS
	if np.ProviderTS > ts {
		ts = np.ProviderTS
	}
	if err := tx.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", existing.ID).Updates(map[string]any{
		"last_event_id":    np.LastEventID.String(),
		"last_provider_ts": ts,
		"updated_at":       time.Now(),
	}).Error; err != nil {
		return fmt.Errorf("failed to update event tracking: %w", err)
	}

	if _, err := s.audit.Append(ctx, tx, s.auditEntry(np, &existing.ID, models.AuditActionEventReceived, actor, map[string]any{
		"event_type": np.EventType,
		"reason":     "duplicate_status",
		"status":     np.Status.String(),
	})); err != nil {
		return err
	}
	res.Outcome = OutcomeSameStatus
	res.PaymentID = existing.ID
	return nil
}

func (s *Service) advancePayment(ctx context.Context, tx *gorm.DB, existing *models.Payment, np *NewPayment, actor string, now time.Time, res *ProcessResult) error {
	if err := tx.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", existing.ID).Updates(map[string]any{
		"status":           np.Status.String(),
		"event_type":       np.EventType,
		"amount":           np.Money.Amount.Int64(),
		"metadata":         np.Metadata,
		"raw_event":        np.RawEvent,
		"last_event_id":    np.LastEventID.String(),
		"last_provider_ts": np.ProviderTS,
		"updated_at":       now,
	}).Error; err != nil {
		return fmt.Errorf("failed to advance payment: %w", err)
	}

	if _, err := s.audit.Append(ctx, tx, s.auditEntry(np, &existing.ID, models.AuditActionStatusChanged, actor, map[string]any{
		"event_type": np.EventType,
		"from":       existing.Status.String(),
		"to":         np.Status.String(),
	})); err != nil {
		return err
	}
	res.Outcome = OutcomeUpdated
	res.PaymentID = existing.ID
	return nil
}

// LogPassthroughEvent records an auxiliary event in the dedup table and the
// audit trail. No payment row is touched; the audit entry links to one when
// the object id matches an existing payment.
func (s *Service) LogPassthroughEvent(ctx context.Context, pt *PassthroughEvent) (*ProcessResult, error) {
	res := &ProcessResult{}
	now := time.Now()

	err := s.dbc.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.insertProviderEvent(ctx, tx, pt.EventID.String(), pt.ObjectID, pt.EventType, pt.ProviderTS, pt.RawEvent, now)
		if err != nil {
			return err
		}
		if !inserted {
			res.Outcome = OutcomeDuplicate
			return nil
		}

		var entityID *string
		var externalID *string
		if pt.ObjectID != "" {
			var row models.Payment
			err := tx.WithContext(ctx).Select("id").Where("external_id = ?", pt.ObjectID).First(&row).Error
			switch {
			case err == nil:
				entityID = &row.ID
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return fmt.Errorf("failed to link passthrough event: %w", err)
			}
			oid := pt.ObjectID
			externalID = &oid
		}

		detail, _ := json.Marshal(map[string]any{
			"event_type":  pt.EventType,
			"passthrough": true,
		})
		eventID := pt.EventID.String()
		if _, err := s.audit.Append(ctx, tx, &models.AuditEntry{
			EntityType: "payment",
			EntityID:   entityID,
			ExternalID: externalID,
			EventID:    &eventID,
			Action:     models.AuditActionEventReceived,
			Actor:      pt.Actor,
			Detail:     datatypes.JSON(detail),
		}); err != nil {
			return err
		}
		res.Outcome = OutcomeLogged
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.m.ObserveOutcome(string(res.Outcome))
	return res, nil
}

func (s *Service) auditEntry(np *NewPayment, entityID *string, action, actor string, detail map[string]any) *models.AuditEntry {
	detailJSON, _ := json.Marshal(detail)
	externalID := np.ExternalID.String()
	eventID := np.LastEventID.String()
	return &models.AuditEntry{
		EntityType: "payment",
		EntityID:   entityID,
		ExternalID: &externalID,
		EventID:    &eventID,
		Action:     action,
		Actor:      actor,
		Detail:     datatypes.JSON(detailJSON),
	}
}

var Module = fx.Options(
	fx.Provide(New),
)
