package normalizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coralpay/paysync/internal/app/service/pipeline"
	"github.com/coralpay/paysync/internal/platform/stripe"
	"github.com/coralpay/paysync/pkg/logctx"
	"github.com/coralpay/paysync/pkg/types"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ErrValidation marks events the provider sent but we can never accept:
// unknown currency, negative amount, missing identifiers. Non-retryable — the
// same payload will fail the same way forever.
var ErrValidation = errors.New("event validation failed")

const source = "stripe"

// Service turns a verified provider envelope into either a canonical payment
// event or a passthrough record.
type Service struct {
	log *zap.SugaredLogger
}

func New(log *zap.SugaredLogger) *Service { return &Service{log: log} }

// Result is exactly one of Payment or Passthrough.
type Result struct {
	Payment     *pipeline.NewPayment
	Passthrough *pipeline.PassthroughEvent
}

// Normalize maps by object family: payment_intent events become Inbound
// payments, refund events become Outbound payments linked to their parent
// intent, charges and unknown types pass through to the audit log.
func (s *Service) Normalize(ctx context.Context, ev *stripe.Event, actor string) (*Result, error) {
	switch ev.ObjectFamily() {
	case "payment_intent":
		np, err := s.fromPaymentIntent(ctx, ev)
		if err != nil {
			return nil, err
		}
		return &Result{Payment: np}, nil
	case "refund":
		np, err := s.fromRefund(ev)
		if err != nil {
			return nil, err
		}
		return &Result{Payment: np}, nil
	case "charge":
		var charge stripe.Charge
		if err := json.Unmarshal(ev.Data.Object, &charge); err != nil {
			return nil, fmt.Errorf("%w: bad charge object: %v", ErrValidation, err)
		}
		return &Result{Passthrough: s.passthrough(ev, charge.PaymentIntent, actor)}, nil
	default:
		return &Result{Passthrough: s.passthrough(ev, "", actor)}, nil
	}
}

func (s *Service) fromPaymentIntent(ctx context.Context, ev *stripe.Event) (*pipeline.NewPayment, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Object, &pi); err != nil {
		return nil, fmt.Errorf("%w: bad payment_intent object: %v", ErrValidation, err)
	}

	externalID, err := types.NewExternalID(pi.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	money, err := types.NewMoney(pi.Amount, pi.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var status types.PaymentStatus
	if ev.Type == "payment_intent.refunded" {
		// The intent's own refunded event drives the Refunded edge; refund
		// objects are separate rows.
		status = types.PaymentStatusRefunded
	} else {
		status = s.intentStatus(ctx, pi.Status)
	}

	np, err := s.newPayment(ev, externalID, types.DirectionInbound, money, status, pi.Metadata, nil)
	if err != nil {
		return nil, err
	}
	return np, nil
}

func (s *Service) fromRefund(ev *stripe.Event) (*pipeline.NewPayment, error) {
	var refund stripe.Refund
	if err := json.Unmarshal(ev.Data.Object, &refund); err != nil {
		return nil, fmt.Errorf("%w: bad refund object: %v", ErrValidation, err)
	}

	externalID, err := types.NewExternalID(refund.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	money, err := types.NewMoney(refund.Amount, refund.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var status types.PaymentStatus
	switch refund.Status {
	case "succeeded":
		status = types.PaymentStatusSucceeded
	case "failed", "canceled":
		status = types.PaymentStatusFailed
	default:
		status = types.PaymentStatusPending
	}

	var parent *types.ExternalID
	if refund.PaymentIntent != "" {
		pid, err := types.NewExternalID(refund.PaymentIntent)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		parent = &pid
	}

	return s.newPayment(ev, externalID, types.DirectionOutbound, money, status, refund.Metadata, parent)
}

func (s *Service) newPayment(ev *stripe.Event, externalID types.ExternalID, direction types.PaymentDirection, money types.Money, status types.PaymentStatus, metadata map[string]string, parent *types.ExternalID) (*pipeline.NewPayment, error) {
	eventID, err := types.NewEventID(ev.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return &pipeline.NewPayment{
		ExternalID:       externalID,
		Source:           source,
		EventType:        ev.Type,
		Direction:        direction,
		Money:            money,
		Status:           status,
		Metadata:         datatypes.JSON(metaJSON),
		RawEvent:         datatypes.JSON(ev.Raw),
		LastEventID:      eventID,
		ParentExternalID: parent,
		ProviderTS:       ev.Created,
	}, nil
}

func (s *Service) intentStatus(ctx context.Context, providerStatus string) types.PaymentStatus {
	switch providerStatus {
	case "succeeded":
		return types.PaymentStatusSucceeded
	case "canceled":
		return types.PaymentStatusFailed
	case "processing", "requires_action", "requires_capture", "requires_confirmation", "requires_payment_method":
		return types.PaymentStatusPending
	default:
		logctx.FromCtx(ctx, s.log).Warnw("unknown payment_intent status, defaulting to pending", "status", providerStatus)
		return types.PaymentStatusPending
	}
}

func (s *Service) passthrough(ev *stripe.Event, objectID, actor string) *pipeline.PassthroughEvent {
	eventID := types.EventID(ev.ID)
	return &pipeline.PassthroughEvent{
		EventID:    eventID,
		ObjectID:   objectID,
		EventType:  ev.Type,
		ProviderTS: ev.Created,
		RawEvent:   datatypes.JSON(ev.Raw),
		Actor:      actor,
	}
}

var Module = fx.Options(
	fx.Provide(New),
)
