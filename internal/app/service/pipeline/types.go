package pipeline

import (
	"github.com/coralpay/paysync/pkg/types"

	"gorm.io/datatypes"
)

// NewPayment is the canonical form of one provider payment event, produced by
// the normalizer and consumed by ProcessPaymentEvent.
type NewPayment struct {
	ExternalID       types.ExternalID
	Source           string
	EventType        string
	Direction        types.PaymentDirection
	Money            types.Money
	Status           types.PaymentStatus
	Metadata         datatypes.JSON
	RawEvent         datatypes.JSON
	LastEventID      types.EventID
	ParentExternalID *types.ExternalID
	ProviderTS       int64
}

// PassthroughEvent is an auxiliary delivery that is audited but never mutates
// payment state (charges, unknown event types).
type PassthroughEvent struct {
	EventID    types.EventID
	ObjectID   string
	EventType  string
	ProviderTS int64
	RawEvent   datatypes.JSON
	Actor      string
}

// Outcome classifies what processing an event did to the store.
type Outcome string

const (
	// OutcomeCreated inserted a new payment row.
	OutcomeCreated Outcome = "created"
	// OutcomeUpdated advanced the status of an existing row.
	OutcomeUpdated Outcome = "updated"
	// OutcomeDuplicate skipped an already-processed event id.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeStale skipped an event older than the accepted history.
	OutcomeStale Outcome = "stale"
	// OutcomeAnomalous skipped an invalid transition and audited it.
	OutcomeAnomalous Outcome = "anomalous"
	// OutcomeSameStatus advanced event tracking without a status change.
	OutcomeSameStatus Outcome = "same_status"
	// OutcomeLogged audited a passthrough event.
	OutcomeLogged Outcome = "logged"
)

type ProcessResult struct {
	Outcome   Outcome
	PaymentID string
}
