package types

import "fmt"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusRefunded:
		return PaymentStatus(s), nil
	}
	return "", fmt.Errorf("unknown payment status: %q", s)
}

// Rank orders statuses for monotonicity: pending < succeeded = failed < refunded.
// Succeeded and Failed are terminal siblings; neither may become the other.
func (s PaymentStatus) Rank() int {
	switch s {
	case PaymentStatusPending:
		return 0
	case PaymentStatusSucceeded, PaymentStatusFailed:
		return 1
	case PaymentStatusRefunded:
		return 2
	}
	return -1
}

func (s PaymentStatus) String() string { return string(s) }

type PaymentDirection string

const (
	// DirectionInbound is customer → us (charges).
	DirectionInbound PaymentDirection = "inbound"
	// DirectionOutbound is us → vendor (refunds).
	DirectionOutbound PaymentDirection = "outbound"
)

func ParsePaymentDirection(s string) (PaymentDirection, error) {
	switch PaymentDirection(s) {
	case DirectionInbound, DirectionOutbound:
		return PaymentDirection(s), nil
	}
	return "", fmt.Errorf("unknown payment direction: %q", s)
}

func (d PaymentDirection) String() string { return string(d) }

// TransitionDecision is the outcome of the pure status state machine.
type TransitionDecision int

const (
	// DecisionInsert creates a new payment row (no current state).
	DecisionInsert TransitionDecision = iota
	// DecisionTransition advances status to the incoming one.
	DecisionTransition
	// DecisionSkipStale drops an event older than the accepted history.
	DecisionSkipStale
	// DecisionSkipAnomalous drops a rank regression or a sibling flip.
	DecisionSkipAnomalous
	// DecisionSkipDuplicateStatus keeps the status but advances event tracking.
	DecisionSkipDuplicateStatus
)

func (d TransitionDecision) String() string {
	switch d {
	case DecisionInsert:
		return "insert"
	case DecisionTransition:
		return "transition"
	case DecisionSkipStale:
		return "skip_stale"
	case DecisionSkipAnomalous:
		return "skip_anomalous"
	case DecisionSkipDuplicateStatus:
		return "skip_duplicate_status"
	}
	return "unknown"
}

// DecideTransition is the status state machine. current is nil when no payment
// row exists yet for the external id. Checks run in order: temporal staleness,
// rank regression, sibling flip, same-status.
func DecideTransition(current *PaymentStatus, currentProviderTS int64, incoming PaymentStatus, incomingProviderTS int64) TransitionDecision {
	if current == nil {
		return DecisionInsert
	}
	if incomingProviderTS <= currentProviderTS {
		return DecisionSkipStale
	}
	switch {
	case incoming.Rank() < current.Rank():
		return DecisionSkipAnomalous
	case incoming.Rank() == current.Rank() && incoming != *current:
		return DecisionSkipAnomalous
	case incoming == *current:
		return DecisionSkipDuplicateStatus
	}
	return DecisionTransition
}
