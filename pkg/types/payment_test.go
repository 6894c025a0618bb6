package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(s PaymentStatus) *PaymentStatus { return &s }

func TestDecideTransition_InsertWhenAbsent(t *testing.T) {
	require.Equal(t, DecisionInsert, DecideTransition(nil, 0, PaymentStatusPending, 100))
	// A refund object may appear already refunded on first sight.
	require.Equal(t, DecisionInsert, DecideTransition(nil, 0, PaymentStatusRefunded, 100))
}

func TestDecideTransition_StaleBeatsEverything(t *testing.T) {
	// Even a rank advance is dropped when the provider timestamp went backwards.
	require.Equal(t, DecisionSkipStale, DecideTransition(ptr(PaymentStatusPending), 1000, PaymentStatusSucceeded, 500))
	require.Equal(t, DecisionSkipStale, DecideTransition(ptr(PaymentStatusSucceeded), 1000, PaymentStatusSucceeded, 1000))
}

func TestDecideTransition_RankRegression(t *testing.T) {
	require.Equal(t, DecisionSkipAnomalous, DecideTransition(ptr(PaymentStatusSucceeded), 1000, PaymentStatusPending, 2000))
	require.Equal(t, DecisionSkipAnomalous, DecideTransition(ptr(PaymentStatusRefunded), 1000, PaymentStatusSucceeded, 2000))
}

func TestDecideTransition_SiblingFlip(t *testing.T) {
	require.Equal(t, DecisionSkipAnomalous, DecideTransition(ptr(PaymentStatusSucceeded), 1000, PaymentStatusFailed, 2000))
	require.Equal(t, DecisionSkipAnomalous, DecideTransition(ptr(PaymentStatusFailed), 1000, PaymentStatusSucceeded, 2000))
}

func TestDecideTransition_SameStatusAdvancesTracking(t *testing.T) {
	require.Equal(t, DecisionSkipDuplicateStatus, DecideTransition(ptr(PaymentStatusSucceeded), 1000, PaymentStatusSucceeded, 1500))
}

func TestDecideTransition_ValidAdvances(t *testing.T) {
	require.Equal(t, DecisionTransition, DecideTransition(ptr(PaymentStatusPending), 1000, PaymentStatusSucceeded, 2000))
	require.Equal(t, DecisionTransition, DecideTransition(ptr(PaymentStatusPending), 1000, PaymentStatusFailed, 2000))
	require.Equal(t, DecisionTransition, DecideTransition(ptr(PaymentStatusSucceeded), 1000, PaymentStatusRefunded, 2000))
	require.Equal(t, DecisionTransition, DecideTransition(ptr(PaymentStatusFailed), 1000, PaymentStatusRefunded, 2000))
}

func TestParsePaymentStatus(t *testing.T) {
	for _, s := range []PaymentStatus{PaymentStatusPending, PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusRefunded} {
		parsed, err := ParsePaymentStatus(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}
	_, err := ParsePaymentStatus("cancelled")
	require.Error(t, err)
}
