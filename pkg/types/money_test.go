package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	m, err := NewMoney(2000, "usd")
	require.NoError(t, err)
	require.Equal(t, Amount(2000), m.Amount)
	require.Equal(t, CurrencyUSD, m.Currency)
}

func TestNewMoney_RejectsNegativeAmount(t *testing.T) {
	_, err := NewMoney(-1, "usd")
	require.Error(t, err)
}

func TestNewMoney_RejectsUnknownCurrency(t *testing.T) {
	_, err := NewMoney(100, "chf")
	require.Error(t, err)
}

func TestMoneyAdd_CurrencyMismatch(t *testing.T) {
	usd, _ := NewMoney(100, "usd")
	eur, _ := NewMoney(100, "eur")
	_, err := usd.Add(eur)
	require.Error(t, err)

	sum, err := usd.Add(usd)
	require.NoError(t, err)
	require.Equal(t, Amount(200), sum.Amount)
}

func TestExternalID_Prefixes(t *testing.T) {
	for _, ok := range []string{"pi_123", "re_abc"} {
		_, err := NewExternalID(ok)
		require.NoError(t, err)
	}
	for _, bad := range []string{"", "ch_1", "evt_1", "pi"} {
		_, err := NewExternalID(bad)
		require.Error(t, err, bad)
	}
}

func TestEventID_Prefix(t *testing.T) {
	_, err := NewEventID("evt_1")
	require.NoError(t, err)
	_, err = NewEventID("pi_1")
	require.Error(t, err)
}
