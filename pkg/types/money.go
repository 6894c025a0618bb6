package types

import "fmt"

// Currency is the closed set of settlement currencies we accept from providers.
type Currency string

const (
	CurrencyUSD Currency = "usd"
	CurrencyEUR Currency = "eur"
	CurrencyGBP Currency = "gbp"
	CurrencyJPY Currency = "jpy"
)

var currencies = map[Currency]struct{}{
	CurrencyUSD: {},
	CurrencyEUR: {},
	CurrencyGBP: {},
	CurrencyJPY: {},
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(s)
	if _, ok := currencies[c]; !ok {
		return "", fmt.Errorf("unknown currency: %q", s)
	}
	return c, nil
}

func (c Currency) String() string { return string(c) }

// Amount is a count of the smallest unit of its currency (cents, pence, yen).
// Always non-negative; construct through NewAmount.
type Amount int64

func NewAmount(v int64) (Amount, error) {
	if v < 0 {
		return 0, fmt.Errorf("amount cannot be negative, got %d", v)
	}
	return Amount(v), nil
}

func (a Amount) Int64() int64 { return int64(a) }

// Money pairs an amount with its currency. Arithmetic across currencies is
// rejected rather than converted.
type Money struct {
	Amount   Amount
	Currency Currency
}

func NewMoney(amount int64, currency string) (Money, error) {
	a, err := NewAmount(amount)
	if err != nil {
		return Money{}, err
	}
	c, err := ParseCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: a, Currency: c}, nil
}

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	sum := int64(m.Amount) + int64(other.Amount)
	if sum < 0 {
		return Money{}, fmt.Errorf("amount overflow")
	}
	return Money{Amount: Amount(sum), Currency: m.Currency}, nil
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}
