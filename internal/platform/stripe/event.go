package stripe

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event is the provider's webhook envelope. Data.Object is left raw; the
// normalizer decodes it by event type family.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`

	// Raw is the full body as delivered, preserved for the audit trail.
	Raw json.RawMessage `json:"-"`
}

// PaymentIntent is the subset of the provider's payment_intent object we read.
type PaymentIntent struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// Refund is the subset of the provider's refund object we read.
type Refund struct {
	ID            string            `json:"id"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

// Charge is read only for passthrough linking back to its payment intent.
type Charge struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
}

// ParseEvent decodes and minimally validates a webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("malformed event body: %w", err)
	}
	if !strings.HasPrefix(ev.ID, "evt_") {
		return nil, fmt.Errorf("event id must start with evt_, got %q", ev.ID)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("event type is empty")
	}
	ev.Raw = append(json.RawMessage(nil), body...)
	return &ev, nil
}

// ObjectFamily buckets an event type by the object it carries.
func (e *Event) ObjectFamily() string {
	family, _, _ := strings.Cut(e.Type, ".")
	return family
}
