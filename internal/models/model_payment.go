package models

import (
	"time"

	"github.com/coralpay/paysync/pkg/types"

	"gorm.io/datatypes"
)

// Payment is the canonical state of one provider payment object. Created on
// the first accepted event for its external_id, thereafter mutated only by
// accepted transitions.
type Payment struct {
	ID         string                 `gorm:"column:id;primary_key;type:uuid" json:"id"`
	ExternalID string                 `gorm:"column:external_id;type:varchar(128);not null;uniqueIndex:unique_payment_external_id" json:"external_id"`
	Source     string                 `gorm:"column:source;type:varchar(64);not null" json:"source"`
	EventType  string                 `gorm:"column:event_type;type:varchar(128);not null" json:"event_type"`
	Direction  types.PaymentDirection `gorm:"column:direction;type:varchar(16);not null;check:direction IN ('inbound','outbound')" json:"direction"`
	Amount     int64                  `gorm:"column:amount;type:bigint;not null;check:amount >= 0" json:"amount"`
	Currency   types.Currency         `gorm:"column:currency;type:varchar(8);not null;check:currency IN ('usd','eur','gbp','jpy')" json:"currency"`
	Status     types.PaymentStatus    `gorm:"column:status;type:varchar(16);not null;check:status IN ('pending','succeeded','failed','refunded')" json:"status"`
	Metadata   datatypes.JSON         `gorm:"column:metadata;type:jsonb" json:"metadata"`
	RawEvent   datatypes.JSON         `gorm:"column:raw_event;type:jsonb" json:"raw_event"`
	// LastEventID is the most recent event applied to this row, including
	// tracking-only updates that did not change status.
	LastEventID string `gorm:"column:last_event_id;type:varchar(128);not null" json:"last_event_id"`
	// ParentExternalID links a refund row to its originating payment intent.
	// Informational; the parent row may not exist yet.
	ParentExternalID *string `gorm:"column:parent_external_id;type:varchar(128);index" json:"parent_external_id"`
	// LastProviderTS is the provider-asserted unix time of the most recent
	// accepted event. Monotone non-decreasing.
	LastProviderTS int64     `gorm:"column:last_provider_ts;type:bigint;not null" json:"last_provider_ts"`
	ReceivedAt     time.Time `gorm:"column:received_at;not null" json:"received_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// CurrentStatus adapts the row for the state machine. Returns nil fields for a
// missing row so callers can pass the absent case straight through.
func (p *Payment) CurrentStatus() (*types.PaymentStatus, int64) {
	if p == nil {
		return nil, 0
	}
	s := p.Status
	return &s, p.LastProviderTS
}
