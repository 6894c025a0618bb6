package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProviderEvent records one unique delivery from the provider. The primary key
// on event_id is the dedup primitive: the first transaction to insert wins,
// everyone else sees a conflict and skips.
type ProviderEvent struct {
	EventID    string         `gorm:"column:event_id;primary_key;type:varchar(128)" json:"event_id"`
	ObjectID   string         `gorm:"column:object_id;type:varchar(128);not null;index" json:"object_id"`
	EventType  string         `gorm:"column:event_type;type:varchar(128);not null" json:"event_type"`
	ProviderTS int64          `gorm:"column:provider_ts;type:bigint;not null" json:"provider_ts"`
	Payload    datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	ReceivedAt time.Time      `gorm:"column:received_at;not null" json:"received_at"`
}

func (ProviderEvent) TableName() string { return "provider_events" }
