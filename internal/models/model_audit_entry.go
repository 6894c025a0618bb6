package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	AuditActionCreated       = "created"
	AuditActionStatusChanged = "status_changed"
	AuditActionEventReceived = "event_received"
	AuditActionAnomaly       = "anomaly"
)

// AuditEntry is one append-only trail record. The application never updates or
// deletes rows in this table; the unique index on event_id swallows duplicate
// inserts for redelivered events.
type AuditEntry struct {
	ID         string  `gorm:"column:id;primary_key;type:uuid" json:"id"`
	EntityType string  `gorm:"column:entity_type;type:varchar(64);not null" json:"entity_type"`
	EntityID   *string `gorm:"column:entity_id;type:uuid" json:"entity_id"`
	ExternalID *string `gorm:"column:external_id;type:varchar(128);index" json:"external_id"`
	// EventID is nil for entries not tied to a provider delivery (for example
	// intake anomalies on unparseable payloads).
	EventID   *string        `gorm:"column:event_id;type:varchar(128);uniqueIndex:unique_audit_event_id" json:"event_id"`
	Action    string         `gorm:"column:action;type:varchar(64);not null" json:"action"`
	Actor     string         `gorm:"column:actor;type:varchar(64);not null" json:"actor"`
	Detail    datatypes.JSON `gorm:"column:detail;type:jsonb" json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

func (AuditEntry) TableName() string { return "audit_log" }
