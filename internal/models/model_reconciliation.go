package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExternalRecord is a payment-shaped row imported from an ERP or bank export,
// schema-ready for the reconciliation engine. No engine behavior ships yet.
type ExternalRecord struct {
	ID         string         `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Source     string         `gorm:"column:source;type:varchar(64);not null" json:"source"`
	RecordRef  string         `gorm:"column:record_ref;type:varchar(128);not null;uniqueIndex:unique_external_record_ref" json:"record_ref"`
	Amount     int64          `gorm:"column:amount;type:bigint;not null;check:amount >= 0" json:"amount"`
	Currency   string         `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	OccurredAt *time.Time     `gorm:"column:occurred_at" json:"occurred_at"`
	Detail     datatypes.JSON `gorm:"column:detail;type:jsonb" json:"detail"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (ExternalRecord) TableName() string { return "external_records" }

// Reconciliation links a payment to an external record with a match verdict.
type Reconciliation struct {
	ID               string         `gorm:"column:id;primary_key;type:uuid" json:"id"`
	PaymentID        *string        `gorm:"column:payment_id;type:uuid;index" json:"payment_id"`
	ExternalRecordID *string        `gorm:"column:external_record_id;type:uuid;index" json:"external_record_id"`
	Status           string         `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Detail           datatypes.JSON `gorm:"column:detail;type:jsonb" json:"detail"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (Reconciliation) TableName() string { return "reconciliations" }
