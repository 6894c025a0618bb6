package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coralpay/paysync/internal/models"
	"github.com/coralpay/paysync/pkg/logctx"
	"github.com/coralpay/paysync/pkg/tool"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service writes the append-only audit trail. No update or delete path exists
// here; redelivered events land on the event_id unique index and are swallowed.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Append inserts one entry inside the caller's transaction. Returns false when
// an entry for the same event_id already exists.
func (s *Service) Append(ctx context.Context, tx *gorm.DB, e *models.AuditEntry) (bool, error) {
	if e.ID == "" {
		e.ID = tool.GenerateUUIDV7()
	}
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(e)
	if res.Error != nil {
		return false, fmt.Errorf("failed to append audit entry: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RecordAnomaly persists an intake anomaly (unparseable or invalid payload)
// outside any transaction, best effort. The caller still answers the provider
// with success so it stops retrying.
func (s *Service) RecordAnomaly(ctx context.Context, eventID *string, actor, reason string, raw []byte) {
	detail, _ := json.Marshal(map[string]any{
		"reason": reason,
		"raw":    json.RawMessage(normalizeRaw(raw)),
	})
	entry := &models.AuditEntry{
		ID:         tool.GenerateUUIDV7(),
		EntityType: "provider_event",
		EventID:    eventID,
		Action:     models.AuditActionAnomaly,
		Actor:      actor,
		Detail:     datatypes.JSON(detail),
	}
	if _, err := s.Append(ctx, s.db, entry); err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("failed to record anomaly: %v", err)
	}
}

func normalizeRaw(raw []byte) []byte {
	if json.Valid(raw) {
		return raw
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}

// ScanRequest pages through audit entries for the admin surface. Read-only.
type ScanRequest struct {
	ExternalID string
	EventID    string
	Action     string
	From       int
	Size       int
}

type ScanResponse struct {
	Items []*models.AuditEntry
	Total int64
}

func (s *Service) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}

	tx := s.db.WithContext(ctx).Model(&models.AuditEntry{})
	if req.ExternalID != "" {
		tx = tx.Where("external_id = ?", req.ExternalID)
	}
	if req.EventID != "" {
		tx = tx.Where("event_id = ?", req.EventID)
	}
	if req.Action != "" {
		tx = tx.Where("action = ?", req.Action)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count audit entries: %w", err)
	}

	var rows []*models.AuditEntry
	q := tx.Order("created_at desc").Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return &ScanResponse{Items: rows, Total: total}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
