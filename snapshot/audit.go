package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// auditRecord is one row of the snapshot audit log.
type auditRecord struct {
	ID         uint      `gorm:"primaryKey"`
	SnapshotID string    `gorm:"index;size:64"`
	AgentName  string    `gorm:"index;size:128"`
	Timestamp  time.Time `gorm:"index"`
	Data       []byte
}

func (auditRecord) TableName() string { return "snapshot_audit" }

// AuditLog keeps an append-only relational record of every snapshot written,
// for audit and replay queries that the flat file/redis stores cannot answer
// efficiently (per-agent history, time-range scans). It complements a Store
// rather than replacing one.
type AuditLog struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAuditLog creates the audit log and migrates its table.
func NewAuditLog(db *gorm.DB, logger *zap.Logger) (*AuditLog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&auditRecord{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot audit table: %w", err)
	}
	return &AuditLog{
		db:     db,
		logger: logger.With(zap.String("component", "snapshot_audit")),
	}, nil
}

// Record appends a snapshot to the audit log.
func (a *AuditLog) Record(ctx context.Context, snap *AgentSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	rec := auditRecord{
		SnapshotID: snap.SnapshotID,
		AgentName:  snap.AgentName,
		Timestamp:  snap.Timestamp,
		Data:       data,
	}
	if err := a.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// History returns up to limit snapshots for an agent, newest first.
func (a *AuditLog) History(ctx context.Context, agentName string, limit int) ([]*AgentSnapshot, error) {
	var rows []auditRecord
	err := a.db.WithContext(ctx).
		Where("agent_name = ?", agentName).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}

	snaps := make([]*AgentSnapshot, 0, len(rows))
	for _, row := range rows {
		var snap AgentSnapshot
		if err := json.Unmarshal(row.Data, &snap); err != nil {
			a.logger.Warn("corrupt audit record skipped",
				zap.Uint("row_id", row.ID),
				zap.Error(err))
			continue
		}
		snaps = append(snaps, &snap)
	}
	return snaps, nil
}

// Count returns the number of audit records for an agent.
func (a *AuditLog) Count(ctx context.Context, agentName string) (int64, error) {
	var n int64
	err := a.db.WithContext(ctx).
		Model(&auditRecord{}).
		Where("agent_name = ?", agentName).
		Count(&n).Error
	return n, err
}

// auditedStore decorates a Store so every successful save is also appended
// to the audit log. Audit failures are logged, never propagated; the
// snapshot itself is already durable at that point.
type auditedStore struct {
	inner  Store
	audit  *AuditLog
	logger *zap.Logger
}

// WithAudit wraps a store with audit logging.
func WithAudit(inner Store, audit *AuditLog, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &auditedStore{inner: inner, audit: audit, logger: logger}
}

func (s *auditedStore) Save(ctx context.Context, snap *AgentSnapshot) error {
	if err := s.inner.Save(ctx, snap); err != nil {
		return err
	}
	if err := s.audit.Record(ctx, snap); err != nil {
		s.logger.Warn("audit record failed",
			zap.String("snapshot_id", snap.SnapshotID),
			zap.Error(err))
	}
	return nil
}

func (s *auditedStore) Load(ctx context.Context, snapshotID string) (*AgentSnapshot, error) {
	return s.inner.Load(ctx, snapshotID)
}
