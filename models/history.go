package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mmretail/pos_backend/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Auditor receives before/after snapshots after each successful mutation.
// It is best-effort: a failing auditor never rolls back the business
// transaction.
type Auditor interface {
	Record(ctx context.Context, userId int, actionType string, referenceId int, referenceType string, before any, after any)
}

type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	SnapshotId    string    `gorm:"size:36;index;not null" json:"snapshot_id"`
	ActionType    string    `gorm:"size:10;not null" json:"action_type" binding:"required"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	ReferenceID   int       `gorm:"index" json:"reference_id"`
	ReferenceType string    `gorm:"size:255" json:"reference_type"`
	UserId        int       `gorm:"index;not null" json:"user_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// HistoryAuditor persists audit rows outside the business transaction.
type HistoryAuditor struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewHistoryAuditor(db *gorm.DB, logger *logrus.Logger) *HistoryAuditor {
	return &HistoryAuditor{db: db, logger: logger}
}

func (a *HistoryAuditor) Record(ctx context.Context, userId int, actionType string, referenceId int, referenceType string, before any, after any) {
	b, _ := json.Marshal(before)
	aft, _ := json.Marshal(after)

	history := History{
		SnapshotId:    uuid.NewString(),
		ActionType:    actionType,
		Before:        string(b),
		After:         string(aft),
		ReferenceID:   referenceId,
		ReferenceType: referenceType,
		UserId:        userId,
	}

	if err := a.db.WithContext(ctx).Create(&history).Error; err != nil {
		config.LogError(a.logger, "history.go", "Record", "failed to write audit history", referenceType, err)
	}
}

// NopAuditor drops every record. Useful where auditing is wired elsewhere.
type NopAuditor struct{}

func (NopAuditor) Record(context.Context, int, string, int, string, any, any) {}
