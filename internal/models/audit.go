package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditUserSuspended   AuditAction = "user.suspended"
	AuditUserReactivated AuditAction = "user.reactivated"
	AuditUserRoleChanged AuditAction = "user.role_changed"
	AuditPlanOverridden  AuditAction = "subscription.overridden"
	AuditGroupDeleted    AuditAction = "group.deleted"
	AuditQuizDeleted     AuditAction = "quiz.deleted"
)

// AuditLog is append-only: rows are created by admin mutations and never
// updated or deleted.
type AuditLog struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	ActorID    string         `json:"actor_id" gorm:"not null;size:255;index"`
	Action     AuditAction    `json:"action" gorm:"not null;size:64;index"`
	TargetType string         `json:"target_type" gorm:"not null;size:32"`
	TargetID   string         `json:"target_id" gorm:"not null;size:255;index"`
	Detail     datatypes.JSON `json:"detail,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time      `json:"created_at" gorm:"index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
