package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleCreator UserRole = "creator"
	RoleStudent UserRole = "student"
)

// Capability is a named action checked against the role capability table.
// Roles are a closed enumeration; handlers must not compare role strings
// directly.
type Capability string

const (
	CapManageUsers   Capability = "manage_users"
	CapManageQuizzes Capability = "manage_quizzes"
	CapManageGroups  Capability = "manage_groups"
	CapTakeExams     Capability = "take_exams"
	CapGradeExams    Capability = "grade_exams"
	CapViewAuditLog  Capability = "view_audit_log"
)

var roleCapabilities = map[UserRole]map[Capability]bool{
	RoleAdmin: {
		CapManageUsers:   true,
		CapManageQuizzes: true,
		CapManageGroups:  true,
		CapGradeExams:    true,
		CapViewAuditLog:  true,
	},
	RoleCreator: {
		CapManageQuizzes: true,
		CapManageGroups:  true,
		CapGradeExams:    true,
	},
	RoleStudent: {
		CapTakeExams: true,
	},
}

// Can reports whether the role grants the capability.
func (r UserRole) Can(c Capability) bool {
	caps, ok := roleCapabilities[r]
	return ok && caps[c]
}

// Valid reports whether the role is one of the closed enumeration.
func (r UserRole) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

type SubscriptionPlan string

const (
	PlanBasic SubscriptionPlan = "basic"
	PlanPro   SubscriptionPlan = "pro"
	PlanTeam  SubscriptionPlan = "team"
)

// Valid reports whether the plan is a known tier.
func (p SubscriptionPlan) Valid() bool {
	switch p {
	case PlanBasic, PlanPro, PlanTeam:
		return true
	}
	return false
}

type User struct {
	ID       string   `json:"id" gorm:"primaryKey;size:255"`
	FullName string   `json:"full_name" gorm:"not null;size:100"`
	Email    string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Role     UserRole `json:"role" gorm:"not null;default:student;index"`

	// Credentials. The digest is never serialized.
	PasswordHash string `json:"-" gorm:"not null;size:255"`

	// Email verification
	EmailVerified     bool       `json:"email_verified" gorm:"default:false"`
	VerificationToken *string    `json:"-" gorm:"size:255;index"`
	VerificationExp   *time.Time `json:"-"`

	// Password reset
	ResetToken *string    `json:"-" gorm:"size:255;index"`
	ResetExp   *time.Time `json:"-"`

	// Subscription state, mirrored from the billing provider
	Plan             *SubscriptionPlan `json:"plan" gorm:"size:20"`
	TrialEndsAt      *time.Time        `json:"trial_ends_at"`
	StripeCustomerID *string           `json:"-" gorm:"size:255;index"`

	// Moderation
	Suspended bool `json:"suspended" gorm:"default:false;index"`

	// Refresh token versioning: bumping it invalidates all outstanding
	// refresh tokens for the user.
	TokenVersion int `json:"-" gorm:"default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

// Principal is the minimal authenticated identity attached to a request.
type Principal struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Role     UserRole          `json:"role"`
	Plan     *SubscriptionPlan `json:"plan"`
	Verified bool              `json:"verified"`
}
