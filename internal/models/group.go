package models

import (
	"time"

	"gorm.io/gorm"
)

type Group struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Name        string  `json:"name" gorm:"not null;size:100" validate:"required,min=1,max=100"`
	Description *string `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`

	// Human-enterable enrollment code, unique across all groups.
	Code string `json:"code" gorm:"uniqueIndex;not null;size:6"`

	// Owning creator, immutable after creation.
	CreatedBy string `json:"created_by" gorm:"not null;index;size:255"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Members []GroupMember `json:"members,omitempty" gorm:"foreignKey:GroupID"`
	Quizzes []GroupQuiz   `json:"quizzes,omitempty" gorm:"foreignKey:GroupID"`
	Creator User          `json:"-" gorm:"foreignKey:CreatedBy"`

	// Computed fields (not stored)
	MemberCount int `json:"member_count" gorm:"-"`
	QuizCount   int `json:"quiz_count" gorm:"-"`
}

func (Group) TableName() string {
	return "groups"
}

// GroupMember links a student to a group. Membership is append-only; the
// unique index rejects duplicate enrollment at the storage layer.
type GroupMember struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	GroupID   uint      `json:"group_id" gorm:"not null;uniqueIndex:idx_group_student"`
	StudentID string    `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_group_student;index"`
	JoinedAt  time.Time `json:"joined_at" gorm:"autoCreateTime"`

	Student User `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

func (GroupMember) TableName() string {
	return "group_members"
}

// GroupQuiz is the two-sided group/quiz assignment. Both directions are read
// through this table so the relationship can never drift out of sync.
type GroupQuiz struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	GroupID    uint      `json:"group_id" gorm:"not null;uniqueIndex:idx_group_quiz"`
	QuizID     uint      `json:"quiz_id" gorm:"not null;uniqueIndex:idx_group_quiz;index"`
	AssignedAt time.Time `json:"assigned_at" gorm:"autoCreateTime"`

	Quiz Quiz `json:"quiz,omitempty" gorm:"foreignKey:QuizID"`
}

func (GroupQuiz) TableName() string {
	return "group_quizzes"
}
