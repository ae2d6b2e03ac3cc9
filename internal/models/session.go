package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExamSession is a student's in-progress attempt at a quiz. At most one
// incomplete session may exist per (quiz, student); the partial unique index
// enforces it at the storage layer so a concurrent double-authenticate
// resolves to a duplicate-key conflict rather than a second live attempt.
type ExamSession struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	QuizID    uint   `json:"quiz_id" gorm:"not null;index:idx_session_quiz_student,unique,where:is_completed = false"`
	StudentID string `json:"student_id" gorm:"not null;size:255;index:idx_session_quiz_student,unique,where:is_completed = false;index"`

	// Timing. EndTime is fixed at authentication time as start + duration;
	// resuming never moves it.
	StartedAt    time.Time `json:"started_at" gorm:"not null"`
	EndTime      time.Time `json:"end_time" gorm:"not null;index"`
	LastActivity time.Time `json:"last_activity" gorm:"not null"`

	// In-progress answer buffer keyed by question id (last write wins).
	Answers datatypes.JSONMap `json:"answers" gorm:"type:jsonb"`

	IsCompleted bool `json:"is_completed" gorm:"default:false;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Quiz    Quiz `json:"-" gorm:"foreignKey:QuizID"`
	Student User `json:"-" gorm:"foreignKey:StudentID"`
}

func (ExamSession) TableName() string {
	return "exam_sessions"
}

// Expired reports whether the session's clock has run out. Expiry is
// detected lazily on read; there is no background sweeper.
func (s *ExamSession) Expired(now time.Time) bool {
	return !s.IsCompleted && now.After(s.EndTime)
}

// Active reports whether the session still accepts answer saves.
func (s *ExamSession) Active(now time.Time) bool {
	return !s.IsCompleted && !now.After(s.EndTime)
}
