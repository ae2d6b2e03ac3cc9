package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is the finalized, gradable answer set for one (quiz, student)
// pair. Resubmission replaces the previous row; the unique index keeps the
// pair canonical.
type Submission struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	QuizID    uint   `json:"quiz_id" gorm:"not null;uniqueIndex:idx_submission_quiz_student"`
	StudentID string `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_submission_quiz_student;index"`

	// Finalized answers copied from the session buffer at submit time.
	Answers datatypes.JSON `json:"answers" gorm:"type:jsonb"` // []SubmittedAnswer

	SubmittedAt time.Time `json:"submitted_at" gorm:"not null"`

	// Grading state
	IsGraded   bool       `json:"is_graded" gorm:"default:false;index"`
	GradedAt   *time.Time `json:"graded_at"`
	GradedBy   *string    `json:"graded_by" gorm:"size:255"`
	TotalScore float64    `json:"total_score"`
	Feedback   *string    `json:"feedback" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Quiz    Quiz `json:"-" gorm:"foreignKey:QuizID"`
	Student User `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

func (Submission) TableName() string {
	return "submissions"
}

// SubmittedAnswer is one finalized answer inside Submission.Answers.
// Score and Feedback stay nil until a grader touches the question; a grading
// pass that skips a question leaves them untouched.
type SubmittedAnswer struct {
	QuestionID uint        `json:"question_id"`
	Answer     interface{} `json:"answer"`
	Score      *float64    `json:"score,omitempty"`
	Feedback   *string     `json:"feedback,omitempty"`
	IsCorrect  *bool       `json:"is_correct,omitempty"`
}

// AttemptSnapshot is the write-once analytics projection of a graded
// attempt, derived from the canonical Submission when grading completes.
type AttemptSnapshot struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	QuizID       uint   `json:"quiz_id" gorm:"not null;index"`
	StudentID    string `json:"student_id" gorm:"not null;size:255;index"`
	SubmissionID uint   `json:"submission_id" gorm:"not null;uniqueIndex"`

	Score      float64 `json:"score"`
	MaxScore   int     `json:"max_score"`
	Percentage float64 `json:"percentage"`

	// Seconds between session start and submission.
	TimeSpent int `json:"time_spent"`

	// Per-question correctness keyed by question id.
	QuestionResults datatypes.JSON `json:"question_results" gorm:"type:jsonb"`

	// Client metadata captured at submit time.
	DeviceInfo datatypes.JSON `json:"device_info,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
}

func (AttemptSnapshot) TableName() string {
	return "attempt_snapshots"
}
