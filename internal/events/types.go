package events

import "time"

// Event types
const (
	TypeUserRegistered     = "user.registered"
	TypeUserSuspended      = "user.suspended"
	TypeQuizPublished      = "quiz.published"
	TypeQuizDeleted        = "quiz.deleted"
	TypeGroupEnrollment    = "group.enrollment"
	TypeSessionStarted     = "session.started"
	TypeSessionSubmitted   = "session.submitted"
	TypeSubmissionGraded   = "submission.graded"
	TypeSubscriptionChange = "subscription.changed"
)

// UserEvent carries identity lifecycle data.
type UserEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// QuizEvent carries quiz lifecycle data.
type QuizEvent struct {
	QuizID    uint      `json:"quiz_id"`
	Title     string    `json:"title"`
	CreatedBy string    `json:"created_by"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// EnrollmentEvent carries group membership changes.
type EnrollmentEvent struct {
	GroupID   uint   `json:"group_id"`
	GroupName string `json:"group_name"`
	StudentID string `json:"student_id"`
}

// SessionEvent carries exam session transitions.
type SessionEvent struct {
	SessionID     uint   `json:"session_id"`
	QuizID        uint   `json:"quiz_id"`
	StudentID     string `json:"student_id"`
	AutoSubmitted bool   `json:"auto_submitted,omitempty"`
}

// GradingEvent carries grading completion data.
type GradingEvent struct {
	SubmissionID uint    `json:"submission_id"`
	QuizID       uint    `json:"quiz_id"`
	StudentID    string  `json:"student_id"`
	TotalScore   float64 `json:"total_score"`
	GradedBy     string  `json:"graded_by"`
}

// SubscriptionEvent carries plan changes.
type SubscriptionEvent struct {
	UserID string `json:"user_id"`
	Plan   string `json:"plan"`
	Origin string `json:"origin"` // "admin_override" or "billing"
}
