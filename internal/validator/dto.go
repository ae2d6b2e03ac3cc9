package validator

import (
	"time"

	"github.com/examstack/exam-platform/internal/models"
)

// ===== AUTH REQUESTS =====

// RegisterRequest represents the request structure for account registration
type RegisterRequest struct {
	Email    string          `json:"email" validate:"required,email,max=255"`
	Password string          `json:"password" validate:"required,min=8,max=72"`
	Name     string          `json:"name" validate:"required,min=1,max=100"`
	Role     models.UserRole `json:"role" validate:"required,user_role"`
}

// LoginRequest represents the request structure for password login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// PasswordResetRequest asks for a reset email to be sent
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirmRequest completes a password reset
type PasswordResetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// ResendVerificationRequest asks for a fresh verification email
type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ProfileUpdateRequest changes the account's display name
type ProfileUpdateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// PasswordChangeRequest changes the password of a logged-in user
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// ===== QUIZ REQUESTS =====

// QuizCreateRequest represents the request structure for creating quizzes
type QuizCreateRequest struct {
	Title       string                  `json:"title" validate:"required,quiz_title"`
	Description string                  `json:"description" validate:"omitempty,max=1000"`
	StartTime   time.Time               `json:"start_time" validate:"required"`
	EndTime     time.Time               `json:"end_time" validate:"required"`
	Duration    int                     `json:"duration" validate:"required,quiz_duration"`
	Password    string                  `json:"password" validate:"required,min=4,max=72"`
	Visibility  models.QuizVisibility   `json:"visibility" validate:"omitempty,quiz_visibility"`
	Settings    *QuizSettingsRequest    `json:"settings"`
	Questions   []QuestionCreateRequest `json:"questions" validate:"omitempty,dive"`
}

// QuizUpdateRequest represents the request structure for updating quizzes
type QuizUpdateRequest struct {
	Title       *string                `json:"title" validate:"omitempty,quiz_title"`
	Description *string                `json:"description" validate:"omitempty,max=1000"`
	StartTime   *time.Time             `json:"start_time"`
	EndTime     *time.Time             `json:"end_time"`
	Duration    *int                   `json:"duration" validate:"omitempty,quiz_duration"`
	Password    *string                `json:"password" validate:"omitempty,min=4,max=72"`
	IsLive      *bool                  `json:"is_live"`
	Visibility  *models.QuizVisibility `json:"visibility" validate:"omitempty,quiz_visibility"`
	Settings    *QuizSettingsRequest   `json:"settings"`
}

// QuizSettingsRequest represents quiz behavior flags
type QuizSettingsRequest struct {
	AllowInternet *bool `json:"allow_internet"`
	AutoSubmit    *bool `json:"auto_submit"`
	Shuffle       *bool `json:"shuffle"`
	ShowResults   *bool `json:"show_results"`
}

// QuestionCreateRequest represents the request structure for creating questions
type QuestionCreateRequest struct {
	Type    models.QuestionType  `json:"type" validate:"required,question_type"`
	Text    string               `json:"text" validate:"required,min=1,max=2000"`
	Points  int                  `json:"points" validate:"required,points_range"`
	Order   int                  `json:"order" validate:"omitempty,min=0"`
	Media   *models.QuestionMedia `json:"media"`
	Options []string             `json:"options" validate:"omitempty,max=10,dive,max=500"`
	Answer  interface{}          `json:"answer"`
}

// QuestionUpdateRequest represents the request structure for updating questions
type QuestionUpdateRequest struct {
	Type    *models.QuestionType  `json:"type" validate:"omitempty,question_type"`
	Text    *string               `json:"text" validate:"omitempty,min=1,max=2000"`
	Points  *int                  `json:"points" validate:"omitempty,points_range"`
	Order   *int                  `json:"order" validate:"omitempty,min=0"`
	Media   *models.QuestionMedia `json:"media"`
	Options []string              `json:"options" validate:"omitempty,max=10,dive,max=500"`
	Answer  interface{}           `json:"answer"`
}

// ===== GROUP REQUESTS =====

// GroupCreateRequest represents the request structure for creating groups
type GroupCreateRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"omitempty,max=500"`
}

// GroupUpdateRequest represents the request structure for updating groups
type GroupUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// EnrollRequest joins a student to a group by its code
type EnrollRequest struct {
	Code string `json:"code" validate:"required,group_code"`
}

// ===== SESSION REQUESTS =====

// SessionAuthRequest authenticates a student into a quiz
type SessionAuthRequest struct {
	Password string `json:"password" validate:"required"`
}

// SaveAnswerRequest stores a single in-progress answer
type SaveAnswerRequest struct {
	QuestionID uint        `json:"question_id" validate:"required"`
	Answer     interface{} `json:"answer" validate:"required"`
}

// SubmitRequest finalizes an exam session
type SubmitRequest struct {
	Answers    []SaveAnswerRequest `json:"answers" validate:"omitempty,dive"`
	DeviceInfo map[string]string   `json:"device_info"`
}

// ===== GRADING REQUESTS =====

// GradeAnswerRequest grades one answer within a submission
type GradeAnswerRequest struct {
	QuestionID uint    `json:"question_id" validate:"required"`
	Score      float64 `json:"score" validate:"min=0"`
	Feedback   string  `json:"feedback" validate:"omitempty,max=2000"`
	IsCorrect  *bool   `json:"is_correct"`
}

// GradeSubmissionRequest applies grades to a submission
type GradeSubmissionRequest struct {
	Answers  []GradeAnswerRequest `json:"answers" validate:"required,min=1,dive"`
	Feedback string               `json:"feedback" validate:"omitempty,max=2000"`
}

// ===== ADMIN REQUESTS =====

// RoleChangeRequest changes a user's role
type RoleChangeRequest struct {
	Role models.UserRole `json:"role" validate:"required,user_role"`
}

// SubscriptionOverrideRequest sets a user's plan directly
type SubscriptionOverrideRequest struct {
	Plan models.SubscriptionPlan `json:"plan" validate:"required,subscription_plan"`
}

// SuspendRequest suspends or reactivates a user
type SuspendRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// ===== BILLING REQUESTS =====

// CheckoutRequest starts a subscription checkout
type CheckoutRequest struct {
	Plan models.SubscriptionPlan `json:"plan" validate:"required,subscription_plan"`
}
