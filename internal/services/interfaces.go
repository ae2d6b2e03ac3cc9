package services

import (
	"context"
	"time"

	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/validator"
)

// ===== AUTH DTOS =====

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"-"` // delivered as an httponly cookie
	ExpiresIn    time.Duration `json:"expires_in"`
}

// AuthResult bundles the authenticated user with fresh tokens.
type AuthResult struct {
	User   *models.User `json:"user"`
	Tokens *TokenPair   `json:"tokens"`
}

// ===== QUIZ DTOS =====

// QuizResponse is the creator-facing quiz view.
type QuizResponse struct {
	*models.Quiz
	GroupIDs []uint `json:"group_ids,omitempty"`
}

// StudentQuizResponse is the student-facing quiz view: questions are
// sanitized and the password digest never leaves the model's json:"-".
type StudentQuizResponse struct {
	ID          uint              `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
	Duration    int               `json:"duration"`
	Shuffle     bool              `json:"shuffle"`
	AutoSubmit  bool              `json:"auto_submit"`
	Questions   []models.Question `json:"questions,omitempty"`
}

// QuizListResponse wraps a paged quiz listing.
type QuizListResponse struct {
	Quizzes []*models.Quiz `json:"quizzes"`
	Total   int64          `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// ===== GROUP DTOS =====

// GroupResponse is the creator-facing group view.
type GroupResponse struct {
	*models.Group
}

// ===== SESSION DTOS =====

// SessionResponse describes a live or resumed exam session.
type SessionResponse struct {
	SessionID     uint                 `json:"session_id"`
	Quiz          *StudentQuizResponse `json:"quiz"`
	StartedAt     time.Time            `json:"started_at"`
	EndTime       time.Time            `json:"end_time"`
	TimeRemaining int                  `json:"time_remaining"` // seconds
	Answers       map[string]any       `json:"answers,omitempty"`
	Resumed       bool                 `json:"resumed"`
}

// SessionStatusResponse is the lightweight polling view of a session.
type SessionStatusResponse struct {
	SessionID     uint      `json:"session_id"`
	TimeRemaining int       `json:"time_remaining"`
	LastActivity  time.Time `json:"last_activity"`
	IsCompleted   bool      `json:"is_completed"`
	Expired       bool      `json:"expired"`
}

// MonitorEntry is one student's live progress in the creator monitor view.
type MonitorEntry struct {
	SessionID     uint      `json:"session_id"`
	StudentID     string    `json:"student_id"`
	StudentName   string    `json:"student_name"`
	StartedAt     time.Time `json:"started_at"`
	LastActivity  time.Time `json:"last_activity"`
	AnsweredCount int       `json:"answered_count"`
	TimeRemaining int       `json:"time_remaining"`
	Expired       bool      `json:"expired"`
}

// ===== GRADING DTOS =====

// SubmissionResponse is the grader-facing submission view.
type SubmissionResponse struct {
	*models.Submission
	ParsedAnswers []models.SubmittedAnswer `json:"parsed_answers"`
	StudentName   string                   `json:"student_name,omitempty"`
}

// SubmissionListResponse wraps a paged submission listing.
type SubmissionListResponse struct {
	Submissions []*models.Submission `json:"submissions"`
	Total       int64                `json:"total"`
}

// StudentResultResponse is the student's own view of a graded attempt,
// only exposed when the quiz's ShowResults flag allows it.
type StudentResultResponse struct {
	QuizID     uint     `json:"quiz_id"`
	QuizTitle  string   `json:"quiz_title"`
	Score      float64  `json:"score"`
	MaxScore   int      `json:"max_score"`
	Percentage float64  `json:"percentage"`
	IsGraded   bool     `json:"is_graded"`
	Feedback   *string  `json:"feedback,omitempty"`
}

// ===== ANALYTICS DTOS =====

// ScoreBucket is one fixed percentage band in a score distribution.
type ScoreBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TimeBucket is one fixed duration band in a completion-time distribution.
type TimeBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// QuizStatsResponse aggregates graded attempts for one quiz.
type QuizStatsResponse struct {
	QuizID            uint          `json:"quiz_id"`
	Attempts          int           `json:"attempts"`
	AverageScore      float64       `json:"average_score"`
	AveragePercentage float64       `json:"average_percentage"`
	HighestScore      float64       `json:"highest_score"`
	LowestScore       float64       `json:"lowest_score"`
	ScoreBuckets      []ScoreBucket `json:"score_buckets"`
	TimeBuckets       []TimeBucket  `json:"time_buckets"`
}

// GroupStatsResponse rolls up graded attempts across a group's assigned
// quizzes, counting only attempts by group members.
type GroupStatsResponse struct {
	GroupID           uint            `json:"group_id"`
	MemberCount       int             `json:"member_count"`
	QuizCount         int             `json:"quiz_count"`
	Attempts          int             `json:"attempts"`
	AveragePercentage float64         `json:"average_percentage"`
	Quizzes           []GroupQuizStat `json:"quizzes"`
}

// GroupQuizStat is one assigned quiz within a group rollup.
type GroupQuizStat struct {
	QuizID            uint    `json:"quiz_id"`
	Title             string  `json:"title"`
	Attempts          int     `json:"attempts"`
	AveragePercentage float64 `json:"average_percentage"`
	CompletionRate    float64 `json:"completion_rate"`
}

// TrendPoint is one day in the attempt trend.
type TrendPoint struct {
	Date     string  `json:"date"` // YYYY-MM-DD
	Attempts int     `json:"attempts"`
	Average  float64 `json:"average_percentage"`
}

// StudentStatsResponse aggregates a student's own graded history.
type StudentStatsResponse struct {
	StudentID         string  `json:"student_id"`
	Attempts          int     `json:"attempts"`
	AveragePercentage float64 `json:"average_percentage"`
	BestPercentage    float64 `json:"best_percentage"`
	TotalTimeSpent    int     `json:"total_time_spent"` // seconds
}

// ===== ADMIN DTOS =====

// UserListResponse wraps a paged user listing.
type UserListResponse struct {
	Users  []*models.User `json:"users"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// AuditListResponse wraps a paged audit log listing.
type AuditListResponse struct {
	Entries []*models.AuditLog `json:"entries"`
	Total   int64              `json:"total"`
}

// ===== BILLING DTOS =====

// CheckoutResponse carries the provider-hosted checkout URL.
type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// PortalResponse carries the provider-hosted billing portal URL.
type PortalResponse struct {
	PortalURL string `json:"portal_url"`
}

// ===== IMPORT/EXPORT DTOS =====

// ImportResult summarizes an xlsx question import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ===== SERVICE INTERFACES =====

// AuthService owns registration, login, token lifecycle, and profile
// self-service.
type AuthService interface {
	Register(ctx context.Context, req *validator.RegisterRequest) (*models.User, error)
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, req *validator.LoginRequest) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ResendVerification(ctx context.Context, email string) error
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, req *validator.ProfileUpdateRequest) (*models.User, error)
	ChangePassword(ctx context.Context, userID string, req *validator.PasswordChangeRequest) error
}

// GroupService owns group CRUD, enrollment, and quiz assignment.
type GroupService interface {
	Create(ctx context.Context, req *validator.GroupCreateRequest, creatorID string) (*GroupResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*GroupResponse, error)
	Update(ctx context.Context, id uint, req *validator.GroupUpdateRequest, userID string) (*GroupResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	ListByCreator(ctx context.Context, creatorID string) ([]*models.Group, error)

	Enroll(ctx context.Context, code string, studentID string) (*GroupResponse, error)
	RemoveMember(ctx context.Context, groupID uint, studentID string, actorID string) error
	ListMembers(ctx context.Context, groupID uint, userID string) ([]*models.GroupMember, error)
	ListStudentGroups(ctx context.Context, studentID string) ([]*models.Group, error)

	AssignQuiz(ctx context.Context, groupID, quizID uint, userID string) error
	UnassignQuiz(ctx context.Context, groupID, quizID uint, userID string) error
	ListGroupQuizzes(ctx context.Context, groupID uint, userID string) ([]*models.Quiz, error)
}

// QuizService owns quiz and question CRUD plus the availability check.
type QuizService interface {
	Create(ctx context.Context, req *validator.QuizCreateRequest, creatorID string) (*QuizResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*QuizResponse, error)
	Update(ctx context.Context, id uint, req *validator.QuizUpdateRequest, userID string) (*QuizResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, creatorID string, limit, offset int) (*QuizListResponse, error)
	ListForStudent(ctx context.Context, studentID string) ([]*models.Quiz, error)
	SetLive(ctx context.Context, id uint, live bool, userID string) error
	Availability(ctx context.Context, id uint) (*models.Availability, error)

	AddQuestion(ctx context.Context, quizID uint, req *validator.QuestionCreateRequest, userID string) (*models.Question, error)
	UpdateQuestion(ctx context.Context, quizID, questionID uint, req *validator.QuestionUpdateRequest, userID string) (*models.Question, error)
	DeleteQuestion(ctx context.Context, quizID, questionID uint, userID string) error
	ListQuestions(ctx context.Context, quizID uint, userID string) ([]*models.Question, error)
}

// SessionService owns the exam session lifecycle from authentication to
// submission.
type SessionService interface {
	Authenticate(ctx context.Context, quizID uint, studentID, password string) (*SessionResponse, error)
	SaveAnswer(ctx context.Context, sessionID uint, studentID string, req *validator.SaveAnswerRequest) error
	Status(ctx context.Context, sessionID uint, studentID string) (*SessionStatusResponse, error)
	Submit(ctx context.Context, sessionID uint, studentID string, req *validator.SubmitRequest) (*SubmissionResponse, error)

	Monitor(ctx context.Context, quizID uint, userID string) ([]*MonitorEntry, error)
}

// GradingService owns submission review, auto and manual grading.
type GradingService interface {
	GetSubmission(ctx context.Context, submissionID uint, userID string) (*SubmissionResponse, error)
	ListSubmissions(ctx context.Context, quizID uint, userID string, gradedOnly *bool, limit, offset int) (*SubmissionListResponse, error)
	GradeSubmission(ctx context.Context, submissionID uint, req *validator.GradeSubmissionRequest, graderID string) (*SubmissionResponse, error)
	StudentResult(ctx context.Context, quizID uint, studentID string) (*StudentResultResponse, error)
}

// AnalyticsService reads the snapshot projection.
type AnalyticsService interface {
	QuizStats(ctx context.Context, quizID uint, userID string) (*QuizStatsResponse, error)
	GroupStats(ctx context.Context, groupID uint, userID string) (*GroupStatsResponse, error)
	StudentStats(ctx context.Context, studentID string) (*StudentStatsResponse, error)
	CreatorTrend(ctx context.Context, creatorID string, days int) ([]TrendPoint, error)
}

// AdminService owns user administration and the audit log.
type AdminService interface {
	ListUsers(ctx context.Context, actorID string, filters AdminUserFilters) (*UserListResponse, error)
	Suspend(ctx context.Context, targetID, actorID, reason string) error
	Reactivate(ctx context.Context, targetID, actorID string) error
	ChangeRole(ctx context.Context, targetID string, role models.UserRole, actorID string) error
	OverridePlan(ctx context.Context, targetID string, plan models.SubscriptionPlan, actorID string) error
	ListAudit(ctx context.Context, actorID string, limit, offset int) (*AuditListResponse, error)
	PlatformMetrics(ctx context.Context, actorID string) (*PlatformMetricsResponse, error)
}

// PlatformMetricsResponse is the admin dashboard headline counts.
type PlatformMetricsResponse struct {
	TotalUsers       int64 `json:"total_users"`
	Creators         int64 `json:"creators"`
	Students         int64 `json:"students"`
	SuspendedUsers   int64 `json:"suspended_users"`
	TotalQuizzes     int64 `json:"total_quizzes"`
	LiveQuizzes      int64 `json:"live_quizzes"`
	TotalSubmissions int64 `json:"total_submissions"`
	UngradedPending  int64 `json:"ungraded_pending"`
}

// AdminUserFilters narrows the admin user listing.
type AdminUserFilters struct {
	Role      *models.UserRole
	Suspended *bool
	Search    *string
	Limit     int
	Offset    int
}

// BillingService bridges to the payment provider.
type BillingService interface {
	CreateCheckout(ctx context.Context, userID string, plan models.SubscriptionPlan) (*CheckoutResponse, error)
	CreatePortal(ctx context.Context, userID string) (*PortalResponse, error)
	CancelSubscription(ctx context.Context, userID string) error
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// ImportExportService moves questions in and out of xlsx workbooks.
type ImportExportService interface {
	ImportQuestions(ctx context.Context, quizID uint, userID string, data []byte) (*ImportResult, error)
	ExportQuestions(ctx context.Context, quizID uint, userID string) ([]byte, error)
	ExportResults(ctx context.Context, quizID uint, userID string) ([]byte, error)
}

// ServiceManager wires all services together.
type ServiceManager interface {
	Auth() AuthService
	Group() GroupService
	Quiz() QuizService
	Session() SessionService
	Grading() GradingService
	Analytics() AnalyticsService
	Admin() AdminService
	Billing() BillingService
	ImportExport() ImportExportService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
