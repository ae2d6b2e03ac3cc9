package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/models"
)

// ===== FILTERS =====

// UserFilters narrows user listings.
type UserFilters struct {
	Role      *models.UserRole
	Plan      *models.SubscriptionPlan
	Suspended *bool
	Search    *string // matches name or email
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// QuizFilters narrows quiz listings.
type QuizFilters struct {
	CreatedBy  *string
	IsLive     *bool
	Visibility *models.QuizVisibility
	DateFrom   *time.Time
	DateTo     *time.Time
	SortBy     string
	SortOrder  string
	Limit      int
	Offset     int
}

// SubmissionFilters narrows submission listings.
type SubmissionFilters struct {
	QuizID    *uint
	StudentID *string
	IsGraded  *bool
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// AuditFilters narrows audit log listings.
type AuditFilters struct {
	ActorID    *string
	Action     *models.AuditAction
	TargetType *string
	DateFrom   *time.Time
	DateTo     *time.Time
	Limit      int
	Offset     int
}

// ===== IDENTITY DOMAIN =====

type UserRepository interface {
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error)
	GetByVerificationToken(ctx context.Context, tx *gorm.DB, token string) (*models.User, error)
	GetByResetToken(ctx context.Context, tx *gorm.DB, token string) (*models.User, error)
	GetByStripeCustomerID(ctx context.Context, tx *gorm.DB, customerID string) (*models.User, error)
	Update(ctx context.Context, tx *gorm.DB, user *models.User) error
	Delete(ctx context.Context, tx *gorm.DB, id string) error
	List(ctx context.Context, tx *gorm.DB, filters UserFilters) ([]*models.User, int64, error)

	// BumpTokenVersion invalidates every outstanding refresh token for the
	// user.
	BumpTokenVersion(ctx context.Context, tx *gorm.DB, id string) error
}

// ===== GROUP DOMAIN =====

type GroupRepository interface {
	Create(ctx context.Context, tx *gorm.DB, group *models.Group) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Group, error)
	GetByCode(ctx context.Context, tx *gorm.DB, code string) (*models.Group, error)
	CodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error)
	Update(ctx context.Context, tx *gorm.DB, group *models.Group) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	ListByCreator(ctx context.Context, tx *gorm.DB, creatorID string) ([]*models.Group, error)

	// Membership
	AddMember(ctx context.Context, tx *gorm.DB, member *models.GroupMember) error
	RemoveMember(ctx context.Context, tx *gorm.DB, groupID uint, studentID string) error
	IsMember(ctx context.Context, tx *gorm.DB, groupID uint, studentID string) (bool, error)
	ListMembers(ctx context.Context, tx *gorm.DB, groupID uint) ([]*models.GroupMember, error)
	ListGroupsForStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.Group, error)

	// Quiz assignment
	AssignQuiz(ctx context.Context, tx *gorm.DB, groupID, quizID uint) error
	UnassignQuiz(ctx context.Context, tx *gorm.DB, groupID, quizID uint) error
	ListQuizIDs(ctx context.Context, tx *gorm.DB, groupID uint) ([]uint, error)
	ListGroupIDsForQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]uint, error)

	// StudentHasQuizAccess reports whether the student belongs to at least
	// one group the quiz is assigned to.
	StudentHasQuizAccess(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (bool, error)
}

// ===== QUIZ DOMAIN =====

type QuizRepository interface {
	Create(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error)
	Update(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters QuizFilters) ([]*models.Quiz, int64, error)
	ListForStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.Quiz, error)
	SetLive(ctx context.Context, tx *gorm.DB, id uint, live bool) error
}

type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	ListByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.Question, error)
	MaxOrder(ctx context.Context, tx *gorm.DB, quizID uint) (int, error)
}

// ===== EXAM DOMAIN =====

type SessionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamSession, error)
	GetIncomplete(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.ExamSession, error)
	GetLatestByQuizAndStudent(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.ExamSession, error)
	Update(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error
	ListByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.ExamSession, error)
	ListIncompleteByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.ExamSession, error)
	CountByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) (int64, error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error)
	GetByQuizAndStudent(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.Submission, error)
	Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error
	List(ctx context.Context, tx *gorm.DB, filters SubmissionFilters) ([]*models.Submission, int64, error)
}

type SnapshotRepository interface {
	Create(ctx context.Context, tx *gorm.DB, snapshot *models.AttemptSnapshot) error
	GetBySubmission(ctx context.Context, tx *gorm.DB, submissionID uint) (*models.AttemptSnapshot, error)
	ListByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.AttemptSnapshot, error)
	ListByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.AttemptSnapshot, error)

	// ListByCreatorSince returns snapshots for quizzes owned by the creator
	// submitted at or after the cutoff.
	ListByCreatorSince(ctx context.Context, tx *gorm.DB, creatorID string, since time.Time) ([]*models.AttemptSnapshot, error)
}

// ===== AUDIT DOMAIN =====

type AuditRepository interface {
	Create(ctx context.Context, tx *gorm.DB, entry *models.AuditLog) error
	List(ctx context.Context, tx *gorm.DB, filters AuditFilters) ([]*models.AuditLog, int64, error)
}
