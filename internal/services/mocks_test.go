package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockRepository implements repositories.Repository in memory. Every method
// defaults to a zero result; tests override behavior through the Fn fields
// on the sub-repository mocks.
type MockRepository struct {
	UserRepo       *MockUserRepository
	GroupRepo      *MockGroupRepository
	QuizRepo       *MockQuizRepository
	QuestionRepo   *MockQuestionRepository
	SessionRepo    *MockSessionRepository
	SubmissionRepo *MockSubmissionRepository
	SnapshotRepo   *MockSnapshotRepository
	AuditRepo      *MockAuditRepository
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		UserRepo:       &MockUserRepository{},
		GroupRepo:      &MockGroupRepository{},
		QuizRepo:       &MockQuizRepository{},
		QuestionRepo:   &MockQuestionRepository{},
		SessionRepo:    &MockSessionRepository{},
		SubmissionRepo: &MockSubmissionRepository{},
		SnapshotRepo:   &MockSnapshotRepository{},
		AuditRepo:      &MockAuditRepository{},
	}
}

func (m *MockRepository) User() repositories.UserRepository { return m.UserRepo }

func (m *MockRepository) Group() repositories.GroupRepository { return m.GroupRepo }

func (m *MockRepository) Quiz() repositories.QuizRepository { return m.QuizRepo }

func (m *MockRepository) Question() repositories.QuestionRepository { return m.QuestionRepo }

func (m *MockRepository) Session() repositories.SessionRepository { return m.SessionRepo }

func (m *MockRepository) Submission() repositories.SubmissionRepository { return m.SubmissionRepo }

func (m *MockRepository) Snapshot() repositories.SnapshotRepository { return m.SnapshotRepo }

func (m *MockRepository) Audit() repositories.AuditRepository { return m.AuditRepo }

func (m *MockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *MockRepository) Ping(ctx context.Context) error { return nil }
func (m *MockRepository) Close() error                   { return nil }

// ===== USER =====

type MockUserRepository struct {
	CreateFn                 func(user *models.User) error
	GetByIDFn                func(id string) (*models.User, error)
	GetByEmailFn             func(email string) (*models.User, error)
	GetByVerificationTokenFn func(token string) (*models.User, error)
	GetByResetTokenFn        func(token string) (*models.User, error)
	UpdateFn                 func(user *models.User) error
	BumpTokenVersionFn       func(id string) error
	ListFn                   func(filters repositories.UserFilters) ([]*models.User, int64, error)
}

func (m *MockUserRepository) Create(ctx context.Context, tx *gorm.DB, user *models.User) error {
	if m.CreateFn != nil {
		return m.CreateFn(user)
	}
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error) {
	if m.GetByEmailFn != nil {
		return m.GetByEmailFn(email)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockUserRepository) GetByVerificationToken(ctx context.Context, tx *gorm.DB, token string) (*models.User, error) {
	if m.GetByVerificationTokenFn != nil {
		return m.GetByVerificationTokenFn(token)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockUserRepository) GetByResetToken(ctx context.Context, tx *gorm.DB, token string) (*models.User, error) {
	if m.GetByResetTokenFn != nil {
		return m.GetByResetTokenFn(token)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockUserRepository) GetByStripeCustomerID(ctx context.Context, tx *gorm.DB, customerID string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, tx *gorm.DB, user *models.User) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(user)
	}
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, tx *gorm.DB, id string) error { return nil }

func (m *MockUserRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.UserFilters) ([]*models.User, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(filters)
	}
	return nil, 0, nil
}

func (m *MockUserRepository) BumpTokenVersion(ctx context.Context, tx *gorm.DB, id string) error {
	if m.BumpTokenVersionFn != nil {
		return m.BumpTokenVersionFn(id)
	}
	return nil
}

// ===== GROUP =====

type MockGroupRepository struct {
	CodeExistsFn           func(code string) (bool, error)
	GetByIDFn              func(id uint) (*models.Group, error)
	GetByCodeFn            func(code string) (*models.Group, error)
	IsMemberFn             func(groupID uint, studentID string) (bool, error)
	AddMemberFn            func(member *models.GroupMember) error
	ListMembersFn          func(groupID uint) ([]*models.GroupMember, error)
	ListQuizIDsFn          func(groupID uint) ([]uint, error)
	StudentHasQuizAccessFn func(quizID uint, studentID string) (bool, error)
}

func (m *MockGroupRepository) Create(ctx context.Context, tx *gorm.DB, group *models.Group) error {
	return nil
}

func (m *MockGroupRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Group, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockGroupRepository) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*models.Group, error) {
	if m.GetByCodeFn != nil {
		return m.GetByCodeFn(code)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockGroupRepository) CodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	if m.CodeExistsFn != nil {
		return m.CodeExistsFn(code)
	}
	return false, nil
}

func (m *MockGroupRepository) Update(ctx context.Context, tx *gorm.DB, group *models.Group) error {
	return nil
}

func (m *MockGroupRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error { return nil }

func (m *MockGroupRepository) ListByCreator(ctx context.Context, tx *gorm.DB, creatorID string) ([]*models.Group, error) {
	return nil, nil
}

func (m *MockGroupRepository) AddMember(ctx context.Context, tx *gorm.DB, member *models.GroupMember) error {
	if m.AddMemberFn != nil {
		return m.AddMemberFn(member)
	}
	return nil
}

func (m *MockGroupRepository) RemoveMember(ctx context.Context, tx *gorm.DB, groupID uint, studentID string) error {
	return nil
}

func (m *MockGroupRepository) IsMember(ctx context.Context, tx *gorm.DB, groupID uint, studentID string) (bool, error) {
	if m.IsMemberFn != nil {
		return m.IsMemberFn(groupID, studentID)
	}
	return false, nil
}

func (m *MockGroupRepository) ListMembers(ctx context.Context, tx *gorm.DB, groupID uint) ([]*models.GroupMember, error) {
	if m.ListMembersFn != nil {
		return m.ListMembersFn(groupID)
	}
	return nil, nil
}

func (m *MockGroupRepository) ListGroupsForStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.Group, error) {
	return nil, nil
}

func (m *MockGroupRepository) AssignQuiz(ctx context.Context, tx *gorm.DB, groupID, quizID uint) error {
	return nil
}

func (m *MockGroupRepository) UnassignQuiz(ctx context.Context, tx *gorm.DB, groupID, quizID uint) error {
	return nil
}

func (m *MockGroupRepository) ListQuizIDs(ctx context.Context, tx *gorm.DB, groupID uint) ([]uint, error) {
	if m.ListQuizIDsFn != nil {
		return m.ListQuizIDsFn(groupID)
	}
	return nil, nil
}

func (m *MockGroupRepository) ListGroupIDsForQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]uint, error) {
	return nil, nil
}

func (m *MockGroupRepository) StudentHasQuizAccess(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (bool, error) {
	if m.StudentHasQuizAccessFn != nil {
		return m.StudentHasQuizAccessFn(quizID, studentID)
	}
	return false, nil
}

// ===== QUIZ =====

type MockQuizRepository struct {
	GetByIDFn              func(id uint) (*models.Quiz, error)
	GetByIDWithQuestionsFn func(id uint) (*models.Quiz, error)
	ListFn                 func(filters repositories.QuizFilters) ([]*models.Quiz, int64, error)
}

func (m *MockQuizRepository) Create(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error {
	return nil
}

func (m *MockQuizRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockQuizRepository) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	if m.GetByIDWithQuestionsFn != nil {
		return m.GetByIDWithQuestionsFn(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockQuizRepository) Update(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error {
	return nil
}

func (m *MockQuizRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error { return nil }

func (m *MockQuizRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(filters)
	}
	return nil, 0, nil
}

func (m *MockQuizRepository) ListForStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.Quiz, error) {
	return nil, nil
}

func (m *MockQuizRepository) SetLive(ctx context.Context, tx *gorm.DB, id uint, live bool) error {
	return nil
}

// ===== QUESTION =====

type MockQuestionRepository struct {
	CreateBatchFn func(questions []*models.Question) error
	ListByQuizFn  func(quizID uint) ([]*models.Question, error)
	MaxOrderFn    func(quizID uint) (int, error)
}

func (m *MockQuestionRepository) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	return nil
}

func (m *MockQuestionRepository) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if m.CreateBatchFn != nil {
		return m.CreateBatchFn(questions)
	}
	return nil
}

func (m *MockQuestionRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *MockQuestionRepository) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	return nil
}

func (m *MockQuestionRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error { return nil }

func (m *MockQuestionRepository) ListByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.Question, error) {
	if m.ListByQuizFn != nil {
		return m.ListByQuizFn(quizID)
	}
	return nil, nil
}

func (m *MockQuestionRepository) MaxOrder(ctx context.Context, tx *gorm.DB, quizID uint) (int, error) {
	if m.MaxOrderFn != nil {
		return m.MaxOrderFn(quizID)
	}
	return 0, nil
}

// ===== SESSION =====

type MockSessionRepository struct {
	CreateFn                    func(session *models.ExamSession) error
	GetByIDFn                   func(id uint) (*models.ExamSession, error)
	GetIncompleteFn             func(quizID uint, studentID string) (*models.ExamSession, error)
	GetLatestByQuizAndStudentFn func(quizID uint, studentID string) (*models.ExamSession, error)
	UpdateFn                    func(session *models.ExamSession) error
}

func (m *MockSessionRepository) Create(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error {
	if m.CreateFn != nil {
		return m.CreateFn(session)
	}
	return nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamSession, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockSessionRepository) GetIncomplete(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.ExamSession, error) {
	if m.GetIncompleteFn != nil {
		return m.GetIncompleteFn(quizID, studentID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockSessionRepository) GetLatestByQuizAndStudent(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.ExamSession, error) {
	if m.GetLatestByQuizAndStudentFn != nil {
		return m.GetLatestByQuizAndStudentFn(quizID, studentID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockSessionRepository) Update(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(session)
	}
	return nil
}

func (m *MockSessionRepository) ListByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.ExamSession, error) {
	return nil, nil
}

func (m *MockSessionRepository) ListIncompleteByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.ExamSession, error) {
	return nil, nil
}

func (m *MockSessionRepository) CountByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) (int64, error) {
	return 0, nil
}

// ===== SUBMISSION =====

type MockSubmissionRepository struct {
	CreateFn              func(submission *models.Submission) error
	GetByIDFn             func(id uint) (*models.Submission, error)
	GetByQuizAndStudentFn func(quizID uint, studentID string) (*models.Submission, error)
	UpdateFn              func(submission *models.Submission) error
	ListFn                func(filters repositories.SubmissionFilters) ([]*models.Submission, int64, error)
}

func (m *MockSubmissionRepository) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	if m.CreateFn != nil {
		return m.CreateFn(submission)
	}
	return nil
}

func (m *MockSubmissionRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockSubmissionRepository) GetByQuizAndStudent(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.Submission, error) {
	if m.GetByQuizAndStudentFn != nil {
		return m.GetByQuizAndStudentFn(quizID, studentID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockSubmissionRepository) Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(submission)
	}
	return nil
}

func (m *MockSubmissionRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(filters)
	}
	return nil, 0, nil
}

// ===== SNAPSHOT =====

type MockSnapshotRepository struct {
	CreateFn             func(snapshot *models.AttemptSnapshot) error
	ListByQuizFn         func(quizID uint) ([]*models.AttemptSnapshot, error)
	ListByStudentFn      func(studentID string) ([]*models.AttemptSnapshot, error)
	ListByCreatorSinceFn func(creatorID string, since time.Time) ([]*models.AttemptSnapshot, error)
}

func (m *MockSnapshotRepository) Create(ctx context.Context, tx *gorm.DB, snapshot *models.AttemptSnapshot) error {
	if m.CreateFn != nil {
		return m.CreateFn(snapshot)
	}
	return nil
}

func (m *MockSnapshotRepository) GetBySubmission(ctx context.Context, tx *gorm.DB, submissionID uint) (*models.AttemptSnapshot, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *MockSnapshotRepository) ListByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.AttemptSnapshot, error) {
	if m.ListByQuizFn != nil {
		return m.ListByQuizFn(quizID)
	}
	return nil, nil
}

func (m *MockSnapshotRepository) ListByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.AttemptSnapshot, error) {
	if m.ListByStudentFn != nil {
		return m.ListByStudentFn(studentID)
	}
	return nil, nil
}

func (m *MockSnapshotRepository) ListByCreatorSince(ctx context.Context, tx *gorm.DB, creatorID string, since time.Time) ([]*models.AttemptSnapshot, error) {
	if m.ListByCreatorSinceFn != nil {
		return m.ListByCreatorSinceFn(creatorID, since)
	}
	return nil, nil
}

// ===== AUDIT =====

type MockAuditRepository struct {
	Entries []*models.AuditLog
	ListFn  func(filters repositories.AuditFilters) ([]*models.AuditLog, int64, error)
}

func (m *MockAuditRepository) Create(ctx context.Context, tx *gorm.DB, entry *models.AuditLog) error {
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockAuditRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.AuditFilters) ([]*models.AuditLog, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(filters)
	}
	return m.Entries, int64(len(m.Entries)), nil
}
