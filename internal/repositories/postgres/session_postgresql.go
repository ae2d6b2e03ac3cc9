package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/repositories"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *SessionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).Create(session).Error
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamSession, error) {
	db := s.getDB(tx)
	var session models.ExamSession
	if err := db.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// GetIncomplete returns the single incomplete session for the pair, if any.
// The partial unique index guarantees at most one row matches.
func (s *SessionPostgreSQL) GetIncomplete(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.ExamSession, error) {
	db := s.getDB(tx)
	var session models.ExamSession
	if err := db.WithContext(ctx).
		Where("quiz_id = ? AND student_id = ? AND is_completed = ?", quizID, studentID, false).
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetLatestByQuizAndStudent(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.ExamSession, error) {
	db := s.getDB(tx)
	var session models.ExamSession
	if err := db.WithContext(ctx).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Order("started_at DESC").
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).Save(session).Error
}

func (s *SessionPostgreSQL) ListByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.ExamSession, error) {
	db := s.getDB(tx)
	var sessions []*models.ExamSession
	if err := db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("started_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *SessionPostgreSQL) ListIncompleteByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.ExamSession, error) {
	db := s.getDB(tx)
	var sessions []*models.ExamSession
	if err := db.WithContext(ctx).
		Where("quiz_id = ? AND is_completed = ?", quizID, false).
		Preload("Student").
		Order("started_at ASC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *SessionPostgreSQL) CountByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) (int64, error) {
	db := s.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.ExamSession{}).
		Where("quiz_id = ?", quizID).
		Count(&count).Error
	return count, err
}
