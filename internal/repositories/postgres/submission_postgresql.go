package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/repositories"
)

type SubmissionPostgreSQL struct {
	db *gorm.DB
}

func NewSubmissionPostgreSQL(db *gorm.DB) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{db: db}
}

func (s *SubmissionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *SubmissionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).Create(submission).Error
}

func (s *SubmissionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	db := s.getDB(tx)
	var submission models.Submission
	if err := db.WithContext(ctx).Preload("Student").First(&submission, id).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetByQuizAndStudent(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.Submission, error) {
	db := s.getDB(tx)
	var submission models.Submission
	if err := db.WithContext(ctx).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).Save(submission).Error
}

func (s *SubmissionPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	db := s.getDB(tx)
	var submissions []*models.Submission
	var total int64

	query := db.WithContext(ctx).Model(&models.Submission{})
	query = applySubmissionFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Preload("Student").Find(&submissions).Error; err != nil {
		return nil, 0, err
	}
	return submissions, total, nil
}

type SnapshotPostgreSQL struct {
	db *gorm.DB
}

func NewSnapshotPostgreSQL(db *gorm.DB) repositories.SnapshotRepository {
	return &SnapshotPostgreSQL{db: db}
}

func (s *SnapshotPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *SnapshotPostgreSQL) Create(ctx context.Context, tx *gorm.DB, snapshot *models.AttemptSnapshot) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).Create(snapshot).Error
}

func (s *SnapshotPostgreSQL) GetBySubmission(ctx context.Context, tx *gorm.DB, submissionID uint) (*models.AttemptSnapshot, error) {
	db := s.getDB(tx)
	var snapshot models.AttemptSnapshot
	if err := db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		First(&snapshot).Error; err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *SnapshotPostgreSQL) ListByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.AttemptSnapshot, error) {
	db := s.getDB(tx)
	var snapshots []*models.AttemptSnapshot
	if err := db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("created_at ASC").
		Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (s *SnapshotPostgreSQL) ListByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.AttemptSnapshot, error) {
	db := s.getDB(tx)
	var snapshots []*models.AttemptSnapshot
	if err := db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (s *SnapshotPostgreSQL) ListByCreatorSince(ctx context.Context, tx *gorm.DB, creatorID string, since time.Time) ([]*models.AttemptSnapshot, error) {
	db := s.getDB(tx)
	var snapshots []*models.AttemptSnapshot
	if err := db.WithContext(ctx).
		Joins("JOIN quizzes ON quizzes.id = attempt_snapshots.quiz_id").
		Where("quizzes.created_by = ? AND attempt_snapshots.created_at >= ?", creatorID, since).
		Order("attempt_snapshots.created_at ASC").
		Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}
