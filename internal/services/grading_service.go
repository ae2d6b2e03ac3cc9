package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/events"
	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/repositories"
	"github.com/examstack/exam-platform/internal/validator"
)

type gradingService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewGradingService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) GradingService {
	return &gradingService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		publisher: publisher,
	}
}

func (s *gradingService) GetSubmission(ctx context.Context, submissionID uint, userID string) (*SubmissionResponse, error) {
	submission, _, err := s.getGradableSubmission(ctx, submissionID, userID)
	if err != nil {
		return nil, err
	}
	return buildSubmissionResponse(submission)
}

func (s *gradingService) ListSubmissions(ctx context.Context, quizID uint, userID string, gradedOnly *bool, limit, offset int) (*SubmissionListResponse, error) {
	if _, err := s.getOwnedQuiz(ctx, quizID, userID, "list_submissions"); err != nil {
		return nil, err
	}

	filters := repositories.SubmissionFilters{
		QuizID:   &quizID,
		IsGraded: gradedOnly,
		SortBy:   "submitted_at",
		Limit:    limit,
		Offset:   offset,
	}
	submissions, total, err := s.repo.Submission().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return &SubmissionListResponse{Submissions: submissions, Total: total}, nil
}

// GradeSubmission merges a grading pass into the submission. Answers the
// pass does not mention keep their existing scores. Any pass flips the
// graded flag, even one that leaves some answers unscored; unscored
// answers contribute nothing to the total.
func (s *gradingService) GradeSubmission(ctx context.Context, submissionID uint, req *validator.GradeSubmissionRequest, graderID string) (*SubmissionResponse, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	submission, quiz, err := s.getGradableSubmission(ctx, submissionID, graderID)
	if err != nil {
		return nil, err
	}

	answers, err := unmarshalSubmittedAnswers(submission.Answers)
	if err != nil {
		return nil, err
	}

	byQuestion := make(map[uint]*models.SubmittedAnswer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	for _, grade := range req.Answers {
		answer, ok := byQuestion[grade.QuestionID]
		if !ok {
			return nil, ErrQuestionNotFound
		}
		score := grade.Score
		answer.Score = &score
		if grade.Feedback != "" {
			feedback := grade.Feedback
			answer.Feedback = &feedback
		}
		if grade.IsCorrect != nil {
			answer.IsCorrect = grade.IsCorrect
		}
	}

	totalScore := 0.0
	allGraded := true
	for _, answer := range answers {
		if answer.Score == nil {
			allGraded = false
			continue
		}
		totalScore += *answer.Score
	}

	now := time.Now()
	newlyGraded := !submission.IsGraded

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		answersJSON, err := marshalSubmittedAnswers(answers)
		if err != nil {
			return err
		}
		submission.Answers = answersJSON
		submission.TotalScore = totalScore
		submission.GradedBy = &graderID
		if req.Feedback != "" {
			feedback := req.Feedback
			submission.Feedback = &feedback
		}
		submission.IsGraded = true
		submission.GradedAt = &now

		if err := txRepo.Submission().Update(ctx, nil, submission); err != nil {
			return fmt.Errorf("failed to update submission: %w", err)
		}

		// Snapshot is write-once: only the first grading pass creates it.
		if newlyGraded {
			if _, err := txRepo.Snapshot().GetBySubmission(ctx, nil, submission.ID); err == nil {
				return nil
			} else if !repositories.IsNotFoundError(err) {
				return fmt.Errorf("failed to check snapshot: %w", err)
			}

			session, err := txRepo.Session().GetLatestByQuizAndStudent(ctx, nil, submission.QuizID, submission.StudentID)
			if err != nil {
				return fmt.Errorf("failed to load session for snapshot: %w", err)
			}

			fullQuiz, err := txRepo.Quiz().GetByIDWithQuestions(ctx, nil, submission.QuizID)
			if err != nil {
				return fmt.Errorf("failed to load quiz for snapshot: %w", err)
			}

			snapshot, err := buildSnapshot(submission, fullQuiz, session, answers, nil)
			if err != nil {
				return err
			}
			if err := txRepo.Snapshot().Create(ctx, nil, snapshot); err != nil {
				return fmt.Errorf("failed to create snapshot: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if newlyGraded {
		s.publishEvent(ctx, events.NewEvent(events.TypeSubmissionGraded, events.GradingEvent{
			SubmissionID: submission.ID,
			QuizID:       quiz.ID,
			StudentID:    submission.StudentID,
			TotalScore:   totalScore,
			GradedBy:     graderID,
		}))
	}

	s.logger.Info("Submission graded", "submission_id", submission.ID, "grader_id", graderID, "complete", allGraded)
	return buildSubmissionResponse(submission)
}

// StudentResult is the student's own view of their attempt, gated by the
// quiz's ShowResults flag.
func (s *gradingService) StudentResult(ctx context.Context, quizID uint, studentID string) (*StudentResultResponse, error) {
	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to load quiz: %w", err)
	}
	if !quiz.ShowResults {
		return nil, NewPermissionError(studentID, quizID, "quiz", "view_results", "results are not published for this quiz")
	}

	submission, err := s.repo.Submission().GetByQuizAndStudent(ctx, nil, quizID, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}

	maxScore := 0
	for _, question := range quiz.Questions {
		maxScore += question.Points
	}
	percentage := 0.0
	if maxScore > 0 && submission.IsGraded {
		percentage = submission.TotalScore / float64(maxScore) * 100
	}

	return &StudentResultResponse{
		QuizID:     quizID,
		QuizTitle:  quiz.Title,
		Score:      submission.TotalScore,
		MaxScore:   maxScore,
		Percentage: percentage,
		IsGraded:   submission.IsGraded,
		Feedback:   submission.Feedback,
	}, nil
}

// ===== HELPERS =====

func (s *gradingService) getOwnedQuiz(ctx context.Context, quizID uint, userID, action string) (*models.Quiz, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to load quiz: %w", err)
	}
	if quiz.CreatedBy != userID {
		return nil, NewPermissionError(userID, quizID, "quiz", action, "not the quiz owner")
	}
	return quiz, nil
}

func (s *gradingService) getGradableSubmission(ctx context.Context, submissionID uint, userID string) (*models.Submission, *models.Quiz, error) {
	submission, err := s.repo.Submission().GetByID(ctx, nil, submissionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrSubmissionNotFound
		}
		return nil, nil, fmt.Errorf("failed to load submission: %w", err)
	}

	quiz, err := s.getOwnedQuiz(ctx, submission.QuizID, userID, "grade")
	if err != nil {
		return nil, nil, err
	}
	return submission, quiz, nil
}

func buildSubmissionResponse(submission *models.Submission) (*SubmissionResponse, error) {
	answers, err := unmarshalSubmittedAnswers(submission.Answers)
	if err != nil {
		return nil, err
	}
	return &SubmissionResponse{
		Submission:    submission,
		ParsedAnswers: answers,
		StudentName:   submission.Student.FullName,
	}, nil
}

func (s *gradingService) publishEvent(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "error", err, "event_type", event.Type)
	}
}
