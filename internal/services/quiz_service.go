package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/auth"
	"github.com/examstack/exam-platform/internal/events"
	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/repositories"
	"github.com/examstack/exam-platform/internal/validator"
)

type quizService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewQuizService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) QuizService {
	return &quizService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		publisher: publisher,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *quizService) Create(ctx context.Context, req *validator.QuizCreateRequest, creatorID string) (*QuizResponse, error) {
	s.logger.Info("Creating quiz", "creator_id", creatorID, "title", req.Title)

	if errs := s.validator.ValidateQuizCreate(req); len(errs) > 0 {
		return nil, errs
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash quiz password: %w", err)
	}

	quiz := &models.Quiz{
		Title:        req.Title,
		Description:  req.Description,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Duration:     req.Duration,
		PasswordHash: hash,
		Visibility:   models.VisibilityPrivate,
		AutoSubmit:   true,
		CreatedBy:    creatorID,
	}
	if req.Visibility != "" {
		quiz.Visibility = req.Visibility
	}
	if req.Settings != nil {
		applyQuizSettings(quiz, req.Settings)
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Quiz().Create(ctx, nil, quiz); err != nil {
			return fmt.Errorf("failed to create quiz: %w", err)
		}

		if len(req.Questions) > 0 {
			questions := make([]*models.Question, 0, len(req.Questions))
			for i, qr := range req.Questions {
				order := qr.Order
				if order == 0 {
					order = i + 1
				}
				question, err := buildQuestion(quiz.ID, &qr, order)
				if err != nil {
					return err
				}
				questions = append(questions, question)
			}
			if err := txRepo.Question().CreateBatch(ctx, nil, questions); err != nil {
				return fmt.Errorf("failed to create questions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Quiz created", "quiz_id", quiz.ID)
	return s.GetByID(ctx, quiz.ID, creatorID)
}

func (s *quizService) GetByID(ctx context.Context, id uint, userID string) (*QuizResponse, error) {
	quiz, err := s.getOwnedQuiz(ctx, id, userID, "read")
	if err != nil {
		return nil, err
	}

	full, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, quiz.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load quiz questions: %w", err)
	}

	groupIDs, err := s.repo.Group().ListGroupIDsForQuiz(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list quiz groups: %w", err)
	}

	return &QuizResponse{Quiz: full, GroupIDs: groupIDs}, nil
}

func (s *quizService) Update(ctx context.Context, id uint, req *validator.QuizUpdateRequest, userID string) (*QuizResponse, error) {
	quiz, err := s.getOwnedQuiz(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}

	if errs := s.validator.ValidateQuizUpdate(req, quiz); len(errs) > 0 {
		return nil, errs
	}

	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.StartTime != nil {
		quiz.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		quiz.EndTime = *req.EndTime
	}
	if req.Duration != nil {
		quiz.Duration = *req.Duration
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash quiz password: %w", err)
		}
		quiz.PasswordHash = hash
	}
	if req.IsLive != nil {
		quiz.IsLive = *req.IsLive
	}
	if req.Visibility != nil {
		quiz.Visibility = *req.Visibility
	}
	if req.Settings != nil {
		applyQuizSettings(quiz, req.Settings)
	}

	if err := s.repo.Quiz().Update(ctx, nil, quiz); err != nil {
		return nil, fmt.Errorf("failed to update quiz: %w", err)
	}
	return s.GetByID(ctx, id, userID)
}

func (s *quizService) Delete(ctx context.Context, id uint, userID string) error {
	if _, err := s.getOwnedQuiz(ctx, id, userID, "delete"); err != nil {
		return err
	}

	if err := s.repo.Quiz().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}

	s.publishEvent(ctx, events.NewEvent(events.TypeQuizDeleted, events.QuizEvent{QuizID: id, CreatedBy: userID}))
	s.logger.Info("Quiz deleted", "quiz_id", id, "user_id", userID)
	return nil
}

func (s *quizService) List(ctx context.Context, creatorID string, limit, offset int) (*QuizListResponse, error) {
	filters := repositories.QuizFilters{
		CreatedBy: &creatorID,
		Limit:     limit,
		Offset:    offset,
	}
	quizzes, total, err := s.repo.Quiz().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	return &QuizListResponse{Quizzes: quizzes, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *quizService) ListForStudent(ctx context.Context, studentID string) ([]*models.Quiz, error) {
	quizzes, err := s.repo.Quiz().ListForStudent(ctx, nil, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list student quizzes: %w", err)
	}
	return quizzes, nil
}

func (s *quizService) SetLive(ctx context.Context, id uint, live bool, userID string) error {
	quiz, err := s.getOwnedQuiz(ctx, id, userID, "set_live")
	if err != nil {
		return err
	}

	if live {
		// Publishing before the window opens is fine; publishing a quiz
		// whose window already closed is not.
		if time.Now().After(quiz.EndTime) {
			return NewBusinessRuleError("quiz_publish", "availability window has already ended")
		}

		questions, err := s.repo.Question().ListByQuiz(ctx, nil, id)
		if err != nil {
			return fmt.Errorf("failed to count questions: %w", err)
		}
		if len(questions) == 0 {
			return NewBusinessRuleError("quiz_publish", "quiz must have at least one question before going live")
		}
	}

	if err := s.repo.Quiz().SetLive(ctx, nil, id, live); err != nil {
		return fmt.Errorf("failed to set live flag: %w", err)
	}

	if live {
		s.publishEvent(ctx, events.NewEvent(events.TypeQuizPublished, events.QuizEvent{
			QuizID:    quiz.ID,
			Title:     quiz.Title,
			CreatedBy: quiz.CreatedBy,
			StartTime: quiz.StartTime,
			EndTime:   quiz.EndTime,
		}))
	}
	return nil
}

// Availability is public: no authentication and no ownership check. It only
// exposes the live-window state.
func (s *quizService) Availability(ctx context.Context, id uint) (*models.Availability, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to load quiz: %w", err)
	}
	return checkAvailability(quiz, time.Now()), nil
}

// ===== QUESTION OPERATIONS =====

func (s *quizService) AddQuestion(ctx context.Context, quizID uint, req *validator.QuestionCreateRequest, userID string) (*models.Question, error) {
	if _, err := s.getOwnedQuiz(ctx, quizID, userID, "add_question"); err != nil {
		return nil, err
	}
	if errs := s.validator.ValidateQuestionCreate(req); len(errs) > 0 {
		return nil, errs
	}

	order := req.Order
	if order == 0 {
		max, err := s.repo.Question().MaxOrder(ctx, nil, quizID)
		if err != nil {
			return nil, fmt.Errorf("failed to get question order: %w", err)
		}
		order = max + 1
	}

	question, err := buildQuestion(quizID, req, order)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Question().Create(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return question, nil
}

func (s *quizService) UpdateQuestion(ctx context.Context, quizID, questionID uint, req *validator.QuestionUpdateRequest, userID string) (*models.Question, error) {
	if _, err := s.getOwnedQuiz(ctx, quizID, userID, "update_question"); err != nil {
		return nil, err
	}
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	question, err := s.getQuizQuestion(ctx, quizID, questionID)
	if err != nil {
		return nil, err
	}

	if req.Type != nil {
		question.Type = *req.Type
	}
	if req.Text != nil {
		question.Text = *req.Text
	}
	if req.Points != nil {
		question.Points = *req.Points
	}
	if req.Order != nil {
		question.Order = *req.Order
	}
	if req.Media != nil {
		media, err := json.Marshal(req.Media)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal media: %w", err)
		}
		question.Media = media
	}
	if req.Options != nil {
		options, err := json.Marshal(req.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal options: %w", err)
		}
		question.Options = options
	}
	if req.Answer != nil {
		answer, err := json.Marshal(req.Answer)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal answer: %w", err)
		}
		question.Answer = answer
	}

	if err := s.repo.Question().Update(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}
	return question, nil
}

func (s *quizService) DeleteQuestion(ctx context.Context, quizID, questionID uint, userID string) error {
	if _, err := s.getOwnedQuiz(ctx, quizID, userID, "delete_question"); err != nil {
		return err
	}
	if _, err := s.getQuizQuestion(ctx, quizID, questionID); err != nil {
		return err
	}
	if err := s.repo.Question().Delete(ctx, nil, questionID); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	return nil
}

func (s *quizService) ListQuestions(ctx context.Context, quizID uint, userID string) ([]*models.Question, error) {
	if _, err := s.getOwnedQuiz(ctx, quizID, userID, "list_questions"); err != nil {
		return nil, err
	}
	questions, err := s.repo.Question().ListByQuiz(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, nil
}

// ===== HELPERS =====

// getOwnedQuiz loads a quiz and verifies the caller owns it. Ownership is
// strict: admins get no bypass here.
func (s *quizService) getOwnedQuiz(ctx context.Context, id uint, userID, action string) (*models.Quiz, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to load quiz: %w", err)
	}
	if quiz.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "quiz", action, "not the quiz owner")
	}
	return quiz, nil
}

func (s *quizService) getQuizQuestion(ctx context.Context, quizID, questionID uint) (*models.Question, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to load question: %w", err)
	}
	if question.QuizID != quizID {
		return nil, ErrQuestionNotFound
	}
	return question, nil
}

func (s *quizService) publishEvent(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "error", err, "event_type", event.Type)
	}
}

// checkAvailability computes the live-window state at a given instant.
// A quiz is available only when it is live and the instant falls inside
// [start, end].
func checkAvailability(quiz *models.Quiz, now time.Time) *models.Availability {
	available := quiz.IsLive &&
		!now.Before(quiz.StartTime) &&
		!now.After(quiz.EndTime)

	return &models.Availability{
		QuizID:    quiz.ID,
		Available: available,
		IsLive:    quiz.IsLive,
		StartTime: quiz.StartTime,
		EndTime:   quiz.EndTime,
	}
}

func applyQuizSettings(quiz *models.Quiz, settings *validator.QuizSettingsRequest) {
	if settings.AllowInternet != nil {
		quiz.AllowInternet = *settings.AllowInternet
	}
	if settings.AutoSubmit != nil {
		quiz.AutoSubmit = *settings.AutoSubmit
	}
	if settings.Shuffle != nil {
		quiz.Shuffle = *settings.Shuffle
	}
	if settings.ShowResults != nil {
		quiz.ShowResults = *settings.ShowResults
	}
}

// buildQuestion converts a create request into a model, marshaling the
// JSONB columns.
func buildQuestion(quizID uint, req *validator.QuestionCreateRequest, order int) (*models.Question, error) {
	question := &models.Question{
		QuizID: quizID,
		Type:   req.Type,
		Text:   req.Text,
		Points: req.Points,
		Order:  order,
	}

	if req.Media != nil {
		media, err := json.Marshal(req.Media)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal media: %w", err)
		}
		question.Media = media
	}
	if len(req.Options) > 0 {
		options, err := json.Marshal(req.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal options: %w", err)
		}
		question.Options = options
	}
	if req.Answer != nil {
		answer, err := json.Marshal(req.Answer)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal answer: %w", err)
		}
		question.Answer = answer
	}

	return question, nil
}
