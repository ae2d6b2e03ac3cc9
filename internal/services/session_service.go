package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/auth"
	"github.com/examstack/exam-platform/internal/events"
	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/repositories"
	"github.com/examstack/exam-platform/internal/validator"
)

type sessionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	grading   GradingService
	now       func() time.Time
}

func NewSessionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher, grading GradingService) SessionService {
	return &sessionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		publisher: publisher,
		grading:   grading,
		now:       time.Now,
	}
}

// Authenticate admits a student into a quiz: availability, group access,
// and the quiz password are all checked before a session is created or
// resumed.
func (s *sessionService) Authenticate(ctx context.Context, quizID uint, studentID, password string) (*SessionResponse, error) {
	now := s.now()

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to load quiz: %w", err)
	}

	if !checkAvailability(quiz, now).Available {
		return nil, ErrQuizNotAvailable
	}

	hasAccess, err := s.repo.Group().StudentHasQuizAccess(ctx, nil, quizID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check quiz access: %w", err)
	}
	if !hasAccess {
		return nil, ErrNoQuizAccess
	}

	if !auth.CheckPassword(quiz.PasswordHash, password) {
		return nil, ErrWrongQuizPassword
	}

	// A prior submission does not block a fresh attempt inside the window;
	// submitting again replaces it.

	// Resume the incomplete session when one exists.
	session, err := s.repo.Session().GetIncomplete(ctx, nil, quizID, studentID)
	if err == nil {
		if session.Expired(now) {
			if err := s.finalizeExpired(ctx, session, quiz); err != nil {
				return nil, err
			}
			return nil, ErrSessionExpired
		}

		session.LastActivity = now
		if err := s.repo.Session().Update(ctx, nil, session); err != nil {
			return nil, fmt.Errorf("failed to touch session: %w", err)
		}
		return s.buildSessionResponse(session, quiz, now, true), nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}

	// The clock never extends past the availability window.
	endTime := now.Add(time.Duration(quiz.Duration) * time.Minute)
	if endTime.After(quiz.EndTime) {
		endTime = quiz.EndTime
	}

	session = &models.ExamSession{
		QuizID:       quizID,
		StudentID:    studentID,
		StartedAt:    now,
		EndTime:      endTime,
		LastActivity: now,
		Answers:      datatypes.JSONMap{},
	}
	if err := s.repo.Session().Create(ctx, nil, session); err != nil {
		// Concurrent authenticate: the partial unique index won the race,
		// resume the session that got through.
		if repositories.IsDuplicateError(err) {
			existing, getErr := s.repo.Session().GetIncomplete(ctx, nil, quizID, studentID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to resolve session race: %w", getErr)
			}
			return s.buildSessionResponse(existing, quiz, now, true), nil
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.publishEvent(ctx, events.NewEvent(events.TypeSessionStarted, events.SessionEvent{
		SessionID: session.ID,
		QuizID:    quizID,
		StudentID: studentID,
	}))

	s.logger.Info("Exam session started", "session_id", session.ID, "quiz_id", quizID, "student_id", studentID)
	return s.buildSessionResponse(session, quiz, now, false), nil
}

// SaveAnswer buffers one answer. The buffer is keyed by question id; a
// later save for the same question overwrites the earlier one.
func (s *sessionService) SaveAnswer(ctx context.Context, sessionID uint, studentID string, req *validator.SaveAnswerRequest) error {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return errs
	}

	session, quiz, err := s.getOwnedSession(ctx, sessionID, studentID)
	if err != nil {
		return err
	}

	now := s.now()
	if session.IsCompleted {
		return ErrSessionCompleted
	}
	if session.Expired(now) {
		if err := s.finalizeExpired(ctx, session, quiz); err != nil {
			return err
		}
		return ErrSessionExpired
	}

	if session.Answers == nil {
		session.Answers = datatypes.JSONMap{}
	}
	session.Answers[strconv.FormatUint(uint64(req.QuestionID), 10)] = req.Answer
	session.LastActivity = now

	if err := s.repo.Session().Update(ctx, nil, session); err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	return nil
}

// Status reports the session clock. Like every other read it finalizes a
// session observed past its deadline, so polling converges too.
func (s *sessionService) Status(ctx context.Context, sessionID uint, studentID string) (*SessionStatusResponse, error) {
	session, quiz, err := s.getOwnedSession(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if session.Expired(now) && !session.IsCompleted {
		if err := s.finalizeExpired(ctx, session, quiz); err != nil {
			return nil, err
		}
	}
	return &SessionStatusResponse{
		SessionID:     session.ID,
		TimeRemaining: remainingSeconds(session, now),
		LastActivity:  session.LastActivity,
		IsCompleted:   session.IsCompleted,
		Expired:       session.Expired(now),
	}, nil
}

// Submit finalizes the session into a submission. Answers sent with the
// submit request win over buffered ones for the same question.
func (s *sessionService) Submit(ctx context.Context, sessionID uint, studentID string, req *validator.SubmitRequest) (*SubmissionResponse, error) {
	session, quiz, err := s.getOwnedSession(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if session.IsCompleted {
		return nil, ErrSessionCompleted
	}

	expired := session.Expired(now)
	if expired && !quiz.AutoSubmit {
		// Without auto-submit an expired session yields no submission.
		if err := s.finalizeExpired(ctx, session, quiz); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}

	if session.Answers == nil {
		session.Answers = datatypes.JSONMap{}
	}
	if req != nil {
		for _, answer := range req.Answers {
			session.Answers[strconv.FormatUint(uint64(answer.QuestionID), 10)] = answer.Answer
		}
	}

	var deviceInfo map[string]string
	if req != nil {
		deviceInfo = req.DeviceInfo
	}

	submission, err := s.finalize(ctx, session, quiz, now, expired, deviceInfo)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Exam submitted", "session_id", session.ID, "submission_id", submission.ID, "auto", expired)
	return s.grading.GetSubmission(ctx, submission.ID, quiz.CreatedBy)
}

// Monitor lists the live sessions of a quiz for its owner.
func (s *sessionService) Monitor(ctx context.Context, quizID uint, userID string) ([]*MonitorEntry, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to load quiz: %w", err)
	}
	if quiz.CreatedBy != userID {
		return nil, NewPermissionError(userID, quizID, "quiz", "monitor", "not the quiz owner")
	}

	sessions, err := s.repo.Session().ListIncompleteByQuiz(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := s.now()
	entries := make([]*MonitorEntry, 0, len(sessions))
	for _, session := range sessions {
		entries = append(entries, &MonitorEntry{
			SessionID:     session.ID,
			StudentID:     session.StudentID,
			StudentName:   session.Student.FullName,
			StartedAt:     session.StartedAt,
			LastActivity:  session.LastActivity,
			AnsweredCount: len(session.Answers),
			TimeRemaining: remainingSeconds(session, now),
			Expired:       session.Expired(now),
		})
	}
	return entries, nil
}

// ===== HELPERS =====

func (s *sessionService) getOwnedSession(ctx context.Context, sessionID uint, studentID string) (*models.ExamSession, *models.Quiz, error) {
	session, err := s.repo.Session().GetByID(ctx, nil, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.StudentID != studentID {
		return nil, nil, NewPermissionError(studentID, sessionID, "session", "access", "not owned by student")
	}

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, session.QuizID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load quiz: %w", err)
	}
	return session, quiz, nil
}

// finalizeExpired closes an expired session. With auto-submit the buffered
// answers become a submission; without it the session just closes. The
// transition is idempotent: a session observed completed is left alone.
func (s *sessionService) finalizeExpired(ctx context.Context, session *models.ExamSession, quiz *models.Quiz) error {
	if session.IsCompleted {
		return nil
	}

	if quiz.AutoSubmit {
		if _, err := s.finalize(ctx, session, quiz, session.EndTime, true, nil); err != nil {
			return err
		}
		return nil
	}

	session.IsCompleted = true
	if err := s.repo.Session().Update(ctx, nil, session); err != nil {
		return fmt.Errorf("failed to close expired session: %w", err)
	}
	return nil
}

// finalize marks the session completed and materializes the submission,
// auto-grading what can be auto-graded, in one transaction.
func (s *sessionService) finalize(ctx context.Context, session *models.ExamSession, quiz *models.Quiz, submittedAt time.Time, autoSubmitted bool, deviceInfo map[string]string) (*models.Submission, error) {
	var submission *models.Submission

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		session.IsCompleted = true
		session.LastActivity = submittedAt
		// An early submit ends the clock; a late one keeps the deadline.
		if submittedAt.Before(session.EndTime) {
			session.EndTime = submittedAt
		}
		if err := txRepo.Session().Update(ctx, nil, session); err != nil {
			return fmt.Errorf("failed to complete session: %w", err)
		}

		answers, totalScore, allGraded, err := autoGradeAnswers(quiz.Questions, session.Answers)
		if err != nil {
			return err
		}

		answersJSON, err := marshalSubmittedAnswers(answers)
		if err != nil {
			return err
		}

		submission = &models.Submission{
			QuizID:      quiz.ID,
			StudentID:   session.StudentID,
			Answers:     answersJSON,
			SubmittedAt: submittedAt,
		}
		if allGraded {
			submission.IsGraded = true
			submission.GradedAt = &submittedAt
			submission.TotalScore = totalScore
		}

		if err := txRepo.Submission().Create(ctx, nil, submission); err != nil {
			if !repositories.IsDuplicateError(err) {
				return fmt.Errorf("failed to create submission: %w", err)
			}

			// Resubmission replaces the earlier row silently.
			existing, getErr := txRepo.Submission().GetByQuizAndStudent(ctx, nil, quiz.ID, session.StudentID)
			if getErr != nil {
				return fmt.Errorf("failed to load submission for resubmit: %w", getErr)
			}
			existing.Answers = submission.Answers
			existing.SubmittedAt = submission.SubmittedAt
			existing.IsGraded = submission.IsGraded
			existing.GradedAt = submission.GradedAt
			existing.TotalScore = submission.TotalScore
			if err := txRepo.Submission().Update(ctx, nil, existing); err != nil {
				return fmt.Errorf("failed to replace submission: %w", err)
			}
			submission = existing
		}

		// Fully auto-graded attempts project into analytics immediately;
		// otherwise the snapshot waits for manual grading. Write-once even
		// across a resubmission.
		if allGraded {
			if _, err := txRepo.Snapshot().GetBySubmission(ctx, nil, submission.ID); err == nil {
				return nil
			} else if !repositories.IsNotFoundError(err) {
				return fmt.Errorf("failed to check snapshot: %w", err)
			}

			snapshot, err := buildSnapshot(submission, quiz, session, answers, deviceInfo)
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

	s.publishEvent(ctx, events.NewEvent(events.TypeSessionSubmitted, events.SessionEvent{
		SessionID:     session.ID,
		QuizID:        quiz.ID,
		StudentID:     session.StudentID,
		AutoSubmitted: autoSubmitted,
	}))
	return submission, nil
}

func (s *sessionService) buildSessionResponse(session *models.ExamSession, quiz *models.Quiz, now time.Time, resumed bool) *SessionResponse {
	questions := make([]models.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		questions[i] = q.Sanitized()
	}

	// Shuffle deterministically per session so the order survives resume.
	if quiz.Shuffle {
		rng := rand.New(rand.NewSource(int64(session.ID)))
		rng.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}

	return &SessionResponse{
		SessionID: session.ID,
		Quiz: &StudentQuizResponse{
			ID:          quiz.ID,
			Title:       quiz.Title,
			Description: quiz.Description,
			StartTime:   quiz.StartTime,
			EndTime:     quiz.EndTime,
			Duration:    quiz.Duration,
			Shuffle:     quiz.Shuffle,
			AutoSubmit:  quiz.AutoSubmit,
			Questions:   questions,
		},
		StartedAt:     session.StartedAt,
		EndTime:       session.EndTime,
		TimeRemaining: remainingSeconds(session, now),
		Answers:       session.Answers,
		Resumed:       resumed,
	}
}

func (s *sessionService) publishEvent(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "error", err, "event_type", event.Type)
	}
}

func remainingSeconds(session *models.ExamSession, now time.Time) int {
	if session.IsCompleted {
		return 0
	}
	remaining := int(session.EndTime.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}
