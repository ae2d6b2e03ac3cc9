package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/auth"
	"github.com/examstack/exam-platform/internal/events"
	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/validator"
)

// quizPasswordHash is computed once; bcrypt at cost 12 is too slow to rerun
// per subtest.
var quizPasswordHash = func() string {
	hash, err := auth.HashPassword("secret99")
	if err != nil {
		panic(err)
	}
	return hash
}()

func sessionFixture(t *testing.T) (*MockRepository, *events.MockEventPublisher, *sessionService, time.Time) {
	t.Helper()

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	repo := NewMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())

	grading := NewGradingService(repo, nil, testLogger(), validator.New(), publisher)
	service := NewSessionService(repo, nil, testLogger(), validator.New(), publisher, grading).(*sessionService)
	service.now = func() time.Time { return now }

	return repo, publisher, service, now
}

func liveQuiz(now time.Time) *models.Quiz {
	return &models.Quiz{
		ID:           7,
		Title:        "Midterm",
		StartTime:    now.Add(-time.Hour),
		EndTime:      now.Add(time.Hour),
		Duration:     30,
		PasswordHash: quizPasswordHash,
		IsLive:       true,
		AutoSubmit:   true,
		CreatedBy:    "creator-1",
		Questions: []models.Question{
			{ID: 1, QuizID: 7, Type: models.MultipleChoice, Points: 2, Answer: datatypes.JSON(`"b"`)},
			{ID: 2, QuizID: 7, Type: models.ShortAnswer, Points: 3, Answer: datatypes.JSON(`"x"`)},
		},
	}
}

func TestAuthenticate(t *testing.T) {
	t.Run("starts a session", func(t *testing.T) {
		repo, publisher, service, now := sessionFixture(t)
		quiz := liveQuiz(now)

		repo.QuizRepo.GetByIDWithQuestionsFn = func(id uint) (*models.Quiz, error) { return quiz, nil }
		repo.GroupRepo.StudentHasQuizAccessFn = func(quizID uint, studentID string) (bool, error) { return true, nil }

		var created *models.ExamSession
		repo.SessionRepo.CreateFn = func(session *models.ExamSession) error {
			session.ID = 11
			created = session
			return nil
		}

		resp, err := service.Authenticate(context.Background(), 7, "student-1", "secret99")
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}

		if resp.Resumed {
			t.Error("expected a fresh session, got a resumed one")
		}
		if created == nil {
			t.Fatal("expected a session to be created")
		}
		if !created.EndTime.Equal(now.Add(30 * time.Minute)) {
			t.Errorf("expected the clock to run 30 minutes, got end %v", created.EndTime)
		}
		if resp.TimeRemaining != 30*60 {
			t.Errorf("expected 1800s remaining, got %d", resp.TimeRemaining)
		}

		// Students never see answer keys.
		for _, q := range resp.Quiz.Questions {
			if q.Answer != nil {
				t.Errorf("question %d leaked its answer key", q.ID)
			}
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Type != events.TypeSessionStarted {
			t.Errorf("expected a session started event, got %+v", published)
		}
	})

	t.Run("clamps the clock to the availability window", func(t *testing.T) {
		repo, _, service, now := sessionFixture(t)
		quiz := liveQuiz(now)
		quiz.EndTime = now.Add(10 * time.Minute)

		repo.QuizRepo.GetByIDWithQuestionsFn = func(id uint) (*models.Quiz, error) { return quiz, nil }
		repo.GroupRepo.StudentHasQuizAccessFn = func(quizID uint, studentID string) (bool, error) { return true, nil }

		var created *models.ExamSession
		repo.SessionRepo.CreateFn = func(session *models.ExamSession) error {
			created = session
			return nil
		}

		if _, err := service.Authenticate(context.Background(), 7, "student-1", "secret99"); err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if created == nil || !created.EndTime.Equal(quiz.EndTime) {
			t.Errorf("expected the clock clamped to the window end, got %+v", created)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		repo, _, service, now := sessionFixture(t)
		quiz := liveQuiz(now)

		repo.QuizRepo.GetByIDWithQuestionsFn = func(id uint) (*models.Quiz, error) { return quiz, nil }
		repo.GroupRepo.StudentHasQuizAccessFn = func(quizID uint, studentID string) (bool, error) { return true, nil }

		_, err := service.Authenticate(context.Background(), 7, "student-1", "nope")
		if !errors.Is(err, ErrWrongQuizPassword) {
			t.Fatalf("expected ErrWrongQuizPassword, got %v", err)
		}
	})

	t.Run("outside the window", func(t *testing.T) {
		repo, _, service, now := sessionFixture(t)
		quiz := liveQuiz(now)
		quiz.EndTime = now.Add(-time.Minute)

		repo.QuizRepo.GetByIDWithQuestionsFn = func(id uint) (*models.Quiz, error) { return quiz, nil }

		_, err := service.Authenticate(context.Background(), 7, "student-1", "secret99")
		if !errors.Is(err, ErrQuizNotAvailable) {
			t.Fatalf("expected ErrQuizNotAvailable, got %v", err)
		}
	})

	t.Run("no group access", func(t *testing.T) {
		repo, _, service, now := sessionFixture(t)
		quiz := liveQuiz(now)

		repo.QuizRepo.GetByIDWithQuestionsFn = func(id uint) (*models.Quiz, error) { return quiz, nil }

		_, err := service.Authenticate(context.Background(), 7, "student-1", "secret99")
		if !errors.Is(err, ErrNoQuizAccess) {
			t.Fatalf("expected ErrNoQuizAccess, got %v", err)
		}
	})

	t.Run("a prior submission does not block a fresh attempt", func(t *testing.T) {
		repo, _, service, now := sessionFixture(t)
		quiz := liveQuiz(now)

		repo.QuizRepo.GetByIDWithQuestionsFn = func(id uint) (*models.Quiz, error) { return quiz, nil }
		repo.GroupRepo.StudentHasQuizAccessFn = func(quizID uint, studentID string) (bool, error) { return true, nil }
		repo.SubmissionRepo.GetByQuizAndStudentFn = func(quizID uint, studentID string) (*models.Submission, error) {
			return &models.Submission{ID: 5, QuizID: quizID, StudentID: studentID}, nil
		}
		repo.SessionRepo.CreateFn = func(session *models.ExamSession) error {
			session.ID = 12
			return nil
		}

		resp, err := service.Authenticate(context.Background(), 7, "student-1", "secret99")
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if resp.Resumed {
			t.Error("expected a fresh session for the retake")
		}
	})

	t.Run("resumes an incomplete session", func(t *testing.T) {
		repo, _, service, now := sessionFixture(t)
		quiz := liveQuiz(now)

		repo.QuizRepo.GetByIDWithQuestionsFn = func(id uint) (*models.Quiz, error) { return quiz, nil }
		repo.GroupRepo.StudentHasQuizAccessFn = func(quizID uint, studentID string) (bool, error) { return true, nil }
		repo.SessionRepo.GetIncompleteFn = func(quizID uint, studentID string) (*models.ExamSession, error) {
			return &models.ExamSession{
				ID:        11,
				QuizID:    quizID,
				StudentID: studentID,
				StartedAt: now.Add(-10 * time.Minute),
				EndTime:   now.Add(20 * time.Minute),
				Answers:   datatypes.JSONMap{"1": "a"},
			}, nil
		}

		resp, err := service.Authenticate(context.Background(), 7, "student-1", "secret99")
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if !resp.Resumed {
			t.Error("expected the session to be resumed")
		}
		// Resume never moves the deadline.
		if resp.TimeRemaining != 20*60 {
			t.Errorf("expected 1200s remaining, got %d", resp.TimeRemaining)
		}
		if resp.Answers["1"] != "a" {
			t.Error("expected the answer buffer to survive the resume")
		}
	})
}

func TestSaveAnswer(t *testing.T) {
	t.Run("buffers the answer", func(t *testing.T) {
		repo, _, service, now := sessionFixture(t)
		quiz := liveQuiz(now)

		session := &models.ExamSession{
			ID:        11,
			QuizID:    7,
			StudentID: "student-1",
			StartedAt: now.Add(-5 * time.Minute),
			EndTime:   now.Add(25 * time.Minute),
			Answers:   datatypes.JSONMap{},
		}
		repo.SessionRepo.GetByIDFn = func(id uint) (*models.ExamSession, error) { return session, nil }
		repo.QuizRepo.GetByIDWithQuestionsFn = func(id uint) (*models.Quiz, error) { return quiz, nil }

		var saved *models.ExamSession
		repo.SessionRepo.UpdateFn = func(s *models.ExamSession) error {
			saved = s
			return nil
		}

		err := service.SaveAnswer(context.Background(), 11, "student-1", &validator.SaveAnswerRequest{
			QuestionID: 1,
			Answer:     "b",
		})
		if err != nil {
			t.Fatalf("SaveAnswer() error = %v", err)
		}
		if saved == nil || saved.Answers["1"] != "b" {
			t.Errorf("expected the answer to be buffered, got %+v", saved)
		}
		if !saved.LastActivity.Equal(now) {
			t.Errorf("expected last activity to move to %v, got %v", now, saved.LastActivity)
		}
	})

	t.Run("another student's session", func(t *testing.T) {
		repo, _, service, now := sessionFixture(t)

		repo.SessionRepo.GetByIDFn = func(id uint) (*models.ExamSession, error) {
			return &models.ExamSession{ID: id, QuizID: 7, StudentID: "student-2", EndTime: now.Add(time.Minute)}, nil
		}

		err := service.SaveAnswer(context.Background(), 11, "student-1", &validator.SaveAnswerRequest{
			QuestionID: 1,
			Answer:     "b",
		})
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("expected PermissionError, got %v", err)
		}
	})

	t.Run("expired session auto-submits", func(t *testing.T) {
		repo, publisher, service, now := sessionFixture(t)
		quiz := liveQuiz(now)

		session := &models.ExamSession{
			ID:        11,
			QuizID:    7,
			StudentID: "student-1",
			StartedAt: now.Add(-40 * time.Minute),
			EndTime:   now.Add(-10 * time.Minute),
			Answers:   datatypes.JSONMap{"1": "b"},
		}
		repo.SessionRepo.GetByIDFn = func(id uint) (*models.ExamSession, error) { return session, nil }
		repo.QuizRepo.GetByIDWithQuestionsFn = func(id uint) (*models.Quiz, error) { return quiz, nil }

		var submission *models.Submission
		repo.SubmissionRepo.CreateFn = func(sub *models.Submission) error {
			sub.ID = 31
			submission = sub
			return nil
		}
		var snapshot *models.AttemptSnapshot
		repo.SnapshotRepo.CreateFn = func(snap *models.AttemptSnapshot) error {
			snapshot = snap
			return nil
		}

		err := service.SaveAnswer(context.Background(), 11, "student-1", &validator.SaveAnswerRequest{
			QuestionID: 2,
			Answer:     "late",
		})
		if !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}

		if !session.IsCompleted {
			t.Error("expected the session to be closed")
		}
		if submission == nil {
			t.Fatal("expected an auto-submission")
		}
		// Only the buffered answer counts; the late save is dropped.
		if submission.TotalScore != 2 {
			t.Errorf("expected total score 2, got %v", submission.TotalScore)
		}
		if !submission.SubmittedAt.Equal(session.EndTime) {
			t.Errorf("expected the submission stamped at the deadline, got %v", submission.SubmittedAt)
		}
		if snapshot == nil {
			t.Error("expected an analytics snapshot for the fully auto-graded attempt")
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Type != events.TypeSessionSubmitted {
			t.Fatalf("expected a session submitted event, got %+v", published)
		}
		data, ok := published[0].Data.(events.SessionEvent)
		if !ok || !data.AutoSubmitted {
			t.Errorf("expected an auto-submitted payload, got %+v", published[0].Data)
		}
	})

	t.Run("expired session without auto-submit just closes", func(t *testing.T) {
		repo, _, service, now := sessionFixture(t)
		quiz := liveQuiz(now)
		quiz.AutoSubmit = false

		session := &models.ExamSession{
			ID:        11,
			QuizID:    7,
			StudentID: "student-1",
			EndTime:   now.Add(-time.Minute),
		}
		repo.SessionRepo.GetByIDFn = func(id uint) (*models.ExamSession, error) { return session, nil }
		repo.QuizRepo.GetByIDWithQuestionsFn = func(id uint) (*models.Quiz, error) { return quiz, nil }

		created := false
		repo.SubmissionRepo.CreateFn = func(sub *models.Submission) error {
			created = true
			return nil
		}

		err := service.SaveAnswer(context.Background(), 11, "student-1", &validator.SaveAnswerRequest{
			QuestionID: 1,
			Answer:     "b",
		})
		if !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
		if !session.IsCompleted {
			t.Error("expected the session to be closed")
		}
		if created {
			t.Error("expected no submission without auto-submit")
		}
	})
}

func TestSubmit(t *testing.T) {
	repo, _, service, now := sessionFixture(t)
	quiz := liveQuiz(now)

	session := &models.ExamSession{
		ID:        11,
		QuizID:    7,
		StudentID: "student-1",
		StartedAt: now.Add(-15 * time.Minute),
		EndTime:   now.Add(15 * time.Minute),
		Answers:   datatypes.JSONMap{"1": "a", "2": "x"},
	}
	repo.SessionRepo.GetByIDFn = func(id uint) (*models.ExamSession, error) { return session, nil }
	repo.QuizRepo.GetByIDWithQuestionsFn = func(id uint) (*models.Quiz, error) { return quiz, nil }

	var submission *models.Submission
	repo.SubmissionRepo.CreateFn = func(sub *models.Submission) error {
		sub.ID = 31
		submission = sub
		return nil
	}
	repo.SubmissionRepo.GetByIDFn = func(id uint) (*models.Submission, error) { return submission, nil }
	repo.QuizRepo.GetByIDFn = func(id uint) (*models.Quiz, error) { return quiz, nil }

	resp, err := service.Submit(context.Background(), 11, "student-1", &validator.SubmitRequest{
		Answers: []validator.SaveAnswerRequest{
			// Overrides the buffered wrong answer for question 1.
			{QuestionID: 1, Answer: "b"},
		},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if submission == nil {
		t.Fatal("expected a submission")
	}
	if !submission.IsGraded {
		t.Error("expected a fully auto-gradable quiz to be graded at submit")
	}
	if submission.TotalScore != 5 {
		t.Errorf("expected total score 5, got %v", submission.TotalScore)
	}
	if len(resp.ParsedAnswers) != 2 {
		t.Errorf("expected 2 parsed answers, got %d", len(resp.ParsedAnswers))
	}

	// A second submit through the closed session must be rejected.
	if _, err := service.Submit(context.Background(), 11, "student-1", nil); !errors.Is(err, ErrSessionCompleted) {
		t.Fatalf("expected ErrSessionCompleted on resubmit, got %v", err)
	}
}

// A submission row can already exist when the submit races an auto-submit.
// The later write replaces the row instead of failing.
func TestSubmitReplacesExistingRow(t *testing.T) {
	repo, _, service, now := sessionFixture(t)
	quiz := liveQuiz(now)

	session := &models.ExamSession{
		ID:        11,
		QuizID:    7,
		StudentID: "student-1",
		StartedAt: now.Add(-15 * time.Minute),
		EndTime:   now.Add(15 * time.Minute),
		Answers:   datatypes.JSONMap{"1": "b", "2": "x"},
	}
	repo.SessionRepo.GetByIDFn = func(id uint) (*models.ExamSession, error) { return session, nil }
	repo.QuizRepo.GetByIDWithQuestionsFn = func(id uint) (*models.Quiz, error) { return quiz, nil }
	repo.QuizRepo.GetByIDFn = func(id uint) (*models.Quiz, error) { return quiz, nil }

	existing := &models.Submission{ID: 31, QuizID: 7, StudentID: "student-1"}
	repo.SubmissionRepo.CreateFn = func(sub *models.Submission) error { return gorm.ErrDuplicatedKey }
	repo.SubmissionRepo.GetByQuizAndStudentFn = func(quizID uint, studentID string) (*models.Submission, error) {
		return existing, nil
	}
	repo.SubmissionRepo.GetByIDFn = func(id uint) (*models.Submission, error) { return existing, nil }

	updated := false
	repo.SubmissionRepo.UpdateFn = func(sub *models.Submission) error {
		updated = true
		if sub.ID != 31 {
			t.Errorf("expected the existing row to be replaced, got id %d", sub.ID)
		}
		return nil
	}

	if _, err := service.Submit(context.Background(), 11, "student-1", nil); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !updated {
		t.Error("expected the earlier submission to be replaced")
	}
	if existing.TotalScore != 5 {
		t.Errorf("expected total score 5, got %v", existing.TotalScore)
	}
}

func TestSessionStatus(t *testing.T) {
	t.Run("reports the running clock", func(t *testing.T) {
		repo, _, service, now := sessionFixture(t)
		quiz := liveQuiz(now)

		session := &models.ExamSession{
			ID:        11,
			QuizID:    7,
			StudentID: "student-1",
			EndTime:   now.Add(10 * time.Minute),
		}
		repo.SessionRepo.GetByIDFn = func(id uint) (*models.ExamSession, error) { return session, nil }
		repo.QuizRepo.GetByIDWithQuestionsFn = func(id uint) (*models.Quiz, error) { return quiz, nil }

		status, err := service.Status(context.Background(), 11, "student-1")
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if status.TimeRemaining != 10*60 {
			t.Errorf("expected 600s remaining, got %d", status.TimeRemaining)
		}
		if status.Expired || status.IsCompleted {
			t.Errorf("unexpected status %+v", status)
		}
	})

	t.Run("a poll past the deadline finalizes the session", func(t *testing.T) {
		repo, _, service, now := sessionFixture(t)
		quiz := liveQuiz(now)

		session := &models.ExamSession{
			ID:        11,
			QuizID:    7,
			StudentID: "student-1",
			StartedAt: now.Add(-31 * time.Minute),
			EndTime:   now.Add(-time.Minute),
			Answers:   datatypes.JSONMap{"1": "b"},
		}
		repo.SessionRepo.GetByIDFn = func(id uint) (*models.ExamSession, error) { return session, nil }
		repo.QuizRepo.GetByIDWithQuestionsFn = func(id uint) (*models.Quiz, error) { return quiz, nil }

		var submission *models.Submission
		repo.SubmissionRepo.CreateFn = func(sub *models.Submission) error {
			sub.ID = 31
			submission = sub
			return nil
		}

		status, err := service.Status(context.Background(), 11, "student-1")
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if !status.Expired || !status.IsCompleted {
			t.Errorf("expected an expired, completed status, got %+v", status)
		}
		if !session.IsCompleted {
			t.Error("expected the poll to close the session")
		}
		if submission == nil {
			t.Fatal("expected the buffered answers to be auto-submitted")
		}
		if !submission.SubmittedAt.Equal(session.EndTime) {
			t.Errorf("expected the submission stamped at the deadline, got %v", submission.SubmittedAt)
		}
	})
}

func TestMonitor(t *testing.T) {
	repo, _, service, now := sessionFixture(t)
	quiz := liveQuiz(now)

	repo.QuizRepo.GetByIDFn = func(id uint) (*models.Quiz, error) { return quiz, nil }

	t.Run("owner only", func(t *testing.T) {
		_, err := service.Monitor(context.Background(), 7, "creator-2")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("expected PermissionError, got %v", err)
		}
	})

	t.Run("lists live sessions", func(t *testing.T) {
		entries, err := service.Monitor(context.Background(), 7, "creator-1")
		if err != nil {
			t.Fatalf("Monitor() error = %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected no entries, got %d", len(entries))
		}
	})
}
