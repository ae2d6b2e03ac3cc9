package validator

import (
	"strings"
	"testing"
	"time"

	"github.com/examstack/exam-platform/internal/models"
)

func hasFieldError(errs ValidationErrors, field string) bool {
	for _, e := range errs {
		if strings.HasSuffix(e.Field, field) {
			return true
		}
	}
	return false
}

func validQuizRequest() *QuizCreateRequest {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	return &QuizCreateRequest{
		Title:     "Algebra midterm",
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
		Duration:  60,
		Password:  "letmein",
	}
}

func TestValidateQuizCreate(t *testing.T) {
	bv := NewBusinessValidator()

	t.Run("valid request", func(t *testing.T) {
		if errs := bv.ValidateQuizCreate(validQuizRequest()); len(errs) > 0 {
			t.Errorf("expected no errors, got %v", errs)
		}
	})

	t.Run("end before start", func(t *testing.T) {
		req := validQuizRequest()
		req.EndTime = req.StartTime.Add(-time.Hour)

		errs := bv.ValidateQuizCreate(req)
		if !hasFieldError(errs, "end_time") {
			t.Errorf("expected an end_time error, got %v", errs)
		}
	})

	t.Run("duration exceeds window", func(t *testing.T) {
		req := validQuizRequest()
		req.Duration = 150 // window is 120 minutes

		errs := bv.ValidateQuizCreate(req)
		if !hasFieldError(errs, "duration") {
			t.Errorf("expected a duration error, got %v", errs)
		}
	})

	t.Run("duration out of range", func(t *testing.T) {
		req := validQuizRequest()
		req.Duration = 700

		if errs := bv.ValidateQuizCreate(req); len(errs) == 0 {
			t.Error("expected a validation error for a 700 minute duration")
		}
	})

	t.Run("short password", func(t *testing.T) {
		req := validQuizRequest()
		req.Password = "abc"

		errs := bv.ValidateQuizCreate(req)
		if !hasFieldError(errs, "password") {
			t.Errorf("expected a password error, got %v", errs)
		}
	})
}

func TestValidateQuestionCreate(t *testing.T) {
	bv := NewBusinessValidator()

	t.Run("multiple choice needs options", func(t *testing.T) {
		errs := bv.ValidateQuestionCreate(&QuestionCreateRequest{
			Type:    models.MultipleChoice,
			Text:    "Pick one",
			Points:  5,
			Options: []string{"only one"},
			Answer:  "only one",
		})
		if !hasFieldError(errs, "options") {
			t.Errorf("expected an options error, got %v", errs)
		}
	})

	t.Run("true false takes no options", func(t *testing.T) {
		errs := bv.ValidateQuestionCreate(&QuestionCreateRequest{
			Type:    models.TrueFalse,
			Text:    "Water is wet",
			Points:  2,
			Options: []string{"true", "false"},
			Answer:  true,
		})
		if !hasFieldError(errs, "options") {
			t.Errorf("expected an options error, got %v", errs)
		}
	})

	t.Run("auto-gradable needs a key", func(t *testing.T) {
		errs := bv.ValidateQuestionCreate(&QuestionCreateRequest{
			Type:   models.ShortAnswer,
			Text:   "Capital of France",
			Points: 2,
		})
		if !hasFieldError(errs, "answer") {
			t.Errorf("expected an answer error, got %v", errs)
		}
	})

	t.Run("long answer needs no key", func(t *testing.T) {
		errs := bv.ValidateQuestionCreate(&QuestionCreateRequest{
			Type:   models.LongAnswer,
			Text:   "Discuss",
			Points: 10,
		})
		if len(errs) > 0 {
			t.Errorf("expected no errors, got %v", errs)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		errs := bv.ValidateQuestionCreate(&QuestionCreateRequest{
			Type:   models.QuestionType("essay"),
			Text:   "Q",
			Points: 1,
			Answer: "a",
		})
		if len(errs) == 0 {
			t.Error("expected a validation error for an unknown type")
		}
	})
}

func TestGroupCodeRule(t *testing.T) {
	bv := NewBusinessValidator()

	tests := []struct {
		code string
		ok   bool
	}{
		{"AB23CD", true},
		{"ZZZZZZ", true},
		{"ab23cd", false},
		{"AB23C", false},
		{"AB23CDE", false},
		{"AB 3CD", false},
		{"", false},
	}

	for _, tt := range tests {
		errs := bv.Validate(&EnrollRequest{Code: tt.code})
		if ok := len(errs) == 0; ok != tt.ok {
			t.Errorf("code %q: valid = %v, want %v (%v)", tt.code, ok, tt.ok, errs)
		}
	}
}

func TestRoleAndPlanRules(t *testing.T) {
	bv := NewBusinessValidator()

	if errs := bv.Validate(&RoleChangeRequest{Role: models.RoleCreator}); len(errs) > 0 {
		t.Errorf("expected creator to be a valid role, got %v", errs)
	}
	if errs := bv.Validate(&RoleChangeRequest{Role: models.UserRole("owner")}); len(errs) == 0 {
		t.Error("expected an unknown role to be rejected")
	}

	if errs := bv.Validate(&SubscriptionOverrideRequest{Plan: models.PlanTeam}); len(errs) > 0 {
		t.Errorf("expected team to be a valid plan, got %v", errs)
	}
	if errs := bv.Validate(&SubscriptionOverrideRequest{Plan: models.SubscriptionPlan("gold")}); len(errs) == 0 {
		t.Error("expected an unknown plan to be rejected")
	}
}

func TestRegisterRequestValidation(t *testing.T) {
	bv := NewBusinessValidator()

	valid := &RegisterRequest{
		Email:    "new@example.com",
		Password: "longenough",
		Name:     "New User",
		Role:     models.RoleStudent,
	}
	if errs := bv.Validate(valid); len(errs) > 0 {
		t.Errorf("expected no errors, got %v", errs)
	}

	invalid := &RegisterRequest{Email: "not-an-email", Password: "short", Name: "", Role: "boss"}
	errs := bv.Validate(invalid)
	if len(errs) < 3 {
		t.Errorf("expected errors on email, password, name, and role, got %v", errs)
	}
}
