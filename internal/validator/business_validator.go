package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/examstack/exam-platform/internal/models"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateQuizCreate validates quiz creation business rules
func (bv *BusinessValidator) ValidateQuizCreate(req *QuizCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	errors = append(errors, bv.validateWindow(req.StartTime, req.EndTime, req.Duration)...)

	for i, q := range req.Questions {
		errors = append(errors, bv.validateQuestionRules(&q, fmt.Sprintf("questions[%d]", i))...)
	}

	return errors
}

// ValidateQuizUpdate validates quiz update business rules against the stored quiz
func (bv *BusinessValidator) ValidateQuizUpdate(req *QuizUpdateRequest, existing *models.Quiz) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	start := existing.StartTime
	end := existing.EndTime
	duration := existing.Duration
	if req.StartTime != nil {
		start = *req.StartTime
	}
	if req.EndTime != nil {
		end = *req.EndTime
	}
	if req.Duration != nil {
		duration = *req.Duration
	}
	errors = append(errors, bv.validateWindow(start, end, duration)...)

	return errors
}

// ValidateQuestionCreate validates question creation business rules
func (bv *BusinessValidator) ValidateQuestionCreate(req *QuestionCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	errors = append(errors, bv.validateQuestionRules(req, "question")...)

	return errors
}

// validateWindow checks start/end/duration consistency. The duration must
// fit inside the availability window.
func (bv *BusinessValidator) validateWindow(start, end time.Time, duration int) ValidationErrors {
	var errors ValidationErrors

	if !end.After(start) {
		errors = append(errors, ValidationError{
			Field:   "end_time",
			Message: "must be after start_time",
			Value:   end,
			Rule:    "business_logic",
		})
		return errors
	}

	if time.Duration(duration)*time.Minute > end.Sub(start) {
		errors = append(errors, ValidationError{
			Field:   "duration",
			Message: "must not exceed the availability window",
			Value:   duration,
			Rule:    "business_logic",
		})
	}

	return errors
}

// validateQuestionRules validates per-type question constraints
func (bv *BusinessValidator) validateQuestionRules(req *QuestionCreateRequest, field string) ValidationErrors {
	var errors ValidationErrors

	switch req.Type {
	case models.MultipleChoice:
		if len(req.Options) < 2 {
			errors = append(errors, ValidationError{
				Field:   field + ".options",
				Message: "multiple choice questions need at least 2 options",
				Value:   len(req.Options),
				Rule:    "business_logic",
			})
		}
	case models.TrueFalse:
		if len(req.Options) != 0 {
			errors = append(errors, ValidationError{
				Field:   field + ".options",
				Message: "true/false questions take no options",
				Value:   len(req.Options),
				Rule:    "business_logic",
			})
		}
	}

	if req.Type != models.LongAnswer && req.Answer == nil {
		errors = append(errors, ValidationError{
			Field:   field + ".answer",
			Message: "auto-gradable questions require an answer key",
			Rule:    "business_logic",
		})
	}

	return errors
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	// Quiz duration validation (1-600 minutes)
	bv.validate.RegisterValidation("quiz_duration", func(fl validator.FieldLevel) bool {
		duration := fl.Field().Int()
		return duration >= 1 && duration <= 600
	})

	// Title validation (1-200 characters)
	bv.validate.RegisterValidation("quiz_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})

	// Points range validation
	bv.validate.RegisterValidation("points_range", func(fl validator.FieldLevel) bool {
		points := fl.Field().Int()
		return points >= 1 && points <= 100
	})

	// question type validation
	bv.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return models.QuestionType(fl.Field().String()).Valid()
	})

	// user role validation
	bv.validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).Valid()
	})

	// subscription plan validation
	bv.validate.RegisterValidation("subscription_plan", func(fl validator.FieldLevel) bool {
		return models.SubscriptionPlan(fl.Field().String()).Valid()
	})

	// quiz visibility validation
	bv.validate.RegisterValidation("quiz_visibility", func(fl validator.FieldLevel) bool {
		v := models.QuizVisibility(fl.Field().String())
		return v == models.VisibilityPublic || v == models.VisibilityPrivate
	})

	// group code validation (6 uppercase alphanumerics)
	bv.validate.RegisterValidation("group_code", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if len(code) != 6 {
			return false
		}
		for _, r := range code {
			if !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
				return false
			}
		}
		return true
	})
}
