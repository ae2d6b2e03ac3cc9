package services

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by services and mapped to HTTP statuses in the
// handler layer.
var (
	// Identity
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrAccountSuspended   = errors.New("account suspended")
	ErrTokenInvalid       = errors.New("token invalid or expired")

	// Groups
	ErrGroupNotFound       = errors.New("group not found")
	ErrAlreadyEnrolled     = errors.New("already enrolled in group")
	ErrNotEnrolled         = errors.New("not enrolled in group")
	ErrCodeGeneration      = errors.New("could not generate a unique group code")
	ErrQuizAlreadyAssigned = errors.New("quiz already assigned to group")

	// Quizzes
	ErrQuizNotFound      = errors.New("quiz not found")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrQuizNotAvailable  = errors.New("quiz not available")
	ErrWrongQuizPassword = errors.New("wrong quiz password")

	// Sessions and submissions
	ErrSessionNotFound    = errors.New("exam session not found")
	ErrSessionExpired     = errors.New("exam session expired")
	ErrSessionCompleted   = errors.New("exam session already completed")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrNoQuizAccess       = errors.New("student has no access to this quiz")

	// Admin
	ErrSelfAction = errors.New("admins cannot perform this action on their own account")
)

// PermissionError represents an authorization failure with context about
// who tried what on which resource.
type PermissionError struct {
	UserID     string
	ResourceID interface{}
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s (%v): %s",
		e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID interface{}, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError represents a domain rule violation that is not a simple
// validation failure.
type BusinessRuleError struct {
	Rule    string
	Message string
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}
