package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/email"
	"github.com/examstack/exam-platform/internal/events"
	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/repositories"
	"github.com/examstack/exam-platform/internal/validator"
)

// Excludes ambiguous characters (0/O, 1/I/L).
const groupCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	groupCodeLength   = 6
	groupCodeAttempts = 5
)

type groupService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	email     email.Service
	publisher events.EventPublisher
}

func NewGroupService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, mailer email.Service, publisher events.EventPublisher) GroupService {
	return &groupService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		email:     mailer,
		publisher: publisher,
	}
}

// codeChar maps a random byte onto the alphabet. Bytes past the largest
// multiple of the alphabet size are rejected to keep the draw uniform.
func codeChar(b byte) (byte, bool) {
	limit := byte(len(groupCodeAlphabet) * (256 / len(groupCodeAlphabet)))
	if b >= limit {
		return 0, false
	}
	return groupCodeAlphabet[int(b)%len(groupCodeAlphabet)], true
}

// generateGroupCode returns a random enrollment code.
func generateGroupCode() (string, error) {
	code := make([]byte, 0, groupCodeLength)
	buf := make([]byte, groupCodeLength)
	for len(code) < groupCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if c, ok := codeChar(b); ok {
				code = append(code, c)
				if len(code) == groupCodeLength {
					break
				}
			}
		}
	}
	return string(code), nil
}

func (s *groupService) Create(ctx context.Context, req *validator.GroupCreateRequest, creatorID string) (*GroupResponse, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	group := &models.Group{
		Name:      req.Name,
		CreatedBy: creatorID,
	}
	if req.Description != "" {
		group.Description = &req.Description
	}

	// Collisions are retried with a fresh code; the unique index is the
	// final arbiter under concurrency.
	var created bool
	for attempt := 0; attempt < groupCodeAttempts && !created; attempt++ {
		code, err := generateGroupCode()
		if err != nil {
			return nil, err
		}

		exists, err := s.repo.Group().CodeExists(ctx, nil, code)
		if err != nil {
			return nil, fmt.Errorf("failed to check code: %w", err)
		}
		if exists {
			continue
		}

		group.Code = code
		if err := s.repo.Group().Create(ctx, nil, group); err != nil {
			if repositories.IsDuplicateError(err) {
				continue
			}
			return nil, fmt.Errorf("failed to create group: %w", err)
		}
		created = true
	}
	if !created {
		return nil, ErrCodeGeneration
	}

	s.logger.Info("Group created", "group_id", group.ID, "code", group.Code, "creator_id", creatorID)
	return &GroupResponse{Group: group}, nil
}

func (s *groupService) GetByID(ctx context.Context, id uint, userID string) (*GroupResponse, error) {
	group, err := s.getOwnedGroup(ctx, id, userID, "read")
	if err != nil {
		return nil, err
	}

	members, err := s.repo.Group().ListMembers(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	quizIDs, err := s.repo.Group().ListQuizIDs(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}

	group.MemberCount = len(members)
	group.QuizCount = len(quizIDs)
	return &GroupResponse{Group: group}, nil
}

func (s *groupService) Update(ctx context.Context, id uint, req *validator.GroupUpdateRequest, userID string) (*GroupResponse, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	group, err := s.getOwnedGroup(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}

	// Name and description only; code and ownership are immutable.
	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.Description != nil {
		group.Description = req.Description
	}

	if err := s.repo.Group().Update(ctx, nil, group); err != nil {
		return nil, fmt.Errorf("failed to update group: %w", err)
	}
	return &GroupResponse{Group: group}, nil
}

func (s *groupService) Delete(ctx context.Context, id uint, userID string) error {
	if _, err := s.getOwnedGroup(ctx, id, userID, "delete"); err != nil {
		return err
	}

	if err := s.repo.Group().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	s.logger.Info("Group deleted", "group_id", id, "user_id", userID)
	return nil
}

func (s *groupService) ListByCreator(ctx context.Context, creatorID string) ([]*models.Group, error) {
	groups, err := s.repo.Group().ListByCreator(ctx, nil, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// ===== ENROLLMENT =====

func (s *groupService) Enroll(ctx context.Context, code string, studentID string) (*GroupResponse, error) {
	group, err := s.repo.Group().GetByCode(ctx, nil, code)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to look up code: %w", err)
	}

	isMember, err := s.repo.Group().IsMember(ctx, nil, group.ID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if isMember {
		return nil, ErrAlreadyEnrolled
	}

	member := &models.GroupMember{GroupID: group.ID, StudentID: studentID}
	if err := s.repo.Group().AddMember(ctx, nil, member); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, fmt.Errorf("failed to enroll: %w", err)
	}

	s.publishEvent(ctx, events.NewEvent(events.TypeGroupEnrollment, events.EnrollmentEvent{
		GroupID:   group.ID,
		GroupName: group.Name,
		StudentID: studentID,
	}))

	if student, err := s.repo.User().GetByID(ctx, nil, studentID); err == nil {
		if err := s.email.SendEnrollmentNotice(ctx, student.Email, student.FullName, group.Name); err != nil {
			s.logger.Error("Failed to send enrollment email", "error", err, "student_id", studentID)
		}
	}

	s.logger.Info("Student enrolled", "group_id", group.ID, "student_id", studentID)
	return &GroupResponse{Group: group}, nil
}

func (s *groupService) RemoveMember(ctx context.Context, groupID uint, studentID string, actorID string) error {
	// Students may leave on their own; otherwise the actor must own the group.
	if actorID != studentID {
		if _, err := s.getOwnedGroup(ctx, groupID, actorID, "remove_member"); err != nil {
			return err
		}
	}

	if err := s.repo.Group().RemoveMember(ctx, nil, groupID, studentID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrNotEnrolled
		}
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// ListMembers returns the roster. Owners, admins and enrolled students may
// read it.
func (s *groupService) ListMembers(ctx context.Context, groupID uint, userID string) ([]*models.GroupMember, error) {
	group, err := s.repo.Group().GetByID(ctx, nil, groupID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to load group: %w", err)
	}

	if group.CreatedBy != userID {
		isMember, err := s.repo.Group().IsMember(ctx, nil, groupID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to check membership: %w", err)
		}
		if !isMember {
			actor, err := s.repo.User().GetByID(ctx, nil, userID)
			if err != nil || actor.Role != models.RoleAdmin {
				return nil, NewPermissionError(userID, groupID, "group", "list_members", "not owner, admin or member")
			}
		}
	}

	members, err := s.repo.Group().ListMembers(ctx, nil, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

func (s *groupService) ListStudentGroups(ctx context.Context, studentID string) ([]*models.Group, error) {
	groups, err := s.repo.Group().ListGroupsForStudent(ctx, nil, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list student groups: %w", err)
	}
	return groups, nil
}

// ===== QUIZ ASSIGNMENT =====

func (s *groupService) AssignQuiz(ctx context.Context, groupID, quizID uint, userID string) error {
	if _, err := s.getOwnedGroup(ctx, groupID, userID, "assign_quiz"); err != nil {
		return err
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("failed to load quiz: %w", err)
	}
	if quiz.CreatedBy != userID {
		return NewPermissionError(userID, quizID, "quiz", "assign", "not the quiz owner")
	}

	if err := s.repo.Group().AssignQuiz(ctx, nil, groupID, quizID); err != nil {
		if repositories.IsDuplicateError(err) {
			return ErrQuizAlreadyAssigned
		}
		return fmt.Errorf("failed to assign quiz: %w", err)
	}
	return nil
}

func (s *groupService) UnassignQuiz(ctx context.Context, groupID, quizID uint, userID string) error {
	if _, err := s.getOwnedGroup(ctx, groupID, userID, "unassign_quiz"); err != nil {
		return err
	}

	if err := s.repo.Group().UnassignQuiz(ctx, nil, groupID, quizID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("failed to unassign quiz: %w", err)
	}
	return nil
}

func (s *groupService) ListGroupQuizzes(ctx context.Context, groupID uint, userID string) ([]*models.Quiz, error) {
	group, err := s.repo.Group().GetByID(ctx, nil, groupID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to load group: %w", err)
	}

	// Owners and enrolled students may read the assignment list.
	if group.CreatedBy != userID {
		isMember, err := s.repo.Group().IsMember(ctx, nil, groupID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to check membership: %w", err)
		}
		if !isMember {
			return nil, NewPermissionError(userID, groupID, "group", "list_quizzes", "not owner or member")
		}
	}

	quizIDs, err := s.repo.Group().ListQuizIDs(ctx, nil, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quiz ids: %w", err)
	}

	quizzes := make([]*models.Quiz, 0, len(quizIDs))
	for _, id := range quizIDs {
		quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				continue
			}
			return nil, fmt.Errorf("failed to load quiz %d: %w", id, err)
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, nil
}

// getOwnedGroup loads a group and verifies the caller owns it. Admins act
// on any group; quizzes stay owner-only.
func (s *groupService) getOwnedGroup(ctx context.Context, id uint, userID, action string) (*models.Group, error) {
	group, err := s.repo.Group().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	if group.CreatedBy != userID {
		actor, err := s.repo.User().GetByID(ctx, nil, userID)
		if err != nil || actor.Role != models.RoleAdmin {
			return nil, NewPermissionError(userID, id, "group", action, "not the group owner or an admin")
		}
	}
	return group, nil
}

func (s *groupService) publishEvent(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "error", err, "event_type", event.Type)
	}
}
