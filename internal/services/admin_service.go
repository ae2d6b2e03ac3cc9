package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/events"
	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/repositories"
)

type adminService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	publisher events.EventPublisher
}

func NewAdminService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, publisher events.EventPublisher) AdminService {
	return &adminService{
		repo:      repo,
		db:        db,
		logger:    logger,
		publisher: publisher,
	}
}

func (s *adminService) ListUsers(ctx context.Context, actorID string, filters AdminUserFilters) (*UserListResponse, error) {
	if err := s.requireAdmin(ctx, actorID, "list_users"); err != nil {
		return nil, err
	}

	repoFilters := repositories.UserFilters{
		Role:      filters.Role,
		Suspended: filters.Suspended,
		Search:    filters.Search,
		Limit:     filters.Limit,
		Offset:    filters.Offset,
	}
	users, total, err := s.repo.User().List(ctx, nil, repoFilters)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return &UserListResponse{Users: users, Total: total, Limit: filters.Limit, Offset: filters.Offset}, nil
}

// Suspend locks the account and invalidates its refresh tokens. Admins
// cannot suspend themselves.
func (s *adminService) Suspend(ctx context.Context, targetID, actorID, reason string) error {
	if targetID == actorID {
		return ErrSelfAction
	}
	if err := s.requireAdmin(ctx, actorID, "suspend"); err != nil {
		return err
	}

	target, err := s.getUser(ctx, targetID)
	if err != nil {
		return err
	}
	if target.Suspended {
		return nil // already suspended, idempotent
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		target.Suspended = true
		if err := txRepo.User().Update(ctx, nil, target); err != nil {
			return fmt.Errorf("failed to suspend user: %w", err)
		}
		if err := txRepo.User().BumpTokenVersion(ctx, nil, targetID); err != nil {
			return err
		}
		return s.writeAudit(ctx, txRepo, actorID, models.AuditUserSuspended, "user", targetID, map[string]string{"reason": reason})
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, events.NewEvent(events.TypeUserSuspended, events.UserEvent{
		UserID: targetID,
		Email:  target.Email,
		Role:   string(target.Role),
	}))

	s.logger.Info("User suspended", "target_id", targetID, "actor_id", actorID)
	return nil
}

func (s *adminService) Reactivate(ctx context.Context, targetID, actorID string) error {
	if targetID == actorID {
		return ErrSelfAction
	}
	if err := s.requireAdmin(ctx, actorID, "reactivate"); err != nil {
		return err
	}

	target, err := s.getUser(ctx, targetID)
	if err != nil {
		return err
	}
	if !target.Suspended {
		return nil
	}

	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		target.Suspended = false
		if err := txRepo.User().Update(ctx, nil, target); err != nil {
			return fmt.Errorf("failed to reactivate user: %w", err)
		}
		return s.writeAudit(ctx, txRepo, actorID, models.AuditUserReactivated, "user", targetID, nil)
	})
}

// ChangeRole moves a user to a different role and invalidates refresh
// tokens so stale role claims die with them.
func (s *adminService) ChangeRole(ctx context.Context, targetID string, role models.UserRole, actorID string) error {
	if targetID == actorID {
		return ErrSelfAction
	}
	if !role.Valid() {
		return NewBusinessRuleError("role_enum", "unknown role")
	}
	if err := s.requireAdmin(ctx, actorID, "change_role"); err != nil {
		return err
	}

	target, err := s.getUser(ctx, targetID)
	if err != nil {
		return err
	}
	if target.Role == role {
		return nil
	}

	previous := target.Role
	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		target.Role = role
		if err := txRepo.User().Update(ctx, nil, target); err != nil {
			return fmt.Errorf("failed to change role: %w", err)
		}
		if err := txRepo.User().BumpTokenVersion(ctx, nil, targetID); err != nil {
			return err
		}
		return s.writeAudit(ctx, txRepo, actorID, models.AuditUserRoleChanged, "user", targetID, map[string]string{
			"from": string(previous),
			"to":   string(role),
		})
	})
}

// OverridePlan sets the subscription tier directly, bypassing billing.
func (s *adminService) OverridePlan(ctx context.Context, targetID string, plan models.SubscriptionPlan, actorID string) error {
	if !plan.Valid() {
		return NewBusinessRuleError("plan_enum", "unknown plan")
	}
	if err := s.requireAdmin(ctx, actorID, "override_plan"); err != nil {
		return err
	}

	target, err := s.getUser(ctx, targetID)
	if err != nil {
		return err
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		target.Plan = &plan
		if err := txRepo.User().Update(ctx, nil, target); err != nil {
			return fmt.Errorf("failed to override plan: %w", err)
		}
		return s.writeAudit(ctx, txRepo, actorID, models.AuditPlanOverridden, "user", targetID, map[string]string{"plan": string(plan)})
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, events.NewEvent(events.TypeSubscriptionChange, events.SubscriptionEvent{
		UserID: targetID,
		Plan:   string(plan),
		Origin: "admin_override",
	}))
	return nil
}

func (s *adminService) ListAudit(ctx context.Context, actorID string, limit, offset int) (*AuditListResponse, error) {
	if err := s.requireAdmin(ctx, actorID, "view_audit"); err != nil {
		return nil, err
	}

	entries, total, err := s.repo.Audit().List(ctx, nil, repositories.AuditFilters{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	return &AuditListResponse{Entries: entries, Total: total}, nil
}

// PlatformMetrics collects headline counts for the admin dashboard. Each
// count rides on a List call with Limit 1; only the totals are used.
func (s *adminService) PlatformMetrics(ctx context.Context, actorID string) (*PlatformMetricsResponse, error) {
	if err := s.requireAdmin(ctx, actorID, "platform_metrics"); err != nil {
		return nil, err
	}

	metrics := &PlatformMetricsResponse{}

	countUsers := func(filters repositories.UserFilters) (int64, error) {
		filters.Limit = 1
		_, total, err := s.repo.User().List(ctx, nil, filters)
		return total, err
	}

	var err error
	if metrics.TotalUsers, err = countUsers(repositories.UserFilters{}); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	creator := models.RoleCreator
	if metrics.Creators, err = countUsers(repositories.UserFilters{Role: &creator}); err != nil {
		return nil, fmt.Errorf("failed to count creators: %w", err)
	}
	student := models.RoleStudent
	if metrics.Students, err = countUsers(repositories.UserFilters{Role: &student}); err != nil {
		return nil, fmt.Errorf("failed to count students: %w", err)
	}
	suspended := true
	if metrics.SuspendedUsers, err = countUsers(repositories.UserFilters{Suspended: &suspended}); err != nil {
		return nil, fmt.Errorf("failed to count suspended users: %w", err)
	}

	if _, metrics.TotalQuizzes, err = s.repo.Quiz().List(ctx, nil, repositories.QuizFilters{Limit: 1}); err != nil {
		return nil, fmt.Errorf("failed to count quizzes: %w", err)
	}
	live := true
	if _, metrics.LiveQuizzes, err = s.repo.Quiz().List(ctx, nil, repositories.QuizFilters{IsLive: &live, Limit: 1}); err != nil {
		return nil, fmt.Errorf("failed to count live quizzes: %w", err)
	}

	if _, metrics.TotalSubmissions, err = s.repo.Submission().List(ctx, nil, repositories.SubmissionFilters{Limit: 1}); err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	graded := false
	if _, metrics.UngradedPending, err = s.repo.Submission().List(ctx, nil, repositories.SubmissionFilters{IsGraded: &graded, Limit: 1}); err != nil {
		return nil, fmt.Errorf("failed to count ungraded submissions: %w", err)
	}

	return metrics, nil
}

// ===== HELPERS =====

func (s *adminService) requireAdmin(ctx context.Context, actorID, action string) error {
	actor, err := s.getUser(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.Role.Can(models.CapManageUsers) {
		return NewPermissionError(actorID, nil, "user", action, "requires manage_users capability")
	}
	return nil
}

func (s *adminService) getUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func (s *adminService) writeAudit(ctx context.Context, txRepo repositories.Repository, actorID string, action models.AuditAction, targetType, targetID string, detail map[string]string) error {
	entry := &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
	}
	if len(detail) > 0 {
		data, err := json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("failed to marshal audit detail: %w", err)
		}
		entry.Detail = data
	}
	if err := txRepo.Audit().Create(ctx, nil, entry); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

func (s *adminService) publishEvent(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "error", err, "event_type", event.Type)
	}
}
