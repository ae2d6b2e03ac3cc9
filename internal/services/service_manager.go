package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/auth"
	"github.com/examstack/exam-platform/internal/cache"
	"github.com/examstack/exam-platform/internal/config"
	"github.com/examstack/exam-platform/internal/email"
	"github.com/examstack/exam-platform/internal/events"
	"github.com/examstack/exam-platform/internal/repositories"
	"github.com/examstack/exam-platform/internal/validator"
)

// ServiceManagerDeps holds everything the service layer needs. The cache
// manager and publisher may be nil; services degrade gracefully without them.
type ServiceManagerDeps struct {
	DB        *gorm.DB
	Repo      repositories.Repository
	Logger    *slog.Logger
	Validator *validator.Validator
	Tokens    *auth.TokenManager
	Email     email.Service
	Publisher events.EventPublisher
	Cache     *cache.CacheManager

	Stripe         config.StripeConfig
	FrontendOrigin string
}

// serviceManager implements ServiceManager.
type serviceManager struct {
	deps ServiceManagerDeps

	authService         AuthService
	groupService        GroupService
	quizService         QuizService
	sessionService      SessionService
	gradingService      GradingService
	analyticsService    AnalyticsService
	adminService        AdminService
	billingService      BillingService
	importExportService ImportExportService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(deps ServiceManagerDeps) ServiceManager {
	return &serviceManager{deps: deps}
}

// Initialize constructs all services. Grading is built before the session
// service, which depends on it for post-submit grading.
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	d := sm.deps
	sm.logger().Info("Initializing service manager")

	sm.authService = NewAuthService(d.Repo, d.DB, d.Logger, d.Validator, d.Tokens, d.Email, d.Publisher)
	sm.groupService = NewGroupService(d.Repo, d.DB, d.Logger, d.Validator, d.Email, d.Publisher)
	sm.quizService = NewQuizService(d.Repo, d.DB, d.Logger, d.Validator, d.Publisher)
	sm.gradingService = NewGradingService(d.Repo, d.DB, d.Logger, d.Validator, d.Publisher)
	sm.sessionService = NewSessionService(d.Repo, d.DB, d.Logger, d.Validator, d.Publisher, sm.gradingService)
	sm.analyticsService = NewAnalyticsService(d.Repo, d.DB, d.Logger, d.Cache)
	sm.adminService = NewAdminService(d.Repo, d.DB, d.Logger, d.Publisher)
	sm.billingService = NewBillingService(d.Repo, d.DB, d.Logger, d.Publisher, d.Stripe, d.FrontendOrigin)
	sm.importExportService = NewImportExportService(d.Repo, d.DB, d.Logger, d.Validator)

	sm.initialized = true
	sm.logger().Info("Service manager initialized")
	return nil
}

// ===== SERVICE GETTERS =====

func (sm *serviceManager) Auth() AuthService {
	sm.ensureInitialized()
	return sm.authService
}

func (sm *serviceManager) Group() GroupService {
	sm.ensureInitialized()
	return sm.groupService
}

func (sm *serviceManager) Quiz() QuizService {
	sm.ensureInitialized()
	return sm.quizService
}

func (sm *serviceManager) Session() SessionService {
	sm.ensureInitialized()
	return sm.sessionService
}

func (sm *serviceManager) Grading() GradingService {
	sm.ensureInitialized()
	return sm.gradingService
}

func (sm *serviceManager) Analytics() AnalyticsService {
	sm.ensureInitialized()
	return sm.analyticsService
}

func (sm *serviceManager) Admin() AdminService {
	sm.ensureInitialized()
	return sm.adminService
}

func (sm *serviceManager) Billing() BillingService {
	sm.ensureInitialized()
	return sm.billingService
}

func (sm *serviceManager) ImportExport() ImportExportService {
	sm.ensureInitialized()
	return sm.importExportService
}

// ===== LIFECYCLE =====

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	if sm.deps.Cache != nil {
		if err := sm.deps.Cache.HealthCheck(ctx); err != nil {
			return fmt.Errorf("cache health check failed: %w", err)
		}
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}
	sm.logger().Info("Shutting down service manager")

	if sm.deps.Publisher != nil {
		if err := sm.deps.Publisher.Close(); err != nil {
			sm.logger().Error("Failed to close event publisher", "error", err)
		}
	}
	if err := sm.deps.Repo.Close(); err != nil {
		sm.logger().Error("Failed to close repository", "error", err)
	}

	sm.shutdown = true
	sm.logger().Info("Service manager shut down")
	return nil
}

func (sm *serviceManager) ensureInitialized() {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

func (sm *serviceManager) logger() *slog.Logger {
	if sm.deps.Logger != nil {
		return sm.deps.Logger
	}
	return slog.Default()
}
