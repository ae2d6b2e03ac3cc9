package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/services"
	"github.com/examstack/exam-platform/internal/utils"
)

type HandlerManager struct {
	serviceManager services.ServiceManager

	authHandler      *AuthHandler
	quizHandler      *QuizHandler
	groupHandler     *GroupHandler
	sessionHandler   *SessionHandler
	gradingHandler   *GradingHandler
	analyticsHandler *AnalyticsHandler
	adminHandler     *AdminHandler
	billingHandler   *BillingHandler
	authMiddleware   *JWTAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	authMiddleware *JWTAuthMiddleware,
	logger utils.Logger,
	refreshTTL time.Duration,
	secureCookies bool,
) *HandlerManager {
	return &HandlerManager{
		serviceManager:   serviceManager,
		authHandler:      NewAuthHandler(serviceManager.Auth(), logger, refreshTTL, secureCookies),
		quizHandler:      NewQuizHandler(serviceManager.Quiz(), serviceManager.ImportExport(), logger),
		groupHandler:     NewGroupHandler(serviceManager.Group(), logger),
		sessionHandler:   NewSessionHandler(serviceManager.Session(), logger),
		gradingHandler:   NewGradingHandler(serviceManager.Grading(), logger),
		analyticsHandler: NewAnalyticsHandler(serviceManager.Analytics(), logger),
		adminHandler:     NewAdminHandler(serviceManager.Admin(), logger),
		billingHandler:   NewBillingHandler(serviceManager.Billing(), logger),
		authMiddleware:   authMiddleware,
	}
}

// SetupRoutes sets up all API routes.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.healthCheck)

	// Stripe calls this directly; the signature header is the credential.
	router.POST("/webhooks/stripe", hm.billingHandler.Webhook)

	api := router.Group("/api")

	// Auth routes: everything except the profile is unauthenticated.
	auth := api.Group("/auth")
	{
		auth.POST("/register", hm.authHandler.Register)
		auth.GET("/verify", hm.authHandler.VerifyEmail)
		auth.POST("/verify/resend", hm.authHandler.ResendVerification)
		auth.POST("/login", hm.authHandler.Login)
		auth.POST("/refresh", hm.authHandler.Refresh)
		auth.POST("/logout", hm.authHandler.Logout)
		auth.POST("/password-reset", hm.authHandler.RequestPasswordReset)
		auth.POST("/password-reset/confirm", hm.authHandler.ConfirmPasswordReset)
		auth.GET("/me", hm.authMiddleware.AuthMiddleware(), hm.authHandler.Profile)
		auth.PUT("/me", hm.authMiddleware.AuthMiddleware(), hm.authHandler.UpdateProfile)
		auth.PUT("/me/password", hm.authMiddleware.AuthMiddleware(), hm.authHandler.ChangePassword)
	}

	// The availability probe is public so exam lobby pages can poll it
	// before the student logs in.
	api.GET("/quizzes/:id/availability", hm.quizHandler.GetAvailability)

	authed := api.Group("")
	authed.Use(hm.authMiddleware.AuthMiddleware())

	manageQuizzes := hm.authMiddleware.RequireCapability(models.CapManageQuizzes)
	manageGroups := hm.authMiddleware.RequireCapability(models.CapManageGroups)
	takeExams := hm.authMiddleware.RequireCapability(models.CapTakeExams)
	gradeExams := hm.authMiddleware.RequireCapability(models.CapGradeExams)
	manageUsers := hm.authMiddleware.RequireCapability(models.CapManageUsers)

	quizzes := authed.Group("/quizzes")
	{
		// Creator operations
		quizzes.POST("", manageQuizzes, hm.quizHandler.CreateQuiz)
		quizzes.GET("", manageQuizzes, hm.quizHandler.ListQuizzes)
		quizzes.GET("/:id", manageQuizzes, hm.quizHandler.GetQuiz)
		quizzes.PUT("/:id", manageQuizzes, hm.quizHandler.UpdateQuiz)
		quizzes.DELETE("/:id", manageQuizzes, hm.quizHandler.DeleteQuiz)
		quizzes.POST("/:id/publish", manageQuizzes, hm.quizHandler.PublishQuiz)
		quizzes.POST("/:id/unpublish", manageQuizzes, hm.quizHandler.UnpublishQuiz)

		// Question management
		quizzes.GET("/:id/questions", manageQuizzes, hm.quizHandler.ListQuestions)
		quizzes.POST("/:id/questions", manageQuizzes, hm.quizHandler.AddQuestion)
		quizzes.PUT("/:id/questions/:question_id", manageQuizzes, hm.quizHandler.UpdateQuestion)
		quizzes.DELETE("/:id/questions/:question_id", manageQuizzes, hm.quizHandler.DeleteQuestion)
		quizzes.POST("/:id/questions/import", manageQuizzes, hm.quizHandler.ImportQuestions)
		quizzes.GET("/:id/questions/export", manageQuizzes, hm.quizHandler.ExportQuestions)

		// Submissions, monitoring, analytics
		quizzes.GET("/:id/submissions", gradeExams, hm.gradingHandler.ListSubmissions)
		quizzes.GET("/:id/monitor", manageQuizzes, hm.sessionHandler.Monitor)
		quizzes.GET("/:id/stats", manageQuizzes, hm.analyticsHandler.QuizStats)
		quizzes.GET("/:id/results/export", manageQuizzes, hm.quizHandler.ExportResults)

		// Student operations
		quizzes.POST("/:id/authenticate", takeExams, hm.sessionHandler.Authenticate)
		quizzes.GET("/:id/my-result", takeExams, hm.gradingHandler.MyResult)
	}

	sessions := authed.Group("/sessions", takeExams)
	{
		sessions.POST("/:id/answers", hm.sessionHandler.SaveAnswer)
		sessions.GET("/:id/status", hm.sessionHandler.Status)
		sessions.POST("/:id/submit", hm.sessionHandler.Submit)
	}

	submissions := authed.Group("/submissions", gradeExams)
	{
		submissions.GET("/:id", hm.gradingHandler.GetSubmission)
		submissions.PUT("/:id/grade", hm.gradingHandler.GradeSubmission)
	}

	groups := authed.Group("/groups")
	{
		groups.POST("", manageGroups, hm.groupHandler.CreateGroup)
		groups.GET("", manageGroups, hm.groupHandler.ListGroups)
		groups.GET("/:id", manageGroups, hm.groupHandler.GetGroup)
		groups.PUT("/:id", manageGroups, hm.groupHandler.UpdateGroup)
		groups.DELETE("/:id", manageGroups, hm.groupHandler.DeleteGroup)
		groups.GET("/:id/stats", manageGroups, hm.analyticsHandler.GroupStats)
		groups.POST("/:id/quizzes/:quiz_id", manageGroups, hm.groupHandler.AssignQuiz)
		groups.DELETE("/:id/quizzes/:quiz_id", manageGroups, hm.groupHandler.UnassignQuiz)

		// Owner or enrolled member; the service decides.
		groups.GET("/:id/quizzes", hm.groupHandler.ListGroupQuizzes)
		groups.GET("/:id/members", hm.groupHandler.ListMembers)

		// Students may remove themselves, owners anyone.
		groups.DELETE("/:id/members/:student_id", hm.groupHandler.RemoveMember)
	}

	// Enrollment and the student's own views live under /students/me so the
	// paths never collide with the :id routes above.
	students := authed.Group("/students/me", takeExams)
	{
		students.POST("/enrollments", hm.groupHandler.Enroll)
		students.GET("/groups", hm.groupHandler.ListMyGroups)
		students.GET("/quizzes", hm.quizHandler.ListAssignedQuizzes)
		students.GET("/stats", hm.analyticsHandler.MyStats)
	}

	dashboard := authed.Group("/dashboard", manageQuizzes)
	{
		dashboard.GET("/trend", hm.analyticsHandler.Trend)
	}

	admin := authed.Group("/admin", manageUsers)
	{
		admin.GET("/users", hm.adminHandler.ListUsers)
		admin.POST("/users/:id/suspend", hm.adminHandler.SuspendUser)
		admin.POST("/users/:id/reactivate", hm.adminHandler.ReactivateUser)
		admin.PUT("/users/:id/role", hm.adminHandler.ChangeRole)
		admin.PUT("/users/:id/subscription", hm.adminHandler.OverrideSubscription)
		admin.GET("/audit", hm.adminHandler.ListAudit)
		admin.GET("/metrics", hm.adminHandler.Metrics)
	}

	subscriptions := authed.Group("/subscriptions")
	{
		subscriptions.POST("/checkout", hm.billingHandler.CreateCheckout)
		subscriptions.POST("/portal", hm.billingHandler.CreatePortal)
		subscriptions.DELETE("", hm.billingHandler.CancelSubscription)
	}
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "exam-platform",
	})
}
