package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/services"
	"github.com/examstack/exam-platform/internal/utils"
	"github.com/examstack/exam-platform/internal/validator"
)

type AdminHandler struct {
	BaseHandler
	adminService services.AdminService
}

func NewAdminHandler(adminService services.AdminService, logger utils.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler:  NewBaseHandler(logger),
		adminService: adminService,
	}
}

// ListUsers supports ?role=, ?suspended=, ?search= filters.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}
	limit, offset := h.parsePagination(c)

	filters := services.AdminUserFilters{Limit: limit, Offset: offset}
	if raw := c.Query("role"); raw != "" {
		role := models.UserRole(raw)
		if !role.Valid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Unknown role filter"})
			return
		}
		filters.Role = &role
	}
	if raw := c.Query("suspended"); raw != "" {
		if suspended, err := strconv.ParseBool(raw); err == nil {
			filters.Suspended = &suspended
		}
	}
	if search := c.Query("search"); search != "" {
		filters.Search = &search
	}

	users, err := h.adminService.ListUsers(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) SuspendUser(c *gin.Context) {
	targetID := c.Param("id")
	actorID := h.currentUserID(c)
	if actorID == "" {
		return
	}

	var req validator.SuspendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Suspending user", "target_id", targetID)

	if err := h.adminService.Suspend(c.Request.Context(), targetID, actorID, req.Reason); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "User suspended"})
}

func (h *AdminHandler) ReactivateUser(c *gin.Context) {
	targetID := c.Param("id")
	actorID := h.currentUserID(c)
	if actorID == "" {
		return
	}

	if err := h.adminService.Reactivate(c.Request.Context(), targetID, actorID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "User reactivated"})
}

func (h *AdminHandler) ChangeRole(c *gin.Context) {
	targetID := c.Param("id")
	actorID := h.currentUserID(c)
	if actorID == "" {
		return
	}

	var req validator.RoleChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Changing user role", "target_id", targetID, "role", req.Role)

	if err := h.adminService.ChangeRole(c.Request.Context(), targetID, req.Role, actorID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Role updated"})
}

func (h *AdminHandler) OverrideSubscription(c *gin.Context) {
	targetID := c.Param("id")
	actorID := h.currentUserID(c)
	if actorID == "" {
		return
	}

	var req validator.SubscriptionOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.adminService.OverridePlan(c.Request.Context(), targetID, req.Plan, actorID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Subscription updated"})
}

func (h *AdminHandler) Metrics(c *gin.Context) {
	actorID := h.currentUserID(c)
	if actorID == "" {
		return
	}

	metrics, err := h.adminService.PlatformMetrics(c.Request.Context(), actorID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (h *AdminHandler) ListAudit(c *gin.Context) {
	actorID := h.currentUserID(c)
	if actorID == "" {
		return
	}
	limit, offset := h.parsePagination(c)

	entries, err := h.adminService.ListAudit(c.Request.Context(), actorID, limit, offset)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
