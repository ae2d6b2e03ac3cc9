package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/examstack/exam-platform/internal/services"
	"github.com/examstack/exam-platform/internal/utils"
)

type AnalyticsHandler struct {
	BaseHandler
	analyticsService services.AnalyticsService
}

func NewAnalyticsHandler(analyticsService services.AnalyticsService, logger utils.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		BaseHandler:      NewBaseHandler(logger),
		analyticsService: analyticsService,
	}
}

// QuizStats returns score and time distributions for one quiz.
func (h *AnalyticsHandler) QuizStats(c *gin.Context) {
	quizID := h.parseIDParam(c, "id")
	if quizID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	stats, err := h.analyticsService.QuizStats(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GroupStats returns the graded-attempt rollup for one group.
func (h *AnalyticsHandler) GroupStats(c *gin.Context) {
	groupID := h.parseIDParam(c, "id")
	if groupID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	stats, err := h.analyticsService.GroupStats(c.Request.Context(), groupID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// MyStats returns the student's own attempt aggregates.
func (h *AnalyticsHandler) MyStats(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	stats, err := h.analyticsService.StudentStats(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Trend returns the per-day attempt trend across the creator's quizzes.
// Window defaults to 30 days, ?days= overrides.
func (h *AnalyticsHandler) Trend(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	points, err := h.analyticsService.CreatorTrend(c.Request.Context(), userID, days)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}
