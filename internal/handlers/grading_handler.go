package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/examstack/exam-platform/internal/services"
	"github.com/examstack/exam-platform/internal/utils"
	"github.com/examstack/exam-platform/internal/validator"
)

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
}

func NewGradingHandler(gradingService services.GradingService, logger utils.Logger) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
	}
}

func (h *GradingHandler) GetSubmission(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	submission, err := h.gradingService.GetSubmission(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

// ListSubmissions returns the submissions for a quiz the caller owns.
// Filter with ?graded=true|false.
func (h *GradingHandler) ListSubmissions(c *gin.Context) {
	quizID := h.parseIDParam(c, "id")
	if quizID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}
	limit, offset := h.parsePagination(c)

	var gradedOnly *bool
	if raw := c.Query("graded"); raw != "" {
		if graded, err := strconv.ParseBool(raw); err == nil {
			gradedOnly = &graded
		}
	}

	submissions, err := h.gradingService.ListSubmissions(c.Request.Context(), quizID, userID, gradedOnly, limit, offset)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, submissions)
}

// GradeSubmission applies a manual grading pass.
func (h *GradingHandler) GradeSubmission(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req validator.GradeSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	h.LogRequest(c, "Grading submission", "submission_id", id)

	submission, err := h.gradingService.GradeSubmission(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

// MyResult is the student's own result view, gated by the quiz's
// show-results flag.
func (h *GradingHandler) MyResult(c *gin.Context) {
	quizID := h.parseIDParam(c, "id")
	if quizID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	result, err := h.gradingService.StudentResult(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
