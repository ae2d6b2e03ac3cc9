package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/examstack/exam-platform/internal/services"
	"github.com/examstack/exam-platform/internal/utils"
	"github.com/examstack/exam-platform/internal/validator"
)

// Stripe caps webhook payloads well below this.
const maxWebhookSize = 1 << 20

type BillingHandler struct {
	BaseHandler
	billingService services.BillingService
}

func NewBillingHandler(billingService services.BillingService, logger utils.Logger) *BillingHandler {
	return &BillingHandler{
		BaseHandler:    NewBaseHandler(logger),
		billingService: billingService,
	}
}

// CreateCheckout starts a hosted checkout for the requested plan.
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	var req validator.CheckoutRequest
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

	checkout, err := h.billingService.CreateCheckout(c.Request.Context(), userID, req.Plan)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkout)
}

// CreatePortal returns a hosted billing portal link.
func (h *BillingHandler) CreatePortal(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	portal, err := h.billingService.CreatePortal(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, portal)
}

// CancelSubscription cancels the caller's active subscription.
func (h *BillingHandler) CancelSubscription(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	if err := h.billingService.CancelSubscription(c.Request.Context(), userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Subscription cancelled"})
}

// Webhook receives Stripe events. Unauthenticated; the signature header is
// the only credential.
func (h *BillingHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Failed to read payload"})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.billingService.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		// Bad signatures get a 400 so Stripe retries legitimate deliveries
		// only.
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Webhook rejected"})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "ok"})
}
