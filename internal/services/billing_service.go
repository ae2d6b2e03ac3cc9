package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/config"
	"github.com/examstack/exam-platform/internal/events"
	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/repositories"
)

// billingService is a thin bridge to Stripe: it creates hosted checkout and
// portal sessions and persists the customer id on the user. Plan state lives
// in Stripe; the local plan column is a mirror updated by admin override.
type billingService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	publisher      events.EventPublisher
	cfg            config.StripeConfig
	frontendOrigin string
}

func NewBillingService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, publisher events.EventPublisher, cfg config.StripeConfig, frontendOrigin string) BillingService {
	stripe.Key = cfg.APIKey
	return &billingService{
		repo:           repo,
		db:             db,
		logger:         logger,
		publisher:      publisher,
		cfg:            cfg,
		frontendOrigin: frontendOrigin,
	}
}

func (s *billingService) CreateCheckout(ctx context.Context, userID string, plan models.SubscriptionPlan) (*CheckoutResponse, error) {
	priceID, err := s.priceFor(plan)
	if err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(s.frontendOrigin + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.frontendOrigin + "/billing/cancelled"),
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.Info("Checkout session created", "user_id", userID, "plan", plan, "session_id", sess.ID)
	return &CheckoutResponse{SessionID: sess.ID, CheckoutURL: sess.URL}, nil
}

func (s *billingService) CreatePortal(ctx context.Context, userID string) (*PortalResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.StripeCustomerID == nil {
		return nil, NewBusinessRuleError("billing_portal", "no billing account exists for this user")
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*user.StripeCustomerID),
		ReturnURL: stripe.String(s.frontendOrigin + "/settings/billing"),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create portal session: %w", err)
	}
	return &PortalResponse{PortalURL: sess.URL}, nil
}

// CancelSubscription cancels every active subscription on the user's
// customer record.
func (s *billingService) CancelSubscription(ctx context.Context, userID string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.StripeCustomerID == nil {
		return NewBusinessRuleError("billing_cancel", "no billing account exists for this user")
	}

	listParams := &stripe.SubscriptionListParams{
		Customer: stripe.String(*user.StripeCustomerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	listParams.Context = ctx

	cancelled := 0
	iter := subscription.List(listParams)
	for iter.Next() {
		sub := iter.Subscription()
		if _, err := subscription.Cancel(sub.ID, nil); err != nil {
			return fmt.Errorf("failed to cancel subscription %s: %w", sub.ID, err)
		}
		cancelled++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if cancelled == 0 {
		return NewBusinessRuleError("billing_cancel", "no active subscription to cancel")
	}

	s.publishEvent(ctx, events.NewEvent(events.TypeSubscriptionChange, events.SubscriptionEvent{
		UserID: userID,
		Plan:   "",
		Origin: "billing",
	}))

	s.logger.Info("Subscription cancelled", "user_id", userID, "count", cancelled)
	return nil
}

// HandleWebhook validates the Stripe signature and acknowledges known event
// types. Plan-state synchronization is deliberately not performed here.
func (s *billingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.WebhookSecret)
	if err != nil {
		return NewBusinessRuleError("webhook_signature", "invalid webhook signature")
	}

	switch event.Type {
	case "checkout.session.completed",
		"customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted",
		"invoice.payment_failed":
		// TODO: sync the local plan mirror from the subscription object once
		// the billing reconciliation job lands.
		s.logger.Info("Stripe webhook received", "event_type", event.Type, "event_id", event.ID)
	default:
		s.logger.Debug("Ignoring unhandled Stripe event", "event_type", event.Type, "event_id", event.ID)
	}
	return nil
}

// ===== HELPERS =====

func (s *billingService) priceFor(plan models.SubscriptionPlan) (string, error) {
	var priceID string
	switch plan {
	case models.PlanBasic:
		priceID = s.cfg.PriceBasic
	case models.PlanPro:
		priceID = s.cfg.PricePro
	case models.PlanTeam:
		priceID = s.cfg.PriceTeam
	default:
		return "", NewBusinessRuleError("plan_enum", "unknown plan")
	}
	if priceID == "" {
		return "", NewBusinessRuleError("billing_config", fmt.Sprintf("no price configured for plan %q", plan))
	}
	return priceID, nil
}

// ensureCustomer returns the user's Stripe customer id, creating and
// persisting one on first use.
func (s *billingService) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.FullName),
	}
	params.Context = ctx
	params.AddMetadata("user_id", user.ID)

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}

	user.StripeCustomerID = &cust.ID
	if err := s.repo.User().Update(ctx, nil, user); err != nil {
		return "", fmt.Errorf("failed to persist customer id: %w", err)
	}
	return cust.ID, nil
}

func (s *billingService) getUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func (s *billingService) publishEvent(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "error", err, "event_type", event.Type)
	}
}
