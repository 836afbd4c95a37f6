package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/videogen-ai/videogen/app/models"
	"github.com/videogen-ai/videogen/app/repository"
	"github.com/videogen-ai/videogen/internal/pkg/apperr"
	"github.com/videogen-ai/videogen/internal/pkg/credits"
)

const (
	plansCacheKey = "videogen:plans:active"
	plansCacheTTL = 5 * time.Minute
	currency      = "USD"
)

var (
	ErrPlanNotFound           = apperr.NotFound("Plan not found")
	ErrUserNotFound           = apperr.NotFound("User not found")
	ErrCheckoutCreationFailed = apperr.New(apperr.KindUpstream, "Error creating payment checkout")
	ErrInvalidSignature       = apperr.Auth("Invalid webhook signature")
)

// ActivationNotifier is told about subscriptions after they are committed.
type ActivationNotifier interface {
	SubscriptionActivated(ctx context.Context, user *models.User, plan *models.SubscriptionPlan, sub *models.UserSubscription) error
}

// PlanCache keeps the active plan catalog out of the database.
type PlanCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type Options struct {
	SuccessURL string
	CancelURL  string
	Cache      PlanCache
	Notifier   ActivationNotifier
}

// Service creates checkouts and reconciles payment webhooks into
// subscriptions and credits.
type Service struct {
	db        *gorm.DB
	repo      Repository
	processor Processor
	ledger    *credits.Ledger
	opts      Options
	now       func() time.Time
}

// NewService creates a billing service from an injected repository.
func NewService(db *gorm.DB, repo Repository, processor Processor, ledger *credits.Ledger, opts Options) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		processor: processor,
		ledger:    ledger,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, processor Processor, opts Options) *Service {
	return NewService(db, NewRepository(db), processor, credits.NewLedger(db), opts)
}

func (s *Service) ProviderName() string {
	return s.processor.Name()
}

// CreateCheckout opens a hosted checkout for the plan and records a pending
// payment keyed by the processor's checkout id.
func (s *Service) CreateCheckout(ctx context.Context, userID, planID uint) (string, error) {
	repos := repository.NewRepositories(s.db.WithContext(ctx))
	plan, err := repos.Plan.GetActiveByID(planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrPlanNotFound
		}
		return "", err
	}
	user, err := repos.User.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	req := CheckoutRequest{
		UserID:      user.ID,
		PlanID:      plan.ID,
		PlanName:    plan.Name,
		AmountMinor: plan.AmountMinorUnits(),
		AmountUSD:   plan.PriceUSD,
		Currency:    currency,
		Description: fmt.Sprintf("Plan %s - VideoGenerator AI", plan.Name),
		SuccessURL:  s.opts.SuccessURL,
		CancelURL:   s.opts.CancelURL,
		CustomerRef: user.Email,
	}
	session, err := s.processor.CreateCheckout(ctx, req)
	if err != nil {
		log.Errorf("[Billing] %s checkout for user %d plan %d failed: %v", s.processor.Name(), user.ID, plan.ID, err)
		return "", apperr.Wrap(apperr.KindUpstream, ErrCheckoutCreationFailed.Message, errors.Join(ErrCheckoutCreationFailed, err))
	}

	meta, _ := json.Marshal(map[string]interface{}{
		"user_id":   user.ID,
		"plan_id":   plan.ID,
		"plan_name": plan.Name,
	})
	payment := &models.Payment{
		UserID:      user.ID,
		PlanID:      plan.ID,
		Provider:    s.processor.Name(),
		ExternalID:  session.ID,
		CheckoutURL: session.URL,
		AmountUSD:   plan.PriceUSD,
		AmountMinor: req.AmountMinor,
		Currency:    currency,
		Status:      models.PaymentStatusPending,
		Metadata:    datatypes.JSON(meta),
	}
	if err := repos.Payment.Create(payment); err != nil {
		return "", err
	}

	log.Infof("[Billing] Checkout %s created for user %d plan %s", session.ID, user.ID, plan.Name)
	return session.URL, nil
}

// HandleEvent applies a parsed webhook. checkout.completed activates a
// subscription and checkout.failed closes the pending payment; unknown
// checkouts and payments that are no longer pending are no-ops.
func (s *Service) HandleEvent(ctx context.Context, ev *Event) error {
	if !changesState(ev) {
		return nil
	}
	if ev.CheckoutID == "" {
		return apperr.Validation("Webhook is missing the checkout id")
	}

	payments := repository.NewPaymentRepository(s.db.WithContext(ctx))
	payment, err := payments.GetByExternalID(ev.CheckoutID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Billing] Payment not found for checkout %s", ev.CheckoutID)
			return nil
		}
		return err
	}
	if payment.IsCompleted() {
		log.Infof("[Billing] Payment %s already processed", ev.CheckoutID)
		return nil
	}

	if ev.Type == EventCheckoutFailed {
		failed, err := payments.MarkFailed(payment.ID)
		if err != nil {
			return err
		}
		if failed {
			log.Infof("[Billing] Checkout %s of user %d failed or expired", ev.CheckoutID, payment.UserID)
		}
		return nil
	}

	sub, activated, err := s.activate(ctx, payment)
	if err != nil {
		return err
	}
	if !activated {
		return nil
	}

	s.notifyActivation(ctx, payment, sub)
	return nil
}

// activate runs the whole activation in one transaction. The conditional
// flip of the payment row comes first so that a concurrent delivery blocks
// on the row and then finds nothing to do.
func (s *Service) activate(ctx context.Context, payment *models.Payment) (*models.UserSubscription, bool, error) {
	var sub *models.UserSubscription
	activated := false
	now := s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flipped, err := repository.NewPaymentRepository(tx).MarkCompleted(payment.ID, now)
		if err != nil {
			return err
		}
		if !flipped {
			return nil
		}

		token, err := models.GenerateSubscriptionToken()
		if err != nil {
			return err
		}
		externalID := payment.ExternalID
		sub = &models.UserSubscription{
			UserID:            payment.UserID,
			PlanID:            payment.PlanID,
			SubscriptionToken: token,
			CreditsRemaining:  0,
			CreditsTotal:      payment.Plan.CreditsIncluded,
			StartsAt:          now,
			ExpiresAt:         now.Add(payment.Plan.Duration()),
			IsActive:          true,
			PaymentExternalID: &externalID,
		}
		if err := repository.NewSubscriptionRepository(tx).Create(sub); err != nil {
			return err
		}

		desc := fmt.Sprintf("Purchase of plan %s", payment.Plan.Name)
		if _, err := s.ledger.WithTx(tx).Grant(ctx, payment.UserID, sub.ID, payment.Plan.CreditsIncluded, desc); err != nil {
			return err
		}
		sub.CreditsRemaining = payment.Plan.CreditsIncluded
		activated = true
		return nil
	})
	if err != nil {
		log.Errorf("[Billing] Activation of payment %s failed: %v", payment.ExternalID, err)
		return nil, false, err
	}
	if activated {
		log.Infof("[Billing] Subscription %d activated for user %d (%d credits)", sub.ID, sub.UserID, sub.CreditsTotal)
	}
	return sub, activated, nil
}

func (s *Service) notifyActivation(ctx context.Context, payment *models.Payment, sub *models.UserSubscription) {
	if s.opts.Notifier == nil {
		return
	}
	user, err := repository.NewUserRepository(s.db.WithContext(ctx)).GetByID(payment.UserID)
	if err != nil {
		log.Warnf("[Billing] Activation mail skipped, user %d not loaded: %v", payment.UserID, err)
		return
	}
	plan := payment.Plan
	if err := s.opts.Notifier.SubscriptionActivated(ctx, user, &plan, sub); err != nil {
		log.Warnf("[Billing] Activation mail for user %d failed: %v", user.ID, err)
	}
}

// WebhookDelivery is one inbound webhook request.
type WebhookDelivery struct {
	Provider       string
	Payload        []byte
	SignatureValid bool
	Event          *Event
	ParseErr       error
}

type WebhookOutcome string

const (
	WebhookProcessed WebhookOutcome = "processed"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
)

// ProcessWebhook records the delivery in the webhook ledger, rejects bad
// signatures and hands the event to HandleEvent. A redelivery is only
// skipped when an earlier delivery was processed without error.
func (s *Service) ProcessWebhook(ctx context.Context, in WebhookDelivery) (WebhookOutcome, error) {
	eventID, eventType := "", "unknown"
	if in.Event != nil {
		eventID, eventType = in.Event.ID, in.Event.Type
	}
	if in.ParseErr != nil {
		eventType = "unparseable"
	}
	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        in.Provider,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(in.Payload),
		SignatureValid:  in.SignatureValid,
	})
	if err != nil {
		return "", err
	}
	if !in.SignatureValid {
		s.markProcessed(ctx, stored.ID, errors.New("invalid webhook signature"))
		return "", ErrInvalidSignature
	}
	if !created && stored.WasProcessedCleanly() {
		return WebhookDuplicate, nil
	}
	// Unreadable payloads are acknowledged so the provider stops retrying;
	// the parse error stays on the ledger row.
	if in.ParseErr != nil {
		log.Warnf("[Billing] Ignoring unparseable %s webhook: %v", in.Provider, in.ParseErr)
		s.markProcessed(ctx, stored.ID, in.ParseErr)
		return WebhookIgnored, nil
	}
	if !changesState(in.Event) {
		s.markProcessed(ctx, stored.ID, nil)
		return WebhookIgnored, nil
	}

	handleErr := s.HandleEvent(ctx, in.Event)
	s.markProcessed(ctx, stored.ID, handleErr)
	if handleErr != nil {
		return "", handleErr
	}
	return WebhookProcessed, nil
}

func changesState(ev *Event) bool {
	return ev != nil && (ev.Type == EventCheckoutCompleted || ev.Type == EventCheckoutFailed)
}

func (s *Service) markProcessed(ctx context.Context, webhookEventID uint, processingErr error) {
	if err := s.MarkWebhookProcessed(ctx, webhookEventID, processingErr); err != nil {
		log.Errorf("[Billing] Could not mark webhook event %d processed: %v", webhookEventID, err)
	}
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, errMsg)
}

// ListActivePlans serves the plan catalog from the cache when possible.
// Cache failures only cost a database read.
func (s *Service) ListActivePlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	if s.opts.Cache != nil {
		var cached []models.SubscriptionPlan
		hit, err := s.opts.Cache.GetJSON(ctx, plansCacheKey, &cached)
		if err == nil && hit {
			return cached, nil
		}
		if err != nil {
			log.Debugf("[Billing] Plan cache read failed: %v", err)
		}
	}

	plans, err := repository.NewPlanRepository(s.db.WithContext(ctx)).ListActive()
	if err != nil {
		return nil, err
	}
	if s.opts.Cache != nil {
		if err := s.opts.Cache.SetJSON(ctx, plansCacheKey, plans, plansCacheTTL); err != nil {
			log.Debugf("[Billing] Plan cache write failed: %v", err)
		}
	}
	return plans, nil
}

// ListSubscriptions returns the user's subscriptions newest first with plan.
func (s *Service) ListSubscriptions(ctx context.Context, userID uint) ([]models.UserSubscription, error) {
	return repository.NewSubscriptionRepository(s.db.WithContext(ctx)).ListByUser(userID)
}
