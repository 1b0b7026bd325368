package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/app/repository"
	"github.com/ManuelReschke/PayFox/internal/pkg/apperror"
	"github.com/ManuelReschke/PayFox/internal/pkg/gateway"
)

const compensationTimeout = 10 * time.Second

// SubscriptionService manages recurring subscriptions and holds the rule
// that an account has at most one non-terminal subscription.
type SubscriptionService struct {
	subscriptions repository.SubscriptionRepository
	plans         repository.PlanRepository
	gateway       gateway.Client
	recorder      EventRecorder
	now           func() time.Time
}

// NewSubscriptionService wires the service. recorder may be nil.
func NewSubscriptionService(subs repository.SubscriptionRepository, plans repository.PlanRepository, gw gateway.Client, recorder EventRecorder) *SubscriptionService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &SubscriptionService{
		subscriptions: subs,
		plans:         plans,
		gateway:       gw,
		recorder:      recorder,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateSubscription runs validate, plan lookup, the active-subscription
// check, the gateway call and the insert, strictly in that order.
// Exempted subscriptions never reach the gateway.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*models.Subscription, error) {
	in.normalize()
	if err := validateCreateSubscription(&in); err != nil {
		return nil, err
	}

	plan, err := s.resolvePlan(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}

	existing, err := s.subscriptions.FindActiveByAccount(ctx, in.AccountID)
	if err == nil {
		return nil, apperror.Conflict(fmt.Sprintf("account %d already has subscription %s in status %s", in.AccountID, existing.ID, existing.Status))
	}
	if !apperror.Is(err, apperror.KindNotFound) {
		return nil, err
	}

	now := s.now()
	sub := &models.Subscription{
		ID:              uuid.NewString(),
		AccountID:       in.AccountID,
		PlanID:          plan.ID,
		StartDate:       now,
		PaymentMethodID: in.PaymentMethodID,
		Amount:          plan.Amount,
		Currency:        plan.Currency,
		Frequency:       plan.Frequency,
		FrequencyType:   plan.FrequencyType,
		AutoRecurring:   in.autoRecurring(),
		Metadata:        newMetadata(in.Metadata),
	}
	sub.Metadata["last_update"] = timestamp(now)

	if in.IsExempted {
		return s.createExempted(ctx, sub, in, plan)
	}

	gs, err := s.gateway.CreateSubscription(ctx, gateway.SubscriptionRequest{
		ExternalReference: sub.ID,
		PlanID:            plan.ID,
		Reason:            plan.Name,
		PayerEmail:        in.Payer.Email,
		CardToken:         in.cardToken(),
		PaymentMethodID:   in.PaymentMethodID,
		Amount:            plan.Amount,
		Currency:          plan.Currency,
		Frequency:         plan.Frequency,
		FrequencyType:     string(plan.FrequencyType),
		AutoRecurring:     sub.AutoRecurring,
		IdempotencyKey:    sub.ID,
	})
	if err != nil {
		s.recorder.Record(ctx, EventGatewayError)
		log.Errorf("[Billing] Gateway rejected subscription for account %d: %v", in.AccountID, err)
		return nil, apperror.Gateway("payment gateway request failed", err)
	}

	externalID := gs.ID
	sub.ExternalID = &externalID
	sub.Status = gateway.MapSubscriptionStatus(gs.Status)
	sub.Metadata["gateway_status"] = gs.Status
	if gs.StartDate != nil {
		sub.StartDate = gs.StartDate.UTC()
	}
	sub.NextPaymentDate = gs.NextPaymentDate
	sub.EndDate = gs.EndDate
	if !sub.AutoRecurring && sub.EndDate == nil {
		end := sub.FrequencyType.AddTo(sub.StartDate, sub.Frequency)
		sub.EndDate = &end
	}

	if err := s.subscriptions.Create(ctx, sub); err != nil {
		s.compensate(ctx, externalID)
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperror.Conflict(fmt.Sprintf("account %d already has an active subscription", in.AccountID))
		}
		log.Errorf("[Billing] Subscription %s accepted by gateway as %s but not stored: %v", sub.ID, externalID, err)
		return nil, storeError(err, "subscription")
	}

	s.recorder.Record(ctx, EventSubscriptionCreated)
	log.Infof("[Billing] Created subscription %s (gateway %s) for account %d with status %s", sub.ID, externalID, sub.AccountID, sub.Status)
	return sub, nil
}

func (s *SubscriptionService) createExempted(ctx context.Context, sub *models.Subscription, in CreateSubscriptionInput, plan *models.SubscriptionPlan) (*models.Subscription, error) {
	sub.Status = models.SubscriptionStatusActive
	sub.IsExempted = true
	sub.ExemptionReason = in.ExemptionReason
	sub.ExemptionGrantedBy = in.ExemptionGrantedBy
	if !sub.AutoRecurring {
		end := plan.FrequencyType.AddTo(sub.StartDate, plan.Frequency)
		sub.EndDate = &end
	}

	if err := s.subscriptions.Create(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperror.Conflict(fmt.Sprintf("account %d already has an active subscription", in.AccountID))
		}
		return nil, storeError(err, "subscription")
	}

	s.recorder.Record(ctx, EventSubscriptionExempt)
	log.Infof("[Billing] Granted exempted subscription %s on plan %s to account %d (by %d)", sub.ID, plan.ID, sub.AccountID, *in.ExemptionGrantedBy)
	return sub, nil
}

// compensate cancels a gateway subscription whose local insert failed so it
// cannot keep charging. It runs even when the request context is done.
func (s *SubscriptionService) compensate(ctx context.Context, externalID string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if _, err := s.gateway.CancelSubscription(cctx, externalID); err != nil {
		s.recorder.Record(ctx, EventGatewayError)
		log.Errorf("[Billing] Compensating cancel of gateway subscription %s failed, manual cleanup needed: %v", externalID, err)
		return
	}
	log.Warnf("[Billing] Cancelled orphan gateway subscription %s", externalID)
}

// resolvePlan looks the plan up locally and falls back to the gateway, which
// owns plans. Gateway plans are mirrored into the local table.
func (s *SubscriptionService) resolvePlan(ctx context.Context, planID string) (*models.SubscriptionPlan, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil && !apperror.Is(err, apperror.KindNotFound) {
		return nil, err
	}
	if err != nil {
		gp, gwErr := s.gateway.GetPlan(ctx, planID)
		if gwErr != nil {
			var notFound *gateway.Error
			if errors.As(gwErr, &notFound) && notFound.NotFound() {
				return nil, apperror.NotFound(fmt.Sprintf("plan %s not found", planID))
			}
			s.recorder.Record(ctx, EventGatewayError)
			return nil, apperror.Gateway("payment gateway plan lookup failed", gwErr)
		}
		plan = planFromGateway(gp)
		if err := s.plans.Upsert(ctx, plan); err != nil {
			log.Warnf("[Billing] Could not mirror gateway plan %s: %v", plan.ID, err)
		}
	}

	if !plan.IsActive() {
		return nil, apperror.Validation("plan is not active", map[string]string{"plan_id": "active"})
	}
	if !plan.Amount.IsPositive() || len(plan.Currency) != 3 {
		return nil, apperror.Internal(fmt.Sprintf("plan %s has no usable price", plan.ID), nil)
	}
	if plan.Frequency < 1 {
		plan.Frequency = 1
	}
	return plan, nil
}

func planFromGateway(gp *gateway.Plan) *models.SubscriptionPlan {
	status := models.PlanStatusInactive
	if gp.Status == "active" {
		status = models.PlanStatusActive
	}
	return &models.SubscriptionPlan{
		ID:            gp.ID,
		Name:          gp.Name,
		Amount:        gp.Amount,
		Currency:      strings.ToUpper(gp.Currency),
		Frequency:     gp.Frequency,
		FrequencyType: parseFrequencyType(gp.FrequencyType),
		Status:        status,
	}
}

func parseFrequencyType(v string) models.FrequencyType {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "day", "days":
		return models.FrequencyDays
	case "year", "years":
		return models.FrequencyYears
	default:
		return models.FrequencyMonths
	}
}

func (s *SubscriptionService) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	return s.subscriptions.GetByID(ctx, id)
}

func (s *SubscriptionService) ListSubscriptions(ctx context.Context, filter repository.SubscriptionFilter) ([]models.Subscription, int64, error) {
	filter.Normalize()
	return s.subscriptions.List(ctx, filter)
}

// CancelSubscription cancels a non-terminal subscription. The gateway is
// skipped for exempted subscriptions.
func (s *SubscriptionService) CancelSubscription(ctx context.Context, id string, in CancelInput) (*models.Subscription, error) {
	if err := validateCancel(&in); err != nil {
		return nil, err
	}
	sub, err := s.subscriptions.GetByIDFresh(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status.IsTerminal() {
		return nil, apperror.Conflict(fmt.Sprintf("subscription in status %s cannot be cancelled", sub.Status))
	}

	if s.usesGateway(sub) {
		if _, err := s.gateway.CancelSubscription(ctx, sub.ExternalRef()); err != nil {
			return nil, s.gatewayFailure(ctx, "cancel", sub, err)
		}
	}

	now := s.now()
	updated, err := s.applySubscriptionStatus(ctx, sub, models.SubscriptionStatusCancelled,
		func(st models.SubscriptionStatus) bool { return !st.IsTerminal() },
		func(sub *models.Subscription) {
			sub.EndDate = &now
			sub.NextPaymentDate = nil
			sub.Metadata["cancellation"] = map[string]any{
				"reason":       in.Reason,
				"actor":        actorValue(in.ActorID),
				"cancelled_at": timestamp(now),
			}
			sub.Metadata["last_update"] = timestamp(now)
		})
	if err != nil {
		return nil, err
	}
	log.Infof("[Billing] Cancelled subscription %s", updated.ID)
	return updated, nil
}

func canPause(st models.SubscriptionStatus) bool {
	return st == models.SubscriptionStatusActive || st == models.SubscriptionStatusAuthorized
}

func canReactivate(st models.SubscriptionStatus) bool {
	return st == models.SubscriptionStatusPaused
}

// PauseSubscription pauses an ACTIVE or AUTHORIZED subscription.
func (s *SubscriptionService) PauseSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	sub, err := s.subscriptions.GetByIDFresh(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canPause(sub.Status) {
		return nil, apperror.Conflict(fmt.Sprintf("subscription in status %s cannot be paused", sub.Status))
	}
	if s.usesGateway(sub) {
		if _, err := s.gateway.PauseSubscription(ctx, sub.ExternalRef()); err != nil {
			return nil, s.gatewayFailure(ctx, "pause", sub, err)
		}
	}

	now := s.now()
	return s.applySubscriptionStatus(ctx, sub, models.SubscriptionStatusPaused, canPause, func(sub *models.Subscription) {
		sub.Metadata["paused_at"] = timestamp(now)
		sub.Metadata["last_update"] = timestamp(now)
	})
}

// ReactivateSubscription resumes a PAUSED subscription. A non-renewing
// subscription whose term is over cannot come back.
func (s *SubscriptionService) ReactivateSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	sub, err := s.subscriptions.GetByIDFresh(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canReactivate(sub.Status) {
		return nil, apperror.Conflict(fmt.Sprintf("subscription in status %s cannot be reactivated", sub.Status))
	}
	now := s.now()
	if !sub.AutoRecurring && sub.HasElapsed(now) {
		return nil, apperror.Conflict("subscription term has elapsed")
	}
	if s.usesGateway(sub) {
		if _, err := s.gateway.ReactivateSubscription(ctx, sub.ExternalRef()); err != nil {
			return nil, s.gatewayFailure(ctx, "reactivate", sub, err)
		}
	}

	return s.applySubscriptionStatus(ctx, sub, models.SubscriptionStatusActive, canReactivate, func(sub *models.Subscription) {
		sub.Metadata["reactivated_at"] = timestamp(now)
		sub.Metadata["last_update"] = timestamp(now)
	})
}

// Reconcile re-reads the subscription from the gateway and applies status and
// next payment date. Terminal local rows only get metadata.
func (s *SubscriptionService) Reconcile(ctx context.Context, externalID string) (*models.Subscription, error) {
	gs, err := s.gateway.GetSubscription(ctx, externalID)
	if err != nil {
		s.recorder.Record(ctx, EventGatewayError)
		return nil, apperror.Gateway("payment gateway lookup failed", err)
	}
	return s.applyGatewaySubscription(ctx, gs, true)
}

func (s *SubscriptionService) applyGatewaySubscription(ctx context.Context, gs *gateway.Subscription, retry bool) (*models.Subscription, error) {
	sub, err := s.subscriptions.GetByExternalID(ctx, gs.ID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			log.Warnf("[Billing] Gateway subscription %s has no local row yet", gs.ID)
		}
		return nil, err
	}

	now := s.now()
	sub.Metadata = ensureMetadata(sub.Metadata)
	target := gateway.MapSubscriptionStatus(gs.Status)
	// The gateway keeps reporting "authorized" for a running subscription.
	if target == models.SubscriptionStatusAuthorized &&
		(sub.Status == models.SubscriptionStatusActive || sub.Status == models.SubscriptionStatusPaused) {
		target = models.SubscriptionStatusActive
	}

	// Terminal rows stay put, and so do rows for which the reported status is
	// a non-terminal target with no edge from the stored status.
	refused := sub.Status != target && !target.IsTerminal() && !CanTransitionSubscription(sub.Status, target)
	if sub.Status.IsTerminal() || refused {
		if sub.Status != target {
			log.Warnf("[Billing] Subscription %s stays %s; ignoring gateway status %q (%s)", sub.ID, sub.Status, gs.Status, target)
			sub.Metadata["gateway_reported_status"] = gs.Status
		}
		return s.touch(ctx, sub, now)
	}
	if sub.Status == target && sameInstant(sub.NextPaymentDate, gs.NextPaymentDate) {
		return s.touch(ctx, sub, now)
	}

	if sub.Status != target && !CanTransitionSubscription(sub.Status, target) {
		log.Warnf("[Billing] Subscription %s moves %s -> %s outside the status graph; applying terminal gateway state", sub.ID, sub.Status, target)
	}

	from := sub.Status
	sub.Status = target
	sub.NextPaymentDate = gs.NextPaymentDate
	if target.IsTerminal() {
		end := now
		if gs.EndDate != nil && !gs.EndDate.After(now) {
			end = gs.EndDate.UTC()
		}
		sub.EndDate = &end
		sub.NextPaymentDate = nil
	}
	sub.Metadata["gateway_status"] = gs.Status
	sub.Metadata["last_update"] = timestamp(now)

	err = s.subscriptions.UpdateStatus(ctx, sub, from)
	if errors.Is(err, repository.ErrStaleWrite) {
		if retry {
			return s.applyGatewaySubscription(ctx, gs, false)
		}
		return nil, apperror.Conflict("subscription changed concurrently")
	}
	if errors.Is(err, repository.ErrDuplicateKey) {
		return nil, apperror.Conflict(fmt.Sprintf("account %d already has an active subscription", sub.AccountID))
	}
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, EventReconciled)
	log.Infof("[Billing] Reconciled subscription %s: %s -> %s", sub.ID, from, target)
	return sub, nil
}

func (s *SubscriptionService) touch(ctx context.Context, sub *models.Subscription, now time.Time) (*models.Subscription, error) {
	sub.Metadata["last_update"] = timestamp(now)
	if err := s.subscriptions.UpdateMetadata(ctx, sub); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, EventReconcileNoop)
	return sub, nil
}

// ExpireElapsed ends ACTIVE or PAUSED non-renewing subscriptions whose end
// date has passed. A gateway subscription that cannot be cancelled is left
// for the next run.
func (s *SubscriptionService) ExpireElapsed(ctx context.Context, now time.Time) (int, error) {
	subs, err := s.subscriptions.ListElapsed(ctx, now, repository.MaxLimit)
	if err != nil {
		return 0, err
	}

	ended := 0
	for i := range subs {
		sub := &subs[i]
		if s.usesGateway(sub) {
			if _, err := s.gateway.CancelSubscription(ctx, sub.ExternalRef()); err != nil {
				var gwErr *gateway.Error
				if !errors.As(err, &gwErr) || !gwErr.NotFound() {
					s.recorder.Record(ctx, EventGatewayError)
					log.Warnf("[Billing] Could not stop gateway subscription %s for expiry: %v", sub.ExternalRef(), err)
					continue
				}
			}
		}

		from := sub.Status
		sub.Status = models.SubscriptionStatusEnded
		sub.NextPaymentDate = nil
		sub.Metadata = ensureMetadata(sub.Metadata)
		sub.Metadata["ended_at"] = timestamp(now)
		sub.Metadata["last_update"] = timestamp(now)
		if err := s.subscriptions.UpdateStatus(ctx, sub, from); err != nil {
			if errors.Is(err, repository.ErrStaleWrite) {
				log.Infof("[Billing] Subscription %s changed before expiry, skipping", sub.ID)
				continue
			}
			return ended, err
		}
		ended++
		s.recorder.Record(ctx, EventSubscriptionEnded)
	}
	if ended > 0 {
		log.Infof("[Billing] Ended %d elapsed subscriptions", ended)
	}
	return ended, nil
}

func (s *SubscriptionService) usesGateway(sub *models.Subscription) bool {
	return !sub.IsExempted && sub.ExternalID != nil
}

func (s *SubscriptionService) gatewayFailure(ctx context.Context, op string, sub *models.Subscription, err error) error {
	s.recorder.Record(ctx, EventGatewayError)
	log.Errorf("[Billing] Gateway %s failed for subscription %s: %v", op, sub.ID, err)
	return apperror.Gateway("payment gateway "+op+" failed", err)
}

// applySubscriptionStatus writes an explicit transition guarded by the status
// that was loaded. If the row moved in between, it is reloaded once: already
// at target is success, a still-legal source is retried, anything else is a
// conflict.
func (s *SubscriptionService) applySubscriptionStatus(
	ctx context.Context,
	sub *models.Subscription,
	target models.SubscriptionStatus,
	allowed func(models.SubscriptionStatus) bool,
	mutate func(*models.Subscription),
) (*models.Subscription, error) {
	for attempt := 0; attempt < 2; attempt++ {
		from := sub.Status
		sub.Metadata = ensureMetadata(sub.Metadata)
		mutate(sub)
		sub.Status = target

		err := s.subscriptions.UpdateStatus(ctx, sub, from)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, repository.ErrStaleWrite) {
			return nil, err
		}

		current, err := s.subscriptions.GetByIDFresh(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == target {
			return current, nil
		}
		if !allowed(current.Status) {
			return nil, apperror.Conflict(fmt.Sprintf("subscription is now in status %s", current.Status))
		}
		sub = current
	}
	return nil, apperror.Conflict("subscription changed concurrently")
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Truncate(time.Second).Equal(b.Truncate(time.Second))
}
