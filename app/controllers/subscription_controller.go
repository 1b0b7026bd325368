package controllers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/app/repository"
	"github.com/ManuelReschke/PayFox/internal/pkg/apperror"
	"github.com/ManuelReschke/PayFox/internal/pkg/billing"
	"github.com/ManuelReschke/PayFox/internal/pkg/security"
	"github.com/ManuelReschke/PayFox/internal/pkg/usercontext"
)

// SubscriptionController exposes subscriptions under /api/v1/subscriptions.
type SubscriptionController struct {
	subscriptions *billing.SubscriptionService
	timeout       time.Duration
}

func NewSubscriptionController(subs *billing.SubscriptionService, timeout time.Duration) *SubscriptionController {
	return &SubscriptionController{subscriptions: subs, timeout: timeout}
}

// HandleCreateSubscription handles POST /subscriptions. Exempted
// subscriptions additionally need the exempt capability; the granting user
// defaults to the acting user.
func (sc *SubscriptionController) HandleCreateSubscription(c *fiber.Ctx) error {
	var in billing.CreateSubscriptionInput
	if err := parseBody(c, &in, true); err != nil {
		return respondError(c, err)
	}
	if in.IsExempted {
		if !usercontext.Can(c, security.CapSubscriptionsExempt) {
			return respondError(c, apperror.Forbidden("granting exempted subscriptions is not allowed for this key"))
		}
		if in.ExemptionGrantedBy == nil {
			in.ExemptionGrantedBy = usercontext.GetActorID(c)
		}
	}

	ctx, cancel := requestContext(c, sc.timeout)
	defer cancel()

	sub, err := sc.subscriptions.CreateSubscription(ctx, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

func (sc *SubscriptionController) HandleGetSubscription(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, sc.timeout)
	defer cancel()

	sub, err := sc.subscriptions.GetSubscription(ctx, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

func (sc *SubscriptionController) HandleListSubscriptions(c *fiber.Ctx) error {
	page, err := parsePagination(c)
	if err != nil {
		return respondError(c, err)
	}
	filter := repository.SubscriptionFilter{
		Pagination: page,
		Status:     models.SubscriptionStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		PlanID:     strings.TrimSpace(c.Query("plan_id")),
	}
	if filter.AccountID, err = uintQuery(c, "account_id"); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := requestContext(c, sc.timeout)
	defer cancel()

	items, total, err := sc.subscriptions.ListSubscriptions(ctx, filter)
	if err != nil {
		return respondError(c, err)
	}
	return listResponse(c, items, total, filter.Pagination)
}

func (sc *SubscriptionController) HandleCancelSubscription(c *fiber.Ctx) error {
	var in billing.CancelInput
	if err := parseBody(c, &in, false); err != nil {
		return respondError(c, err)
	}
	in.ActorID = usercontext.GetActorID(c)

	ctx, cancel := requestContext(c, sc.timeout)
	defer cancel()

	sub, err := sc.subscriptions.CancelSubscription(ctx, c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

func (sc *SubscriptionController) HandlePauseSubscription(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, sc.timeout)
	defer cancel()

	sub, err := sc.subscriptions.PauseSubscription(ctx, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

func (sc *SubscriptionController) HandleReactivateSubscription(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, sc.timeout)
	defer cancel()

	sub, err := sc.subscriptions.ReactivateSubscription(ctx, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}
