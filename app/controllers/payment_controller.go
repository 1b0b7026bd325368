package controllers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/app/repository"
	"github.com/ManuelReschke/PayFox/internal/pkg/billing"
	"github.com/ManuelReschke/PayFox/internal/pkg/usercontext"
)

// PaymentController exposes one-time payments under /api/v1/payments.
type PaymentController struct {
	payments *billing.PaymentService
	timeout  time.Duration
}

func NewPaymentController(payments *billing.PaymentService, timeout time.Duration) *PaymentController {
	return &PaymentController{payments: payments, timeout: timeout}
}

// HandleCreatePayment handles POST /payments.
func (pc *PaymentController) HandleCreatePayment(c *fiber.Ctx) error {
	var in billing.CreatePaymentInput
	if err := parseBody(c, &in, true); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := requestContext(c, pc.timeout)
	defer cancel()

	payment, err := pc.payments.CreatePayment(ctx, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(payment)
}

func (pc *PaymentController) HandleGetPayment(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, pc.timeout)
	defer cancel()

	payment, err := pc.payments.GetPayment(ctx, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(payment)
}

// HandleListPayments handles GET /payments with optional account_id, status,
// type, start_date and end_date filters.
func (pc *PaymentController) HandleListPayments(c *fiber.Ctx) error {
	page, err := parsePagination(c)
	if err != nil {
		return respondError(c, err)
	}
	filter := repository.PaymentFilter{
		Pagination: page,
		Status:     models.PaymentStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Type:       models.PaymentType(strings.ToLower(strings.TrimSpace(c.Query("type")))),
	}
	if filter.AccountID, err = uintQuery(c, "account_id"); err != nil {
		return respondError(c, err)
	}
	if filter.From, err = timeQuery(c, "start_date", false); err != nil {
		return respondError(c, err)
	}
	if filter.To, err = timeQuery(c, "end_date", true); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := requestContext(c, pc.timeout)
	defer cancel()

	items, total, err := pc.payments.ListPayments(ctx, filter)
	if err != nil {
		return respondError(c, err)
	}
	return listResponse(c, items, total, filter.Pagination)
}

func (pc *PaymentController) HandleCancelPayment(c *fiber.Ctx) error {
	var in billing.CancelInput
	if err := parseBody(c, &in, false); err != nil {
		return respondError(c, err)
	}
	in.ActorID = usercontext.GetActorID(c)

	ctx, cancel := requestContext(c, pc.timeout)
	defer cancel()

	payment, err := pc.payments.CancelPayment(ctx, c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(payment)
}

func (pc *PaymentController) HandleRefundPayment(c *fiber.Ctx) error {
	var in billing.RefundInput
	if err := parseBody(c, &in, false); err != nil {
		return respondError(c, err)
	}
	in.ActorID = usercontext.GetActorID(c)

	ctx, cancel := requestContext(c, pc.timeout)
	defer cancel()

	payment, err := pc.payments.RefundPayment(ctx, c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(payment)
}
