package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayFox/internal/pkg/apperror"
	"github.com/ManuelReschke/PayFox/internal/pkg/health"
)

// StatsSource provides the billing event counters.
type StatsSource interface {
	Snapshot(ctx context.Context) (map[string]int64, error)
}

// AdminController serves operational endpoints: readiness and counters.
type AdminController struct {
	checker *health.Checker
	stats   StatsSource
	timeout time.Duration
}

func NewAdminController(checker *health.Checker, stats StatsSource, timeout time.Duration) *AdminController {
	return &AdminController{checker: checker, stats: stats, timeout: timeout}
}

// HandleHealth answers 200 when every dependency is up and 503 otherwise.
func (ac *AdminController) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, ac.timeout)
	defer cancel()

	report := ac.checker.Run(ctx)
	status := fiber.StatusOK
	if !report.Healthy() {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(report)
}

func (ac *AdminController) HandleStats(c *fiber.Ctx) error {
	if ac.stats == nil {
		return respondError(c, apperror.NotFound("counters are not enabled"))
	}
	ctx, cancel := requestContext(c, ac.timeout)
	defer cancel()

	counters, err := ac.stats.Snapshot(ctx)
	if err != nil {
		return respondError(c, apperror.Internal("load counters", err))
	}
	return c.JSON(fiber.Map{
		"counters":     counters,
		"generated_at": time.Now().UTC(),
	})
}
