package controllers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/app/repository"
	"github.com/ManuelReschke/PayFox/internal/pkg/apperror"
)

// DefaultRequestTimeout bounds the service call behind one request.
const DefaultRequestTimeout = 20 * time.Second

// respondError writes the JSON error body for err. Internal causes are only
// logged, never sent.
func respondError(c *fiber.Ctx, err error) error {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
	}

	body := fiber.Map{
		"error":   kind.String(),
		"message": apperror.PublicMessage(err),
	}
	if fields := apperror.FieldsOf(err); len(fields) > 0 {
		body["fields"] = fields
	}
	return c.Status(status).JSON(body)
}

func requestContext(c *fiber.Ctx, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return context.WithTimeout(c.UserContext(), timeout)
}

// parseBody decodes an optional or required JSON body into dst.
func parseBody(c *fiber.Ctx, dst any, required bool) error {
	if len(c.Body()) == 0 {
		if required {
			return apperror.Validation("request body is required", nil)
		}
		return nil
	}
	if err := c.BodyParser(dst); err != nil {
		return apperror.Validation("invalid JSON body", nil)
	}
	return nil
}

func parsePagination(c *fiber.Ctx) (repository.Pagination, error) {
	p := repository.Pagination{}
	var err error
	if p.Page, err = intQuery(c, "page"); err != nil {
		return p, err
	}
	if p.Limit, err = intQuery(c, "limit"); err != nil {
		return p, err
	}
	p.Normalize()
	return p, nil
}

func intQuery(c *fiber.Ctx, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.Validation("invalid query parameter", map[string]string{name: "numeric"})
	}
	return n, nil
}

func uintQuery(c *fiber.Ctx, name string) (*uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, apperror.Validation("invalid query parameter", map[string]string{name: "numeric"})
	}
	v := uint(n)
	return &v, nil
}

// timeQuery accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func timeQuery(c *fiber.Ctx, name string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, apperror.Validation("invalid query parameter", map[string]string{name: "datetime"})
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func listResponse(c *fiber.Ctx, items any, total int64, p repository.Pagination) error {
	pages := (total + int64(p.Limit) - 1) / int64(p.Limit)
	return c.JSON(fiber.Map{
		"data": items,
		"pagination": fiber.Map{
			"page":        p.Page,
			"limit":       p.Limit,
			"total":       total,
			"total_pages": pages,
		},
	})
}
