package gateway

import (
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/app/models"
)

// MapPaymentStatus translates a gateway payment status. It is total: any
// unrecognized value maps to PENDING, which keeps the record non-terminal so
// a later notification can still move it, and is logged as a warning so new
// gateway statuses show up in the logs.
func MapPaymentStatus(gatewayStatus string) models.PaymentStatus {
	switch normalizeStatus(gatewayStatus) {
	case "pending":
		return models.PaymentStatusPending
	case "approved", "accredited":
		return models.PaymentStatusApproved
	case "authorized":
		return models.PaymentStatusAuthorized
	case "in_process":
		return models.PaymentStatusInProcess
	case "in_mediation":
		return models.PaymentStatusInMediation
	case "rejected":
		return models.PaymentStatusRejected
	case "cancelled", "canceled":
		return models.PaymentStatusCancelled
	case "refunded":
		return models.PaymentStatusRefunded
	case "charged_back", "chargeback":
		return models.PaymentStatusChargedBack
	default:
		log.Warnf("[Gateway] Unknown payment status %q, defaulting to %s", gatewayStatus, models.PaymentStatusPending)
		return models.PaymentStatusPending
	}
}

// MapSubscriptionStatus translates a gateway subscription status. Unknown
// values map to PENDING with a warning, same as payments.
func MapSubscriptionStatus(gatewayStatus string) models.SubscriptionStatus {
	switch normalizeStatus(gatewayStatus) {
	case "pending":
		return models.SubscriptionStatusPending
	case "authorized":
		return models.SubscriptionStatusAuthorized
	case "active":
		return models.SubscriptionStatusActive
	case "paused":
		return models.SubscriptionStatusPaused
	case "cancelled", "canceled":
		return models.SubscriptionStatusCancelled
	case "finished", "ended", "expired":
		return models.SubscriptionStatusEnded
	case "payment_failed", "failed":
		return models.SubscriptionStatusPaymentFailed
	default:
		log.Warnf("[Gateway] Unknown subscription status %q, defaulting to %s", gatewayStatus, models.SubscriptionStatusPending)
		return models.SubscriptionStatusPending
	}
}

func normalizeStatus(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}
