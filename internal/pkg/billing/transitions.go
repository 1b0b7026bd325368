package billing

import "github.com/ManuelReschke/PayFox/app/models"

var paymentTransitions = map[models.PaymentStatus]map[models.PaymentStatus]struct{}{
	models.PaymentStatusPending: {
		models.PaymentStatusApproved:    {},
		models.PaymentStatusAuthorized:  {},
		models.PaymentStatusInProcess:   {},
		models.PaymentStatusInMediation: {},
		models.PaymentStatusRejected:    {},
		models.PaymentStatusCancelled:   {},
	},
	models.PaymentStatusAuthorized: {
		models.PaymentStatusApproved:  {},
		models.PaymentStatusCancelled: {},
	},
	models.PaymentStatusInProcess: {
		models.PaymentStatusApproved:  {},
		models.PaymentStatusRejected:  {},
		models.PaymentStatusCancelled: {},
	},
	models.PaymentStatusInMediation: {
		models.PaymentStatusApproved:    {},
		models.PaymentStatusChargedBack: {},
		models.PaymentStatusRefunded:    {},
	},
	models.PaymentStatusApproved: {
		models.PaymentStatusRefunded:    {},
		models.PaymentStatusChargedBack: {},
	},
}

var subscriptionTransitions = map[models.SubscriptionStatus]map[models.SubscriptionStatus]struct{}{
	models.SubscriptionStatusPending: {
		models.SubscriptionStatusAuthorized:    {},
		models.SubscriptionStatusActive:        {},
		models.SubscriptionStatusCancelled:     {},
		models.SubscriptionStatusPaymentFailed: {},
	},
	models.SubscriptionStatusAuthorized: {
		models.SubscriptionStatusActive:        {},
		models.SubscriptionStatusPaused:        {},
		models.SubscriptionStatusCancelled:     {},
		models.SubscriptionStatusPaymentFailed: {},
	},
	models.SubscriptionStatusActive: {
		models.SubscriptionStatusPaused:        {},
		models.SubscriptionStatusCancelled:     {},
		models.SubscriptionStatusPaymentFailed: {},
		models.SubscriptionStatusEnded:         {},
	},
	models.SubscriptionStatusPaused: {
		models.SubscriptionStatusActive:        {},
		models.SubscriptionStatusCancelled:     {},
		models.SubscriptionStatusPaymentFailed: {},
		models.SubscriptionStatusEnded:         {},
	},
}

// CanTransitionPayment reports whether from -> to is an edge of the payment graph.
func CanTransitionPayment(from, to models.PaymentStatus) bool {
	next, ok := paymentTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// CanTransitionSubscription reports whether from -> to is an edge of the
// subscription graph.
func CanTransitionSubscription(from, to models.SubscriptionStatus) bool {
	next, ok := subscriptionTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}
