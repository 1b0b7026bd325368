package repository

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/internal/pkg/cache"
)

func paymentCacheKey(id string) string {
	return "payment:" + id
}

func subscriptionCacheKey(id string) string {
	return "subscription:" + id
}

// cachedPaymentRepository serves GetByID through the cache and drops the key
// on every write before returning. Cache failures never fail the call. The
// cached row is for display only; mutating paths load with GetByIDFresh.
type cachedPaymentRepository struct {
	PaymentRepository
	store *cache.Store
}

func NewCachedPaymentRepository(next PaymentRepository, store *cache.Store) PaymentRepository {
	return &cachedPaymentRepository{PaymentRepository: next, store: store}
}

func (r *cachedPaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	key := paymentCacheKey(id)
	var cached models.Payment
	if hit, err := r.store.GetJSON(key, &cached); err != nil {
		log.Warnf("[Cache] Read %s failed: %v", key, err)
	} else if hit {
		return &cached, nil
	}

	payment, err := r.PaymentRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.store.SetJSON(key, payment); err != nil {
		log.Warnf("[Cache] Write %s failed: %v", key, err)
	}
	return payment, nil
}

// GetByIDFresh bypasses the cache and drops whatever entry it holds, since a
// concurrent fill may have stored an outdated row.
func (r *cachedPaymentRepository) GetByIDFresh(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := r.PaymentRepository.GetByIDFresh(ctx, id)
	invalidate(r.store, paymentCacheKey(id))
	return payment, err
}

func (r *cachedPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if err := r.PaymentRepository.Create(ctx, payment); err != nil {
		return err
	}
	invalidate(r.store, paymentCacheKey(payment.ID))
	return nil
}

func (r *cachedPaymentRepository) UpdateStatus(ctx context.Context, payment *models.Payment, from models.PaymentStatus) error {
	err := r.PaymentRepository.UpdateStatus(ctx, payment, from)
	invalidate(r.store, paymentCacheKey(payment.ID))
	return err
}

func (r *cachedPaymentRepository) UpdateMetadata(ctx context.Context, payment *models.Payment) error {
	err := r.PaymentRepository.UpdateMetadata(ctx, payment)
	invalidate(r.store, paymentCacheKey(payment.ID))
	return err
}

type cachedSubscriptionRepository struct {
	SubscriptionRepository
	store *cache.Store
}

func NewCachedSubscriptionRepository(next SubscriptionRepository, store *cache.Store) SubscriptionRepository {
	return &cachedSubscriptionRepository{SubscriptionRepository: next, store: store}
}

func (r *cachedSubscriptionRepository) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	key := subscriptionCacheKey(id)
	var cached models.Subscription
	if hit, err := r.store.GetJSON(key, &cached); err != nil {
		log.Warnf("[Cache] Read %s failed: %v", key, err)
	} else if hit {
		// active_account_key is not serialized.
		cached.ActiveAccountKey = cached.ComputeActiveAccountKey()
		return &cached, nil
	}

	sub, err := r.SubscriptionRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.store.SetJSON(key, sub); err != nil {
		log.Warnf("[Cache] Write %s failed: %v", key, err)
	}
	return sub, nil
}

func (r *cachedSubscriptionRepository) GetByIDFresh(ctx context.Context, id string) (*models.Subscription, error) {
	sub, err := r.SubscriptionRepository.GetByIDFresh(ctx, id)
	invalidate(r.store, subscriptionCacheKey(id))
	return sub, err
}

func (r *cachedSubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	if err := r.SubscriptionRepository.Create(ctx, sub); err != nil {
		return err
	}
	invalidate(r.store, subscriptionCacheKey(sub.ID))
	return nil
}

func (r *cachedSubscriptionRepository) UpdateStatus(ctx context.Context, sub *models.Subscription, from models.SubscriptionStatus) error {
	err := r.SubscriptionRepository.UpdateStatus(ctx, sub, from)
	invalidate(r.store, subscriptionCacheKey(sub.ID))
	return err
}

func (r *cachedSubscriptionRepository) UpdateMetadata(ctx context.Context, sub *models.Subscription) error {
	err := r.SubscriptionRepository.UpdateMetadata(ctx, sub)
	invalidate(r.store, subscriptionCacheKey(sub.ID))
	return err
}

func invalidate(store *cache.Store, key string) {
	if err := store.Delete(key); err != nil {
		log.Warnf("[Cache] Invalidate %s failed: %v", key, err)
	}
}
