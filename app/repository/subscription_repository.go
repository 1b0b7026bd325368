package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/PayFox/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Create inserts the subscription. A second live subscription for the same
// account is rejected by ux_subscriptions_active_account and surfaces as
// ErrDuplicateKey.
func (r *subscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	return translate(r.db.WithContext(ctx).Create(sub).Error, "subscription")
}

func (r *subscriptionRepository) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, translate(err, "subscription")
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByIDFresh(ctx context.Context, id string) (*models.Subscription, error) {
	return r.GetByID(ctx, id)
}

func (r *subscriptionRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&sub).Error; err != nil {
		return nil, translate(err, "subscription")
	}
	return &sub, nil
}

func (r *subscriptionRepository) FindActiveByAccount(ctx context.Context, accountID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND status IN ?", accountID, models.NonTerminalSubscriptionStatuses).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, translate(err, "active subscription")
	}
	return &sub, nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter SubscriptionFilter) ([]models.Subscription, int64, error) {
	filter.Normalize()

	q := r.db.WithContext(ctx).Model(&models.Subscription{})
	if filter.AccountID != nil {
		q = q.Where("account_id = ?", *filter.AccountID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.PlanID != "" {
		q = q.Where("plan_id = ?", filter.PlanID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "subscriptions")
	}

	var subs []models.Subscription
	err := q.Order("created_at DESC").Order("id").Offset(filter.Offset()).Limit(filter.Limit).Find(&subs).Error
	if err != nil {
		return nil, 0, translate(err, "subscriptions")
	}
	return subs, total, nil
}

// UpdateStatus writes the lifecycle columns guarded by the expected current
// status. active_account_key is recomputed here since map updates skip hooks.
func (r *subscriptionRepository) UpdateStatus(ctx context.Context, sub *models.Subscription, from models.SubscriptionStatus) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND status = ?", sub.ID, from).
		Updates(map[string]any{
			"status":             sub.Status,
			"active_account_key": sub.ComputeActiveAccountKey(),
			"end_date":           sub.EndDate,
			"next_payment_date":  sub.NextPaymentDate,
			"metadata":           sub.Metadata,
			"updated_at":         now,
		})
	if res.Error != nil {
		return translate(res.Error, "subscription")
	}
	if res.RowsAffected == 0 {
		return ErrStaleWrite
	}
	sub.ActiveAccountKey = sub.ComputeActiveAccountKey()
	sub.UpdatedAt = now
	return nil
}

func (r *subscriptionRepository) UpdateMetadata(ctx context.Context, sub *models.Subscription) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]any{"metadata": sub.Metadata, "updated_at": now})
	if res.Error != nil {
		return translate(res.Error, "subscription")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "subscription")
	}
	sub.UpdatedAt = now
	return nil
}

func (r *subscriptionRepository) ListElapsed(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	if limit < 1 {
		limit = MaxLimit
	}
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status IN ? AND auto_recurring = ? AND end_date IS NOT NULL AND end_date <= ?",
			[]models.SubscriptionStatus{models.SubscriptionStatusActive, models.SubscriptionStatusPaused}, false, now).
		Order("end_date").
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, translate(err, "subscriptions")
	}
	return subs, nil
}
