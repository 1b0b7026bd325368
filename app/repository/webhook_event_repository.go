package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/PayFox/app/models"
	"gorm.io/gorm"
)

type webhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Create(ctx context.Context, event *models.GatewayWebhookEvent) error {
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	return translate(r.db.WithContext(ctx).Create(event).Error, "webhook event")
}

// MarkProcessed stamps processed_at and stores the routing fields and the
// processing error that were resolved after the row was written.
func (r *webhookEventRepository) MarkProcessed(ctx context.Context, event *models.GatewayWebhookEvent) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.GatewayWebhookEvent{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"action":           event.Action,
			"resource_id":      event.ResourceID,
			"processed_at":     now,
			"processing_error": event.ProcessingError,
		})
	if res.Error != nil {
		return translate(res.Error, "webhook event")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "webhook event")
	}
	event.ProcessedAt = &now
	return nil
}

func (r *webhookEventRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("received_at < ?", cutoff).Delete(&models.GatewayWebhookEvent{})
	if res.Error != nil {
		return 0, translate(res.Error, "webhook events")
	}
	return res.RowsAffected, nil
}
