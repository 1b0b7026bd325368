package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/PayFox/app/models"
	"gorm.io/gorm"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return translate(r.db.WithContext(ctx).Create(payment).Error, "payment")
}

// GetByIDFresh is GetByID; only the cached wrapper tells them apart.
func (r *paymentRepository) GetByIDFresh(ctx context.Context, id string) (*models.Payment, error) {
	return r.GetByID(ctx, id)
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, translate(err, "payment")
	}
	return &payment, nil
}

func (r *paymentRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&payment).Error; err != nil {
		return nil, translate(err, "payment")
	}
	return &payment, nil
}

// List returns one page of payments, newest first, and the total match count
func (r *paymentRepository) List(ctx context.Context, filter PaymentFilter) ([]models.Payment, int64, error) {
	filter.Normalize()

	q := r.db.WithContext(ctx).Model(&models.Payment{})
	if filter.AccountID != nil {
		q = q.Where("account_id = ?", *filter.AccountID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		q = q.Where("payment_type = ?", filter.Type)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "payments")
	}

	var payments []models.Payment
	err := q.Order("created_at DESC").Order("id").Offset(filter.Offset()).Limit(filter.Limit).Find(&payments).Error
	if err != nil {
		return nil, 0, translate(err, "payments")
	}
	return payments, total, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, payment *models.Payment, from models.PaymentStatus) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, from).
		Updates(map[string]any{
			"status":     payment.Status,
			"metadata":   payment.Metadata,
			"updated_at": now,
		})
	if res.Error != nil {
		return translate(res.Error, "payment")
	}
	if res.RowsAffected == 0 {
		return ErrStaleWrite
	}
	payment.UpdatedAt = now
	return nil
}

func (r *paymentRepository) UpdateMetadata(ctx context.Context, payment *models.Payment) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", payment.ID).
		Updates(map[string]any{"metadata": payment.Metadata, "updated_at": now})
	if res.Error != nil {
		return translate(res.Error, "payment")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "payment")
	}
	payment.UpdatedAt = now
	return nil
}
