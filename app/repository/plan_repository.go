package repository

import (
	"context"

	"github.com/ManuelReschke/PayFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type planRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) GetByID(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, translate(err, "plan")
	}
	return &plan, nil
}

// Upsert mirrors a gateway plan into the local table.
func (r *planRepository) Upsert(ctx context.Context, plan *models.SubscriptionPlan) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "amount", "currency", "frequency", "frequency_type", "status", "max_active_postings", "updated_at",
		}),
	}).Create(plan).Error
	return translate(err, "plan")
}

func (r *planRepository) List(ctx context.Context) ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	if err := r.db.WithContext(ctx).Order("amount").Order("id").Find(&plans).Error; err != nil {
		return nil, translate(err, "plans")
	}
	return plans, nil
}
