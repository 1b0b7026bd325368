package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PlanStatusActive   = "active"
	PlanStatusInactive = "inactive"
)

// SubscriptionPlan is read-mostly reference data mirrored from the gateway.
type SubscriptionPlan struct {
	ID                string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name              string          `gorm:"type:varchar(150);not null" json:"name"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency          string          `gorm:"type:varchar(3);not null" json:"currency"`
	Frequency         int             `gorm:"not null;default:1" json:"frequency"`
	FrequencyType     FrequencyType   `gorm:"type:varchar(16);not null;default:'months'" json:"frequency_type"`
	Status            string          `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	MaxActivePostings int             `gorm:"not null;default:0" json:"max_active_postings"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *SubscriptionPlan) IsActive() bool {
	return p.Status == PlanStatusActive
}
