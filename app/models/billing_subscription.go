package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubscriptionStatus is the internal subscription state.
type SubscriptionStatus string

const (
	SubscriptionStatusPending       SubscriptionStatus = "PENDING"
	SubscriptionStatusAuthorized    SubscriptionStatus = "AUTHORIZED"
	SubscriptionStatusActive        SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPaused        SubscriptionStatus = "PAUSED"
	SubscriptionStatusCancelled     SubscriptionStatus = "CANCELLED"
	SubscriptionStatusEnded         SubscriptionStatus = "ENDED"
	SubscriptionStatusPaymentFailed SubscriptionStatus = "PAYMENT_FAILED"
)

// NonTerminalSubscriptionStatuses is the set an account may hold at most one of.
var NonTerminalSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusPending,
	SubscriptionStatusAuthorized,
	SubscriptionStatusActive,
	SubscriptionStatusPaused,
}

func (s SubscriptionStatus) IsTerminal() bool {
	switch s {
	case SubscriptionStatusCancelled, SubscriptionStatusEnded, SubscriptionStatusPaymentFailed:
		return true
	default:
		return false
	}
}

// FrequencyType is the unit of a billing frequency.
type FrequencyType string

const (
	FrequencyDays   FrequencyType = "days"
	FrequencyMonths FrequencyType = "months"
	FrequencyYears  FrequencyType = "years"
)

// AddTo advances t by count units of f. Unknown units fall back to months.
func (f FrequencyType) AddTo(t time.Time, count int) time.Time {
	switch f {
	case FrequencyDays:
		return t.AddDate(0, 0, count)
	case FrequencyYears:
		return t.AddDate(count, 0, 0)
	default:
		return t.AddDate(0, count, 0)
	}
}

// Subscription is the local authoritative record of a recurring gateway
// subscription (or an exempted grant that never touches the gateway).
//
// ActiveAccountKey mirrors AccountID while the status is non-terminal and is
// NULL otherwise. Its unique index is what stops two concurrent creates from
// both leaving a live subscription behind for the same account.
type Subscription struct {
	ID                 string             `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ExternalID         *string            `gorm:"type:varchar(64);uniqueIndex:ux_subscriptions_external_id" json:"external_id"`
	AccountID          uint               `gorm:"not null;index:idx_subscriptions_account_status,priority:1" json:"account_id"`
	PlanID             string             `gorm:"type:varchar(64);not null;index" json:"plan_id"`
	Status             SubscriptionStatus `gorm:"type:varchar(32);not null;default:'PENDING';index:idx_subscriptions_account_status,priority:2" json:"status"`
	ActiveAccountKey   *string            `gorm:"type:varchar(32);uniqueIndex:ux_subscriptions_active_account" json:"-"`
	StartDate          time.Time          `gorm:"not null" json:"start_date"`
	EndDate            *time.Time         `gorm:"default:null;index" json:"end_date,omitempty"`
	NextPaymentDate    *time.Time         `gorm:"default:null" json:"next_payment_date,omitempty"`
	PaymentMethodID    string             `gorm:"type:varchar(64);not null;default:''" json:"payment_method_id"`
	Amount             decimal.Decimal    `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency           string             `gorm:"type:varchar(3);not null" json:"currency"`
	Frequency          int                `gorm:"not null;default:1" json:"frequency"`
	FrequencyType      FrequencyType      `gorm:"type:varchar(16);not null;default:'months'" json:"frequency_type"`
	AutoRecurring      bool               `gorm:"not null;default:true" json:"auto_recurring"`
	IsExempted         bool               `gorm:"not null;default:false" json:"is_exempted"`
	ExemptionReason    string             `gorm:"type:varchar(255);not null;default:''" json:"exemption_reason,omitempty"`
	ExemptionGrantedBy *uint              `gorm:"default:null" json:"exemption_granted_by,omitempty"`
	Metadata           datatypes.JSONMap  `json:"metadata"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Metadata == nil {
		s.Metadata = datatypes.JSONMap{}
	}
	s.ActiveAccountKey = s.ComputeActiveAccountKey()
	return nil
}

// ComputeActiveAccountKey derives the value of the active-account unique column
// from the current status.
func (s *Subscription) ComputeActiveAccountKey() *string {
	if s.Status.IsTerminal() {
		return nil
	}
	key := strconv.FormatUint(uint64(s.AccountID), 10)
	return &key
}

func (s *Subscription) ExternalRef() string {
	if s.ExternalID == nil {
		return ""
	}
	return *s.ExternalID
}

// HasElapsed reports whether a non-renewing term is over at now.
func (s *Subscription) HasElapsed(now time.Time) bool {
	return s.EndDate != nil && !s.EndDate.After(now)
}
