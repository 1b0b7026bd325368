package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentStatus is the internal payment state. Gateway-native strings are
// translated into these values by the gateway status mapper.
type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "PENDING"
	PaymentStatusApproved    PaymentStatus = "APPROVED"
	PaymentStatusAuthorized  PaymentStatus = "AUTHORIZED"
	PaymentStatusInProcess   PaymentStatus = "IN_PROCESS"
	PaymentStatusInMediation PaymentStatus = "IN_MEDIATION"
	PaymentStatusRejected    PaymentStatus = "REJECTED"
	PaymentStatusCancelled   PaymentStatus = "CANCELLED"
	PaymentStatusRefunded    PaymentStatus = "REFUNDED"
	PaymentStatusChargedBack PaymentStatus = "CHARGED_BACK"
)

// IsTerminal reports whether no further transition is possible from s.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusRejected, PaymentStatusCancelled, PaymentStatusRefunded, PaymentStatusChargedBack:
		return true
	default:
		return false
	}
}

// PaymentType classifies the payment instrument.
type PaymentType string

const (
	PaymentTypeCreditCard   PaymentType = "credit_card"
	PaymentTypeDebitCard    PaymentType = "debit_card"
	PaymentTypeBankTransfer PaymentType = "bank_transfer"
	PaymentTypePix          PaymentType = "pix"
	PaymentTypeBoleto       PaymentType = "boleto"
	PaymentTypeWallet       PaymentType = "wallet"
	PaymentTypeSubscription PaymentType = "subscription"
)

// RequiresCardToken reports whether the gateway needs a tokenized card for t.
func (t PaymentType) RequiresCardToken() bool {
	return t == PaymentTypeCreditCard || t == PaymentTypeDebitCard
}

// Payment is the local authoritative record of a one-time gateway payment.
type Payment struct {
	ID            string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ExternalID    *string           `gorm:"type:varchar(64);uniqueIndex:ux_payments_external_id" json:"external_id"`
	AccountID     uint              `gorm:"not null;index:idx_payments_account_status,priority:1" json:"account_id"`
	Amount        decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency      string            `gorm:"type:varchar(3);not null" json:"currency"`
	Description   string            `gorm:"type:varchar(255);not null;default:''" json:"description"`
	Status        PaymentStatus     `gorm:"type:varchar(32);not null;default:'PENDING';index:idx_payments_account_status,priority:2" json:"status"`
	PaymentMethod string            `gorm:"type:varchar(64);not null" json:"payment_method"`
	PaymentType   PaymentType       `gorm:"type:varchar(32);not null;index" json:"payment_type"`
	Installments  int               `gorm:"not null;default:1" json:"installments"`
	Metadata      datatypes.JSONMap `json:"metadata"`
	CreatedAt     time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Metadata == nil {
		p.Metadata = datatypes.JSONMap{}
	}
	return nil
}

// ExternalRef returns the gateway id or an empty string when none was assigned.
func (p *Payment) ExternalRef() string {
	if p.ExternalID == nil {
		return ""
	}
	return *p.ExternalID
}
