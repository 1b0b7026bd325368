package models

import "time"

const (
	WebhookTopicPayment      = "payment"
	WebhookTopicSubscription = "subscription"
)

// GatewayWebhookEvent is an audit record of an inbound gateway notification.
// It is never consulted for deduplication; rows are purged after the
// retention window.
type GatewayWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Topic           string     `gorm:"type:varchar(20);not null;index" json:"topic"`
	Action          string     `gorm:"type:varchar(100);not null;default:'';index" json:"action"`
	ResourceID      string     `gorm:"type:varchar(64);not null;default:'';index" json:"resource_id"`
	PayloadJSON     string     `gorm:"type:text;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false" json:"signature_valid"`
	ReceivedAt      time.Time  `gorm:"not null;index" json:"received_at"`
	ProcessedAt     *time.Time `gorm:"default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
}
