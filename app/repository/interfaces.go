package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/PayFox/app/models"
	"gorm.io/gorm"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Pagination is embedded by every list filter.
type Pagination struct {
	Page  int
	Limit int
}

// Normalize applies the default page and limit and caps the limit.
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PaymentFilter narrows ListPayments. Zero values mean "any".
type PaymentFilter struct {
	Pagination
	AccountID *uint
	Status    models.PaymentStatus
	Type      models.PaymentType
	From      *time.Time
	To        *time.Time
}

// SubscriptionFilter narrows ListSubscriptions. Zero values mean "any".
type SubscriptionFilter struct {
	Pagination
	AccountID *uint
	Status    models.SubscriptionStatus
	PlanID    string
}

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	// GetByIDFresh always reads the database. Operations that call the
	// gateway based on the stored status must use it.
	GetByIDFresh(ctx context.Context, id string) (*models.Payment, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Payment, error)
	List(ctx context.Context, filter PaymentFilter) ([]models.Payment, int64, error)
	// UpdateStatus writes status and metadata only if the stored status is
	// still from. It returns ErrStaleWrite otherwise.
	UpdateStatus(ctx context.Context, payment *models.Payment, from models.PaymentStatus) error
	UpdateMetadata(ctx context.Context, payment *models.Payment) error
}

// SubscriptionRepository defines the interface for subscription persistence
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	GetByID(ctx context.Context, id string) (*models.Subscription, error)
	GetByIDFresh(ctx context.Context, id string) (*models.Subscription, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Subscription, error)
	// FindActiveByAccount returns the non-terminal subscription of the
	// account or a not-found error.
	FindActiveByAccount(ctx context.Context, accountID uint) (*models.Subscription, error)
	List(ctx context.Context, filter SubscriptionFilter) ([]models.Subscription, int64, error)
	UpdateStatus(ctx context.Context, sub *models.Subscription, from models.SubscriptionStatus) error
	UpdateMetadata(ctx context.Context, sub *models.Subscription) error
	// ListElapsed returns ACTIVE or PAUSED non-renewing subscriptions whose
	// end date is at or before now.
	ListElapsed(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error)
}

// PlanRepository defines the interface for the local plan mirror
type PlanRepository interface {
	GetByID(ctx context.Context, id string) (*models.SubscriptionPlan, error)
	Upsert(ctx context.Context, plan *models.SubscriptionPlan) error
	List(ctx context.Context) ([]models.SubscriptionPlan, error)
}

// WebhookEventRepository defines the interface for the webhook audit log
type WebhookEventRepository interface {
	Create(ctx context.Context, event *models.GatewayWebhookEvent) error
	MarkProcessed(ctx context.Context, event *models.GatewayWebhookEvent) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Payment      PaymentRepository
	Subscription SubscriptionRepository
	Plan         PlanRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates the gorm-backed repositories without caching
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Payment:      NewPaymentRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Plan:         NewPlanRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
