package repository

import (
	"sync"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PayFox/internal/pkg/cache"
)

// Factory builds the repository set once. When a cache store is given the
// payment and subscription repositories are wrapped with read-through caching.
type Factory struct {
	db    *gorm.DB
	store *cache.Store
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory; store may be nil
func NewFactory(db *gorm.DB, store *cache.Store) *Factory {
	return &Factory{
		db:    db,
		store: store,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		repos := NewRepositories(f.db)
		if f.store != nil {
			repos.Payment = NewCachedPaymentRepository(repos.Payment, f.store)
			repos.Subscription = NewCachedSubscriptionRepository(repos.Subscription, f.store)
		}
		f.repos = repos
	})
	return f.repos
}

func (f *Factory) GetPaymentRepository() PaymentRepository {
	return f.GetRepositories().Payment
}

func (f *Factory) GetSubscriptionRepository() SubscriptionRepository {
	return f.GetRepositories().Subscription
}

func (f *Factory) GetPlanRepository() PlanRepository {
	return f.GetRepositories().Plan
}

func (f *Factory) GetWebhookEventRepository() WebhookEventRepository {
	return f.GetRepositories().WebhookEvent
}
