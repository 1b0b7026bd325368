package billing

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/app/repository"
)

// Sweeper periodically ends elapsed subscriptions and purges old webhook
// audit rows.
type Sweeper struct {
	subscriptions *SubscriptionService
	events        repository.WebhookEventRepository
	interval      time.Duration
	retention     time.Duration
	now           func() time.Time

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

func NewSweeper(subs *SubscriptionService, events repository.WebhookEventRepository, interval, retention time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		subscriptions: subs,
		events:        events,
		interval:      interval,
		retention:     retention,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the loop. Calling it twice is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stopCh, done := s.stopCh, s.done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		log.Infof("[Sweeper] Started (interval: %s)", s.interval)

		s.runLogged()
		for {
			select {
			case <-stopCh:
				log.Info("[Sweeper] Stopped")
				return
			case <-ticker.C:
				s.runLogged()
			}
		}
	}()
}

// Stop ends the loop and waits for a running pass to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	stopCh, done := s.stopCh, s.done
	s.stopCh, s.done = nil, nil
	s.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done
}

func (s *Sweeper) runLogged() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	if _, _, err := s.RunOnce(ctx); err != nil {
		log.Errorf("[Sweeper] Pass failed: %v", err)
	}
}

// RunOnce performs a single pass and reports how many subscriptions were
// ended and how many audit rows were purged.
func (s *Sweeper) RunOnce(ctx context.Context) (int, int64, error) {
	now := s.now()
	ended, err := s.subscriptions.ExpireElapsed(ctx, now)
	if err != nil {
		return ended, 0, err
	}

	var purged int64
	if s.events != nil && s.retention > 0 {
		purged, err = s.events.PurgeOlderThan(ctx, now.Add(-s.retention))
		if err != nil {
			return ended, 0, err
		}
		if purged > 0 {
			log.Infof("[Sweeper] Purged %d webhook audit records", purged)
		}
	}
	return ended, purged, nil
}
