// Package health reports whether the service's backing stores answer.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PayFox/internal/pkg/cache"
	"github.com/ManuelReschke/PayFox/internal/pkg/database"
)

const (
	StatusUp   = "up"
	StatusDown = "down"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Report is the readiness value served on /health.
type Report struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	CheckedAt time.Time         `json:"checked_at"`
}

func (r Report) Healthy() bool {
	return r.Status == StatusUp
}

type namedCheck struct {
	name  string
	check Check
}

// Checker runs registered checks concurrently, each bounded by timeout.
type Checker struct {
	timeout time.Duration
	checks  []namedCheck
}

func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{timeout: timeout}
}

func (c *Checker) Register(name string, check Check) {
	c.checks = append(c.checks, namedCheck{name: name, check: check})
}

// Run executes all checks and reports down if any failed.
func (c *Checker) Run(ctx context.Context) Report {
	report := Report{
		Status:    StatusUp,
		Checks:    make(map[string]string, len(c.checks)),
		CheckedAt: time.Now().UTC(),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, nc := range c.checks {
		wg.Add(1)
		go func(nc namedCheck) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			status := StatusUp
			if err := nc.check(cctx); err != nil {
				log.Warnf("[Health] %s check failed: %v", nc.name, err)
				status = StatusDown
			}
			mu.Lock()
			report.Checks[nc.name] = status
			if status == StatusDown {
				report.Status = StatusDown
			}
			mu.Unlock()
		}(nc)
	}
	wg.Wait()
	return report
}

// Names lists the registered checks in alphabetical order.
func (c *Checker) Names() []string {
	names := make([]string, 0, len(c.checks))
	for _, nc := range c.checks {
		names = append(names, nc.name)
	}
	sort.Strings(names)
	return names
}

func DatabaseCheck(db *gorm.DB) Check {
	return func(ctx context.Context) error {
		return database.Ping(ctx, db)
	}
}

func RedisCheck(client *redis.Client) Check {
	return func(ctx context.Context) error {
		return cache.Ping(ctx, client)
	}
}
