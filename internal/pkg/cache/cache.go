package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PayFox/internal/pkg/config"
)

// Store is a JSON read-through cache on top of any fiber.Storage.
type Store struct {
	storage fiber.Storage
	ttl     time.Duration
}

func NewStore(storage fiber.Storage, ttl time.Duration) *Store {
	return &Store{storage: storage, ttl: ttl}
}

// GetJSON decodes the cached value for key into dst. It reports false on a
// miss. A corrupt entry is dropped and reported as a miss.
func (s *Store) GetJSON(key string, dst any) (bool, error) {
	raw, err := s.storage.Get(key)
	if err != nil {
		return false, err
	}
	if len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		log.Warnf("[Cache] Dropping undecodable entry %s: %v", key, err)
		_ = s.storage.Delete(key)
		return false, nil
	}
	return true, nil
}

func (s *Store) SetJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.storage.Set(key, raw, s.ttl)
}

func (s *Store) Delete(key string) error {
	return s.storage.Delete(key)
}

func (s *Store) Close() error {
	return s.storage.Close()
}

// NewRedisStorage returns the fiber storage backing the record cache.
func NewRedisStorage(cfg config.Cache) fiber.Storage {
	return redisstorage.New(redisstorage.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		Database: cfg.DB,
		Reset:    false,
	})
}

// NewRedisClient returns a go-redis client for counters and health pings.
// It shares the server with the record cache.
func NewRedisClient(cfg config.Cache) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping checks that the redis server answers within the context deadline.
func Ping(ctx context.Context, client *redis.Client) error {
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return err
	}
	if pong != "PONG" {
		return fmt.Errorf("unexpected ping reply %q", pong)
	}
	return nil
}
