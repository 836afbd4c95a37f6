package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/videogen-ai/videogen/internal/pkg/config"
)

var client *redis.Client

// ErrDisabled is returned when the cache is not configured.
var ErrDisabled = errors.New("cache disabled")

// SetupCache initializes the connection to the Redis cache server. A failed
// ping is logged but not fatal: callers fall back to the database.
func SetupCache(cfg config.Cache) *redis.Client {
	if !cfg.Enabled {
		log.Info("[Cache] Disabled by configuration")
		return nil
	}
	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to Redis: %v", err)
	} else {
		log.Infof("[Cache] Successfully connected to Redis: %s", pong)
	}
	return client
}

// GetClient returns the Redis client instance, nil when disabled.
func GetClient() *redis.Client {
	return client
}

// Store is a JSON cache over Redis.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// SetJSON stores a value in the cache with the given key and expiration time
func (s *Store) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if s == nil || s.rdb == nil {
		return ErrDisabled
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, raw, expiration).Err()
}

// GetJSON loads key into dst. The boolean is false on a miss.
func (s *Store) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	if s == nil || s.rdb == nil {
		return false, ErrDisabled
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a value from the cache by key
func (s *Store) Delete(ctx context.Context, key string) error {
	if s == nil || s.rdb == nil {
		return ErrDisabled
	}
	return s.rdb.Del(ctx, key).Err()
}
