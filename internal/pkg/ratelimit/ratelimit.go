// Package ratelimit throttles the unauthenticated auth endpoints. Counters
// live in Redis when it is reachable so every instance shares them.
package ratelimit

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"
	goredis "github.com/redis/go-redis/v9"
)

const (
	// Limiter counters use their own database; the cache uses DB 0.
	limiterDatabase = 2

	DefaultMax        = 20
	DefaultExpiration = time.Minute
)

// NewStorage derives limiter storage from the cache client. It returns nil
// when Redis is disabled or unreachable, which makes the limiter fall back
// to its in-memory store.
func NewStorage(cacheClient *goredis.Client) fiber.Storage {
	if cacheClient == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cacheClient.Ping(ctx).Err(); err != nil {
		log.Warnf("[RateLimit] Redis unreachable, using in-memory counters: %v", err)
		return nil
	}

	host := "localhost"
	port := 6379
	addr := cacheClient.Options().Addr
	if h, p, err := net.SplitHostPort(addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: cacheClient.Options().Password,
		Database: limiterDatabase,
		Reset:    false,
	})
}

// New returns a per-IP limiter answering with the API's error shape.
func New(storage fiber.Storage, max int, expiration time.Duration) fiber.Handler {
	if max <= 0 {
		max = DefaultMax
	}
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		Storage:    storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests"})
		},
	})
}
