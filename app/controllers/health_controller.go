package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/videogen-ai/videogen/internal/pkg/jobqueue"
)

type HealthController struct {
	db    *gorm.DB
	cache *redis.Client
	jobs  *jobqueue.Queue
}

func NewHealthController(db *gorm.DB, cache *redis.Client, jobs *jobqueue.Queue) *HealthController {
	return &HealthController{db: db, cache: cache, jobs: jobs}
}

// HandleHealth - GET /health
// The database is required; the cache and the job queue are only reported.
func (hc *HealthController) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := fiber.StatusOK
	checks := fiber.Map{"database": "ok"}

	if hc.db == nil {
		checks["database"] = "unavailable"
	} else if sqlDB, err := hc.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "unavailable"
	}
	if checks["database"] != "ok" {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}

	switch {
	case hc.cache == nil:
		checks["cache"] = "disabled"
	case hc.cache.Ping(ctx).Err() != nil:
		checks["cache"] = "unavailable"
	default:
		checks["cache"] = "ok"
	}

	if hc.jobs == nil {
		checks["jobs"] = "disabled"
	} else if summary, err := hc.jobs.Summary(ctx); err != nil {
		checks["jobs"] = "unavailable"
	} else {
		checks["jobs"] = summary
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
