package controllers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videogen-ai/videogen/internal/pkg/jobqueue"
	"github.com/videogen-ai/videogen/internal/pkg/testdb"
)

func healthChecks(t *testing.T, hc *HealthController) (int, map[string]interface{}) {
	t.Helper()
	app := fiber.New()
	app.Get("/health", hc.HandleHealth)
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Checks map[string]interface{} `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body.Checks
}

func TestHealthReportsUnreachableJobQueue(t *testing.T) {
	unreachable := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = unreachable.Close() })

	status, checks := healthChecks(t, NewHealthController(testdb.New(t), nil, jobqueue.NewQueue(unreachable, 1)))
	assert.Equal(t, fiber.StatusOK, status, "the queue is optional")
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "unavailable", checks["jobs"])
}

func TestHealthWithoutDatabase(t *testing.T) {
	status, checks := healthChecks(t, NewHealthController(nil, nil, nil))
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", checks["database"])
	assert.Equal(t, "disabled", checks["jobs"])
}
