package ratelimit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowDegradesToAllowEverythingWithNilRedis(t *testing.T) {
	limiter := New(nil, 5, time.Minute)

	for i := 0; i < 10; i++ {
		allowed, remaining, err := limiter.Allow(context.Background(), "login:someone@example.com")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 5, remaining)
	}
}

func TestMiddlewarePassesThroughWhenUnderBudget(t *testing.T) {
	limiter := New(nil, 5, time.Minute)

	app := fiber.New()
	app.Get("/auth/login", limiter.Middleware(KeyByIPAndPath), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/auth/login", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "5", resp.Header.Get("X-RateLimit-Limit"))
}
