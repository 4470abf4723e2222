package handlers

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHandleCheckHealth(t *testing.T) {
	cases := []struct {
		name   string
		ping   pingFunc
		status int
	}{
		{"healthy", func(context.Context) error { return nil }, fiber.StatusOK},
		{"database down", func(context.Context) error { return errors.New("connection refused") }, fiber.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/ping", HandleCheckHealth(tc.ping))

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
