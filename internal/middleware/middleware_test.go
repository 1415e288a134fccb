package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authenticatorStub struct {
	users map[string]*models.User
	err   error
}

func (a authenticatorStub) CurrentUser(_ context.Context, token string) (*models.User, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.users[token], nil
}

func newTestApp(a Authenticator) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return models.RespondWithError(c, err)
		},
	})
	app.Use(Authenticate(a))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		if u := CurrentUser(c); u != nil {
			return c.SendString(u.Username)
		}
		return c.SendString("anonymous")
	})
	app.Get("/private", AuthRequired(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, path, authHeader string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestAuthenticate(t *testing.T) {
	app := newTestApp(authenticatorStub{users: map[string]*models.User{
		"good": {ID: 1, Username: "alice"},
	}})

	tests := []struct {
		name       string
		header     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"no header", "", "/whoami", http.StatusOK, "anonymous"},
		{"valid token", "Bearer good", "/whoami", http.StatusOK, "alice"},
		{"lowercase scheme", "bearer good", "/whoami", http.StatusOK, "alice"},
		{"unknown token", "Bearer bad", "/whoami", http.StatusOK, "anonymous"},
		{"wrong scheme", "Basic good", "/whoami", http.StatusOK, "anonymous"},
		{"private without token", "", "/private", http.StatusUnauthorized, ""},
		{"private with unknown token", "Bearer bad", "/private", http.StatusUnauthorized, ""},
		{"private with token", "Bearer good", "/private", http.StatusOK, "ok"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := doRequest(t, app, tc.path, tc.header)
			assert.Equal(t, tc.wantStatus, status)
			if tc.wantBody != "" {
				assert.Equal(t, tc.wantBody, body)
			}
		})
	}
}

func TestAuthenticate_StoreFailure(t *testing.T) {
	app := newTestApp(authenticatorStub{err: models.NewInternalError(errors.New("redis down"))})

	status, body := doRequest(t, app, "/whoami", "Bearer any")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotContains(t, body, "redis down")

	status, body = doRequest(t, app, "/whoami", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body)
}

func TestStructuredLoggerIncludesRequestContext(t *testing.T) {
	var buf bytes.Buffer
	prev := observability.Logger
	observability.Logger = observability.NewLogger("production", &buf)
	t.Cleanup(func() { observability.Logger = prev })

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return models.RespondWithError(c, err)
		},
	})
	app.Use(requestid.New())
	app.Use(ContextMiddleware())
	app.Use(StructuredLogger())
	app.Use(Authenticate(authenticatorStub{users: map[string]*models.User{"good": {ID: 42}}}))
	app.Get("/missing", func(c *fiber.Ctx) error {
		return models.NewNotFoundError("Post", "x")
	})

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("X-Request-ID", "req-123")
	req.Header.Set("Authorization", "Bearer good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-123"`)
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"msg":"request failed"`)
}
