package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/storage"
	"inkwell/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	app    *fiber.App
	images storage.ImageStore
}

func newTestServer(t *testing.T, images storage.ImageStore) *testServer {
	t.Helper()
	cfg := &config.Config{
		Env:                  "test",
		JWTSecret:            "server-test-secret-server-test-secret",
		SessionTTL:           time.Hour,
		ImageMaxUploadSizeMB: 2,
		ImageUploadDir:       t.TempDir(),
	}
	if images == nil {
		images = testutil.NewImageStoreStub()
	}
	srv, err := NewServerWithDeps(cfg, testutil.NewSQLiteDB(t), nil,
		WithPasswordHasher(&auth.BcryptHasher{Cost: bcrypt.MinCost}),
		WithImageStore(images),
	)
	require.NoError(t, err)
	return &testServer{app: srv.App(), images: images}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return ts.send(t, req, token)
}

func (ts *testServer) send(t *testing.T, req *http.Request, token string) (*http.Response, []byte) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (ts *testServer) register(t *testing.T, username string) (string, models.User) {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"username":        username,
		"email":           username + "@example.com",
		"password":        "password123",
		"confirmPassword": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var session struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body, &session))
	require.NotEmpty(t, session.Token)
	return session.Token, session.User
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"database":"healthy"`)
	assert.Contains(t, string(body), `"redis":"unavailable"`)

	resp, _ = ts.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	_, _ = ts.do(t, http.MethodGet, "/health/live", "", nil)

	resp, body := ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	token, user := ts.register(t, "alice")
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Empty(t, user.Password)

	resp, body := ts.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", decode[models.User](t, body).Username)
	assert.NotContains(t, string(body), "password")

	resp, body = ts.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"username": "alice", "email": "other@example.com",
		"password": "password123", "confirmPassword": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeDuplicateUser, decode[models.ErrorResponse](t, body).Code)

	resp, body = ts.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "alice@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, models.CodeInvalidCredentials, decode[models.ErrorResponse](t, body).Code)

	resp, body = ts.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"username": "alice", "password": "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	second := decode[models.Session](t, body).Token
	require.NotEmpty(t, second)

	resp, _ = ts.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/auth/me", second, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"username": "bob", "email": "bob@example.com",
		"password": "password123", "confirmPassword": "different1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidation, decode[models.ErrorResponse](t, body).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = ts.send(t, req, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostAndCommentLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	alice, _ := ts.register(t, "alice")
	bob, _ := ts.register(t, "bob")

	resp, _ := ts.do(t, http.MethodPost, "/api/posts", "", fiber.Map{"title": "Hello", "content": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/api/posts", alice, fiber.Map{
		"title": "Hello World", "content": "First post", "published": true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	post := decode[models.Post](t, body)
	assert.Equal(t, "hello-world", post.Slug)
	assert.Equal(t, "First post...", post.Excerpt)

	resp, body = ts.do(t, http.MethodGet, "/api/posts/hello-world", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, post.ID, decode[models.Post](t, body).ID)

	resp, body = ts.do(t, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Post](t, body), 1)

	resp, body = ts.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", post.ID), bob, fiber.Map{"content": "Nice post!"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	comment := decode[models.Comment](t, body)

	resp, _ = ts.do(t, http.MethodPut, fmt.Sprintf("/api/posts/%d", post.ID), bob, fiber.Map{"title": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPut, fmt.Sprintf("/api/comments/%d", comment.ID), alice, fiber.Map{"content": "edited"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPut, fmt.Sprintf("/api/posts/%d", post.ID), alice, fiber.Map{"content": "Updated body"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	updated := decode[models.Post](t, body)
	assert.Equal(t, "Hello World", updated.Title)
	assert.Equal(t, "Updated body", updated.Content)
	assert.Equal(t, "hello-world", updated.Slug)

	resp, body = ts.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", post.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Comment](t, body), 1)

	resp, _ = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/posts/%d", post.ID), bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/posts/%d", post.ID), alice, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/posts/hello-world", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", post.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/comments/%d", comment.ID), bob, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidIDs(t *testing.T) {
	ts := newTestServer(t, nil)
	token, _ := ts.register(t, "alice")

	resp, body := ts.do(t, http.MethodDelete, "/api/posts/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid ID", decode[models.ErrorResponse](t, body).Error)

	resp, _ = ts.do(t, http.MethodGet, "/api/users/0", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDraftsAndUserPosts(t *testing.T) {
	ts := newTestServer(t, nil)
	alice, user := ts.register(t, "alice")
	bob, _ := ts.register(t, "bob")

	resp, body := ts.do(t, http.MethodPost, "/api/posts", alice, fiber.Map{"title": "Draft", "content": "wip"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.False(t, decode[models.Post](t, body).Published)

	resp, _ = ts.do(t, http.MethodGet, "/api/posts/draft", bob, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/api/posts/draft", alice, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	path := fmt.Sprintf("/api/users/%d/posts", user.ID)
	_, body = ts.do(t, http.MethodGet, path, "", nil)
	assert.Empty(t, decode[[]models.Post](t, body))
	_, body = ts.do(t, http.MethodGet, path, alice, nil)
	assert.Len(t, decode[[]models.Post](t, body), 1)

	resp, _ = ts.do(t, http.MethodGet, "/api/users/999/posts", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProfile(t *testing.T) {
	ts := newTestServer(t, nil)
	token, user := ts.register(t, "alice")

	resp, body := ts.do(t, http.MethodPut, "/api/users/me", token, fiber.Map{"displayName": "Alice A.", "bio": "Go writer"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "Alice A.", decode[models.User](t, body).DisplayName)

	resp, body = ts.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", user.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Go writer", decode[models.User](t, body).Bio)

	resp, _ = ts.do(t, http.MethodPut, "/api/users/me", "", fiber.Map{"bio": "anon"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func multipartPost(t *testing.T, method, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="cover.png"`)
		h.Set("Content-Type", "image/png")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestMultipartPostWithImage(t *testing.T) {
	store := storage.NewLocalImageStore(&config.Config{ImageUploadDir: t.TempDir(), ImageMaxUploadSizeMB: 2})
	ts := newTestServer(t, store)
	token, _ := ts.register(t, "alice")

	req := multipartPost(t, http.MethodPost, "/api/posts",
		map[string]string{"title": "Pictures", "content": "with image", "published": "true"},
		testutil.TinyPNG(t, 40, 30))
	resp, body := ts.send(t, req, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	post := decode[models.Post](t, body)
	require.True(t, strings.HasPrefix(post.ImageURL, storage.MediaPrefix+"/"), post.ImageURL)
	assert.True(t, post.Published)

	resp, _ = ts.do(t, http.MethodGet, post.ImageURL, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = multipartPost(t, http.MethodPut, fmt.Sprintf("/api/posts/%d", post.ID),
		map[string]string{"title": "Pictures 2"}, testutil.TinyPNG(t, 10, 10))
	resp, body = ts.send(t, req, token)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	updated := decode[models.Post](t, body)
	assert.Equal(t, "Pictures 2", updated.Title)
	assert.Equal(t, "with image", updated.Content)
	assert.NotEqual(t, post.ImageURL, updated.ImageURL)

	resp, _ = ts.do(t, http.MethodGet, post.ImageURL, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req = multipartPost(t, http.MethodPost, "/api/posts",
		map[string]string{"title": "Bad", "content": "not an image"}, []byte("plain text, not a png"))
	resp, body = ts.send(t, req, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidation, decode[models.ErrorResponse](t, body).Code)
}
