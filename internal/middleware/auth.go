package middleware

import (
	"context"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by Authenticate.
const (
	UserLocal   = "user"
	UserIDLocal = "userID"
	TokenLocal  = "token"
)

// Authenticator resolves a bearer token to its user. A nil user with a nil
// error means the token does not identify anyone.
type Authenticator interface {
	CurrentUser(ctx context.Context, token string) (*models.User, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return ""
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// Authenticate resolves the bearer token, when present, and stores the user
// in locals. Requests without a valid session continue anonymously.
func Authenticate(a Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c)
		if token == "" {
			return c.Next()
		}

		user, err := a.CurrentUser(c.UserContext(), token)
		if err != nil {
			return err
		}
		if user == nil {
			return c.Next()
		}

		c.Locals(UserLocal, user)
		c.Locals(UserIDLocal, user.ID)
		c.Locals(TokenLocal, token)
		c.SetUserContext(observability.WithUserID(c.UserContext(), user.ID))
		return c.Next()
	}
}

// AuthRequired rejects requests that Authenticate did not attach a user to.
func AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentUser(c) == nil {
			return models.NewUnauthorizedError("Authentication required")
		}
		return c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(UserLocal).(*models.User)
	return user
}
