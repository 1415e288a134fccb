package service

import (
	"context"
	"errors"
	"log/slog"

	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/observability"
)

// AuthService is the auth gateway: it turns credentials into sessions and
// sessions back into users.
type AuthService struct {
	users    *UserService
	tokens   *auth.TokenIssuer
	sessions auth.SessionStore
}

func NewAuthService(users *UserService, tokens *auth.TokenIssuer, sessions auth.SessionStore) *AuthService {
	return &AuthService{users: users, tokens: tokens, sessions: sessions}
}

// Login authenticates by email or username. Unknown identifiers and wrong
// passwords fail alike with INVALID_CREDENTIALS.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (session *models.Session, err error) {
	ctx, span := observability.StartSpan(ctx, "auth_service", "login")
	defer func() { observability.EndSpan(span, err) }()

	user, err := s.users.FindByEmailOrUsername(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.users.VerifyCredential(user, password) {
		observability.SessionEvents.WithLabelValues("login_failed").Inc()
		return nil, models.NewInvalidCredentialsError()
	}
	return s.openSession(ctx, user)
}

// Register creates the account and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.Session, error) {
	user, err := s.users.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, user)
}

func (s *AuthService) openSession(ctx context.Context, user *models.User) (*models.Session, error) {
	token, claims, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.sessions.Save(ctx, claims.JTI, user.ID, s.tokens.TTL()); err != nil {
		return nil, models.NewInternalError(err)
	}
	observability.SessionEvents.WithLabelValues("login").Inc()

	return &models.Session{
		ID:        claims.JTI,
		Token:     token,
		UserID:    user.ID,
		User:      user,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Logout revokes the session behind token. Unknown, expired and already
// revoked tokens are accepted silently.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.JTI); err != nil {
		return models.NewInternalError(err)
	}
	observability.SessionEvents.WithLabelValues("logout").Inc()
	return nil
}

// CurrentUser resolves token to its user. It returns nil, nil for malformed,
// expired, revoked or unknown tokens and an error only when a store fails.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, nil
	}

	userID, ok, err := s.sessions.Lookup(ctx, claims.JTI)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !ok || userID != claims.UserID {
		return nil, nil
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			observability.Logger.WarnContext(ctx, "session refers to missing user", slog.Uint64("user_id", uint64(userID)))
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}
