package service

import (
	"context"
	"net/url"
	"strings"

	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const defaultAvatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="

// UserService is the identity store: registration, lookup and profile edits.
type UserService struct {
	userRepo repository.UserRepository
	hasher   auth.PasswordHasher
}

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	DisplayName     string
}

// UpdateProfileInput carries optional profile changes. Nil fields are left as they are.
type UpdateProfileInput struct {
	DisplayName *string
	Bio         *string
	Avatar      *string
}

func NewUserService(userRepo repository.UserRepository, hasher auth.PasswordHasher) *UserService {
	return &UserService{userRepo: userRepo, hasher: hasher}
}

// Register validates in, hashes the password and stores the new user.
// Concurrent registrations of the same username or email yield one success;
// the rest fail with DUPLICATE_USER.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (user *models.User, err error) {
	ctx, span := observability.StartSpan(ctx, "user_service", "register")
	defer func() { observability.EndSpan(span, err) }()

	enteredName := strings.TrimSpace(in.Username)
	username := strings.ToLower(enteredName)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if username == "" || email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.Password != in.ConfirmPassword {
		return nil, models.NewValidationError("Passwords do not match")
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = enteredName
	}
	if err := validation.ValidateProfile(displayName, ""); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if existing, err := s.userRepo.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewDuplicateUserError(nil)
	}
	if existing, err := s.userRepo.GetByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewDuplicateUserError(nil)
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user = &models.User{
		Username:    username,
		Email:       email,
		Password:    hashed,
		DisplayName: displayName,
		Avatar:      DefaultAvatarURL(username),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("user.id", int(user.ID)))
	return user, nil
}

// FindByEmailOrUsername returns nil, nil when nobody matches query.
// Anything containing '@' is treated as an email.
func (s *UserService) FindByEmailOrUsername(ctx context.Context, query string) (*models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if strings.Contains(query, "@") {
		return s.userRepo.GetByEmail(ctx, query)
	}
	return s.userRepo.GetByUsername(ctx, query)
}

func (s *UserService) VerifyCredential(user *models.User, password string) bool {
	if user == nil || password == "" {
		return false
	}
	return s.hasher.Verify(user.Password, password)
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, user *models.User, in UpdateProfileInput) (*models.User, error) {
	if user == nil {
		return nil, models.NewUnauthorizedError("Authentication required")
	}

	return s.userRepo.UpdateProfile(ctx, user.ID, func(u *models.User) error {
		if in.DisplayName != nil {
			u.DisplayName = strings.TrimSpace(*in.DisplayName)
			if u.DisplayName == "" {
				u.DisplayName = u.Username
			}
		}
		if in.Bio != nil {
			u.Bio = strings.TrimSpace(*in.Bio)
		}
		if in.Avatar != nil {
			u.Avatar = strings.TrimSpace(*in.Avatar)
			if u.Avatar == "" {
				u.Avatar = DefaultAvatarURL(u.Username)
			}
		}
		if err := validation.ValidateProfile(u.DisplayName, u.Bio); err != nil {
			return models.NewValidationError(err.Error())
		}
		return nil
	})
}

// DefaultAvatarURL returns the generated avatar assigned to new users.
func DefaultAvatarURL(username string) string {
	return defaultAvatarBaseURL + url.QueryEscape(username)
}
