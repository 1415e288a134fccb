// Package seed provides helpers to create demo data for development and
// testing. Everything is written through the service layer, so seeded
// records obey the same slug, excerpt and validation rules as API traffic.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated user.
const DefaultPassword = "password123"

// Options configures random seeding.
type Options struct {
	Users           int
	PostsPerUser    int
	CommentsPerPost int
	// DraftRatio is the share of generated posts left unpublished, in [0, 1].
	DraftRatio float64
	// RandSeed makes the generated content reproducible when non-zero.
	RandSeed int64
}

// Result counts what a seeding run created.
type Result struct {
	Users    int
	Posts    int
	Comments int
}

// Seeder writes demo users, posts and comments.
type Seeder struct {
	db       *gorm.DB
	users    *service.UserService
	posts    *service.PostService
	comments *service.CommentService
}

// NewSeeder wires a Seeder to db. Seeded posts carry no images, so no image
// store is configured.
func NewSeeder(db *gorm.DB, hasher auth.PasswordHasher) *Seeder {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	return &Seeder{
		db:       db,
		users:    service.NewUserService(userRepo, hasher),
		posts:    service.NewPostService(postRepo, commentRepo, repository.NewTxManager(db), nil),
		comments: service.NewCommentService(commentRepo, postRepo),
	}
}

// ClearAll deletes every comment, post and user.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []any{&models.Comment{}, &models.Post{}, &models.User{}} {
			if err := all.Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		return nil
	})
}

// SeedRandom generates opts.Users users, each with opts.PostsPerUser posts
// commented on by random other users.
func (s *Seeder) SeedRandom(ctx context.Context, opts Options) (Result, error) {
	var res Result
	faker := gofakeit.New(opts.RandSeed)

	users := make([]*models.User, 0, opts.Users)
	for len(users) < opts.Users {
		user, err := s.users.Register(ctx, randomRegistration(faker))
		if errors.Is(err, models.ErrDuplicateUser) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("seed user: %w", err)
		}
		users = append(users, user)
	}
	res.Users = len(users)

	for _, author := range users {
		for i := 0; i < opts.PostsPerUser; i++ {
			post, err := s.posts.CreatePost(ctx, author, service.CreatePostInput{
				Title:     faker.Sentence(faker.Number(3, 8)),
				Content:   faker.Paragraph(faker.Number(1, 4), 4, 12, "\n\n"),
				Published: faker.Float64Range(0, 1) >= opts.DraftRatio,
			})
			if err != nil {
				return res, fmt.Errorf("seed post: %w", err)
			}
			res.Posts++

			for j := 0; j < opts.CommentsPerPost; j++ {
				commenter := users[faker.Number(0, len(users)-1)]
				if !post.Published {
					commenter = author
				}
				if _, err := s.comments.CreateComment(ctx, commenter, post.ID, faker.Sentence(faker.Number(4, 20))); err != nil {
					return res, fmt.Errorf("seed comment: %w", err)
				}
				res.Comments++
			}
		}
	}

	observability.Logger.InfoContext(ctx, "random seed complete",
		slog.Int("users", res.Users),
		slog.Int("posts", res.Posts),
		slog.Int("comments", res.Comments),
	)
	return res, nil
}

func randomRegistration(faker *gofakeit.Faker) service.RegisterInput {
	first := alnum(faker.FirstName())
	last := alnum(faker.LastName())
	username := fmt.Sprintf("%s%s%d", first, last, faker.Number(10, 999))
	if len(username) > 30 {
		username = username[:30]
	}
	return service.RegisterInput{
		Username:        username,
		Email:           fmt.Sprintf("%s.%s%d@%s", first, last, faker.Number(10, 9999), faker.DomainName()),
		Password:        DefaultPassword,
		ConfirmPassword: DefaultPassword,
		DisplayName:     first + " " + last,
	}
}

// alnum drops everything but ASCII letters and digits.
func alnum(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, s)
}
