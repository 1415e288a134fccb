package seed

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"gopkg.in/yaml.v3"
)

// Fixtures is a hand-written data set, usually loaded from YAML.
type Fixtures struct {
	Users []UserFixture `yaml:"users"`
	Posts []PostFixture `yaml:"posts"`
}

type UserFixture struct {
	Username    string `yaml:"username"`
	Email       string `yaml:"email"`
	Password    string `yaml:"password"`
	DisplayName string `yaml:"display_name"`
	Bio         string `yaml:"bio"`
}

// PostFixture refers to users by username.
type PostFixture struct {
	Author    string           `yaml:"author"`
	Title     string           `yaml:"title"`
	Content   string           `yaml:"content"`
	Excerpt   string           `yaml:"excerpt"`
	Published bool             `yaml:"published"`
	Comments  []CommentFixture `yaml:"comments"`
}

type CommentFixture struct {
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
}

// LoadFixtures reads and parses a YAML fixture file.
func LoadFixtures(path string) (*Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(raw)
}

// ParseFixtures decodes YAML fixtures. Unknown keys are rejected.
func ParseFixtures(raw []byte) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &f, nil
}

// ApplyFixtures creates the users, then their posts and comments.
func (s *Seeder) ApplyFixtures(ctx context.Context, f *Fixtures) (Result, error) {
	var res Result
	byName := make(map[string]*models.User, len(f.Users))

	for _, uf := range f.Users {
		password := uf.Password
		if password == "" {
			password = DefaultPassword
		}
		user, err := s.users.Register(ctx, service.RegisterInput{
			Username:        uf.Username,
			Email:           uf.Email,
			Password:        password,
			ConfirmPassword: password,
			DisplayName:     uf.DisplayName,
		})
		if err != nil {
			return res, fmt.Errorf("fixture user %q: %w", uf.Username, err)
		}
		if uf.Bio != "" {
			bio := uf.Bio
			if user, err = s.users.UpdateProfile(ctx, user, service.UpdateProfileInput{Bio: &bio}); err != nil {
				return res, fmt.Errorf("fixture user %q bio: %w", uf.Username, err)
			}
		}
		byName[uf.Username] = user
		res.Users++
	}

	lookup := func(name string) (*models.User, error) {
		u, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown fixture user %q", name)
		}
		return u, nil
	}

	for _, pf := range f.Posts {
		author, err := lookup(pf.Author)
		if err != nil {
			return res, err
		}
		post, err := s.posts.CreatePost(ctx, author, service.CreatePostInput{
			Title:     pf.Title,
			Content:   pf.Content,
			Excerpt:   pf.Excerpt,
			Published: pf.Published,
		})
		if err != nil {
			return res, fmt.Errorf("fixture post %q: %w", pf.Title, err)
		}
		res.Posts++

		for _, cf := range pf.Comments {
			commenter, err := lookup(cf.Author)
			if err != nil {
				return res, err
			}
			if _, err := s.comments.CreateComment(ctx, commenter, post.ID, cf.Content); err != nil {
				return res, fmt.Errorf("fixture comment on %q: %w", pf.Title, err)
			}
			res.Comments++
		}
	}
	return res, nil
}
