package service

import (
	"context"
	"errors"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn     func(context.Context, *models.Post) error
	getByIDFn    func(context.Context, uint) (*models.Post, error)
	getBySlugFn  func(context.Context, string) (*models.Post, error)
	listFn       func(context.Context, repository.PostFilter) ([]*models.Post, error)
	updateFn     func(context.Context, uint, func(*models.Post) error) (*models.Post, error)
	deleteFn     func(context.Context, uint) error
	slugExistsFn func(context.Context, string) (bool, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.getBySlugFn(ctx, slug)
}
func (s *postRepoStub) List(ctx context.Context, filter repository.PostFilter) ([]*models.Post, error) {
	return s.listFn(ctx, filter)
}
func (s *postRepoStub) Update(ctx context.Context, id uint, mutate func(*models.Post) error) (*models.Post, error) {
	return s.updateFn(ctx, id, mutate)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) SlugExists(ctx context.Context, slug string) (bool, error) {
	return s.slugExistsFn(ctx, slug)
}

// postRepoWith returns a stub whose GetByID and Update operate on a copy of post.
func postRepoWith(post models.Post) *postRepoStub {
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		if id != post.ID {
			return nil, models.NewNotFoundError("Post", id)
		}
		p := post
		return &p, nil
	}
	repo.updateFn = func(_ context.Context, id uint, mutate func(*models.Post) error) (*models.Post, error) {
		if id != post.ID {
			return nil, models.NewNotFoundError("Post", id)
		}
		p := post
		if err := mutate(&p); err != nil {
			return nil, err
		}
		return &p, nil
	}
	return repo
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:    func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn:   func(_ context.Context, _ uint) (*models.Post, error) { return &models.Post{}, nil },
		getBySlugFn: func(_ context.Context, _ string) (*models.Post, error) { return &models.Post{}, nil },
		listFn:      func(_ context.Context, _ repository.PostFilter) ([]*models.Post, error) { return nil, nil },
		updateFn: func(_ context.Context, _ uint, mutate func(*models.Post) error) (*models.Post, error) {
			p := &models.Post{}
			return p, mutate(p)
		},
		deleteFn:     func(_ context.Context, _ uint) error { return nil },
		slugExistsFn: func(_ context.Context, _ string) (bool, error) { return false, nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn       func(context.Context, *models.Comment) error
	getByIDFn      func(context.Context, uint) (*models.Comment, error)
	listByPostFn   func(context.Context, uint) ([]*models.Comment, error)
	updateFn       func(context.Context, uint, func(*models.Comment) error) (*models.Comment, error)
	deleteFn       func(context.Context, uint) error
	deleteByPostFn func(context.Context, uint) (int64, error)
}

func (s *commentRepoStub) Create(ctx context.Context, c *models.Comment) error {
	return s.createFn(ctx, c)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *commentRepoStub) Update(ctx context.Context, id uint, mutate func(*models.Comment) error) (*models.Comment, error) {
	return s.updateFn(ctx, id, mutate)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *commentRepoStub) DeleteByPost(ctx context.Context, postID uint) (int64, error) {
	return s.deleteByPostFn(ctx, postID)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:     func(_ context.Context, _ *models.Comment) error { return nil },
		getByIDFn:    func(_ context.Context, _ uint) (*models.Comment, error) { return &models.Comment{}, nil },
		listByPostFn: func(_ context.Context, _ uint) ([]*models.Comment, error) { return nil, nil },
		updateFn: func(_ context.Context, _ uint, mutate func(*models.Comment) error) (*models.Comment, error) {
			c := &models.Comment{}
			return c, mutate(c)
		},
		deleteFn:       func(_ context.Context, _ uint) error { return nil },
		deleteByPostFn: func(_ context.Context, _ uint) (int64, error) { return 0, nil },
	}
}

// txStub runs fn inline without a database.
type txStub struct{}

func (txStub) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeValidation)
}

func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeForbidden)
}

func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeNotFound)
}
