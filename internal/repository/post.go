package repository

import (
	"context"
	"errors"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

// ErrSlugTaken is returned by Create when another post already has the slug.
var ErrSlugTaken = errors.New("slug already taken")

// PostFilter narrows List. Zero values mean no restriction.
type PostFilter struct {
	UserID        uint
	PublishedOnly bool
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	List(ctx context.Context, filter PostFilter) ([]*models.Post, error)
	Update(ctx context.Context, id uint, mutate func(*models.Post) error) (*models.Post, error)
	Delete(ctx context.Context, id uint) error
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts post. A slug collision is reported as ErrSlugTaken.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := conn(ctx, r.db).Omit("User").Create(post).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrSlugTaken
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := conn(ctx, r.db).Preload("User").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// GetBySlug reads through the post cache. The author is not cached with the
// post and is loaded on every call so profile changes show up immediately.
func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostSlugKey(slug), &post, cache.PostTTL, func() error {
		if err := conn(ctx, r.db).Where("slug = ?", slug).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", slug)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var author models.User
	if err := conn(ctx, r.db).First(&author, post.UserID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewInternalError(err)
		}
	} else {
		post.User = &author
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]*models.Post, error) {
	var posts []*models.Post
	q := conn(ctx, r.db).Preload("User")
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.PublishedOnly {
		q = q.Where("published = ?", true)
	}
	if err := q.Order("created_at DESC").Order("id DESC").Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// Update loads the post under a row lock, applies mutate and writes the
// mutable columns. An error from mutate aborts without writing anything.
func (r *postRepository) Update(ctx context.Context, id uint, mutate func(*models.Post) error) (*models.Post, error) {
	var post models.Post
	err := inTransaction(ctx, r.db, func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", id)
			}
			return models.NewInternalError(err)
		}
		if err := mutate(&post); err != nil {
			return err
		}
		if err := tx.Model(&post).Select(models.PostMutableColumns).Updates(&post).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	afterCommit(ctx, func() { cache.InvalidatePost(ctx, post.Slug) })
	return &post, nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	var post models.Post
	err := inTransaction(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Select("id", "slug").First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", id)
			}
			return models.NewInternalError(err)
		}
		if err := tx.Delete(&models.Post{}, id).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	afterCommit(ctx, func() { cache.InvalidatePost(ctx, post.Slug) })
	return nil
}

func (r *postRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&models.Post{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}
