package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inkwell/internal/authz"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/storage"
	"inkwell/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// maxNumberedSlugs bounds the -2, -3, ... suffix search before a random suffix is used.
const maxNumberedSlugs = 20

type PostService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	tx          repository.TxManager
	images      storage.ImageStore
	now         func() time.Time
}

type CreatePostInput struct {
	Title     string
	Content   string
	Excerpt   string
	Published bool
	Image     *storage.Upload
}

// UpdatePostInput carries the fields to change. Nil fields are left as they are.
// An explicitly empty Excerpt is re-derived from the content.
type UpdatePostInput struct {
	Title     *string
	Content   *string
	Excerpt   *string
	Published *bool
	Image     *storage.Upload
}

func NewPostService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	tx repository.TxManager,
	images storage.ImageStore,
) *PostService {
	return &PostService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		tx:          tx,
		images:      images,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostService) CreatePost(ctx context.Context, user *models.User, in CreatePostInput) (post *models.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "post_service", "create_post")
	defer func() { observability.EndSpan(span, err) }()

	if user == nil {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, models.NewValidationError("Title is required")
	}
	if err := validation.ValidatePostContent(in.Content); err != nil {
		return nil, models.NewValidationError("Content is required")
	}

	excerpt := strings.TrimSpace(in.Excerpt)
	if excerpt == "" {
		excerpt = DefaultExcerpt(in.Content)
	}

	var imageRef string
	if in.Image != nil {
		imageRef, err = s.images.Save(ctx, *in.Image)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	post = &models.Post{
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		Excerpt:   excerpt,
		ImageURL:  imageRef,
		UserID:    user.ID,
		Published: in.Published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.insertWithUniqueSlug(ctx, post); err != nil {
		if imageRef != "" {
			s.removeImage(ctx, imageRef, "create_rollback")
		}
		return nil, err
	}

	post.User = user
	span.SetAttributes(attribute.Int("post.id", int(post.ID)), attribute.String("post.slug", post.Slug))
	return post, nil
}

// insertWithUniqueSlug derives the slug from the title and inserts post,
// appending -2, -3, ... while the slug is taken.
func (s *PostService) insertWithUniqueSlug(ctx context.Context, post *models.Post) error {
	base := GenerateSlug(post.Title)
	for n := 1; ; n++ {
		candidate := base
		switch {
		case n > maxNumberedSlugs:
			candidate = fmt.Sprintf("%s-%s", base, uuid.New().String()[:8])
		case n > 1:
			candidate = fmt.Sprintf("%s-%d", base, n)
		}

		if n <= maxNumberedSlugs {
			exists, err := s.postRepo.SlugExists(ctx, candidate)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
		}

		post.Slug = candidate
		err := s.postRepo.Create(ctx, post)
		if errors.Is(err, repository.ErrSlugTaken) {
			if n > maxNumberedSlugs*2 {
				return models.NewInternalError(err)
			}
			continue
		}
		return err
	}
}

// GetPost returns the post with slug. Unpublished posts are reported as
// missing to everyone but their owner.
func (s *PostService) GetPost(ctx context.Context, viewer *models.User, slug string) (*models.Post, error) {
	post, err := s.postRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !authz.CanView(viewer, post) {
		return nil, models.NewNotFoundError("Post", slug)
	}
	return post, nil
}

func (s *PostService) GetPostByID(ctx context.Context, viewer *models.User, id uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanView(viewer, post) {
		return nil, models.NewNotFoundError("Post", id)
	}
	return post, nil
}

// ListPublishedPosts returns published posts, newest first.
func (s *PostService) ListPublishedPosts(ctx context.Context) ([]*models.Post, error) {
	return s.postRepo.List(ctx, repository.PostFilter{PublishedOnly: true})
}

// ListUserPosts returns a user's posts, newest first. Drafts are included
// only when the viewer is that user.
func (s *PostService) ListUserPosts(ctx context.Context, viewer *models.User, userID uint) ([]*models.Post, error) {
	filter := repository.PostFilter{UserID: userID, PublishedOnly: true}
	if viewer != nil && viewer.ID == userID {
		filter.PublishedOnly = false
	}
	return s.postRepo.List(ctx, filter)
}

// UpdatePost applies in to the post. A replaced image is removed only after
// the new record is committed; if the save fails the new image is removed instead.
func (s *PostService) UpdatePost(ctx context.Context, user *models.User, postID uint, in UpdatePostInput) (post *models.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "post_service", "update_post", attribute.Int("post.id", int(postID)))
	defer func() { observability.EndSpan(span, err) }()

	existing, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !authz.CanMutate(user, existing) {
		return nil, models.NewForbiddenError("You can only edit your own posts")
	}
	if in.Title != nil {
		if err := validation.ValidateTitle(*in.Title); err != nil {
			return nil, models.NewValidationError("Title is required")
		}
	}
	if in.Content != nil {
		if err := validation.ValidatePostContent(*in.Content); err != nil {
			return nil, models.NewValidationError("Content is required")
		}
	}

	var newImage string
	if in.Image != nil {
		newImage, err = s.images.Save(ctx, *in.Image)
		if err != nil {
			return nil, err
		}
	}

	var oldImage string
	post, err = s.postRepo.Update(ctx, postID, func(p *models.Post) error {
		if !authz.CanMutate(user, p) {
			return models.NewForbiddenError("You can only edit your own posts")
		}
		if in.Title != nil {
			p.Title = strings.TrimSpace(*in.Title)
		}
		if in.Content != nil {
			p.Content = *in.Content
		}
		if in.Excerpt != nil {
			p.Excerpt = strings.TrimSpace(*in.Excerpt)
			if p.Excerpt == "" {
				p.Excerpt = DefaultExcerpt(p.Content)
			}
		}
		if in.Published != nil {
			p.Published = *in.Published
		}
		if newImage != "" {
			oldImage = p.ImageURL
			p.ImageURL = newImage
		}
		p.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		if newImage != "" {
			s.removeImage(ctx, newImage, "update_rollback")
		}
		return nil, err
	}

	if oldImage != "" && oldImage != newImage {
		s.removeImage(ctx, oldImage, "update_replace")
	}
	post.User = existing.User
	return post, nil
}

// DeletePost removes the post and all of its comments in one transaction,
// then removes the post's image.
func (s *PostService) DeletePost(ctx context.Context, user *models.User, postID uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "post_service", "delete_post", attribute.Int("post.id", int(postID)))
	defer func() { observability.EndSpan(span, err) }()

	var imageRef string
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		post, err := s.postRepo.GetByID(ctx, postID)
		if err != nil {
			return err
		}
		if !authz.CanMutate(user, post) {
			return models.NewForbiddenError("You can only delete your own posts")
		}
		imageRef = post.ImageURL

		removed, err := s.commentRepo.DeleteByPost(ctx, postID)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.Int64("comments.deleted", removed))
		return s.postRepo.Delete(ctx, postID)
	})
	if err != nil {
		return err
	}

	if imageRef != "" {
		s.removeImage(ctx, imageRef, "delete")
	}
	return nil
}

// removeImage deletes a stored image. Failures are logged and counted, never returned.
func (s *PostService) removeImage(ctx context.Context, ref, operation string) {
	if err := s.images.Delete(ctx, ref); err != nil {
		observability.ImageCleanupFailures.WithLabelValues(operation).Inc()
		observability.Logger.ErrorContext(ctx, "failed to remove image",
			slog.String("image", ref),
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
	}
}
