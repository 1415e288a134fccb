package service

import (
	"context"
	"strings"
	"time"

	"inkwell/internal/authz"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	now         func() time.Time
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// visiblePost loads a post the viewer may read. Drafts of other users are NOT_FOUND.
func (s *CommentService) visiblePost(ctx context.Context, viewer *models.User, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !authz.CanView(viewer, post) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return post, nil
}

func (s *CommentService) CreateComment(ctx context.Context, user *models.User, postID uint, content string) (comment *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "comment_service", "create_comment", attribute.Int("post.id", int(postID)))
	defer func() { observability.EndSpan(span, err) }()

	if user == nil {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if _, err := s.visiblePost(ctx, user, postID); err != nil {
		return nil, err
	}
	if err := validation.ValidateCommentContent(content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	now := s.now()
	comment = &models.Comment{
		Content:   strings.TrimSpace(content),
		UserID:    user.ID,
		PostID:    postID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	comment.User = user
	return comment, nil
}

// ListComments returns the comments of a post the viewer can see, oldest first.
func (s *CommentService) ListComments(ctx context.Context, viewer *models.User, postID uint) ([]*models.Comment, error) {
	if _, err := s.visiblePost(ctx, viewer, postID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID)
}

func (s *CommentService) UpdateComment(ctx context.Context, user *models.User, commentID uint, content string) (*models.Comment, error) {
	existing, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if !authz.CanMutate(user, existing) {
		return nil, models.NewForbiddenError("You can only edit your own comments")
	}
	if err := validation.ValidateCommentContent(content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	comment, err := s.commentRepo.Update(ctx, commentID, func(c *models.Comment) error {
		if !authz.CanMutate(user, c) {
			return models.NewForbiddenError("You can only edit your own comments")
		}
		c.Content = strings.TrimSpace(content)
		c.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	comment.User = existing.User
	return comment, nil
}

func (s *CommentService) DeleteComment(ctx context.Context, user *models.User, commentID uint) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if !authz.CanMutate(user, comment) {
		return models.NewForbiddenError("You can only delete your own comments")
	}
	return s.commentRepo.Delete(ctx, commentID)
}
