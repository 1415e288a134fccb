package server

import (
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// postRequest is the JSON body for creating and updating posts. Multipart
// requests carry the same fields plus an "image" file.
type postRequest struct {
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	Excerpt   *string `json:"excerpt"`
	Published *bool   `json:"published"`
}

func (s *Server) parsePostRequest(c *fiber.Ctx) (postRequest, error) {
	var req postRequest
	if !isMultipart(c) {
		if err := c.BodyParser(&req); err != nil {
			return req, models.NewValidationError("Invalid request body")
		}
		return req, nil
	}

	published, err := formBool(c, "published")
	if err != nil {
		return req, err
	}
	req.Title = formString(c, "title")
	req.Content = formString(c, "content")
	req.Excerpt = formString(c, "excerpt")
	req.Published = published
	return req, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// GetPosts handles GET /api/posts. Only published posts are listed, newest first.
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListPublishedPosts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:slug
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.postService.GetPost(c.UserContext(), middleware.CurrentUser(c), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	req, err := s.parsePostRequest(c)
	if err != nil {
		return err
	}
	upload, err := readUpload(c)
	if err != nil {
		return err
	}

	post, err := s.postService.CreatePost(c.UserContext(), middleware.CurrentUser(c), service.CreatePostInput{
		Title:     deref(req.Title),
		Content:   deref(req.Content),
		Excerpt:   deref(req.Excerpt),
		Published: deref(req.Published),
		Image:     upload,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id. Omitted fields keep their values.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	req, err := s.parsePostRequest(c)
	if err != nil {
		return err
	}
	upload, err := readUpload(c)
	if err != nil {
		return err
	}

	post, err := s.postService.UpdatePost(c.UserContext(), middleware.CurrentUser(c), postID, service.UpdatePostInput{
		Title:     req.Title,
		Content:   req.Content,
		Excerpt:   req.Excerpt,
		Published: req.Published,
		Image:     upload,
	})
	if err != nil {
		return err
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id. Comments go with the post.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.postService.DeletePost(c.UserContext(), middleware.CurrentUser(c), postID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
