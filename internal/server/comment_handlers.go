package server

import (
	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

type commentRequest struct {
	Content string `json:"content"`
}

// GetComments handles GET /api/posts/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	comments, err := s.commentService.ListComments(c.UserContext(), middleware.CurrentUser(c), postID)
	if err != nil {
		return err
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.NewValidationError("Invalid request body")
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), middleware.CurrentUser(c), postID, req.Content)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PUT /api/comments/:id
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.NewValidationError("Invalid request body")
	}

	comment, err := s.commentService.UpdateComment(c.UserContext(), middleware.CurrentUser(c), commentID, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/comments/:id
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.commentService.DeleteComment(c.UserContext(), middleware.CurrentUser(c), commentID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
