package server

import (
	"io"
	"strconv"
	"strings"
	"unicode"

	"inkwell/internal/models"
	"inkwell/internal/storage"

	"github.com/gofiber/fiber/v2"
)

const imageFormField = "image"

// parseID extracts a route parameter by name as a positive uint.
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "userId" -> "Invalid user ID").
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError("Invalid " + humanizeParam(param))
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}

// formValue returns the multipart field and whether it was sent at all.
func formValue(c *fiber.Ctx, key string) (string, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		return "", false
	}
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func formString(c *fiber.Ctx, key string) *string {
	v, ok := formValue(c, key)
	if !ok {
		return nil
	}
	return &v
}

func formBool(c *fiber.Ctx, key string) (*bool, error) {
	v, ok := formValue(c, key)
	if !ok {
		return nil, nil
	}
	if v == "on" {
		b := true
		return &b, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, models.NewValidationError("Invalid value for " + key)
	}
	return &b, nil
}

// readUpload returns the image attached to a multipart request, or nil when
// none was sent.
func readUpload(c *fiber.Ctx) (*storage.Upload, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, models.NewValidationError("Invalid multipart form")
	}
	files := form.File[imageFormField]
	if len(files) == 0 || files[0].Size == 0 {
		return nil, nil
	}
	fh := files[0]

	f, err := fh.Open()
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &storage.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}
