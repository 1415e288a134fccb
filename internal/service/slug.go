package service

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// ExcerptLength is how many characters of content a derived excerpt keeps.
	ExcerptLength = 150
	excerptSuffix = "..."
	fallbackSlug  = "post"

	// MaxSlugLength leaves room under the 200 character column for the
	// collision suffix added by insertWithUniqueSlug.
	MaxSlugLength = 180
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateSlug lower-cases title, collapses every run of characters outside
// [a-z0-9] into one hyphen and trims hyphens from both ends. Slugs longer than
// MaxSlugLength are cut back to the last hyphen that fits.
func GenerateSlug(title string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > MaxSlugLength {
		slug = slug[:MaxSlugLength]
		if i := strings.LastIndexByte(slug, '-'); i > 0 {
			slug = slug[:i]
		}
		slug = strings.Trim(slug, "-")
	}
	if slug == "" {
		return fallbackSlug
	}
	return slug
}

// DefaultExcerpt returns the first ExcerptLength characters of the trimmed
// content followed by an ellipsis.
func DefaultExcerpt(content string) string {
	trimmed := strings.TrimSpace(content)
	if utf8.RuneCountInString(trimmed) > ExcerptLength {
		trimmed = string([]rune(trimmed)[:ExcerptLength])
	}
	return trimmed + excerptSuffix
}
