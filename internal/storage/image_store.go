// Package storage persists uploaded post images outside the database.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/models"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageUploadDir       = "/tmp/inkwell/uploads"
	DefaultImageMaxUploadSizeMB = 10
	MasterMaxSize               = 2048
	JPEGQuality                 = 82
	WebPQuality                 = 70

	// MediaPrefix is the URL path under which stored images are served.
	MediaPrefix = "/media"
)

// Upload is an image file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ImageStore saves images and hands back a reference that can later be deleted.
type ImageStore interface {
	Save(ctx context.Context, in Upload) (string, error)
	Delete(ctx context.Context, ref string) error
}

// LocalImageStore writes a normalized JPEG master and a WebP sibling per upload
// into its own hash-named directory.
type LocalImageStore struct {
	dir                string
	maxUploadSizeBytes int64
}

// NewLocalImageStore builds a store rooted at cfg.ImageUploadDir.
func NewLocalImageStore(cfg *config.Config) *LocalImageStore {
	uploadDir := DefaultImageUploadDir
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB

	if cfg != nil {
		if cfg.ImageUploadDir != "" {
			uploadDir = cfg.ImageUploadDir
		}
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
		}
	}

	return &LocalImageStore{
		dir:                uploadDir,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// Dir is the directory served under MediaPrefix.
func (s *LocalImageStore) Dir() string {
	return s.dir
}

func (s *LocalImageStore) Save(ctx context.Context, in Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(in.Content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return "", models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	sourceMimeType := decodedFormatToMime(format)
	if sourceMimeType == "" {
		return "", models.NewValidationError("Unsupported image format")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, sourceMimeType) {
		return "", models.NewValidationError("Image content type mismatch")
	}

	master := resizeToFit(decoded, MasterMaxSize, MasterMaxSize)
	encodedJPG, err := encodeJPEG(master, JPEGQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	encodedWebP, err := encodeWebP(master, WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	hash := buildImageHash(encodedJPG)
	jpgAbs := filepath.Join(s.dir, hash, "master.jpg")
	webpAbs := filepath.Join(s.dir, hash, "master.webp")

	if err := writeBytesToFile(jpgAbs, encodedJPG); err != nil {
		_ = os.RemoveAll(filepath.Join(s.dir, hash))
		return "", models.NewInternalError(err)
	}
	if err := writeBytesToFile(webpAbs, encodedWebP); err != nil {
		_ = os.RemoveAll(filepath.Join(s.dir, hash))
		return "", models.NewInternalError(err)
	}

	return BuildMasterImageURL(hash), nil
}

// Delete removes the files behind ref. Deleting an already missing image succeeds.
func (s *LocalImageStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hash, ok := HashFromRef(ref)
	if !ok {
		return fmt.Errorf("invalid image reference %q", ref)
	}
	if err := os.RemoveAll(filepath.Join(s.dir, hash)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image %s: %w", hash, err)
	}
	return nil
}

// BuildMasterImageURL returns the public reference of an image's JPEG master.
func BuildMasterImageURL(hash string) string {
	return fmt.Sprintf("%s/%s/master.jpg", MediaPrefix, hash)
}

// HashFromRef extracts the image hash from a reference built by BuildMasterImageURL.
func HashFromRef(ref string) (string, bool) {
	rest, ok := strings.CutPrefix(ref, MediaPrefix+"/")
	if !ok {
		return "", false
	}
	hash, file, ok := strings.Cut(rest, "/")
	if !ok || file != "master.jpg" || !isValidImageHash(hash) {
		return "", false
	}
	return hash, true
}

// isValidImageHash checks that the hash is strictly lowercase hex (SHA-256 style).
// This prevents path traversal attacks via crafted references.
func isValidImageHash(hash string) bool {
	if len(hash) == 0 || len(hash) > 128 {
		return false
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// buildImageHash names the directory of one stored upload. A random nonce keeps
// identical uploads from sharing files, so deleting one never removes another.
func buildImageHash(content []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s:", uuid.New().String())
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
