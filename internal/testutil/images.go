package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"

	"inkwell/internal/storage"
)

// TinyPNG returns an encoded blank PNG of the given size.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// ImageStoreStub is an in-memory storage.ImageStore. SaveErr and DeleteErr,
// when set, are returned by the matching calls.
type ImageStoreStub struct {
	mu        sync.Mutex
	next      int
	stored    map[string]storage.Upload
	deleted   []string
	SaveErr   error
	DeleteErr error
}

// NewImageStoreStub returns an empty image store stub.
func NewImageStoreStub() *ImageStoreStub {
	return &ImageStoreStub{stored: make(map[string]storage.Upload)}
}

// Save records the upload and returns a fresh reference.
func (s *ImageStoreStub) Save(_ context.Context, in storage.Upload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return "", s.SaveErr
	}
	s.next++
	ref := fmt.Sprintf("%s/stub%d/master.jpg", storage.MediaPrefix, s.next)
	s.stored[ref] = in
	return ref, nil
}

// Delete forgets ref and records the call.
func (s *ImageStoreStub) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, ref)
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.stored, ref)
	return nil
}

// Exists reports whether ref is currently stored.
func (s *ImageStoreStub) Exists(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.stored[ref]
	return ok
}

// Stored returns the number of images currently held.
func (s *ImageStoreStub) Stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

// Deleted returns the references passed to Delete, in call order.
func (s *ImageStoreStub) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}
