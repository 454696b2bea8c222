// Package media stores recipe images on the filesystem and decodes
// images sent inline as base64 data URIs.
package media

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// RecipeImagesDir is the subdirectory of the media root holding recipe images
const RecipeImagesDir = "recipes/images"

// Storage manages image files under a media root.
// A stored image is referenced by its path relative to the root,
// e.g. "recipes/images/6c1f....png".
type Storage struct {
	root    string
	subdir  string
	baseURL string
	mu      sync.RWMutex
}

// NewStorage creates the recipe image directory under root if needed.
// baseURL is the public prefix the root is served under, e.g. "/media/".
func NewStorage(root, baseURL string) (*Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("media root cannot be empty")
	}

	if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(RecipeImagesDir)), 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", RecipeImagesDir, err)
	}

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &Storage{
		root:    root,
		subdir:  RecipeImagesDir,
		baseURL: baseURL,
	}, nil
}

// Root returns the filesystem directory served as media
func (s *Storage) Root() string {
	return s.root
}

// Save writes an image and returns its reference
func (s *Storage) Save(img *Image) (string, error) {
	if img == nil || len(img.Data) == 0 {
		return "", fmt.Errorf("image data cannot be empty")
	}
	name := filepath.Base(img.Filename)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid image filename %q", img.Filename)
	}

	ref := path.Join(s.subdir, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.Path(ref), img.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return ref, nil
}

// Get reads the content of a stored image
func (s *Storage) Get(ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("image reference cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image %s not found: %w", ref, err)
		}
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return data, nil
}

// Delete removes a stored image. Missing files are not an error.
func (s *Storage) Delete(ref string) error {
	if ref == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image file: %w", err)
	}
	return nil
}

// Path returns the filesystem path of a reference
func (s *Storage) Path(ref string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/" + ref)))
}

// URL returns the public URL of a reference, empty when there is no image
func (s *Storage) URL(ref string) string {
	if ref == "" {
		return ""
	}
	return s.baseURL + ref
}
