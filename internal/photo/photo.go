// Package photo stores uploaded report photos.
package photo

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// DefaultMaxSize is the largest accepted upload.
const DefaultMaxSize = 5 << 20

var (
	// ErrNotImage is returned for uploads that are not JPEG, PNG, GIF or WebP.
	ErrNotImage = errors.New("photo: only JPEG, PNG, GIF and WebP images are accepted")
	// ErrTooLarge is returned for uploads over the size limit.
	ErrTooLarge = errors.New("photo: upload too large")
	// ErrEmpty is returned for zero-length uploads.
	ErrEmpty = errors.New("photo: empty upload")
)

// Store keeps photo blobs and returns a URL that refers to them.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Validate checks an upload's size and content and returns its media type.
// The type comes from the bytes, not the client: the data must sniff as an
// accepted image type, and a declared type other than empty or
// application/octet-stream must agree with it. maxSize <= 0 uses
// DefaultMaxSize.
func Validate(contentType string, data []byte, maxSize int64) (string, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > maxSize {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), maxSize)
	}

	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	if _, ok := extensions[sniffed]; !ok {
		return "", fmt.Errorf("%w: content is %q", ErrNotImage, sniffed)
	}
	if contentType == "" || contentType == "application/octet-stream" {
		return sniffed, nil
	}
	declared, _, err := mime.ParseMediaType(contentType)
	if err != nil || declared != sniffed {
		return "", fmt.Errorf("%w: declared %q but content is %q", ErrNotImage, contentType, sniffed)
	}
	return sniffed, nil
}

// NewName returns a unique object name with an extension matching the
// content type.
func NewName(contentType string) string {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	ext, ok := extensions[mediaType]
	if !ok {
		ext = ".img"
	}
	return uuid.NewString() + ext
}

// CheckName rejects names that could escape the store's namespace.
func CheckName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("photo: invalid name %q", name)
	}
	return nil
}
