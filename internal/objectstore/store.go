// Package objectstore wraps the remote blob stores that hold photo assets.
package objectstore

import (
	"context"
	"errors"
	"io"
	"mime"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned by Delete when the object does not exist.
var ErrNotFound = errors.New("object not found")

var storeLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	storeLogger = l
}

// Upload is one file to put into the store.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Object is what the store hands back after an upload.
type Object struct {
	RemoteID string
	URL      string
}

type DeleteOptions struct {
	// InvalidateCache asks the backend to drop any cached copy of the object.
	InvalidateCache bool
}

type Store interface {
	Upload(ctx context.Context, u Upload) (Object, error)
	Delete(ctx context.Context, remoteID string, opts DeleteOptions) error
}

// newKey builds a collision-free object key under prefix, keeping an extension
// derived from the content type.
func newKey(prefix, contentType string) string {
	key := uuid.New().String() + extensionFor(contentType)
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/jpeg", "":
		return ".jpg"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func joinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}
