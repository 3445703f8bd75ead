package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSStore keeps objects on the local disk. Used for development and as the
// default backend; the directory is served under PublicURL.
type FSStore struct { // implements Store
	basePath  string
	prefix    string
	publicURL string
}

func NewFSStore(basePath, prefix, publicURL string) (*FSStore, error) {
	if err := os.MkdirAll(filepath.Join(basePath, prefix), 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FSStore{basePath: basePath, prefix: prefix, publicURL: publicURL}, nil
}

func (s *FSStore) Upload(ctx context.Context, u Upload) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	key := newKey(s.prefix, u.ContentType)
	filePath := filepath.Join(s.basePath, filepath.FromSlash(key))

	f, err := os.Create(filePath)
	if err != nil {
		return Object{}, fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, u.Body); err != nil {
		if cerr := f.Close(); cerr != nil {
			storeLogger.Error().Err(cerr).Msg("Failed to close file after write error")
		}
		if rerr := os.Remove(filePath); rerr != nil {
			storeLogger.Error().Err(rerr).Msg("Failed to remove file after write error")
		}
		return Object{}, fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		if rerr := os.Remove(filePath); rerr != nil {
			storeLogger.Error().Err(rerr).Msg("Failed to remove file after close error")
		}
		return Object{}, fmt.Errorf("failed to close file: %w", err)
	}

	return Object{RemoteID: key, URL: joinURL(s.publicURL, key)}, nil
}

func (s *FSStore) Delete(ctx context.Context, remoteID string, _ DeleteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath, err := s.safeJoin(remoteID)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// safeJoin resolves remoteID relative to basePath and rejects directory traversal.
func (s *FSStore) safeJoin(remoteID string) (string, error) {
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, filepath.FromSlash(remoteID)))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt: %q", remoteID)
	}
	return absPath, nil
}
