// Package objectstore stores newspaper sources and page artifacts.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spherical/newspaper-digest/internal/domain"
)

var (
	// ErrObjectExists is returned by Upload without upsert when the path is taken.
	ErrObjectExists = errors.New("object already exists")
	// ErrObjectNotFound is returned when no object exists at the path.
	ErrObjectNotFound = errors.New("object not found")
	// ErrInvalidPath is returned for empty or escaping object paths.
	ErrInvalidPath = errors.New("invalid object path")
)

// CleanPath validates an object path and returns its canonical form.
func CleanPath(p string) (string, error) {
	p = strings.TrimPrefix(p, "/")
	if p == "" || strings.Contains(p, "\\") || strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return path.Clean(p), nil
}

// FileStore keeps objects as files below a root directory.
type FileStore struct {
	root   string
	signer *Signer
}

var _ domain.ObjectStorage = (*FileStore)(nil)

// NewFileStore creates the root directory if needed.
func NewFileStore(root string, signer *Signer) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &FileStore{root: abs, signer: signer}, nil
}

func (s *FileStore) resolve(objectPath string) (string, error) {
	clean, err := CleanPath(objectPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Upload writes data at objectPath. The write is atomic; readers never see
// a partial object.
func (s *FileStore) Upload(ctx context.Context, objectPath string, data []byte, contentType string, upsert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.resolve(objectPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}

	if upsert {
		if err := os.Rename(tmpName, target); err != nil {
			return fmt.Errorf("commit object: %w", err)
		}
		return nil
	}

	// link fails when target exists, which makes the no-overwrite check atomic
	if err := os.Link(tmpName, target); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrObjectExists, objectPath)
		}
		return fmt.Errorf("commit object: %w", err)
	}
	return nil
}

// Download returns the object at objectPath.
func (s *FileStore) Download(ctx context.Context, objectPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := s.resolve(objectPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, objectPath)
	}
	return data, err
}

// Open returns a reader for objectPath.
func (s *FileStore) Open(objectPath string) (io.ReadSeekCloser, time.Time, error) {
	target, err := s.resolve(objectPath)
	if err != nil {
		return nil, time.Time{}, err
	}

	f, err := os.Open(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrObjectNotFound, objectPath)
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, time.Time{}, err
	}
	return f, info.ModTime(), nil
}

// Delete removes the given objects. Missing objects are ignored.
func (s *FileStore) Delete(ctx context.Context, paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := s.resolve(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CreateSignedURL returns a time-limited URL for objectPath.
func (s *FileStore) CreateSignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	if s.signer == nil {
		return "", errors.New("file store has no signer")
	}
	target, err := s.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, objectPath)
	}
	return s.signer.SignedURL(objectPath, ttl)
}
