package objectstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spherical/newspaper-digest/internal/domain"
)

// MemoryStore is an in-process object store.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	signer  *Signer
}

type memoryObject struct {
	data        []byte
	contentType string
}

var _ domain.ObjectStorage = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. signer may be nil.
func NewMemoryStore(signer *Signer) *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject), signer: signer}
}

func (s *MemoryStore) Upload(ctx context.Context, objectPath string, data []byte, contentType string, upsert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := CleanPath(objectPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[p]; ok && !upsert {
		return fmt.Errorf("%w: %s", ErrObjectExists, p)
	}
	s.objects[p] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (s *MemoryStore) Download(ctx context.Context, objectPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := CleanPath(objectPath)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, p)
	}
	return append([]byte(nil), obj.data...), nil
}

func (s *MemoryStore) Delete(ctx context.Context, paths ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range paths {
		if clean, err := CleanPath(p); err == nil {
			delete(s.objects, clean)
		}
	}
	return nil
}

func (s *MemoryStore) CreateSignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	p, err := CleanPath(objectPath)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	_, ok := s.objects[p]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, p)
	}

	if s.signer == nil {
		return "memory://" + p, nil
	}
	return s.signer.SignedURL(p, ttl)
}

// ContentType returns the content type recorded at upload.
func (s *MemoryStore) ContentType(objectPath string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[objectPath].contentType
}

// Keys lists stored paths with the given prefix, sorted.
func (s *MemoryStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
