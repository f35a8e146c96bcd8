// Package storage keeps exported log archives in an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"github.com/soikot-shahriaar/server-maintenance-cms/config"
)

// ErrObjectNotFound is returned by Get for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// Object describes a stored object without its content.
type Object struct {
	Key        string
	Size       int64
	ModifiedAt time.Time
}

// Backend is implemented by each object store.
type Backend interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Bucket() string
}

// PutOptions are the object metadata written with Put.
type PutOptions struct {
	ContentType string
	// Filename, when set, makes downloads save under that name.
	Filename string
}

func (o PutOptions) disposition() string {
	if o.Filename == "" {
		return ""
	}
	return fmt.Sprintf("attachment; filename=%q", o.Filename)
}

// Storage is the archive used by the export service.
type Storage struct {
	backend Backend
}

func New(backend Backend) *Storage {
	return &Storage{backend: backend}
}

// Open builds the backend selected by cfg and makes sure its bucket exists.
// It returns nil when storage is disabled.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "", config.StorageBackendNone:
		return nil, nil
	case config.StorageBackendMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case config.StorageBackendGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Backend, err)
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return New(backend), nil
}

// Put writes r under key as a downloadable attachment named after the key.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, PutOptions{
		ContentType: contentType,
		Filename:    path.Base(key),
	})
}

// Get opens a reader for key. The caller closes it.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// List returns the objects under prefix, most recently modified first.
func (s *Storage) List(ctx context.Context, prefix string) ([]Object, error) {
	objects, err := s.backend.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].ModifiedAt.After(objects[j].ModifiedAt)
	})
	return objects, nil
}

func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}
