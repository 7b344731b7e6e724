package blob

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/afero"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendAzure = "azure"
)

// Factory builds a Store from backend settings
type Factory func(ctx context.Context, settings Settings) (Store, error)

// Registry manages storage backend factories
type Registry interface {
	// Register adds a new backend factory
	Register(backend string, factory Factory) error
	// Create instantiates the store named by settings.Backend
	Create(ctx context.Context, settings Settings) (Store, error)
	// ListBackends returns the registered backends in sorted order
	ListBackends() []string
}

type registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() Registry {
	return &registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry knows the local, s3 and azure backends. Local blobs are
// written through fs.
func DefaultRegistry(fs afero.Fs) Registry {
	r := NewRegistry()
	_ = r.Register(BackendLocal, func(_ context.Context, settings Settings) (Store, error) {
		return NewLocalStore(fs, settings.Root)
	})
	_ = r.Register(BackendS3, func(ctx context.Context, settings Settings) (Store, error) {
		client, err := NewS3Client(ctx, settings)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, settings.Bucket)
	})
	_ = r.Register(BackendAzure, func(_ context.Context, settings Settings) (Store, error) {
		client, err := NewAzureClient(settings)
		if err != nil {
			return nil, err
		}
		return NewAzureStore(client, settings.Container)
	})
	return r
}

func (r *registry) Register(backend string, factory Factory) error {
	if backend == "" {
		return fmt.Errorf("backend name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[backend]; exists {
		return fmt.Errorf("backend %q is already registered", backend)
	}

	r.factories[backend] = factory
	return nil
}

func (r *registry) Create(ctx context.Context, settings Settings) (Store, error) {
	backend := settings.Backend
	if backend == "" {
		backend = BackendLocal
	}

	r.mu.RLock()
	factory, exists := r.factories[backend]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("storage backend %q is not registered", backend)
	}

	return factory(ctx, settings)
}

func (r *registry) ListBackends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	backends := make([]string, 0, len(r.factories))
	for backend := range r.factories {
		backends = append(backends, backend)
	}
	sort.Strings(backends)
	return backends
}
