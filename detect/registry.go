package detect

import (
	"time"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/inference"
)

// LoadedBackend is the runtime state of one algorithm.
type LoadedBackend struct {
	Kind     model.AlgorithmKind
	Loaded   bool
	Backend  inference.Backend
	Err      error
	Path     string
	LoadedAt time.Time
}

// Registry pairs the shared immutable catalog with the backends one engine
// has loaded. A registry belongs to exactly one engine and is not safe for
// concurrent use on its own.
type Registry struct {
	catalog  *Catalog
	backends map[model.AlgorithmKind]*LoadedBackend
}

func NewRegistry(catalog *Catalog) *Registry {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Registry{
		catalog:  catalog,
		backends: map[model.AlgorithmKind]*LoadedBackend{},
	}
}

func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

// Profile never fails; unknown kinds yield an empty profile.
func (r *Registry) Profile(kind model.AlgorithmKind) model.AlgorithmProfile {
	return r.catalog.Profile(kind)
}

func (r *Registry) Profiles() []model.AlgorithmProfile {
	return r.catalog.Profiles()
}

// Backend returns a copy of the state recorded for kind.
func (r *Registry) Backend(kind model.AlgorithmKind) (LoadedBackend, bool) {
	lb, ok := r.backends[kind]
	if !ok {
		return LoadedBackend{}, false
	}
	return *lb, true
}

func (r *Registry) IsLoaded(kind model.AlgorithmKind) bool {
	lb, ok := r.backends[kind]
	return ok && lb.Loaded
}

// Loaded lists resident algorithms in catalog order.
func (r *Registry) Loaded() []model.AlgorithmKind {
	var kinds []model.AlgorithmKind
	for _, k := range r.catalog.Kinds() {
		if r.IsLoaded(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func (r *Registry) put(kind model.AlgorithmKind, path string, b inference.Backend) {
	if old, ok := r.backends[kind]; ok && old.Loaded && old.Backend != nil && old.Backend != b {
		_ = old.Backend.Close()
	}
	r.backends[kind] = &LoadedBackend{
		Kind:     kind,
		Loaded:   true,
		Backend:  b,
		Path:     path,
		LoadedAt: time.Now(),
	}
}

// fail records a load error without disturbing a backend that is already
// resident for kind.
func (r *Registry) fail(kind model.AlgorithmKind, path string, err error) {
	if lb, ok := r.backends[kind]; ok && lb.Loaded {
		lb.Err = err
		return
	}
	r.backends[kind] = &LoadedBackend{Kind: kind, Path: path, Err: err}
}

// Unload closes and forgets kind's backend.
func (r *Registry) Unload(kind model.AlgorithmKind) error {
	lb, ok := r.backends[kind]
	if !ok {
		return nil
	}
	delete(r.backends, kind)
	if lb.Loaded && lb.Backend != nil {
		return lb.Backend.Close()
	}
	return nil
}

// UnloadAll releases every backend. The catalog is unaffected.
func (r *Registry) UnloadAll() error {
	var first error
	for kind := range r.backends {
		if err := r.Unload(kind); err != nil && first == nil {
			first = err
		}
	}
	return first
}
