package registry

import (
	"context"
	"sync"
	"time"
)

// InMemory is a mutex-guarded registry backend. It backs tests and local
// single-process runs; the daemon normally talks to an external store.
type InMemory struct {
	mu     sync.Mutex
	models map[string][]ModelVersion
}

// NewInMemory returns an empty in-memory registry.
func NewInMemory() *InMemory {
	return &InMemory{models: make(map[string][]ModelVersion)}
}

func (r *InMemory) GetVersionByAlias(ctx context.Context, name string, alias Alias) (ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.models[name] {
		if v.Alias == alias && alias != AliasNone {
			return v, nil
		}
	}
	return ModelVersion{}, ErrNotFound("model %q alias %q", name, string(alias))
}

func (r *InMemory) GetVersionMetric(ctx context.Context, name string, version int) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.models[name] {
		if v.Version == version {
			return v.Metric, nil
		}
	}
	return 0, ErrNotFound("model %q version %d", name, version)
}

func (r *InMemory) RegisterVersion(ctx context.Context, name, artifactRef string, metric float64, description string) (ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions := r.models[name]
	next := 1
	if n := len(versions); n > 0 {
		next = versions[n-1].Version + 1
	}
	v := ModelVersion{
		Name:        name,
		Version:     next,
		ArtifactRef: artifactRef,
		Metric:      metric,
		Alias:       AliasNone,
		CreatedAt:   time.Now(),
		Description: description,
	}
	r.models[name] = append(versions, v)
	return v, nil
}

// SetAlias moves alias to version under a single lock acquisition, so no
// observer can see zero or two holders of the production alias.
func (r *InMemory) SetAlias(ctx context.Context, name string, alias Alias, version int) error {
	if alias == AliasNone {
		return ErrNotFound("alias %q", string(alias))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	versions := r.models[name]
	target := -1
	for i, v := range versions {
		if v.Version == version {
			target = i
			break
		}
	}
	if target < 0 {
		return ErrNotFound("model %q version %d", name, version)
	}
	for i := range versions {
		if versions[i].Alias == alias {
			versions[i].Alias = AliasNone
		}
	}
	versions[target].Alias = alias
	return nil
}

func (r *InMemory) ListVersions(ctx context.Context, name string) ([]ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ModelVersion, len(r.models[name]))
	copy(out, r.models[name])
	return out, nil
}
