// Package serving holds the currently active model behind an atomically
// swappable snapshot and answers predictions against it.
package serving

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mlserved/internal/classifier"
	"mlserved/internal/registry"
	"mlserved/pkg/types"
)

// Loader turns an artifact reference into a decoded model. It exists so
// tests can substitute artifacts without touching the filesystem.
type Loader func(ref string) (*classifier.Model, error)

// Service serves predictions from the current production version of one
// registered model. Predict, Health, ModelInfo and Reload are safe to
// call concurrently with each other.
type Service struct {
	name   string
	reg    registry.Client
	load   Loader
	log    zerolog.Logger
	fetchT time.Duration

	st state

	// loadMu serializes load/reload attempts against the registry. It is
	// never held while answering a prediction from an existing snapshot.
	loadMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithLoader replaces the artifact loader (default classifier.Load).
func WithLoader(l Loader) Option { return func(s *Service) { s.load = l } }

// WithFetchTimeout bounds registry fetches issued during loads.
func WithFetchTimeout(d time.Duration) Option { return func(s *Service) { s.fetchT = d } }

// New returns a Service for the named model. The state starts empty; the
// first successful Predict, Health probe or Reload populates it.
func New(name string, reg registry.Client, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		name:   name,
		reg:    reg,
		load:   classifier.Load,
		log:    log,
		fetchT: 10 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Predict classifies features with the current model. When no model is
// loaded yet it attempts one synchronous load first; if that fails the
// call fails with a model-unavailable error. The prediction itself is a
// pure read against the snapshot taken at entry.
func (s *Service) Predict(ctx context.Context, features []float64) (int, error) {
	sn := s.st.get()
	if sn == nil {
		if err := s.ensureLoaded(ctx); err != nil {
			return 0, ErrModelUnavailable(err.Error())
		}
		sn = s.st.get()
		if sn == nil {
			return 0, ErrModelUnavailable("no model loaded")
		}
	}
	return sn.model.Predict(features)
}

// Health reports the serving state. Availability doubles as a self-healing
// probe: when nothing is loaded it tries one load, but only if no other
// load is in flight, so health checks can never pile up behind a slow
// registry or wedge predict callers.
func (s *Service) Health(ctx context.Context) types.HealthResponse {
	sn := s.st.get()
	resp := types.HealthResponse{Status: "healthy", ModelName: s.name}
	if sn != nil {
		resp.ModelLoaded = true
		resp.ModelAvailable = true
		resp.ModelVersion = sn.version
		return resp
	}
	if s.loadMu.TryLock() {
		err := s.loadLocked(ctx)
		s.loadMu.Unlock()
		if err != nil {
			s.log.Warn().Err(err).Str("model", s.name).Msg("health probe load failed")
		}
	}
	if sn = s.st.get(); sn != nil {
		resp.ModelLoaded = true
		resp.ModelAvailable = true
		resp.ModelVersion = sn.version
	}
	return resp
}

// ModelInfo queries the registry for the production version and alias
// table. A missing production version is reported explicitly, not as an
// error; only an unreachable registry fails the call.
func (s *Service) ModelInfo(ctx context.Context) (types.ModelInfoResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchT)
	defer cancel()

	resp := types.ModelInfoResponse{ModelName: s.name}

	versions, err := s.reg.ListVersions(ctx, s.name)
	if err != nil && !registry.IsNotFound(err) {
		return types.ModelInfoResponse{}, err
	}
	resp.VersionCount = len(versions)
	for _, v := range versions {
		if v.Alias != registry.AliasNone {
			if resp.Aliases == nil {
				resp.Aliases = make(map[string]int)
			}
			resp.Aliases[string(v.Alias)] = v.Version
		}
	}

	prod, err := s.reg.GetVersionByAlias(ctx, s.name, registry.AliasProduction)
	if err != nil {
		if registry.IsNotFound(err) {
			resp.NoProduction = true
			return resp, nil
		}
		return types.ModelInfoResponse{}, err
	}
	resp.Production = &types.VersionInfo{
		Version:       prod.Version,
		Metric:        prod.Metric,
		Alias:         string(registry.AliasProduction),
		ArtifactRef:   prod.ArtifactRef,
		CreatedAtUnix: prod.CreatedAt.Unix(),
		Description:   prod.Description,
	}
	if sn := s.st.get(); sn != nil {
		resp.Parameters = sn.model.Params()
	}
	return resp, nil
}

// Reload fetches the current production version and swaps it in. On any
// failure the previous snapshot keeps serving; a broken reference is
// never published. Returns whether a new snapshot was installed.
func (s *Service) Reload(ctx context.Context) bool {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		s.log.Error().Err(err).Str("model", s.name).Msg("reload failed, previous model stays active")
		return false
	}
	return true
}

// Version returns the currently served version, 0 when nothing is loaded.
func (s *Service) Version() int {
	if sn := s.st.get(); sn != nil {
		return sn.version
	}
	return 0
}

// ensureLoaded loads the model if the state is still empty. Concurrent
// callers serialize on loadMu; whoever arrives second finds the snapshot
// already populated and returns immediately.
func (s *Service) ensureLoaded(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if s.st.get() != nil {
		return nil
	}
	return s.loadLocked(ctx)
}

// loadLocked builds a new snapshot from the registry's production version
// and publishes it. Callers must hold loadMu.
func (s *Service) loadLocked(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.fetchT)
	defer cancel()

	v, err := s.reg.GetVersionByAlias(ctx, s.name, registry.AliasProduction)
	if err != nil {
		return err
	}
	model, err := s.load(v.ArtifactRef)
	if err != nil {
		return err
	}
	s.st.swap(&snapshot{
		model:    model,
		version:  v.Version,
		name:     s.name,
		loadedAt: time.Now(),
	})
	s.log.Info().Str("model", s.name).Int("version", v.Version).Msg("model loaded")
	return nil
}
