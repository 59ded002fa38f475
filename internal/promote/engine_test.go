package promote

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"mlserved/internal/registry"
)

func newEngine() (*Engine, *registry.InMemory) {
	reg := registry.NewInMemory()
	return New(reg, zerolog.Nop()), reg
}

func TestFirstModelIsPromoted(t *testing.T) {
	eng, reg := newEngine()
	ctx := context.Background()

	d, err := eng.RegisterAndDecide(ctx, "iris-classifier", "/a/v1.json", 0.90, "initial")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !d.Promoted || d.Version != 1 || d.Baseline != 0 {
		t.Fatalf("unexpected decision: %+v", d)
	}
	prod, err := reg.GetVersionByAlias(ctx, "iris-classifier", registry.AliasProduction)
	if err != nil || prod.Version != 1 {
		t.Fatalf("production=%+v err=%v", prod, err)
	}
	// The promoted metric becomes the next baseline.
	baseline, err := eng.CurrentProductionMetric(ctx, "iris-classifier")
	if err != nil || baseline != 0.90 {
		t.Fatalf("baseline=%v err=%v", baseline, err)
	}
}

func TestWorseCandidateBecomesChallenger(t *testing.T) {
	eng, reg := newEngine()
	ctx := context.Background()
	if _, err := eng.RegisterAndDecide(ctx, "m", "/a/v1.json", 0.90, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	d, err := eng.RegisterAndDecide(ctx, "m", "/a/v2.json", 0.85, "")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Promoted {
		t.Fatalf("0.85 promoted over 0.90")
	}
	prod, _ := reg.GetVersionByAlias(ctx, "m", registry.AliasProduction)
	if prod.Version != 1 {
		t.Fatalf("production moved to v%d", prod.Version)
	}
	ch, err := reg.GetVersionByAlias(ctx, "m", registry.AliasChallenger)
	if err != nil || ch.Version != d.Version {
		t.Fatalf("challenger=%+v err=%v", ch, err)
	}
}

func TestBetterCandidateTakesProduction(t *testing.T) {
	eng, reg := newEngine()
	ctx := context.Background()
	if _, err := eng.RegisterAndDecide(ctx, "m", "/a/v1.json", 0.90, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	d, err := eng.RegisterAndDecide(ctx, "m", "/a/v3.json", 0.95, "")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !d.Promoted {
		t.Fatalf("0.95 not promoted over 0.90")
	}

	versions, _ := reg.ListVersions(ctx, "m")
	holders := 0
	for _, v := range versions {
		if v.Alias == registry.AliasProduction {
			holders++
			if v.Version != d.Version {
				t.Fatalf("production held by v%d, want v%d", v.Version, d.Version)
			}
		}
	}
	if holders != 1 {
		t.Fatalf("production holders=%d", holders)
	}
}

func TestTieNeverPromotes(t *testing.T) {
	eng, reg := newEngine()
	ctx := context.Background()
	if _, err := eng.RegisterAndDecide(ctx, "m", "/a/v1.json", 0.90, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}
	d, err := eng.RegisterAndDecide(ctx, "m", "/a/v2.json", 0.90, "")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Promoted {
		t.Fatalf("tie promoted")
	}
	prod, _ := reg.GetVersionByAlias(ctx, "m", registry.AliasProduction)
	if prod.Version != 1 {
		t.Fatalf("tie moved production to v%d", prod.Version)
	}
}

func TestPromotionTable(t *testing.T) {
	cases := []struct {
		name     string
		baseline float64
		metric   float64
		promoted bool
	}{
		{"strictly better", 0.50, 0.51, true},
		{"strictly worse", 0.51, 0.50, false},
		{"equal", 0.50, 0.50, false},
		{"zero over zero", 0, 0, false},
		{"anything over empty", 0, 0.01, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			eng, _ := newEngine()
			ctx := context.Background()
			if c.baseline > 0 {
				if _, err := eng.RegisterAndDecide(ctx, "m", "/a/base.json", c.baseline, ""); err != nil {
					t.Fatalf("seed: %v", err)
				}
			}
			d, err := eng.RegisterAndDecide(ctx, "m", "/a/cand.json", c.metric, "")
			if err != nil {
				t.Fatalf("decide: %v", err)
			}
			if d.Promoted != c.promoted {
				t.Fatalf("metric=%v baseline=%v promoted=%v, want %v", c.metric, c.baseline, d.Promoted, c.promoted)
			}
		})
	}
}

// failingRegistry wraps InMemory and fails selected operations.
type failingRegistry struct {
	*registry.InMemory
	failRegister bool
	failAlias    bool
	failGet      bool
}

func unavailable() error { return registry.ErrUnavailable("test", errors.New("down")) }

func (f *failingRegistry) RegisterVersion(ctx context.Context, name, ref string, metric float64, desc string) (registry.ModelVersion, error) {
	if f.failRegister {
		return registry.ModelVersion{}, unavailable()
	}
	return f.InMemory.RegisterVersion(ctx, name, ref, metric, desc)
}

func (f *failingRegistry) SetAlias(ctx context.Context, name string, alias registry.Alias, version int) error {
	if f.failAlias {
		return unavailable()
	}
	return f.InMemory.SetAlias(ctx, name, alias, version)
}

func (f *failingRegistry) GetVersionByAlias(ctx context.Context, name string, alias registry.Alias) (registry.ModelVersion, error) {
	if f.failGet {
		return registry.ModelVersion{}, unavailable()
	}
	return f.InMemory.GetVersionByAlias(ctx, name, alias)
}

func TestRegistryUnavailableFailsWholeOperation(t *testing.T) {
	reg := &failingRegistry{InMemory: registry.NewInMemory(), failRegister: true}
	eng := New(reg, zerolog.Nop())
	if _, err := eng.RegisterAndDecide(context.Background(), "m", "/a.json", 0.9, ""); !registry.IsUnavailable(err) {
		t.Fatalf("expected Unavailable, got %v", err)
	}
	versions, _ := reg.ListVersions(context.Background(), "m")
	if len(versions) != 0 {
		t.Fatalf("partial registration: %+v", versions)
	}
}

func TestAliasFailureLeavesVersionInert(t *testing.T) {
	reg := &failingRegistry{InMemory: registry.NewInMemory(), failAlias: true}
	eng := New(reg, zerolog.Nop())
	_, err := eng.RegisterAndDecide(context.Background(), "m", "/a.json", 0.9, "")
	if err == nil {
		t.Fatalf("expected alias failure")
	}
	versions, _ := reg.ListVersions(context.Background(), "m")
	if len(versions) != 1 || versions[0].Alias != registry.AliasNone {
		t.Fatalf("version not left inert: %+v", versions)
	}
}
