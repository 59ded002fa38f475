package registry

import (
	"context"
	"time"
)

// Alias marks the role a version plays within its model name.
type Alias string

const (
	AliasNone       Alias = ""
	AliasProduction Alias = "production"
	AliasChallenger Alias = "challenger"
)

// ModelVersion is one registered version of a named model.
type ModelVersion struct {
	Name        string
	Version     int
	ArtifactRef string
	Metric      float64
	Alias       Alias
	CreatedAt   time.Time
	Description string
}

// Client is the minimal contract the lifecycle core needs from a
// versioned model store. Implementations must guarantee that at most one
// version per model name holds the production alias at any instant:
// assigning production to a version revokes it from the previous holder
// in the same operation.
type Client interface {
	// GetVersionByAlias resolves an alias to the version holding it.
	// Returns a NotFound error when no version holds the alias.
	GetVersionByAlias(ctx context.Context, name string, alias Alias) (ModelVersion, error)

	// GetVersionMetric returns the quality metric recorded for a version.
	GetVersionMetric(ctx context.Context, name string, version int) (float64, error)

	// RegisterVersion records a new version with alias none and returns it.
	RegisterVersion(ctx context.Context, name, artifactRef string, metric float64, description string) (ModelVersion, error)

	// SetAlias assigns alias to the given version, revoking it from any
	// previous holder in the same operation.
	SetAlias(ctx context.Context, name string, alias Alias, version int) error

	// ListVersions returns all versions registered under name, oldest first.
	ListVersions(ctx context.Context, name string) ([]ModelVersion, error)
}
