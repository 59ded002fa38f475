// Package classifier decodes trained artifacts and answers predictions.
// The artifact is a JSON document describing a nearest-centroid model:
// one centroid per class in feature space, prediction picks the closest.
package classifier

import (
	"encoding/json"
	"fmt"
	"os"
)

// Artifact is the on-disk JSON layout of a trained model.
type Artifact struct {
	ModelType    string      `json:"model_type"`
	FeatureNames []string    `json:"feature_names"`
	Classes      []int       `json:"classes"`
	Centroids    [][]float64 `json:"centroids"`
}

// Model is an immutable, decoded classifier. A Model is never mutated
// after Decode returns, so concurrent Predict calls need no locking.
type Model struct {
	modelType    string
	featureNames []string
	classes      []int
	centroids    [][]float64
	arity        int
}

// Load reads and decodes the artifact at path.
func Load(path string) (*Model, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return Decode(b)
}

// Decode validates and decodes a JSON artifact.
func Decode(b []byte) (*Model, error) {
	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if len(a.Classes) == 0 {
		return nil, fmt.Errorf("artifact has no classes")
	}
	if len(a.Centroids) != len(a.Classes) {
		return nil, fmt.Errorf("artifact has %d centroids for %d classes", len(a.Centroids), len(a.Classes))
	}
	arity := len(a.Centroids[0])
	if arity == 0 {
		return nil, fmt.Errorf("artifact centroids are empty")
	}
	for i, c := range a.Centroids {
		if len(c) != arity {
			return nil, fmt.Errorf("centroid %d has %d features, want %d", i, len(c), arity)
		}
	}
	if len(a.FeatureNames) != 0 && len(a.FeatureNames) != arity {
		return nil, fmt.Errorf("artifact names %d features but centroids have %d", len(a.FeatureNames), arity)
	}
	return &Model{
		modelType:    a.ModelType,
		featureNames: a.FeatureNames,
		classes:      a.Classes,
		centroids:    a.Centroids,
		arity:        arity,
	}, nil
}

// Predict returns the class label whose centroid is closest to features.
// Ties resolve to the earlier class, so equal inputs always yield equal
// outputs.
func (m *Model) Predict(features []float64) (int, error) {
	if len(features) != m.arity {
		return 0, fmt.Errorf("expected %d features, got %d", m.arity, len(features))
	}
	best := 0
	bestDist := sqDist(features, m.centroids[0])
	for i := 1; i < len(m.centroids); i++ {
		if d := sqDist(features, m.centroids[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return m.classes[best], nil
}

// Arity returns the number of input features the model expects.
func (m *Model) Arity() int { return m.arity }

// Params is a snapshot of the model's parameters for model-info reporting.
func (m *Model) Params() map[string]any {
	return map[string]any{
		"model_type":    m.modelType,
		"feature_names": append([]string(nil), m.featureNames...),
		"n_classes":     len(m.classes),
		"n_features":    m.arity,
	}
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
