package types

// PredictRequest carries the four numeric features of one observation.
// All fields are required; pointer types let the handler reject requests
// that omit a feature instead of silently reading a zero.
type PredictRequest struct {
	// Sepal length in centimeters.
	// example: 5.1
	SepalLength *float64 `json:"sepal_length" example:"5.1"`
	// Sepal width in centimeters.
	// example: 3.5
	SepalWidth *float64 `json:"sepal_width" example:"3.5"`
	// Petal length in centimeters.
	// example: 1.4
	PetalLength *float64 `json:"petal_length" example:"1.4"`
	// Petal width in centimeters.
	// example: 0.2
	PetalWidth *float64 `json:"petal_width" example:"0.2"`
}

// Features returns the request values in model input order.
func (r PredictRequest) Features() ([]float64, bool) {
	if r.SepalLength == nil || r.SepalWidth == nil || r.PetalLength == nil || r.PetalWidth == nil {
		return nil, false
	}
	return []float64{*r.SepalLength, *r.SepalWidth, *r.PetalLength, *r.PetalWidth}, true
}

// PredictResponse is returned by POST /predict.
type PredictResponse struct {
	// Predicted class label.
	// example: 0
	Prediction int `json:"prediction" example:"0"`
}

// HealthResponse is returned by GET /health. It never maps to an HTTP
// error; a missing model degrades to model_available=false.
type HealthResponse struct {
	// Overall service status string.
	// example: healthy
	Status string `json:"status" example:"healthy"`
	// Whether a model is currently held in memory.
	// example: true
	ModelLoaded bool `json:"model_loaded" example:"true"`
	// Whether a model is loaded or could be loaded just now.
	// example: true
	ModelAvailable bool `json:"model_available" example:"true"`
	// Version of the loaded model, 0 when none is loaded.
	// example: 3
	ModelVersion int `json:"model_version,omitempty" example:"3"`
	// Registered model name being served.
	// example: iris-classifier
	ModelName string `json:"model_name,omitempty" example:"iris-classifier"`
}

// VersionInfo is the registry view of one model version.
type VersionInfo struct {
	// Monotonic version number within the model name.
	// example: 3
	Version int `json:"version" example:"3"`
	// Quality metric recorded at registration time.
	// example: 0.95
	Metric float64 `json:"metric" example:"0.95"`
	// Alias currently assigned ("production", "challenger" or empty).
	// example: production
	Alias string `json:"alias,omitempty" example:"production"`
	// Reference to the underlying trained artifact.
	ArtifactRef string `json:"artifact_ref,omitempty"`
	// Registration time in unix seconds.
	// example: 1700000000
	CreatedAtUnix int64 `json:"created_at_unix,omitempty" example:"1700000000"`
	// Free-text description attached at registration.
	Description string `json:"description,omitempty"`
}

// ModelInfoResponse is returned by GET /model/info. When no production
// version exists it reports that explicitly instead of erroring.
type ModelInfoResponse struct {
	// Registered model name.
	// example: iris-classifier
	ModelName string `json:"model_name" example:"iris-classifier"`
	// True when the registry holds no production version for the model.
	// example: false
	NoProduction bool `json:"no_production_model" example:"false"`
	// Production version metadata; omitted when NoProduction is true.
	Production *VersionInfo `json:"production,omitempty"`
	// Alias table: alias name -> version number.
	Aliases map[string]int `json:"aliases,omitempty"`
	// Total number of registered versions.
	// example: 4
	VersionCount int `json:"version_count" example:"4"`
	// Parameter snapshot of the currently loaded model.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// RetrainResponse is returned by POST /retrain with a 202 status.
type RetrainResponse struct {
	// Dispatch status.
	// example: retraining_started
	Status string `json:"status" example:"retraining_started"`
	// Human-readable detail.
	Message string `json:"message,omitempty"`
}

// ReloadResponse is returned by POST /model/reload.
type ReloadResponse struct {
	// Whether a new snapshot was published.
	// example: true
	Reloaded bool `json:"reloaded" example:"true"`
	// Version serving after the reload attempt, 0 when none is loaded.
	// example: 3
	ModelVersion int `json:"model_version,omitempty" example:"3"`
}

// PromotionResponse reports the outcome of registering a candidate.
type PromotionResponse struct {
	// Registered model name.
	// example: iris-classifier
	ModelName string `json:"model_name" example:"iris-classifier"`
	// Version assigned to the candidate.
	// example: 4
	Version int `json:"version" example:"4"`
	// Whether the candidate took the production alias.
	// example: true
	Promoted bool `json:"promoted" example:"true"`
	// Candidate metric.
	// example: 0.95
	Metric float64 `json:"metric" example:"0.95"`
	// Production metric the candidate was compared against.
	// example: 0.90
	Baseline float64 `json:"baseline" example:"0.90"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
