package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const metricTag = "metric"

// MLflowClient adapts the MLflow model-registry REST surface to the
// Client interface. The quality metric travels as a version tag so the
// adapter never has to chase run ids. Every call is bounded by the
// request context plus the underlying http.Client timeout.
type MLflowClient struct {
	base string
	hc   *http.Client
	log  zerolog.Logger
}

// NewMLflowClient builds a client for the tracking server at base
// (e.g. "http://mlflow:5000"). timeout bounds each HTTP call.
func NewMLflowClient(base string, timeout time.Duration, log zerolog.Logger) *MLflowClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MLflowClient{
		base: base,
		hc:   &http.Client{Timeout: timeout},
		log:  log,
	}
}

type mlflowVersion struct {
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Source      string      `json:"source"`
	Description string      `json:"description"`
	Aliases     []string    `json:"aliases"`
	CreatedAt   int64       `json:"creation_timestamp"`
	Tags        []mlflowTag `json:"tags"`
}

type mlflowTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type mlflowErrorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func (v mlflowVersion) toModelVersion() ModelVersion {
	mv := ModelVersion{
		Name:        v.Name,
		ArtifactRef: v.Source,
		Description: v.Description,
		CreatedAt:   time.UnixMilli(v.CreatedAt),
	}
	mv.Version, _ = strconv.Atoi(v.Version)
	for _, a := range v.Aliases {
		switch Alias(a) {
		case AliasProduction:
			mv.Alias = AliasProduction
		case AliasChallenger:
			if mv.Alias == AliasNone {
				mv.Alias = AliasChallenger
			}
		}
	}
	for _, t := range v.Tags {
		if t.Key == metricTag {
			mv.Metric, _ = strconv.ParseFloat(t.Value, 64)
		}
	}
	return mv
}

func (c *MLflowClient) GetVersionByAlias(ctx context.Context, name string, alias Alias) (ModelVersion, error) {
	q := url.Values{"name": {name}, "alias": {string(alias)}}
	var out struct {
		ModelVersion mlflowVersion `json:"model_version"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/2.0/mlflow/registered-models/alias?"+q.Encode(), nil, &out); err != nil {
		return ModelVersion{}, err
	}
	return out.ModelVersion.toModelVersion(), nil
}

func (c *MLflowClient) GetVersionMetric(ctx context.Context, name string, version int) (float64, error) {
	q := url.Values{"name": {name}, "version": {strconv.Itoa(version)}}
	var out struct {
		ModelVersion mlflowVersion `json:"model_version"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/2.0/mlflow/model-versions/get?"+q.Encode(), nil, &out); err != nil {
		return 0, err
	}
	return out.ModelVersion.toModelVersion().Metric, nil
}

func (c *MLflowClient) RegisterVersion(ctx context.Context, name, artifactRef string, metric float64, description string) (ModelVersion, error) {
	// Make sure the registered model exists; ALREADY_EXISTS is fine.
	err := c.call(ctx, http.MethodPost, "/api/2.0/mlflow/registered-models/create",
		map[string]any{"name": name}, nil)
	if err != nil && !asAlreadyExists(err, nil) {
		return ModelVersion{}, err
	}

	body := map[string]any{
		"name":        name,
		"source":      artifactRef,
		"description": description,
	}
	var out struct {
		ModelVersion mlflowVersion `json:"model_version"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/2.0/mlflow/model-versions/create", body, &out); err != nil {
		return ModelVersion{}, err
	}
	mv := out.ModelVersion.toModelVersion()
	mv.Metric = metric

	tag := map[string]any{
		"name":    name,
		"version": out.ModelVersion.Version,
		"key":     metricTag,
		"value":   strconv.FormatFloat(metric, 'f', -1, 64),
	}
	if err := c.call(ctx, http.MethodPost, "/api/2.0/mlflow/model-versions/set-tag", tag, nil); err != nil {
		// The version exists without its metric tag; surface the failure
		// so the caller does not base a promotion on a missing metric.
		return ModelVersion{}, err
	}
	return mv, nil
}

func (c *MLflowClient) SetAlias(ctx context.Context, name string, alias Alias, version int) error {
	body := map[string]any{
		"name":    name,
		"alias":   string(alias),
		"version": strconv.Itoa(version),
	}
	// The server moves the alias atomically; the previous holder loses it
	// in the same request.
	return c.call(ctx, http.MethodPost, "/api/2.0/mlflow/registered-models/alias", body, nil)
}

func (c *MLflowClient) ListVersions(ctx context.Context, name string) ([]ModelVersion, error) {
	q := url.Values{"filter": {fmt.Sprintf("name='%s'", name)}}
	var out struct {
		ModelVersions []mlflowVersion `json:"model_versions"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/2.0/mlflow/model-versions/search?"+q.Encode(), nil, &out); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	versions := make([]ModelVersion, 0, len(out.ModelVersions))
	for _, v := range out.ModelVersions {
		versions = append(versions, v.toModelVersion())
	}
	// MLflow returns newest first; callers expect oldest first.
	for i, j := 0, len(versions)-1; i < j; i, j = i+1, j-1 {
		versions[i], versions[j] = versions[j], versions[i]
	}
	return versions, nil
}

// alreadyExistsError marks an MLflow RESOURCE_ALREADY_EXISTS answer.
type alreadyExistsError struct{ msg string }

func (e alreadyExistsError) Error() string { return e.msg }

func asAlreadyExists(err error, target *alreadyExistsError) bool {
	e, ok := err.(alreadyExistsError)
	if ok && target != nil {
		*target = e
	}
	return ok
}

func (c *MLflowClient) call(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return ErrUnavailable(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return ErrUnavailable("decode response", err)
		}
		return nil
	}

	var eb mlflowErrorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &eb)
	switch {
	case eb.ErrorCode == "RESOURCE_DOES_NOT_EXIST" || resp.StatusCode == http.StatusNotFound:
		return ErrNotFound("%s", eb.Message)
	case eb.ErrorCode == "RESOURCE_ALREADY_EXISTS":
		return alreadyExistsError{msg: eb.Message}
	default:
		c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("registry call failed")
		return ErrUnavailable(fmt.Sprintf("%s %s: status %d", method, path, resp.StatusCode), nil)
	}
}
