package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"mlserved/internal/serving"
	"mlserved/pkg/types"
)

type mockService struct {
	prediction int
	predictErr error
	health     types.HealthResponse
	info       types.ModelInfoResponse
	infoErr    error
	reloadOK   bool
	version    int
}

func (m *mockService) Predict(ctx context.Context, features []float64) (int, error) {
	return m.prediction, m.predictErr
}
func (m *mockService) Health(ctx context.Context) types.HealthResponse { return m.health }
func (m *mockService) ModelInfo(ctx context.Context) (types.ModelInfoResponse, error) {
	return m.info, m.infoErr
}
func (m *mockService) Reload(ctx context.Context) bool { return m.reloadOK }
func (m *mockService) Version() int                    { return m.version }

type mockRetrainer struct{ calls atomic.Int32 }

func (m *mockRetrainer) RetrainAsync() { m.calls.Add(1) }

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

const validPredictBody = `{"sepal_length":5.1,"sepal_width":3.5,"petal_length":1.4,"petal_width":0.2}`

func TestPredictHandler(t *testing.T) {
	svc := &mockService{prediction: 2}
	r := NewMux(svc, &mockRetrainer{})
	w := postJSON(t, r, "/predict", validPredictBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.PredictResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Prediction != 2 {
		t.Fatalf("prediction=%d", body.Prediction)
	}
}

func TestPredictModelUnavailableMaps503(t *testing.T) {
	svc := &mockService{predictErr: serving.ErrModelUnavailable("no model loaded")}
	r := NewMux(svc, &mockRetrainer{})
	w := postJSON(t, r, "/predict", validPredictBody)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Code != http.StatusServiceUnavailable {
		t.Fatalf("error code=%d", body.Code)
	}
}

type statusErr struct{ code int }

func (e statusErr) Error() string   { return "rejected" }
func (e statusErr) StatusCode() int { return e.code }

func TestPredictHonorsStatusCarryingErrors(t *testing.T) {
	svc := &mockService{predictErr: statusErr{code: http.StatusUnprocessableEntity}}
	r := NewMux(svc, &mockRetrainer{})
	w := postJSON(t, r, "/predict", validPredictBody)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestPredictBadJSON(t *testing.T) {
	r := NewMux(&mockService{}, &mockRetrainer{})
	w := postJSON(t, r, "/predict", "not-json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestPredictMissingFeature(t *testing.T) {
	r := NewMux(&mockService{}, &mockRetrainer{})
	w := postJSON(t, r, "/predict", `{"sepal_length":5.1,"sepal_width":3.5,"petal_length":1.4}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestPredictRequiresJSONContentType(t *testing.T) {
	r := NewMux(&mockService{}, &mockRetrainer{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString(validPredictBody))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	svc := &mockService{health: types.HealthResponse{
		Status: "healthy", ModelLoaded: true, ModelAvailable: true, ModelVersion: 3, ModelName: "iris-classifier",
	}}
	r := NewMux(svc, &mockRetrainer{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !body.ModelLoaded || body.ModelVersion != 3 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHealthNeverErrors(t *testing.T) {
	svc := &mockService{health: types.HealthResponse{Status: "healthy", ModelAvailable: false}}
	r := NewMux(svc, &mockRetrainer{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("degraded health returned status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"model_available":false`) {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func TestModelInfoNoProductionIsNotAnError(t *testing.T) {
	svc := &mockService{info: types.ModelInfoResponse{ModelName: "iris-classifier", NoProduction: true}}
	r := NewMux(svc, &mockRetrainer{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/model/info", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"no_production_model":true`) {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func TestRetrainAcceptedImmediately(t *testing.T) {
	rt := &mockRetrainer{}
	r := NewMux(&mockService{}, rt)
	w := postJSON(t, r, "/retrain", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.RetrainResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Status != "retraining_started" {
		t.Fatalf("status=%q", body.Status)
	}
	if rt.calls.Load() != 1 {
		t.Fatalf("retrain dispatched %d times", rt.calls.Load())
	}
}

func TestReloadHandler(t *testing.T) {
	svc := &mockService{reloadOK: true, version: 4}
	r := NewMux(svc, &mockRetrainer{})
	w := postJSON(t, r, "/model/reload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ReloadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !body.Reloaded || body.ModelVersion != 4 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHealthz(t *testing.T) {
	r := NewMux(&mockService{}, &mockRetrainer{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}
