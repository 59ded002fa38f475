package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mlserved/internal/registry"
	"mlserved/internal/serving"
	"mlserved/pkg/types"
)

// Service defines the serving-layer methods required by the HTTP API.
type Service interface {
	Predict(ctx context.Context, features []float64) (int, error)
	Health(ctx context.Context) types.HealthResponse
	ModelInfo(ctx context.Context) (types.ModelInfoResponse, error)
	Reload(ctx context.Context) bool
	Version() int
}

// Retrainer dispatches a background retrain run.
type Retrainer interface {
	RetrainAsync()
}

// NewMux builds the HTTP API router over the serving service and the
// retrain dispatcher.
func NewMux(svc Service, rt Retrainer) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// Predict godoc
	// @Summary  Classify one observation
	// @Accept   json
	// @Produce  json
	// @Param    request body types.PredictRequest true "feature vector"
	// @Success  200 {object} types.PredictResponse
	// @Failure  503 {object} types.ErrorResponse
	// @Router   /predict [post]
	r.Post("/predict", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.PredictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		features, ok := req.Features()
		if !ok {
			writeJSONError(w, http.StatusBadRequest, "all four features are required")
			return
		}

		start := time.Now()
		// Join server base context with request context so shutdown cancels
		// an in-flight lazy load too.
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		pred, err := svc.Predict(joinedCtx, features)
		if err != nil {
			status := http.StatusInternalServerError
			msg := err.Error()
			var he HTTPError
			switch {
			case serving.IsModelUnavailable(err) || registry.IsUnavailable(err):
				status = http.StatusServiceUnavailable
				msg = "model not available, train a model first"
			case errors.As(err, &he):
				status = he.StatusCode()
			}
			writeJSONError(w, status, msg)
			logRequest(r, status, time.Since(start), err)
			return
		}
		IncrementPrediction()
		writeJSON(w, http.StatusOK, types.PredictResponse{Prediction: pred})
		logRequest(r, http.StatusOK, time.Since(start), nil)
	})

	// Health godoc
	// @Summary  Serving health; never errors, degrades instead
	// @Produce  json
	// @Success  200 {object} types.HealthResponse
	// @Router   /health [get]
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Health(r.Context()))
	})

	// ModelInfo godoc
	// @Summary  Production version metadata and alias table
	// @Produce  json
	// @Success  200 {object} types.ModelInfoResponse
	// @Failure  503 {object} types.ErrorResponse
	// @Router   /model/info [get]
	r.Get("/model/info", func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.ModelInfo(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, info)
	})

	// Reload godoc
	// @Summary  Re-fetch the production version and swap it in
	// @Produce  json
	// @Success  200 {object} types.ReloadResponse
	// @Router   /model/reload [post]
	r.Post("/model/reload", func(w http.ResponseWriter, r *http.Request) {
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		ok := svc.Reload(joinedCtx)
		writeJSON(w, http.StatusOK, types.ReloadResponse{Reloaded: ok, ModelVersion: svc.Version()})
	})

	// Retrain godoc
	// @Summary  Kick off retraining in the background
	// @Produce  json
	// @Success  202 {object} types.RetrainResponse
	// @Router   /retrain [post]
	r.Post("/retrain", func(w http.ResponseWriter, r *http.Request) {
		IncrementRetrain()
		rt.RetrainAsync()
		writeJSON(w, http.StatusAccepted, types.RetrainResponse{
			Status:  "retraining_started",
			Message: "Model retraining has been started in the background. The new model will be used for predictions once training is complete.",
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
