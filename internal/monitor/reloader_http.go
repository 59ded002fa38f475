package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"mlserved/pkg/types"
)

// HTTPReloader asks a remote serving daemon to reload by POSTing its
// /model/reload endpoint. Used when the monitor runs as its own process.
type HTTPReloader struct {
	base string
	hc   *http.Client
	log  zerolog.Logger
}

// NewHTTPReloader targets the daemon at base (e.g. "http://serve:8000").
func NewHTTPReloader(base string, timeout time.Duration, log zerolog.Logger) *HTTPReloader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPReloader{base: base, hc: &http.Client{Timeout: timeout}, log: log}
}

func (r *HTTPReloader) Reload(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/model/reload", nil)
	if err != nil {
		r.log.Error().Err(err).Msg("build reload request")
		return false
	}
	resp, err := r.hc.Do(req)
	if err != nil {
		r.log.Error().Err(err).Msg("reload request failed")
		return false
	}
	defer resp.Body.Close()
	var body types.ReloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		r.log.Warn().Err(err).Msg("decode reload response")
		return false
	}
	return body.Reloaded
}
