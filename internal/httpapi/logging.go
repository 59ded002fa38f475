package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// logRequest records the end of a handled request.
func logRequest(r *http.Request, status int, dur time.Duration, err error) {
	if zlog == nil {
		if err != nil {
			log.Printf("%s %s status=%d dur=%s err=%v", r.Method, r.URL.Path, status, dur, err)
		} else {
			log.Printf("%s %s status=%d dur=%s", r.Method, r.URL.Path, status, dur)
		}
		return
	}
	z := zlog.Info().Str("path", r.URL.Path).Str("method", r.Method).Int("status", status).Dur("dur", dur)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	if err != nil {
		z = z.Err(err)
	}
	z.Msg("request end")
}
