// Package monitor watches for an external retrain signal and drives the
// retrain-then-reload cycle. It runs independently of request traffic.
package monitor

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"mlserved/internal/common/fsutil"
)

// Monitor polls for a signal file at a fixed interval. When the file
// appears it is claimed exactly once (read best-effort, then deleted
// before the job starts) and a retrain cycle runs. A signal created
// while a job is executing is a distinct, later request; the coordinator
// coalesces it only if the first run is still in flight when the next
// tick picks it up.
type Monitor struct {
	signalPath string
	interval   time.Duration
	coord      *Coordinator
	log        zerolog.Logger
}

// New builds a Monitor. interval <= 0 defaults to 5s.
func New(signalPath string, interval time.Duration, coord *Coordinator, log zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{signalPath: signalPath, interval: interval, coord: coord, log: log}
}

// Run polls until ctx is canceled. Every error is contained to its
// iteration; the loop itself never terminates on error.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info().Str("signal", m.signalPath).Dur("interval", m.interval).Msg("retrain monitor started")
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("retrain monitor stopped")
			return
		case <-t.C:
			m.tick(ctx)
		}
	}
}

// tick processes at most one signal. The delete happens before the job
// so the claim is atomic against re-detection on the next tick even if
// the job fails.
func (m *Monitor) tick(ctx context.Context) {
	if !fsutil.PathExists(m.signalPath) {
		return
	}
	m.log.Info().Str("signal", m.signalPath).Msg("retrain signal detected")

	// Payload is diagnostic only; an unreadable file is still consumed.
	if payload, err := os.ReadFile(m.signalPath); err != nil {
		m.log.Warn().Err(err).Msg("signal payload unreadable")
	} else if len(payload) > 0 {
		m.log.Info().Str("payload", string(payload)).Msg("signal payload")
	}

	if err := os.Remove(m.signalPath); err != nil {
		// Claim failed; leave it for the next tick rather than risk
		// running the job twice for one signal.
		m.log.Error().Err(err).Msg("failed to remove signal file")
		return
	}
	m.log.Info().Msg("signal file removed")

	if _, err := m.coord.Retrain(ctx); err != nil {
		m.log.Warn().Err(err).Msg("retrain cycle finished with error")
	}
}
