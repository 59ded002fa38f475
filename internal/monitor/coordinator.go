package monitor

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Reloader is the serving layer's reload hook. In-process it is the
// serving Service; for a standalone monitor it is an HTTP shim.
type Reloader interface {
	Reload(ctx context.Context) bool
}

// Coordinator runs retrain jobs and the follow-up reload. All entry
// points (signal file, POST /retrain, repeated signals) funnel through a
// single-flight group, so overlapping triggers coalesce onto the one run
// already in flight instead of racing each other.
type Coordinator struct {
	name     string
	runner   JobRunner
	reloader Reloader
	log      zerolog.Logger
	sf       singleflight.Group
}

// NewCoordinator wires the runner and reloader for the named job.
func NewCoordinator(name string, runner JobRunner, reloader Reloader, log zerolog.Logger) *Coordinator {
	return &Coordinator{name: name, runner: runner, reloader: reloader, log: log}
}

// Retrain triggers the job and then reloads the serving layer. The reload
// happens regardless of the job outcome: a failed retrain simply leaves
// the previously served model active. Job errors are logged and returned,
// never fatal.
func (c *Coordinator) Retrain(ctx context.Context) (Outcome, error) {
	v, err, shared := c.sf.Do(c.name, func() (any, error) {
		out, jobErr := c.runner.Trigger(ctx, c.name)
		if jobErr != nil {
			c.log.Error().Err(jobErr).Bool("timed_out", out.TimedOut).Int("exit_code", out.ExitCode).
				Str("output", out.Output).Msg("retrain job failed")
		} else {
			c.log.Info().Str("job", c.name).Msg("retrain job completed")
		}
		if c.reloader != nil {
			c.reloader.Reload(ctx)
		}
		return out, jobErr
	})
	if shared {
		c.log.Info().Str("job", c.name).Msg("retrain coalesced onto in-flight run")
	}
	out, _ := v.(Outcome)
	return out, err
}

// RetrainAsync dispatches Retrain on a fresh goroutine with a background
// context, so HTTP handlers can answer "accepted" immediately without
// holding a request slot for the duration of the job.
func (c *Coordinator) RetrainAsync() {
	go func() {
		if _, err := c.Retrain(context.Background()); err != nil {
			c.log.Warn().Err(err).Msg("background retrain finished with error")
		}
	}()
}
