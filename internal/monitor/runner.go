package monitor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// Outcome describes how a retrain job finished.
type Outcome struct {
	ExitCode int
	TimedOut bool
	Output   string
}

// JobRunner executes the external retraining job. The serving core never
// discovers processes at runtime; the handle to the job is configured
// once at startup and invoked through this contract.
type JobRunner interface {
	Trigger(ctx context.Context, name string) (Outcome, error)
}

// ExecRunner triggers retraining by running a configured command with the
// job name appended as the final argument. The run is bounded by timeout;
// on expiry the child process is terminated (we own it, abandoning it
// would leak) and the outcome reports TimedOut.
type ExecRunner struct {
	argv    []string
	timeout time.Duration
	log     zerolog.Logger
}

// NewExecRunner builds a runner for argv. timeout <= 0 defaults to 600s.
func NewExecRunner(argv []string, timeout time.Duration, log zerolog.Logger) *ExecRunner {
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	return &ExecRunner{argv: append([]string(nil), argv...), timeout: timeout, log: log}
}

func (r *ExecRunner) Trigger(ctx context.Context, name string) (Outcome, error) {
	if len(r.argv) == 0 {
		return Outcome{ExitCode: -1}, errors.New("no job command configured")
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append(append([]string(nil), r.argv[1:]...), name)
	cmd := exec.CommandContext(ctx, r.argv[0], args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	r.log.Info().Str("job", name).Strs("argv", r.argv).Msg("triggering retrain job")
	err := cmd.Run()
	out := Outcome{Output: tail(buf.String(), 500)}

	if ctx.Err() == context.DeadlineExceeded {
		out.TimedOut = true
		out.ExitCode = -1
		return out, errors.New("retrain job timed out")
	}
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			out.ExitCode = ee.ExitCode()
		} else {
			out.ExitCode = -1
		}
		return out, err
	}
	return out, nil
}

// tail keeps the last n bytes of s, mirroring how job logs get truncated
// for diagnostics.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
