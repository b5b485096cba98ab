package subprocess

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/litespace/compositor/log"
)

// ErrTimeout is returned when a process was killed for running past its timeout
var ErrTimeout = errors.New("process timed out")

// how long to wait for output pipes after the process was killed
const waitDelay = 5 * time.Second

type Result struct {
	// Diagnostic holds the last lines the process wrote to stderr
	Diagnostic string
	Duration   time.Duration
}

type Options struct {
	Timeout   time.Duration
	TailLines int
}

// Run executes name with args and waits for it. The process is killed once opts.Timeout has passed or ctx
// is done.
func Run(ctx context.Context, opts Options, name string, args ...string) (Result, error) {
	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	stderr := newTailWriter(filepath.Base(name), opts.TailLines)
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	log.LogCtx(ctx, "running subprocess", "cmd", name, "timeout", opts.Timeout)
	start := time.Now()
	err := cmd.Run()
	res := Result{Diagnostic: stderr.String(), Duration: time.Since(start)}
	if err == nil {
		return res, nil
	}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("%s killed after %s: %w", filepath.Base(name), opts.Timeout, ErrTimeout)
	}
	return res, fmt.Errorf("%s failed: %w", filepath.Base(name), err)
}
