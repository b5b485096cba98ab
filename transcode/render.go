package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	xerrors "github.com/litespace/compositor/errors"
	"github.com/litespace/compositor/layout"
	"github.com/litespace/compositor/log"
	"github.com/litespace/compositor/metrics"
	"github.com/litespace/compositor/subprocess"
)

const partSuffix = ".part"

type Renderer struct {
	FFmpegPath string
	Encoder    Encoder
	// hard limit for one render, the process is killed after it
	Timeout time.Duration
}

func NewRenderer(ffmpegPath string, enc Encoder, timeout time.Duration) Renderer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return Renderer{FFmpegPath: ffmpegPath, Encoder: enc, Timeout: timeout}
}

// OutputPath is where the composition of a session is published
func OutputPath(outputDir, sessionID string) string {
	return filepath.Join(outputDir, sessionID+".mp4")
}

// Render runs the plan through ffmpeg. The output only ever appears at plan.OutputPath complete: ffmpeg writes
// next to it and the file is renamed once the process exited cleanly.
func (r Renderer) Render(ctx context.Context, plan layout.RenderPlan) (string, error) {
	if plan.OutputPath == "" {
		return "", fmt.Errorf("render plan for session %s has no output path", plan.SessionID)
	}
	if err := os.MkdirAll(filepath.Dir(plan.OutputPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	part := plan.OutputPath + partSuffix
	_ = os.Remove(part)
	args := buildArgs(plan, r.Encoder, part)

	log.LogCtx(ctx, "starting render",
		"layers", len(plan.Layers),
		"audio_stems", len(plan.AudioStems),
		"duration_ms", plan.DurationMs,
		"output", plan.OutputPath,
	)
	metrics.Metrics.RendersInFlight.Inc()
	res, err := subprocess.Run(ctx, subprocess.Options{Timeout: r.Timeout}, r.FFmpegPath, args...)
	metrics.Metrics.RendersInFlight.Dec()
	metrics.Metrics.RenderDurationSec.Observe(res.Duration.Seconds())

	if err != nil {
		removePart(ctx, part)
		if errors.Is(err, subprocess.ErrTimeout) {
			err = xerrors.ErrRenderTimeout
		}
		return "", &xerrors.RenderError{Diagnostic: res.Diagnostic, Err: err}
	}

	if info, statErr := os.Stat(part); statErr != nil || info.Size() == 0 {
		removePart(ctx, part)
		return "", &xerrors.RenderError{Diagnostic: res.Diagnostic, Err: errors.New("ffmpeg exited cleanly but wrote no output")}
	}
	if err := os.Rename(part, plan.OutputPath); err != nil {
		removePart(ctx, part)
		return "", &xerrors.RenderError{Err: fmt.Errorf("failed to publish output: %w", err)}
	}

	metrics.Metrics.ComposedDurationSec.Observe(float64(plan.DurationMs) / 1000)
	log.LogCtx(ctx, "render finished", "output", plan.OutputPath, "took", res.Duration)
	return plan.OutputPath, nil
}

func removePart(ctx context.Context, part string) {
	if err := os.Remove(part); err != nil && !os.IsNotExist(err) {
		log.LogCtxError(ctx, "failed to remove partial render", err, "file", part)
	}
}
