package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/litespace/compositor/artifact"
	xerrors "github.com/litespace/compositor/errors"
	"github.com/litespace/compositor/layout"
	"github.com/litespace/compositor/log"
	"github.com/litespace/compositor/timeline"
	"github.com/litespace/compositor/transcode"
	"github.com/litespace/compositor/video"
	"golang.org/x/sync/errgroup"
)

type ArtifactResolver interface {
	Resolve(ctx context.Context, sessionID string) ([]artifact.Artifact, error)
}

type Renderer interface {
	Render(ctx context.Context, plan layout.RenderPlan) (string, error)
}

// Composition describes a finished composition
type Composition struct {
	SessionID  string
	OutputPath string
	DurationMs int64
	Silent     bool
	// artifacts that made it into the output
	Used []artifact.Artifact
	// artifacts left out because they couldn't be probed
	Excluded []string
}

// Composer runs the whole composition of one session: resolve, probe, lay out on a timeline, plan, render
type Composer struct {
	Resolver     ArtifactResolver
	Prober       video.Prober
	Planner      layout.Planner
	Renderer     Renderer
	OutputDir    string
	ProbeWorkers int
}

// ComposeSession composes a session and returns where the output was written
func (c *Composer) ComposeSession(ctx context.Context, sessionID string) (string, error) {
	comp, err := c.Compose(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return comp.OutputPath, nil
}

func (c *Composer) Compose(ctx context.Context, sessionID string) (Composition, error) {
	artifacts, err := c.Resolver.Resolve(ctx, sessionID)
	if err != nil {
		return Composition{}, fmt.Errorf("failed to resolve artifacts: %w", err)
	}
	log.LogCtx(ctx, "resolved artifacts", "count", len(artifacts))
	if len(artifacts) == 0 {
		return Composition{}, xerrors.ErrNothingToCompose
	}

	probed, excluded, err := c.probeAll(ctx, artifacts)
	if err != nil {
		return Composition{}, err
	}

	tl, err := timeline.Build(probed)
	if err != nil {
		return Composition{}, err
	}

	plan := c.Planner.Plan(tl, transcode.OutputPath(c.OutputDir, sessionID))
	log.LogCtx(ctx, "planned composition",
		"layers", len(plan.Layers),
		"audio_stems", len(plan.AudioStems),
		"silent", plan.Silent,
		"duration_ms", plan.DurationMs,
		"excluded", len(excluded),
	)

	// the queue signals once a slot is free, any other renderer starts right away
	if _, queued := c.Renderer.(*RenderQueue); !queued {
		renderSlotAcquired(ctx)
	}
	out, err := c.Renderer.Render(ctx, plan)
	if err != nil {
		return Composition{}, err
	}

	used := make([]artifact.Artifact, 0, len(tl.Entries))
	for _, e := range tl.Entries {
		used = append(used, e.Artifact)
	}
	return Composition{
		SessionID:  sessionID,
		OutputPath: out,
		DurationMs: plan.DurationMs,
		Silent:     plan.Silent,
		Used:       used,
		Excluded:   excluded,
	}, nil
}

// probeAll probes artifacts in parallel. Artifacts that fail to probe or hold no media are excluded and their paths returned.
func (c *Composer) probeAll(ctx context.Context, artifacts []artifact.Artifact) ([]artifact.Artifact, []string, error) {
	workers := c.ProbeWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]artifact.Artifact, len(artifacts))
	failed := make([]bool, len(artifacts))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for i, a := range artifacts {
		i, a := i, a
		group.Go(func() error {
			durationMs, hasAudio, err := c.Prober.ProbeArtifact(groupCtx, a)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.LogCtxError(ctx, "excluding artifact that failed to probe", err, "file", a.FilePath)
				mu.Lock()
				failed[i] = true
				mu.Unlock()
				return nil
			}
			if durationMs <= 0 {
				log.LogCtx(ctx, "excluding artifact with no duration", "file", a.FilePath, "duration_ms", durationMs)
				mu.Lock()
				failed[i] = true
				mu.Unlock()
				return nil
			}
			a.Probed = true
			a.DurationMs = durationMs
			a.HasAudio = hasAudio
			results[i] = a
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	var probed []artifact.Artifact
	var excluded []string
	for i, a := range artifacts {
		if failed[i] {
			excluded = append(excluded, a.FilePath)
			continue
		}
		probed = append(probed, results[i])
	}
	if len(probed) == 0 {
		return nil, excluded, fmt.Errorf("none of the %d artifacts could be probed: %w", len(artifacts), xerrors.ErrNothingToCompose)
	}
	return probed, excluded, nil
}

// IsNothingToCompose reports whether err means the session had no usable recording
func IsNothingToCompose(err error) bool {
	return errors.Is(err, xerrors.ErrNothingToCompose)
}
