package video

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/litespace/compositor/artifact"
	xerrors "github.com/litespace/compositor/errors"
	"github.com/litespace/compositor/log"
	"github.com/litespace/compositor/metrics"
	"gopkg.in/vansante/go-ffprobe.v2"
)

type Prober interface {
	ProbeArtifact(ctx context.Context, a artifact.Artifact) (durationMs int64, hasAudio bool, err error)
}

type probeFunc func(ctx context.Context, url string, opts ...string) (*ffprobe.ProbeData, error)

type Probe struct {
	// hard limit for a single ffprobe invocation
	Timeout time.Duration
	// retries after the first attempt for failures other than a timeout
	Retries uint64

	probe probeFunc
}

func NewProbe(ffprobePath string, timeout time.Duration, retries uint64) Probe {
	if ffprobePath != "" {
		ffprobe.SetFFProbeBinPath(ffprobePath)
	}
	return Probe{Timeout: timeout, Retries: retries, probe: ffprobe.ProbeURL}
}

func (p Probe) ProbeArtifact(ctx context.Context, a artifact.Artifact) (int64, bool, error) {
	start := time.Now()
	info, err := p.ProbeFile(ctx, a.FilePath)
	metrics.Metrics.ProbeDurationSec.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Metrics.ArtifactsProbed.WithLabelValues("false").Inc()
		return 0, false, err
	}
	metrics.Metrics.ArtifactsProbed.WithLabelValues("true").Inc()
	log.LogCtx(ctx, "probed artifact", "file", a.FilePath, "duration_ms", info.DurationMs(), "has_audio", info.HasAudio)
	return info.DurationMs(), info.HasAudio, nil
}

// ProbeFile inspects a single media file. Every failure is a ProbeError.
func (p Probe) ProbeFile(ctx context.Context, path string) (MediaInfo, error) {
	probe := p.probe
	if probe == nil {
		probe = ffprobe.ProbeURL
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var data *ffprobe.ProbeData
	operation := func() error {
		probeCtx, probeCancel := context.WithTimeout(ctx, timeout)
		defer probeCancel()

		var err error
		data, err = probe(probeCtx, path, "-loglevel", "error")
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return xerrors.Unretriable(ctx.Err())
		}
		// a hung probe won't get better by running it again
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return xerrors.Unretriable(xerrors.ErrProbeTimeout)
		}
		return err
	}

	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 500 * time.Millisecond
	backOff.MaxInterval = 2 * time.Second
	backOff.MaxElapsedTime = 0 // the per-attempt timeout bounds each try
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(backOff, p.Retries), ctx))
	if err != nil {
		return MediaInfo{}, xerrors.ProbeError{Path: path, Err: err}
	}

	info, err := parseProbeOutput(data)
	if err != nil {
		return MediaInfo{}, xerrors.ProbeError{Path: path, Err: err}
	}
	return info, nil
}

func parseProbeOutput(probeData *ffprobe.ProbeData) (MediaInfo, error) {
	if probeData == nil || probeData.Format == nil {
		return MediaInfo{}, fmt.Errorf("error parsing media: format information missing")
	}

	var streamMax float64
	for _, s := range probeData.Streams {
		if d, ok := streamDuration(s); ok && d > streamMax {
			streamMax = d
		}
	}

	seconds := probeData.Format.DurationSeconds
	if seconds <= 0 || math.IsNaN(seconds) {
		seconds = streamMax
	}
	if seconds <= 0 {
		return MediaInfo{}, fmt.Errorf("error parsing media: no duration reported")
	}

	info := MediaInfo{
		Format:   probeData.Format.FormatName,
		Duration: time.Duration(seconds * float64(time.Second)).Round(time.Millisecond),
	}
	if info.Duration <= 0 {
		return MediaInfo{}, fmt.Errorf("error parsing media: duration %fs rounds to zero", seconds)
	}

	if v := probeData.FirstVideoStream(); v != nil {
		info.HasVideo = true
		info.Width = v.Width
		info.Height = v.Height
		info.VideoCodec = v.CodecName
	}

	for _, s := range probeData.Streams {
		if s.CodecType != "audio" {
			continue
		}
		d, reported := streamDuration(s)
		// MediaRecorder WebM leaves stream durations out, fall back to the container
		if (reported && d > 0) || (!reported && seconds > 0) {
			info.HasAudio = true
			info.AudioCodec = s.CodecName
			break
		}
	}
	return info, nil
}

func streamDuration(s *ffprobe.Stream) (float64, bool) {
	if s.Duration == "" || s.Duration == "N/A" {
		return 0, false
	}
	d, err := strconv.ParseFloat(s.Duration, 64)
	if err != nil {
		return 0, false
	}
	return d, true
}
