package timeline

import (
	"fmt"
	"testing"

	"github.com/litespace/compositor/artifact"
	xerrors "github.com/litespace/compositor/errors"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func probed(participant int64, kind artifact.TrackKind, startedAt, durationMs int64) artifact.Artifact {
	return artifact.Artifact{
		Key: artifact.Key{
			SessionID:        "42",
			ParticipantID:    participant,
			Kind:             kind,
			CaptureStartedAt: startedAt,
		},
		FilePath:   fmt.Sprintf("/data/%d.42.%d.webm", startedAt, participant),
		Probed:     true,
		DurationMs: durationMs,
		HasAudio:   kind == artifact.Primary,
	}
}

func TestTwoPrimaries(t *testing.T) {
	tl, err := Build([]artifact.Artifact{
		probed(2, artifact.Primary, 4000, 6000),
		probed(1, artifact.Primary, 1000, 10000),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1000), tl.OriginMs)
	require.Equal(t, int64(10000), tl.TotalDurationMs)
	require.Equal(t, "42", tl.SessionID)
	require.Len(t, tl.Entries, 2)

	require.Equal(t, int64(1), tl.Entries[0].Artifact.ParticipantID)
	require.Equal(t, int64(0), tl.Entries[0].OffsetMs)
	require.Equal(t, int64(10000), tl.Entries[0].EndMs)
	require.Equal(t, int64(3000), tl.Entries[1].OffsetMs)
	require.Equal(t, int64(9000), tl.Entries[1].EndMs)

	require.Equal(t, []int64{0, 3000, 9000, 10000}, tl.Breakpoints())
	windows := tl.Windows()
	require.Equal(t, []Window{
		{StartMs: 0, EndMs: 3000, Active: []int{0}},
		{StartMs: 3000, EndMs: 9000, Active: []int{0, 1}},
		{StartMs: 9000, EndMs: 10000, Active: []int{0}},
	}, windows)
}

func TestSingleArtifact(t *testing.T) {
	tl, err := Build([]artifact.Artifact{probed(7, artifact.Primary, 1699999999000, 4321)})
	require.NoError(t, err)
	require.Len(t, tl.Entries, 1)
	require.Equal(t, int64(0), tl.Entries[0].OffsetMs)
	require.Equal(t, int64(4321), tl.TotalDurationMs)
	require.Len(t, tl.Windows(), 1)
}

func TestNothingToCompose(t *testing.T) {
	_, err := Build(nil)
	require.ErrorIs(t, err, xerrors.ErrNothingToCompose)

	unprobed := probed(1, artifact.Primary, 0, 1000)
	unprobed.Probed = false
	empty := probed(2, artifact.Primary, 0, 0)
	_, err = Build([]artifact.Artifact{unprobed, empty})
	require.ErrorIs(t, err, xerrors.ErrNothingToCompose)
}

func TestGapBetweenRecordings(t *testing.T) {
	tl, err := Build([]artifact.Artifact{
		probed(1, artifact.Primary, 0, 1000),
		probed(2, artifact.Primary, 5000, 1000),
	})
	require.NoError(t, err)
	windows := tl.Windows()
	require.Len(t, windows, 3)
	require.True(t, windows[1].Empty())
	require.Equal(t, int64(1000), windows[1].StartMs)
	require.Equal(t, int64(5000), windows[1].EndMs)
}

func TestEntryOrderIsDeterministic(t *testing.T) {
	a := probed(3, artifact.Screen, 1000, 500)
	b := probed(3, artifact.Primary, 1000, 500)
	c := probed(1, artifact.Primary, 1000, 500)
	tl1, err := Build([]artifact.Artifact{a, b, c})
	require.NoError(t, err)
	tl2, err := Build([]artifact.Artifact{c, a, b})
	require.NoError(t, err)
	require.Equal(t, tl1, tl2)
	require.Equal(t, int64(1), tl1.Entries[0].Artifact.ParticipantID)
	require.Equal(t, artifact.Primary, tl1.Entries[1].Artifact.Kind)
	require.Equal(t, artifact.Screen, tl1.Entries[2].Artifact.Kind)
}

func drawArtifacts(t *rapid.T) []artifact.Artifact {
	n := rapid.IntRange(1, 8).Draw(t, "n")
	base := rapid.Int64Range(0, 1_700_000_000_000).Draw(t, "base")
	artifacts := make([]artifact.Artifact, 0, n)
	for i := 0; i < n; i++ {
		kind := artifact.Primary
		if rapid.Bool().Draw(t, fmt.Sprintf("screen%d", i)) {
			kind = artifact.Screen
		}
		artifacts = append(artifacts, probed(
			int64(i),
			kind,
			base+rapid.Int64Range(0, 600_000).Draw(t, fmt.Sprintf("start%d", i)),
			rapid.Int64Range(1, 3_600_000).Draw(t, fmt.Sprintf("duration%d", i)),
		))
	}
	return artifacts
}

func TestTimelineProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		artifacts := drawArtifacts(t)
		tl, err := Build(artifacts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var maxEnd int64
		zeroOffsets := 0
		for _, e := range tl.Entries {
			if e.EndMs-e.OffsetMs != e.Artifact.DurationMs {
				t.Fatalf("entry end %d doesn't match offset %d + duration %d", e.EndMs, e.OffsetMs, e.Artifact.DurationMs)
			}
			if e.EndMs > maxEnd {
				maxEnd = e.EndMs
			}
			if e.OffsetMs == 0 {
				zeroOffsets++
			}
		}
		if tl.TotalDurationMs != maxEnd {
			t.Fatalf("total duration %d != max end %d", tl.TotalDurationMs, maxEnd)
		}
		if zeroOffsets == 0 {
			t.Fatalf("no entry starts at the origin")
		}
	})
}

func TestWindowsCoverTimeline(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tl, err := Build(drawArtifacts(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		windows := tl.Windows()
		var cursor int64
		for _, w := range windows {
			if w.StartMs != cursor || w.EndMs <= w.StartMs {
				t.Fatalf("window [%d,%d) doesn't continue from %d", w.StartMs, w.EndMs, cursor)
			}
			for idx, e := range tl.Entries {
				active := false
				for _, a := range w.Active {
					active = active || a == idx
				}
				if active != e.ActiveAt(w.StartMs) {
					t.Fatalf("entry %d active=%v in window [%d,%d)", idx, active, w.StartMs, w.EndMs)
				}
			}
			cursor = w.EndMs
		}
		if cursor != tl.TotalDurationMs {
			t.Fatalf("windows end at %d, timeline at %d", cursor, tl.TotalDurationMs)
		}
	})
}
