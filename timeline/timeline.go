package timeline

import (
	"sort"

	"github.com/litespace/compositor/artifact"
	xerrors "github.com/litespace/compositor/errors"
)

// Entry places one artifact on the session's time axis, relative to the earliest capture start
type Entry struct {
	Artifact artifact.Artifact
	OffsetMs int64
	EndMs    int64
}

func (e Entry) DurationMs() int64 {
	return e.EndMs - e.OffsetMs
}

// ActiveAt reports whether the entry covers the instant t
func (e Entry) ActiveAt(t int64) bool {
	return e.OffsetMs <= t && t < e.EndMs
}

type Timeline struct {
	SessionID       string
	OriginMs        int64
	Entries         []Entry
	TotalDurationMs int64
}

// Build lays the probed artifacts out on a shared axis. Unprobed and empty artifacts are left out; if
// nothing remains ErrNothingToCompose is returned.
func Build(artifacts []artifact.Artifact) (Timeline, error) {
	usable := make([]artifact.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if a.Probed && a.DurationMs > 0 {
			usable = append(usable, a)
		}
	}
	if len(usable) == 0 {
		return Timeline{}, xerrors.ErrNothingToCompose
	}

	origin := usable[0].CaptureStartedAt
	for _, a := range usable[1:] {
		if a.CaptureStartedAt < origin {
			origin = a.CaptureStartedAt
		}
	}

	tl := Timeline{
		SessionID: usable[0].SessionID,
		OriginMs:  origin,
		Entries:   make([]Entry, 0, len(usable)),
	}
	for _, a := range usable {
		offset := a.CaptureStartedAt - origin
		e := Entry{Artifact: a, OffsetMs: offset, EndMs: offset + a.DurationMs}
		if e.EndMs > tl.TotalDurationMs {
			tl.TotalDurationMs = e.EndMs
		}
		tl.Entries = append(tl.Entries, e)
	}

	sort.SliceStable(tl.Entries, func(i, j int) bool {
		a, b := tl.Entries[i], tl.Entries[j]
		if a.OffsetMs != b.OffsetMs {
			return a.OffsetMs < b.OffsetMs
		}
		if a.Artifact.ParticipantID != b.Artifact.ParticipantID {
			return a.Artifact.ParticipantID < b.Artifact.ParticipantID
		}
		return a.Artifact.Kind < b.Artifact.Kind
	})
	return tl, nil
}

// HasScreen reports whether any entry is a screen share
func (t Timeline) HasScreen() bool {
	for _, e := range t.Entries {
		if e.Artifact.Kind == artifact.Screen {
			return true
		}
	}
	return false
}

// Count returns the number of entries of the given kind
func (t Timeline) Count(kind artifact.TrackKind) int {
	n := 0
	for _, e := range t.Entries {
		if e.Artifact.Kind == kind {
			n++
		}
	}
	return n
}
