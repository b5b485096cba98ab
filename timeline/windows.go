package timeline

import "sort"

// Window is a slice of the time axis during which the set of active entries doesn't change
type Window struct {
	StartMs int64
	EndMs   int64
	// indexes into Timeline.Entries, in entry order
	Active []int
}

func (w Window) Empty() bool {
	return len(w.Active) == 0
}

// Breakpoints returns every distinct entry start and end, plus 0 and the total duration, in ascending order
func (t Timeline) Breakpoints() []int64 {
	seen := map[int64]bool{0: true, t.TotalDurationMs: true}
	points := []int64{0}
	if t.TotalDurationMs != 0 {
		points = append(points, t.TotalDurationMs)
	}
	for _, e := range t.Entries {
		for _, p := range []int64{e.OffsetMs, e.EndMs} {
			if !seen[p] {
				seen[p] = true
				points = append(points, p)
			}
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })
	return points
}

// Windows cuts [0, TotalDurationMs) at every breakpoint. Windows cover the axis contiguously, a window
// with no active entry is a gap in the recording.
func (t Timeline) Windows() []Window {
	points := t.Breakpoints()
	windows := make([]Window, 0, len(points))
	for i := 1; i < len(points); i++ {
		w := Window{StartMs: points[i-1], EndMs: points[i]}
		if w.EndMs <= w.StartMs {
			continue
		}
		for idx, e := range t.Entries {
			if e.OffsetMs <= w.StartMs && w.EndMs <= e.EndMs {
				w.Active = append(w.Active, idx)
			}
		}
		windows = append(windows, w)
	}
	return windows
}
