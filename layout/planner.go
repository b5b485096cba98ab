package layout

import (
	"math"
	"sort"

	"github.com/litespace/compositor/artifact"
	"github.com/litespace/compositor/timeline"
)

const (
	DefaultInsetDivisor = 5
	DefaultInsetMargin  = 10
)

type Planner struct {
	Canvas Canvas
	// insets are Canvas/InsetDivisor in each dimension
	InsetDivisor int
	InsetMargin  int
}

func NewPlanner(width, height int) Planner {
	return Planner{
		Canvas:       Canvas{Width: even(width), Height: even(height)},
		InsetDivisor: DefaultInsetDivisor,
		InsetMargin:  DefaultInsetMargin,
	}
}

// Plan turns a timeline into a render plan. It never fails and the same timeline always gives the same plan.
func (p Planner) Plan(tl timeline.Timeline, outputPath string) RenderPlan {
	plan := RenderPlan{
		SessionID:  tl.SessionID,
		Canvas:     p.Canvas,
		DurationMs: tl.TotalDurationMs,
		OutputPath: outputPath,
		AudioStems: []timeline.Entry{},
	}

	z := zOrder(tl)
	hasScreen := tl.HasScreen()
	singlePrimary := !hasScreen && tl.Count(artifact.Primary) == 1

	// the layer each entry is currently extending
	open := map[int]int{}
	for _, w := range tl.Windows() {
		placements := p.placeWindow(tl, w, hasScreen, singlePrimary)
		for _, idx := range w.Active {
			placement := placements[idx]
			if li, ok := open[idx]; ok {
				l := &plan.Layers[li]
				if l.VisibleUntilMs == w.StartMs && l.Placement == placement {
					l.VisibleUntilMs = w.EndMs
					continue
				}
			}
			plan.Layers = append(plan.Layers, Layer{
				Entry:          tl.Entries[idx],
				Placement:      placement,
				VisibleFromMs:  w.StartMs,
				VisibleUntilMs: w.EndMs,
				Z:              z[idx],
			})
			open[idx] = len(plan.Layers) - 1
		}
	}

	sort.SliceStable(plan.Layers, func(i, j int) bool {
		a, b := plan.Layers[i], plan.Layers[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		return a.VisibleFromMs < b.VisibleFromMs
	})

	for _, e := range tl.Entries {
		if e.Artifact.HasAudio {
			plan.AudioStems = append(plan.AudioStems, e)
		}
	}
	plan.Silent = len(plan.AudioStems) == 0
	return plan
}

// zOrder ranks screens behind primaries, each group in timeline order
func zOrder(tl timeline.Timeline) map[int]int {
	z := make(map[int]int, len(tl.Entries))
	for _, kind := range []artifact.TrackKind{artifact.Screen, artifact.Primary} {
		for idx, e := range tl.Entries {
			if e.Artifact.Kind == kind {
				z[idx] = len(z)
			}
		}
	}
	return z
}

func (p Planner) placeWindow(tl timeline.Timeline, w timeline.Window, hasScreen, singlePrimary bool) map[int]Placement {
	var screens, primaries []int
	for _, idx := range w.Active {
		if tl.Entries[idx].Artifact.Kind == artifact.Screen {
			screens = append(screens, idx)
		} else {
			primaries = append(primaries, idx)
		}
	}

	placements := make(map[int]Placement, len(w.Active))
	switch {
	case hasScreen && len(screens) > 0:
		if len(screens) == 1 {
			placements[screens[0]] = p.fullFrame()
		} else {
			for i, r := range p.grid(len(screens)) {
				placements[screens[i]] = Placement{Mode: Grid, Rect: r}
			}
		}
		for i, idx := range primaries {
			placements[idx] = Placement{Mode: Inset, Rect: p.inset(i)}
		}
	case singlePrimary:
		for _, idx := range primaries {
			placements[idx] = p.fullFrame()
		}
	default:
		for i, r := range p.grid(len(primaries)) {
			placements[primaries[i]] = Placement{Mode: Grid, Rect: r}
		}
	}
	return placements
}

func (p Planner) fullFrame() Placement {
	return Placement{Mode: FullFrame, Rect: Rect{W: p.Canvas.Width, H: p.Canvas.Height}}
}

// grid splits the canvas into n equal cells, row by row. A short last row is centred.
func (p Planner) grid(n int) []Rect {
	if n <= 0 {
		return nil
	}
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols
	cellW := even(p.Canvas.Width / cols)
	cellH := even(p.Canvas.Height / rows)

	rects := make([]Rect, 0, n)
	for i := 0; i < n; i++ {
		row, col := i/cols, i%cols
		inRow := cols
		if row == rows-1 && n%cols != 0 {
			inRow = n % cols
		}
		shift := even((cols - inRow) * cellW / 2)
		rects = append(rects, Rect{X: shift + col*cellW, Y: row * cellH, W: cellW, H: cellH})
	}
	return rects
}

// inset returns the i-th picture-in-picture slot, stacked upwards from the bottom-right corner and wrapping
// into columns further left
func (p Planner) inset(i int) Rect {
	divisor := p.InsetDivisor
	if divisor <= 0 {
		divisor = DefaultInsetDivisor
	}
	margin := p.InsetMargin
	w := even(p.Canvas.Width / divisor)
	h := even(p.Canvas.Height / divisor)

	perCol := (p.Canvas.Height - margin) / (h + margin)
	if perCol < 1 {
		perCol = 1
	}
	col, row := i/perCol, i%perCol

	x := p.Canvas.Width - (col+1)*(w+margin)
	y := p.Canvas.Height - (row+1)*(h+margin)
	return Rect{X: max(x, 0), Y: max(y, 0), W: w, H: h}
}

func even(n int) int {
	return n &^ 1
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
