package layout

import (
	"fmt"

	"github.com/litespace/compositor/timeline"
)

type Mode int

const (
	FullFrame Mode = iota
	Grid
	Inset
)

func (m Mode) String() string {
	switch m {
	case FullFrame:
		return "full-frame"
	case Grid:
		return "grid"
	case Inset:
		return "inset"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

type Canvas struct {
	Width  int
	Height int
}

type Rect struct {
	X, Y, W, H int
}

type Placement struct {
	Mode Mode
	Rect Rect
}

// Layer shows one artifact at a fixed placement for a span of the output
type Layer struct {
	Entry          timeline.Entry
	Placement      Placement
	VisibleFromMs  int64
	VisibleUntilMs int64
	// overlay order, lower is further back
	Z int
}

// SourceStartMs is where the layer starts within its own artifact
func (l Layer) SourceStartMs() int64 {
	return l.VisibleFromMs - l.Entry.OffsetMs
}

func (l Layer) DurationMs() int64 {
	return l.VisibleUntilMs - l.VisibleFromMs
}

type RenderPlan struct {
	SessionID  string
	Canvas     Canvas
	Layers     []Layer
	AudioStems []timeline.Entry
	// no stem carries audio, the output gets a silent track
	Silent     bool
	DurationMs int64
	OutputPath string
}
