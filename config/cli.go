package config

import (
	"flag"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

type Cli struct {
	HTTPAddress         string
	HTTPInternalAddress string
	APIToken            string

	StorageDir string
	OutputDir  string
	ChunkExt   string

	CanvasWidth  int
	CanvasHeight int

	FFmpegPath  string
	FFprobePath string
	VideoCodec  string
	AudioCodec  string
	Preset      string
	CRF         int
	FPS         int

	ProbeWorkers         int
	ProbeRetries         uint64
	ProbeTimeout         time.Duration
	RenderTimeout        time.Duration
	MaxConcurrentRenders int
	RenderQueueSize      int

	PurgeArtifacts bool
	Poster         bool

	StatusDBConnectionString string
}

// ResolutionFlag parses values of the form WIDTHxHEIGHT. Both sides must be
// positive and even, yuv420p output refuses odd dimensions.
func ResolutionFlag(fs *flag.FlagSet, width, height *int, name, value, usage string) {
	if err := parseResolution(value, width, height); err != nil {
		panic(err)
	}
	fs.Func(name, usage, func(s string) error {
		return parseResolution(s, width, height)
	})
}

func parseResolution(s string, width, height *int) error {
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid resolution %q, expected WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("invalid resolution width %q: %w", parts[0], err)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("invalid resolution height %q: %w", parts[1], err)
	}
	if w <= 0 || h <= 0 || w%2 != 0 || h%2 != 0 {
		return fmt.Errorf("invalid resolution %q, dimensions must be positive and even", s)
	}
	*width, *height = w, h
	return nil
}

// AddrFlag validates a host:port listen address
func AddrFlag(fs *flag.FlagSet, dest *string, name, value, usage string) {
	*dest = value
	fs.Func(name, usage, func(s string) error {
		_, _, err := net.SplitHostPort(s)
		if err != nil {
			return err
		}
		*dest = s
		return nil
	})
}
