package video

import "time"

// MediaInfo is what a probe learns about one recorded artifact
type MediaInfo struct {
	Format     string
	Duration   time.Duration
	HasAudio   bool
	HasVideo   bool
	Width      int
	Height     int
	VideoCodec string
	AudioCodec string
}

func (m MediaInfo) DurationMs() int64 {
	return m.Duration.Milliseconds()
}
