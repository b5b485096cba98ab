package video

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/litespace/compositor/subprocess"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const posterWidth = 640

// format time in secs to be compatible with ffmpeg's expected time syntax
func formatTime(timeSeconds float64) string {
	timeMillis := int64(timeSeconds * 1000)
	duration := time.Duration(timeMillis) * time.Millisecond
	formattedTime := time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).Add(duration)
	return formattedTime.Format("15:04:05.000")
}

func posterArgs(input, output string, atSeconds float64) []string {
	if atSeconds < 0 {
		atSeconds = 0
	}
	return ffmpeg.
		Input(input, ffmpeg.KwArgs{"ss": formatTime(atSeconds)}).
		Output(
			output,
			ffmpeg.KwArgs{
				"vframes": "1",
				"q:v":     "3",
				// keep the aspect ratio, even height
				"vf": "scale=" + strconv.Itoa(posterWidth) + ":-2",
			},
		).OverWriteOutput().GetArgs()
}

// GeneratePoster writes a single JPEG frame of input taken at atSeconds
func GeneratePoster(ctx context.Context, ffmpegPath, input, output string, atSeconds float64) error {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	res, err := subprocess.Run(ctx, subprocess.Options{Timeout: time.Minute}, ffmpegPath, posterArgs(input, output, atSeconds)...)
	if err != nil {
		return fmt.Errorf("error running ffmpeg for poster %s [%s]: %w", input, res.Diagnostic, err)
	}
	return nil
}
