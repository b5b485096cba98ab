package transcode

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/litespace/compositor/layout"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

type Encoder struct {
	VideoCodec string
	AudioCodec string
	Preset     string
	CRF        int
	FPS        int
}

var DefaultEncoder = Encoder{
	VideoCodec: "libx264",
	AudioCodec: "aac",
	Preset:     "veryfast",
	CRF:        23,
	FPS:        30,
}

const (
	audioSampleRate = 48000
	background      = "black"
)

func seconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 3, 64)
}

// buildArgs compiles a render plan into the arguments of a single ffmpeg invocation writing to output
func buildArgs(plan layout.RenderPlan, enc Encoder, output string) []string {
	duration := seconds(plan.DurationMs)
	fps := enc.FPS
	if fps <= 0 {
		fps = DefaultEncoder.FPS
	}

	canvas := ffmpeg.Input(
		fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", background, plan.Canvas.Width, plan.Canvas.Height, fps),
		ffmpeg.KwArgs{"f": "lavfi", "t": duration},
	)
	silence := ffmpeg.Input(
		fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=%d", audioSampleRate),
		ffmpeg.KwArgs{"f": "lavfi", "t": duration},
	)

	// one input per artifact, shared by all its layers and its audio stem
	inputs := map[string]*ffmpeg.Stream{}
	input := func(path string) *ffmpeg.Stream {
		if s, ok := inputs[path]; ok {
			return s
		}
		s := ffmpeg.Input(path)
		inputs[path] = s
		return s
	}

	layers := append([]layout.Layer{}, plan.Layers...)
	sort.SliceStable(layers, func(i, j int) bool {
		if layers[i].Z != layers[j].Z {
			return layers[i].Z < layers[j].Z
		}
		return layers[i].VisibleFromMs < layers[j].VisibleFromMs
	})

	video := canvas
	for _, l := range layers {
		video = overlay(video, input(l.Entry.Artifact.FilePath), l)
	}

	audio := silence.Audio()
	if !plan.Silent && len(plan.AudioStems) > 0 {
		mix := []*ffmpeg.Stream{audio}
		for _, stem := range plan.AudioStems {
			mix = append(mix, input(stem.Artifact.FilePath).Audio().
				Filter("asetpts", ffmpeg.Args{"PTS-STARTPTS"}).
				Filter("aresample", ffmpeg.Args{strconv.Itoa(audioSampleRate)}).
				Filter("adelay", ffmpeg.Args{}, ffmpeg.KwArgs{"delays": strconv.FormatInt(stem.OffsetMs, 10), "all": "1"}))
		}
		// the silent bed is first so the mix always lasts the whole session
		audio = ffmpeg.Filter(mix, "amix", ffmpeg.Args{}, ffmpeg.KwArgs{
			"inputs":             strconv.Itoa(len(mix)),
			"duration":           "first",
			"dropout_transition": "0",
		})
	}

	return ffmpeg.Output([]*ffmpeg.Stream{video, audio}, output, ffmpeg.KwArgs{
		"c:v":      enc.VideoCodec,
		"preset":   enc.Preset,
		"crf":      strconv.Itoa(enc.CRF),
		"pix_fmt":  "yuv420p",
		"r":        strconv.Itoa(fps),
		"c:a":      enc.AudioCodec,
		"ar":       strconv.Itoa(audioSampleRate),
		"t":        duration,
		"movflags": "+faststart",
		"f":        "mp4",
	}).OverWriteOutput().GetArgs()
}

// overlay cuts the layer's span out of its artifact, fits it into the layer's rect and lays it over base.
// The layer is shifted to start at VisibleFromMs; before and after that base shows through.
func overlay(base, in *ffmpeg.Stream, l layout.Layer) *ffmpeg.Stream {
	r := l.Placement.Rect
	clip := in.Video().
		Filter("setpts", ffmpeg.Args{"PTS-STARTPTS"}).
		Filter("trim", ffmpeg.Args{}, ffmpeg.KwArgs{"start": seconds(l.SourceStartMs()), "duration": seconds(l.DurationMs())}).
		Filter("setpts", ffmpeg.Args{"PTS-STARTPTS+" + seconds(l.VisibleFromMs) + "/TB"}).
		Filter("scale", ffmpeg.Args{strconv.Itoa(r.W), strconv.Itoa(r.H)}, ffmpeg.KwArgs{"force_original_aspect_ratio": "decrease"}).
		Filter("pad", ffmpeg.Args{strconv.Itoa(r.W), strconv.Itoa(r.H), "(ow-iw)/2", "(oh-ih)/2"}, ffmpeg.KwArgs{"color": background}).
		Filter("setsar", ffmpeg.Args{"1"})

	return ffmpeg.Filter([]*ffmpeg.Stream{base, clip}, "overlay", ffmpeg.Args{}, ffmpeg.KwArgs{
		"x":          strconv.Itoa(r.X),
		"y":          strconv.Itoa(r.Y),
		"eof_action": "pass",
	})
}
