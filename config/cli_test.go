package config

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddrFlag(t *testing.T) {
	fs := flag.NewFlagSet("cli-test", flag.ContinueOnError)
	var addr string
	AddrFlag(fs, &addr, "addr", "0.0.0.0:5000", "")
	require.NoError(t, fs.Parse([]string{"-addr=0.0.0.0:1935"}))
	require.Equal(t, "0.0.0.0:1935", addr)

	fs2 := flag.NewFlagSet("cli-test", flag.ContinueOnError)
	AddrFlag(fs2, &addr, "addr", "0.0.0.0:5000", "")
	require.Error(t, fs2.Parse([]string{"-addr=nope"}))
}

func TestResolutionFlag(t *testing.T) {
	fs := flag.NewFlagSet("cli-test", flag.ContinueOnError)
	var w, h int
	ResolutionFlag(fs, &w, &h, "canvas", "1280x720", "")
	require.Equal(t, 1280, w)
	require.Equal(t, 720, h)

	require.NoError(t, fs.Parse([]string{"-canvas=1920X1080"}))
	require.Equal(t, 1920, w)
	require.Equal(t, 1080, h)

	for _, bad := range []string{"1280", "axb", "1281x720", "0x720", "-2x4"} {
		fs := flag.NewFlagSet("cli-test", flag.ContinueOnError)
		ResolutionFlag(fs, &w, &h, "canvas", "1280x720", "")
		require.Error(t, fs.Parse([]string{"-canvas=" + bad}), bad)
	}
}
