package artifact

import (
	"errors"
	"testing"

	xerrors "github.com/litespace/compositor/errors"
	"github.com/stretchr/testify/require"
)

func TestParseScreenFilename(t *testing.T) {
	key, ext, err := ParseFilename("1699999999000.42.7.screen.webm")
	require.NoError(t, err)
	require.Equal(t, "webm", ext)
	require.Equal(t, Key{
		SessionID:        "42",
		ParticipantID:    7,
		Kind:             Screen,
		CaptureStartedAt: 1699999999000,
	}, key)
}

func TestParsePrimaryFilename(t *testing.T) {
	key, ext, err := ParseFilename("1000.lesson-9.3.mkv")
	require.NoError(t, err)
	require.Equal(t, "mkv", ext)
	require.Equal(t, Primary, key.Kind)
	require.Equal(t, "lesson-9", key.SessionID)
	require.Equal(t, int64(3), key.ParticipantID)
	require.Equal(t, int64(1000), key.CaptureStartedAt)
}

func TestRejectsMalformedFilenames(t *testing.T) {
	for _, name := range []string{
		"42.7.screen.webm",        // no capture start
		"abc.42.7.webm",           // non numeric capture start
		"1000.42.x.webm",          // non numeric participant
		"1000.42.7.camera.webm",   // unknown marker
		"1000..7.webm",            // empty session
		"1000.42.7.",              // empty extension
		"1000.42.webm",            // too few parts
		"1000.42.7.screen.x.webm", // too many parts
		"-5.42.7.webm",
		".DS_Store",
	} {
		_, _, err := ParseFilename(name)
		require.Error(t, err, name)
		require.True(t, errors.Is(err, xerrors.ErrMalformedArtifact), name)
	}
}

func TestFilenameRoundTrip(t *testing.T) {
	for _, key := range []Key{
		{SessionID: "42", ParticipantID: 7, Kind: Screen, CaptureStartedAt: 1699999999000},
		{SessionID: "abc", ParticipantID: 0, Kind: Primary, CaptureStartedAt: 0},
	} {
		name := key.Filename(".webm")
		parsed, ext, err := ParseFilename(name)
		require.NoError(t, err)
		require.Equal(t, "webm", ext)
		require.Equal(t, key, parsed)
	}
}

func TestKeyValidate(t *testing.T) {
	require.NoError(t, Key{SessionID: "42", ParticipantID: 1, CaptureStartedAt: 1}.Validate())
	require.Error(t, Key{SessionID: "", ParticipantID: 1}.Validate())
	require.Error(t, Key{SessionID: "4.2", ParticipantID: 1}.Validate())
	require.Error(t, Key{SessionID: "../etc", ParticipantID: 1}.Validate())
	require.Error(t, Key{SessionID: "42", ParticipantID: -1}.Validate())
}

func TestParseTrackKind(t *testing.T) {
	k, err := ParseTrackKind("SCREEN")
	require.NoError(t, err)
	require.Equal(t, Screen, k)
	k, err = ParseTrackKind("")
	require.NoError(t, err)
	require.Equal(t, Primary, k)
	_, err = ParseTrackKind("webcam")
	require.Error(t, err)
}
