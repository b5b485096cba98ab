package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) {
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
}

func TestResolveSession(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "4000.42.2.webm")
	touch(t, dir, "1000.42.1.webm")
	touch(t, dir, "2000.42.1.screen.webm")
	touch(t, dir, "1000.43.1.webm")
	touch(t, dir, "notes.txt")
	touch(t, dir, "42.1.webm")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "5000.42.9.webm"), 0755))

	artifacts, err := NewResolver(dir).Resolve(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	require.Equal(t, int64(1000), artifacts[0].CaptureStartedAt)
	require.Equal(t, Primary, artifacts[0].Kind)
	require.Equal(t, filepath.Join(dir, "1000.42.1.webm"), artifacts[0].FilePath)
	require.Equal(t, Screen, artifacts[1].Kind)
	require.Equal(t, int64(2), artifacts[2].ParticipantID)
	for _, a := range artifacts {
		require.False(t, a.Probed)
	}
}

func TestResolveEmpty(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "1000.43.1.webm")

	artifacts, err := NewResolver(dir).Resolve(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, artifacts)
	require.Empty(t, artifacts)

	artifacts, err = NewResolver(filepath.Join(dir, "missing")).Resolve(context.Background(), "42")
	require.NoError(t, err)
	require.Empty(t, artifacts)
}

func TestResolveDuplicateTrack(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "1000.42.1.webm")
	touch(t, dir, "3000.42.1.webm")
	touch(t, dir, "2000.42.1.screen.webm")

	_, err := NewResolver(dir).Resolve(context.Background(), "42")
	require.Error(t, err)
	var dup *DuplicateTrackError
	require.True(t, errors.As(err, &dup))
	require.Equal(t, int64(1), dup.ParticipantID)
	require.Equal(t, Primary, dup.Kind)
	require.Len(t, dup.Paths, 2)
}
