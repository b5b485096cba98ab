package subprocess

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func script(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "fake.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestRunSuccess(t *testing.T) {
	res, err := Run(context.Background(), Options{Timeout: 5 * time.Second}, script(t, `echo "frame=1" >&2; echo ok`))
	require.NoError(t, err)
	require.Equal(t, "frame=1", res.Diagnostic)
}

func TestRunFailureKeepsDiagnosticTail(t *testing.T) {
	res, err := Run(context.Background(), Options{Timeout: 5 * time.Second, TailLines: 2},
		script(t, `echo one >&2; echo two >&2; echo "Invalid data found when processing input" >&2; exit 1`))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrTimeout))
	require.Equal(t, "two\nInvalid data found when processing input", res.Diagnostic)
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	start := time.Now()
	_, err := Run(context.Background(), Options{Timeout: 200 * time.Millisecond}, script(t, `exec sleep 10`))
	require.ErrorIs(t, err, ErrTimeout)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := Run(ctx, Options{Timeout: time.Minute}, script(t, `exec sleep 10`))
	require.ErrorIs(t, err, context.Canceled)
}

func TestTailWriterSplitsCarriageReturns(t *testing.T) {
	w := newTailWriter("ffmpeg", 3)
	_, _ = w.Write([]byte("a\nb\rc\nd"))
	_, _ = w.Write([]byte("e\n"))
	require.Equal(t, "b\nc\nde", w.String())
}
