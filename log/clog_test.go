package log

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/go-logfmt/logfmt"
	"github.com/stretchr/testify/require"
)

func toMap(r io.Reader) []map[string]string {
	d := logfmt.NewDecoder(r)
	out := []map[string]string{}
	for d.ScanRecord() {
		m := map[string]string{}
		for d.ScanKeyval() {
			m[string(d.Key())] = string(d.Value())
		}
		out = append(out, m)
	}
	return out
}

func TestContextLog(t *testing.T) {
	var b bytes.Buffer
	original := logDestination
	logDestination = &b
	defer func() { logDestination = original }()

	ctx := WithLogValues(context.TODO(), "session_id", "42")
	LogCtx(ctx, "test message")
	result := toMap(&b)
	require.Len(t, result, 1)
	line := result[0]
	require.Len(t, line, 3)
	require.NotEmpty(t, line["ts"])
	require.Equal(t, "test message", line["msg"])
	require.Equal(t, "42", line["session_id"])
	b.Reset()

	ctx2 := WithLogValues(ctx, "request_id", "my_request", "participant_id", "7")
	LogCtx(ctx2, "child context message")
	result = toMap(&b)
	require.Len(t, result, 1)
	line = result[0]
	require.Len(t, line, 5)
	require.Equal(t, "child context message", line["msg"])
	require.Equal(t, "42", line["session_id"])
	require.Equal(t, "my_request", line["request_id"])
	require.Equal(t, "7", line["participant_id"])
}

func TestContextLogError(t *testing.T) {
	var b bytes.Buffer
	original := logDestination
	logDestination = &b
	defer func() { logDestination = original }()

	LogCtxError(WithLogValues(context.Background(), "session_id", "9"), "probe failed", errors.New("timeout"))
	result := toMap(&b)
	require.Len(t, result, 1)
	require.Equal(t, "timeout", result[0]["err"])
	require.Equal(t, "9", result[0]["session_id"])
}
