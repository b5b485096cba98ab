package log

import (
	"context"
	"sort"
)

type clogContextKeyType struct{}

var clogContextKey = clogContextKeyType{}

// logging metadata carried on a context. Immutable once attached, so no locking.
type metadata map[string]any

// Flat returns the metadata as sorted key/value pairs so lines are stable across runs
func (m metadata) Flat() []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(m)*2)
	for _, k := range keys {
		out = append(out, k, m[k])
	}
	return out
}

// WithLogValues returns a new context with the key/value pairs added to its logging metadata
func WithLogValues(ctx context.Context, args ...string) context.Context {
	oldMetadata, _ := ctx.Value(clogContextKey).(metadata)
	newMetadata := metadata{}
	for k, v := range oldMetadata {
		newMetadata[k] = v
	}
	for i := 1; i < len(args); i += 2 {
		newMetadata[args[i-1]] = args[i]
	}
	return context.WithValue(ctx, clogContextKey, newMetadata)
}

func LogCtx(ctx context.Context, message string, args ...any) {
	requestID, allArgs := fromCtx(ctx, args)
	if requestID == "" {
		LogNoRequestID(message, allArgs...)
	} else {
		Log(requestID, message, allArgs...)
	}
}

func LogCtxError(ctx context.Context, message string, err error, args ...any) {
	requestID, allArgs := fromCtx(ctx, args)
	if requestID == "" {
		errMsg := "<nil>"
		if err != nil {
			errMsg = err.Error()
		}
		LogNoRequestID(message, append([]any{"err", errMsg}, allArgs...)...)
	} else {
		LogError(requestID, message, err, allArgs...)
	}
}

func fromCtx(ctx context.Context, args []any) (string, []any) {
	var requestID string
	meta, _ := ctx.Value(clogContextKey).(metadata)
	if meta != nil {
		requestID, _ = meta["request_id"].(string)
	}
	allArgs := []any{}
	for _, kv := range meta.Flat() {
		allArgs = append(allArgs, kv)
	}
	// request_id is already attached by the per-request logger
	if requestID != "" {
		filtered := allArgs[:0]
		for i := 0; i+1 < len(allArgs); i += 2 {
			if allArgs[i] == "request_id" {
				continue
			}
			filtered = append(filtered, allArgs[i], allArgs[i+1])
		}
		allArgs = filtered
	}
	return requestID, append(allArgs, args...)
}
