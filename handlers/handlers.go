package handlers

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/litespace/compositor/artifact"
	"github.com/litespace/compositor/clients"
	"github.com/litespace/compositor/log"
	"github.com/litespace/compositor/pipeline"
)

// default cap for a single uploaded chunk
const defaultMaxChunkBytes = 64 << 20

type ChunkAppender interface {
	Append(ctx context.Context, key artifact.Key, data []byte) error
}

type CompositionCoordinator interface {
	StartComposition(req pipeline.ComposeRequest) (*pipeline.Job, bool)
	Status(ctx context.Context, sessionID string) (clients.CompositionStatusMessage, error)
}

type CompositorHandlersCollection struct {
	Chunks        ChunkAppender
	Coordinator   CompositionCoordinator
	MaxChunkBytes int64
}

func HasContentType(r *http.Request, mimetype string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return mimetype == "application/octet-stream"
	}

	for _, v := range strings.Split(contentType, ",") {
		t, _, err := mime.ParseMediaType(v)
		if err != nil {
			break
		}
		if t == mimetype {
			return true
		}
	}

	return false
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.LogNoRequestID("Failed to write HTTP response", "err", err)
	}
}
