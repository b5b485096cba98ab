package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/litespace/compositor/artifact"
	xerrors "github.com/litespace/compositor/errors"
	"github.com/litespace/compositor/log"
)

type UploadChunkResponse struct {
	SessionID     string `json:"session_id"`
	ParticipantID int64  `json:"participant_id"`
	Kind          string `json:"kind"`
	Bytes         int    `json:"bytes"`
}

// UploadChunk appends the raw request body to the artifact named by the session and query parameters.
// Chunks of one artifact have to be sent in order; a failed chunk can be retried as is.
func (d *CompositorHandlersCollection) UploadChunk() httprouter.Handle {
	maxBytes := d.MaxChunkBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxChunkBytes
	}

	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		key, err := chunkKey(ps.ByName("session"), req)
		if err != nil {
			xerrors.WriteHTTPBadRequest(w, "Invalid chunk parameters", err)
			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				xerrors.WriteHTTPBadRequest(w, "Chunk too large", err)
				return
			}
			xerrors.WriteHTTPInternalServerError(w, "Cannot read chunk", err)
			return
		}

		if err := d.Chunks.Append(req.Context(), key, data); err != nil {
			log.LogNoRequestID("failed to append chunk",
				"session_id", key.SessionID,
				"participant_id", key.ParticipantID,
				"kind", key.Kind.String(),
				"err", err,
			)
			xerrors.WriteHTTPInternalServerError(w, "Cannot store chunk", err)
			return
		}

		writeJSON(w, http.StatusOK, UploadChunkResponse{
			SessionID:     key.SessionID,
			ParticipantID: key.ParticipantID,
			Kind:          key.Kind.String(),
			Bytes:         len(data),
		})
	}
}

func chunkKey(sessionID string, req *http.Request) (artifact.Key, error) {
	query := req.URL.Query()

	participantID, err := strconv.ParseInt(query.Get("participant"), 10, 64)
	if err != nil {
		return artifact.Key{}, fmt.Errorf("invalid participant %q: %w", query.Get("participant"), err)
	}
	kind, err := artifact.ParseTrackKind(query.Get("kind"))
	if err != nil {
		return artifact.Key{}, err
	}
	started, err := strconv.ParseInt(query.Get("started"), 10, 64)
	if err != nil {
		return artifact.Key{}, fmt.Errorf("invalid started %q: %w", query.Get("started"), err)
	}

	key := artifact.Key{
		SessionID:        sessionID,
		ParticipantID:    participantID,
		Kind:             kind,
		CaptureStartedAt: started,
	}
	if err := key.Validate(); err != nil {
		return artifact.Key{}, err
	}
	return key, nil
}
