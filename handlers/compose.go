package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/litespace/compositor/clients"
	xerrors "github.com/litespace/compositor/errors"
	"github.com/litespace/compositor/log"
	"github.com/litespace/compositor/pipeline"
	"github.com/litespace/compositor/requests"
	"github.com/xeipuuv/gojsonschema"
)

type ComposeRequest struct {
	CallbackURL string `json:"callback_url"`
}

type ComposeResponse struct {
	RequestID string                    `json:"request_id"`
	SessionID string                    `json:"session_id"`
	Status    clients.CompositionStatus `json:"status"`
	Joined    bool                      `json:"joined,omitempty"`
}

// Compose triggers the asynchronous composition of a session. An empty body is allowed.
func (d *CompositorHandlersCollection) Compose() httprouter.Handle {
	schema := inputSchemasCompiled["Compose"]

	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("session")
		if sessionID == "" || strings.ContainsAny(sessionID, "./\\") {
			xerrors.WriteHTTPBadRequest(w, "Invalid session id", fmt.Errorf("invalid session id %q", sessionID))
			return
		}

		var composeRequest ComposeRequest
		payload, err := io.ReadAll(req.Body)
		if err != nil {
			xerrors.WriteHTTPInternalServerError(w, "Cannot read payload", err)
			return
		}
		if len(payload) > 0 {
			if !HasContentType(req, "application/json") {
				xerrors.WriteHTTPUnsupportedMediaType(w, "Requires application/json content type", nil)
				return
			} else if result, err := schema.Validate(gojsonschema.NewBytesLoader(payload)); err != nil {
				xerrors.WriteHTTPBadRequest(w, "Cannot validate payload", err)
				return
			} else if !result.Valid() {
				xerrors.WriteHTTPBadBodySchema("Compose", w, result.Errors())
				return
			} else if err := json.Unmarshal(payload, &composeRequest); err != nil {
				xerrors.WriteHTTPBadRequest(w, "Invalid request payload", err)
				return
			}
		}

		// Request ID that will be used throughout all logging
		requestID := requests.GetRequestId(req)
		job, joined := d.Coordinator.StartComposition(pipeline.ComposeRequest{
			SessionID:   sessionID,
			RequestID:   requestID,
			CallbackURL: composeRequest.CallbackURL,
		})

		status := job.Status()
		writeJSON(w, http.StatusAccepted, ComposeResponse{
			RequestID: status.RequestID,
			SessionID: sessionID,
			Status:    status.Status,
			Joined:    joined,
		})
	}
}

// CompositionStatus returns the latest known status of a session's composition
func (d *CompositorHandlersCollection) CompositionStatus() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("session")
		msg, err := d.Coordinator.Status(req.Context(), sessionID)
		if errors.Is(err, clients.ErrStatusNotFound) {
			xerrors.WriteHTTPNotFound(w, "No composition for session", nil)
			return
		} else if err != nil {
			log.LogNoRequestID("failed to look up composition status", "session_id", sessionID, "err", err)
			xerrors.WriteHTTPInternalServerError(w, "Cannot look up composition status", err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}
