package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/litespace/compositor/log"
	"github.com/xeipuuv/gojsonschema"
)

type apiError struct {
	Msg    string `json:"message"`
	Status int    `json:"status"`
	Err    error  `json:"-"`
}

func writeHttpError(w http.ResponseWriter, msg string, status int, err error) apiError {
	var errorDetail string
	if err != nil {
		errorDetail = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg, "error_detail": errorDetail}); err != nil {
		log.LogNoRequestID("error writing HTTP error", "http_error_msg", msg, "error", err)
	}
	return apiError{msg, status, err}
}

// HTTP Errors
func WriteHTTPUnauthorized(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusUnauthorized, err)
}

func WriteHTTPBadRequest(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusBadRequest, err)
}

func WriteHTTPNotFound(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusNotFound, err)
}

func WriteHTTPUnsupportedMediaType(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusUnsupportedMediaType, err)
}

func WriteHTTPInternalServerError(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusInternalServerError, err)
}

func WriteHTTPBadBodySchema(where string, w http.ResponseWriter, errors []gojsonschema.ResultError) apiError {
	sb := strings.Builder{}
	sb.WriteString("Body validation error in ")
	sb.WriteString(where)
	sb.WriteString(" ")
	for i := 0; i < len(errors); i++ {
		sb.WriteString(errors[i].String())
		sb.WriteString(" ")
	}
	return writeHttpError(w, sb.String(), http.StatusBadRequest, nil)
}

// Pipeline errors

var (
	// ErrMalformedArtifact is returned for storage entries that don't follow the artifact naming convention
	ErrMalformedArtifact = errors.New("malformed artifact name")
	// ErrProbeTimeout is returned when ffprobe didn't finish within the probe timeout. Never retried.
	ErrProbeTimeout = errors.New("probe timed out")
	// ErrNothingToCompose means a session has no usable artifact left after probing
	ErrNothingToCompose = errors.New("nothing to compose")
	// ErrRenderTimeout is returned when the render process was killed for exceeding the render timeout
	ErrRenderTimeout = errors.New("render timed out")
)

// IngestError is a failed chunk append. Previously written bytes are untouched and the chunk can be retried.
type IngestError struct {
	Path string
	Err  error
}

func (e IngestError) Error() string {
	return fmt.Sprintf("failed to append chunk to %s: %s", e.Path, e.Err)
}

func (e IngestError) Unwrap() error {
	return e.Err
}

// ProbeError excludes a single artifact from a composition
type ProbeError struct {
	Path string
	Err  error
}

func (e ProbeError) Error() string {
	return fmt.Sprintf("failed to probe %s: %s", e.Path, e.Err)
}

func (e ProbeError) Unwrap() error {
	return e.Err
}

func IsProbeError(err error) bool {
	var pe ProbeError
	return errors.As(err, &pe)
}

// RenderError carries the tail of the transcoder's diagnostic output
type RenderError struct {
	Diagnostic string
	Err        error
}

func (e *RenderError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("render failed: %s", e.Err)
	}
	return fmt.Sprintf("render failed: %s: %s", e.Err, e.Diagnostic)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func IsRenderError(err error) bool {
	var re *RenderError
	return errors.As(err, &re)
}

// Unretriable wraps an error so that backoff.Retry gives up on it immediately
func Unretriable(err error) error {
	return backoff.Permanent(err)
}

func IsUnretriable(err error) bool {
	var permErr *backoff.PermanentError
	return errors.As(err, &permErr)
}
