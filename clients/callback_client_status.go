package clients

// CompositionStatus is the lifecycle of one session's composition
type CompositionStatus string

const (
	StatusQueued    CompositionStatus = "queued"
	StatusComposing CompositionStatus = "composing"
	StatusComposed  CompositionStatus = "composed"
	StatusFailed    CompositionStatus = "failed"
	// the session had no usable recording
	StatusEmpty CompositionStatus = "empty"
)

func (s CompositionStatus) IsFinal() bool {
	switch s {
	case StatusComposed, StatusFailed, StatusEmpty:
		return true
	}
	return false
}

func (s CompositionStatus) IsValid() bool {
	switch s {
	case StatusQueued, StatusComposing, StatusComposed, StatusFailed, StatusEmpty:
		return true
	}
	return false
}

// CompositionStatusMessage is posted to callback URLs and returned by the status endpoint
type CompositionStatusMessage struct {
	URL       string            `json:"-"`
	RequestID string            `json:"request_id"`
	SessionID string            `json:"session_id"`
	Status    CompositionStatus `json:"status"`
	Error     string            `json:"error,omitempty"`
	// the same request won't succeed when retried
	Unretriable bool  `json:"unretriable,omitempty"`
	Timestamp   int64 `json:"timestamp"`

	// Only set once composed
	OutputPath       string   `json:"output_path,omitempty"`
	PosterPath       string   `json:"poster_path,omitempty"`
	DurationMs       int64    `json:"duration_ms,omitempty"`
	ProcessingTimeMs int64    `json:"processing_time_ms,omitempty"`
	Artifacts        int      `json:"artifacts,omitempty"`
	Excluded         []string `json:"excluded,omitempty"`
}
