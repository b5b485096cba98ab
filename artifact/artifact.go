package artifact

import (
	"fmt"
	"strconv"
	"strings"

	xerrors "github.com/litespace/compositor/errors"
)

type TrackKind int

const (
	// Primary is the camera and microphone track of a participant
	Primary TrackKind = iota
	// Screen is a screen share. Video only.
	Screen
)

const screenMarker = "screen"

func (k TrackKind) String() string {
	switch k {
	case Primary:
		return "primary"
	case Screen:
		return "screen"
	}
	return fmt.Sprintf("TrackKind(%d)", int(k))
}

func ParseTrackKind(s string) (TrackKind, error) {
	switch strings.ToLower(s) {
	case "", "primary":
		return Primary, nil
	case "screen":
		return Screen, nil
	}
	return Primary, fmt.Errorf("unknown track kind %q", s)
}

// Key identifies one recorded track. All chunks of a track carry the same Key.
type Key struct {
	SessionID     string
	ParticipantID int64
	Kind          TrackKind
	// CaptureStartedAt is the epoch millisecond at which the client started recording this track
	CaptureStartedAt int64
}

func (k Key) Validate() error {
	if k.SessionID == "" {
		return fmt.Errorf("empty session id")
	}
	if strings.ContainsAny(k.SessionID, "./\\") {
		return fmt.Errorf("session id %q contains a reserved character", k.SessionID)
	}
	if k.ParticipantID < 0 {
		return fmt.Errorf("negative participant id %d", k.ParticipantID)
	}
	if k.CaptureStartedAt < 0 {
		return fmt.Errorf("negative capture start %d", k.CaptureStartedAt)
	}
	return nil
}

// Filename renders the on-disk name {captureStartedAt}.{sessionId}.{participantId}[.screen].{ext}
func (k Key) Filename(ext string) string {
	name := fmt.Sprintf("%d.%s.%d", k.CaptureStartedAt, k.SessionID, k.ParticipantID)
	if k.Kind == Screen {
		name += "." + screenMarker
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}

// ParseFilename is the inverse of Key.Filename. The extension is returned separately.
func ParseFilename(name string) (Key, string, error) {
	parts := strings.Split(name, ".")
	if len(parts) != 4 && len(parts) != 5 {
		return Key{}, "", fmt.Errorf("%w: %q", xerrors.ErrMalformedArtifact, name)
	}

	startedAt, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || startedAt < 0 {
		return Key{}, "", fmt.Errorf("%w: %q has no capture start prefix", xerrors.ErrMalformedArtifact, name)
	}
	if parts[1] == "" {
		return Key{}, "", fmt.Errorf("%w: %q has an empty session id", xerrors.ErrMalformedArtifact, name)
	}
	participantID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || participantID < 0 {
		return Key{}, "", fmt.Errorf("%w: %q has an invalid participant id", xerrors.ErrMalformedArtifact, name)
	}

	key := Key{
		SessionID:        parts[1],
		ParticipantID:    participantID,
		Kind:             Primary,
		CaptureStartedAt: startedAt,
	}
	ext := parts[len(parts)-1]
	if len(parts) == 5 {
		if parts[3] != screenMarker {
			return Key{}, "", fmt.Errorf("%w: %q has unknown marker %q", xerrors.ErrMalformedArtifact, name, parts[3])
		}
		key.Kind = Screen
	}
	if ext == "" {
		return Key{}, "", fmt.Errorf("%w: %q has no extension", xerrors.ErrMalformedArtifact, name)
	}
	return key, ext, nil
}

// Artifact is one recorded track on disk. DurationMs and HasAudio are only meaningful once Probed.
type Artifact struct {
	Key
	FilePath   string
	Probed     bool
	DurationMs int64
	HasAudio   bool
}

// Less orders artifacts by capture start, then participant, then kind
func Less(a, b Artifact) bool {
	if a.CaptureStartedAt != b.CaptureStartedAt {
		return a.CaptureStartedAt < b.CaptureStartedAt
	}
	if a.ParticipantID != b.ParticipantID {
		return a.ParticipantID < b.ParticipantID
	}
	return a.Kind < b.Kind
}

// DuplicateTrackError is returned when a participant has more than one track of the same kind in a session.
// This points at a client bug and is never merged silently.
type DuplicateTrackError struct {
	SessionID     string
	ParticipantID int64
	Kind          TrackKind
	Paths         []string
}

func (e *DuplicateTrackError) Error() string {
	return fmt.Sprintf("session %s: participant %d has %d %s tracks: %s",
		e.SessionID, e.ParticipantID, len(e.Paths), e.Kind, strings.Join(e.Paths, ", "))
}
