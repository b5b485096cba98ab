package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/litespace/compositor/log"
)

// Resolver discovers the artifacts of a session in the chunk storage root
type Resolver struct {
	Root string
}

func NewResolver(root string) *Resolver {
	return &Resolver{Root: root}
}

// Resolve returns the session's artifacts ordered by capture start. Entries that don't follow the naming
// convention are skipped. No artifacts is not an error.
func (r *Resolver) Resolve(ctx context.Context, sessionID string) ([]Artifact, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return []Artifact{}, nil
		}
		return nil, fmt.Errorf("failed to list storage root %s: %w", r.Root, err)
	}

	artifacts := []Artifact{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		key, _, err := ParseFilename(entry.Name())
		if err != nil {
			log.LogCtx(ctx, "skipping storage entry", "file", entry.Name(), "reason", err.Error())
			continue
		}
		if key.SessionID != sessionID {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Key:      key,
			FilePath: filepath.Join(r.Root, entry.Name()),
		})
	}

	sort.SliceStable(artifacts, func(i, j int) bool { return Less(artifacts[i], artifacts[j]) })

	if err := checkDuplicates(sessionID, artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}

type trackID struct {
	participantID int64
	kind          TrackKind
}

func checkDuplicates(sessionID string, artifacts []Artifact) error {
	seen := map[trackID][]string{}
	var order []trackID
	for _, a := range artifacts {
		id := trackID{a.ParticipantID, a.Kind}
		if _, ok := seen[id]; !ok {
			order = append(order, id)
		}
		seen[id] = append(seen[id], a.FilePath)
	}
	for _, id := range order {
		if paths := seen[id]; len(paths) > 1 {
			return &DuplicateTrackError{
				SessionID:     sessionID,
				ParticipantID: id.participantID,
				Kind:          id.kind,
				Paths:         paths,
			}
		}
	}
	return nil
}
