package chunks

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/litespace/compositor/artifact"
	xerrors "github.com/litespace/compositor/errors"
	"github.com/litespace/compositor/log"
	"github.com/litespace/compositor/metrics"
)

// Store appends uploaded chunks to one file per artifact under Root
type Store struct {
	root string
	ext  string

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func NewStore(root, ext string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chunk storage root %s: %w", root, err)
	}
	return &Store{root: root, ext: ext, locks: map[string]*keyLock{}}, nil
}

func (s *Store) Root() string {
	return s.root
}

// Path is where the artifact identified by key lives
func (s *Store) Path(key artifact.Key) string {
	return filepath.Join(s.root, key.Filename(s.ext))
}

// Append writes data to the end of the artifact's file. On failure the file is rolled back to its previous size.
func (s *Store) Append(ctx context.Context, key artifact.Key, data []byte) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("invalid artifact key: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	path := s.Path(key)
	unlock := s.lock(path)
	defer unlock()

	// the client may have given up while we waited for the previous chunk
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := appendFile(path, data); err != nil {
		metrics.Metrics.ChunkAppendFailures.Inc()
		return xerrors.IngestError{Path: path, Err: err}
	}
	metrics.Metrics.ChunkBytesWritten.Add(float64(len(data)))
	return nil
}

// appendTarget is the part of *os.File that appending needs
type appendTarget interface {
	io.WriteSeeker
	io.Closer
	Sync() error
	Truncate(size int64) error
}

var openAppendTarget = func(path string) (appendTarget, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0644)
}

func appendFile(path string, data []byte) (err error) {
	f, err := openAppendTarget(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}

	rollback := func(cause error) error {
		if terr := f.Truncate(size); terr != nil {
			log.LogNoRequestID("failed to roll back partial chunk", "file", path, "size", size, "err", terr)
		}
		return cause
	}

	if _, err := f.Write(data); err != nil {
		return rollback(err)
	}
	if err := f.Sync(); err != nil {
		return rollback(err)
	}
	return nil
}

func (s *Store) lock(path string) func() {
	s.mu.Lock()
	l, ok := s.locks[path]
	if !ok {
		l = &keyLock{}
		s.locks[path] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, path)
		}
		s.mu.Unlock()
	}
}

// Remove deletes artifact files once they're no longer needed. Files that are already gone are ignored.
func (s *Store) Remove(paths ...string) error {
	var firstErr error
	for _, p := range paths {
		unlock := s.lock(p)
		err := os.Remove(p)
		unlock()
		if err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("failed to remove artifact %s: %w", p, err)
		}
	}
	return firstErr
}
