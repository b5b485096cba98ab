package subprocess

import (
	"bytes"
	"strings"
	"sync"

	"github.com/golang/glog"
)

const defaultTailLines = 40

// tailWriter keeps the last lines written by a process and echoes them to glog at high verbosity
type tailWriter struct {
	mu      sync.Mutex
	name    string
	max     int
	partial []byte
	lines   []string
}

func newTailWriter(name string, max int) *tailWriter {
	if max <= 0 {
		max = defaultTailLines
	}
	return &tailWriter{name: name, max: max}
}

func (t *tailWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.partial = append(t.partial, p...)
	for {
		// ffmpeg redraws its progress line with \r
		i := bytes.IndexAny(t.partial, "\r\n")
		if i < 0 {
			break
		}
		t.push(string(t.partial[:i]))
		t.partial = t.partial[i+1:]
	}
	return len(p), nil
}

func (t *tailWriter) push(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	glog.V(5).Infof("%s: %s", t.name, line)
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

// String returns the retained lines, including any unterminated last line
func (t *tailWriter) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	lines := t.lines
	if rest := strings.TrimSpace(string(t.partial)); rest != "" {
		lines = append(append([]string{}, lines...), rest)
	}
	return strings.Join(lines, "\n")
}
