package results

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// AppendLog appends timestamped lines to a log file. Several processes may
// write to the same file; each line is written under an advisory lock.
type AppendLog struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
	now  func() time.Time
}

// OpenAppendLog prepares path for appending. An empty path yields a nil log,
// which discards everything.
func OpenAppendLog(path string) (*AppendLog, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &AppendLog{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}, nil
}

// Path returns the log file path.
func (l *AppendLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Printf appends "[<UTC ISO timestamp>] <message>".
func (l *AppendLog) Printf(format string, args ...any) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock log: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	ts := l.now().UTC().Format("2006-01-02T15:04:05.000000")
	_, err = fmt.Fprintf(f, "[%s] %s\n", ts, fmt.Sprintf(format, args...))
	return err
}
