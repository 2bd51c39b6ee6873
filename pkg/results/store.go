// Package results stores task output documents as JSON files in a single
// directory and serves them back.
package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the UTC timestamp embedded in result names.
const TimestampLayout = "20060102T150405Z"

// Store manages result documents under a root directory.
type Store struct {
	root string
	now  func() time.Time
}

// NewStore returns a Store rooted at dir, creating it when missing.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve results dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &Store{root: abs, now: time.Now}, nil
}

// Root returns the absolute results directory.
func (s *Store) Root() string { return s.root }

// Name returns a fresh file name "{prefix}_{timestamp}_{suffix}.json".
func (s *Store) Name(prefix string) string {
	return s.name(prefix, ".json")
}

func (s *Store) name(prefix, ext string) string {
	prefix = sanitize(prefix)
	if prefix == "" {
		prefix = "result"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s_%s_%s%s", prefix, s.now().UTC().Format(TimestampLayout), suffix, ext)
}

// OutputPath returns a fresh result path for task.
func (s *Store) OutputPath(task string) string {
	return filepath.Join(s.root, s.Name(task))
}

// LogPath returns a fresh log path for task, next to its results.
func (s *Store) LogPath(task string) string {
	return filepath.Join(s.root, s.name(task, ".log"))
}

// Save writes data as a new document named after prefix and returns its path.
func (s *Store) Save(prefix string, data any) (string, error) {
	path := s.OutputPath(prefix)
	if err := WriteJSON(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Entry describes one stored document.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// List returns the stored JSON documents, newest name first. Names embed
// their creation time so the order is chronological per prefix.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read results dir: %w", err)
	}
	out := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".json" {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Name:    de.Name(),
			Path:    filepath.Join(s.root, de.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

// Resolve maps path (absolute, or relative to the store) to a file inside
// the store. Paths escaping the store are rejected.
func (s *Store) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", &InvalidInputError{Field: "path", Reason: "must not be empty"}
	}
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &InvalidInputError{Field: "path", Reason: "outside results directory"}
	}
	return p, nil
}

// Read decodes the document at path.
func (s *Store) Read(path string) (any, error) {
	p, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("read result: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &InvalidInputError{Field: "path", Reason: "not a JSON document: " + err.Error()}
	}
	return out, nil
}

// WriteJSON writes data to path with two-space indentation, creating parent
// directories. Non-ASCII text and HTML characters are written verbatim.
func WriteJSON(path string, data any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o640); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// sanitize keeps prefixes usable as file names.
func sanitize(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, prefix)
}
