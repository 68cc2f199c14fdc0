// Package envfile reads and rewrites flat KEY=value files (dotenv style).
//
// The file is the durable fallback sink for delegated credentials, so
// rewrites must be loss-free: unknown keys, comments and blank lines are
// preserved in their original order, and writes go through a temp file
// plus rename.
package envfile

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type line struct {
	raw   string // verbatim line for comments/blanks/unparseable lines
	key   string // non-empty when the line is a KEY=value pair
	value string
}

// File is an in-memory view of one env file. Safe for concurrent use.
type File struct {
	path string

	mu    sync.Mutex
	lines []line
	index map[string]int // key -> position in lines
}

// Load reads the file at path. A missing file is not an error; Save will
// create it.
func Load(path string) (*File, error) {
	f := &File{path: path, index: map[string]int{}}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, err
	}

	sc := bufio.NewScanner(strings.NewReader(string(raw)))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		text := sc.Text()
		k, v, ok := parsePair(text)
		if !ok {
			f.lines = append(f.lines, line{raw: text})
			continue
		}
		if prev, dup := f.index[k]; dup {
			// Last occurrence wins, mirroring how shells export env files.
			f.lines[prev] = line{raw: f.lines[prev].raw}
		}
		f.index[k] = len(f.lines)
		f.lines = append(f.lines, line{key: k, value: v})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

func parsePair(text string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	i := strings.IndexByte(trimmed, '=')
	if i <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(trimmed[:i])
	value = unquote(trimmed[i+1:])
	if key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false
	}
	return key, value, true
}

func unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func (f *File) Path() string { return f.path }

// Get returns the value for key and whether it is present and non-empty.
func (f *File) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.index[key]
	if !ok {
		return "", false
	}
	v := f.lines[i].value
	return v, v != ""
}

// Set updates or appends a KEY=value pair. Values must be single-line.
func (f *File) Set(key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, " \t=") {
		return fmt.Errorf("envfile: invalid key %q", key)
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("envfile: value for %s contains a newline", key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if i, ok := f.index[key]; ok {
		f.lines[i].value = value
		return nil
	}
	f.index[key] = len(f.lines)
	f.lines = append(f.lines, line{key: key, value: value})
	return nil
}

// Save rewrites the file in place, preserving untouched lines verbatim.
func (f *File) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var b strings.Builder
	for _, ln := range f.lines {
		if ln.key == "" {
			b.WriteString(ln.raw)
		} else {
			b.WriteString(ln.key)
			b.WriteByte('=')
			b.WriteString(quoteIfNeeded(ln.value))
		}
		b.WriteByte('\n')
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, f.path)
}

func quoteIfNeeded(v string) string {
	if v == "" {
		return v
	}
	if strings.ContainsAny(v, " \t#'") || v != strings.TrimSpace(v) {
		return `"` + v + `"`
	}
	return v
}
