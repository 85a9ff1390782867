package stations

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jpalmerr/dcmetro/stationcodes"
)

// ErrNotFound is returned by [Directory.Lookup] for unknown station codes.
var ErrNotFound = errors.New("station not found")

// LoadError reports a station table that could not be read or parsed.
// It is fatal to startup; loading is never retried.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load station table %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Entry is one station of the directory.
type Entry struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Lines    []string `json:"lines,omitempty"`
	Together []string `json:"together,omitempty"`
}

// record is the on-disk shape, which is the jStations record verbatim.
// Key matching is case-insensitive.
type record struct {
	Code             string `json:"Code"`
	Name             string `json:"Name"`
	StationTogether1 string `json:"StationTogether1,omitempty"`
	StationTogether2 string `json:"StationTogether2,omitempty"`
	LineCode1        string `json:"LineCode1,omitempty"`
	LineCode2        string `json:"LineCode2,omitempty"`
	LineCode3        string `json:"LineCode3,omitempty"`
	LineCode4        string `json:"LineCode4,omitempty"`
}

func (r record) entry() Entry {
	return Entry{
		Code:     r.Code,
		Name:     r.Name,
		Lines:    nonEmpty(r.LineCode1, r.LineCode2, r.LineCode3, r.LineCode4),
		Together: nonEmpty(r.StationTogether1, r.StationTogether2),
	}
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Directory is an immutable station code index.
type Directory struct {
	entries []Entry
	byCode  map[string]Entry
}

// EmbeddedPath is the path reported in errors for the built-in table.
const EmbeddedPath = "<embedded>"

var (
	loadOnce sync.Once
	loaded   *Directory
	loadErr  error
)

// Load returns the process-wide directory, reading path on the first call.
// An empty path selects the embedded table. Later calls return the cached
// result, including a cached failure, and ignore path.
func Load(path string) (*Directory, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Read(path)
	})
	return loaded, loadErr
}

// Read reads and parses a station table without caching. An empty path
// selects the embedded table.
func Read(path string) (*Directory, error) {
	if path == "" {
		return Parse(EmbeddedPath, stationcodes.JSON)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return Parse(path, data)
}

// Parse builds a directory from the JSON contents of a station table. path
// is only used for error reporting.
func Parse(path string, data []byte) (*Directory, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	d := &Directory{
		entries: make([]Entry, 0, len(records)),
		byCode:  make(map[string]Entry, len(records)),
	}
	for i, r := range records {
		if r.Code == "" {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("record %d has no code", i)}
		}
		e := r.entry()
		if _, dup := d.byCode[e.Code]; dup {
			continue
		}
		d.entries = append(d.entries, e)
		d.byCode[e.Code] = e
	}
	return d, nil
}

// Lookup returns the entry for code. Unknown codes return an error wrapping
// [ErrNotFound].
func (d *Directory) Lookup(code string) (Entry, error) {
	if d != nil {
		if e, ok := d.byCode[code]; ok {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, code)
}

// Name returns the display name for code.
func (d *Directory) Name(code string) (string, bool) {
	if d == nil {
		return "", false
	}
	e, ok := d.byCode[code]
	return e.Name, ok
}

// Entries returns every station in file order.
func (d *Directory) Entries() []Entry {
	if d == nil {
		return nil
	}
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Len returns the number of stations.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}
