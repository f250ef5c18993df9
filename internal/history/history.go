// Package history persists the expressions applied per parameter name and a
// list of expression presets in a single JSON file.
//
// The file is a convenience: read failures and corrupt content behave like
// an empty file and write failures are dropped.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/verte-zerg/exprparms/internal/model"
)

// FileName is the default base name of the backing file.
const FileName = "editparms.data"

type document struct {
	Presets []string                      `json:"presets"`
	History map[string]model.HistoryEntry `json:"history"`
}

// Store is a file-backed history and preset store. The file is re-read
// whenever its modification time changes; otherwise the cached copy is used.
type Store struct {
	path    string
	modTime time.Time
	data    document
}

// Open returns a store backed by path. The file is read lazily.
func Open(path string) *Store {
	return &Store{path: path, data: emptyDocument()}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

func emptyDocument() document {
	return document{Presets: []string{}, History: map[string]model.HistoryEntry{}}
}

// load refreshes the cache from disk if the file changed since last read.
func (s *Store) load() *document {
	info, err := os.Stat(s.path)
	if err != nil || info.IsDir() {
		return &s.data
	}
	if info.ModTime().Equal(s.modTime) {
		return &s.data
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return &s.data
	}
	doc := emptyDocument()
	if err := json.Unmarshal(raw, &doc); err != nil {
		doc = emptyDocument()
	}
	if doc.Presets == nil {
		doc.Presets = []string{}
	}
	if doc.History == nil {
		doc.History = map[string]model.HistoryEntry{}
	}
	s.data = doc
	s.modTime = info.ModTime()
	return &s.data
}

// save rewrites the whole file through a temp file and rename.
func (s *Store) save() {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	tmpFile, err := os.CreateTemp(dir, "editparms-*.tmp")
	if err != nil {
		return
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmpFile.Write(raw); err != nil {
		return
	}
	if err := tmpFile.Close(); err != nil {
		return
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return
	}
	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}
}

// History returns the entry stored for parmName.
func (s *Store) History(parmName string) (model.HistoryEntry, bool) {
	entry, ok := s.load().History[parmName]
	if !ok {
		return model.HistoryEntry{}, false
	}
	return cloneEntry(entry), true
}

// PutHistory stores entry under parmName, replacing any previous entry, and
// persists immediately.
func (s *Store) PutHistory(parmName string, entry model.HistoryEntry) {
	doc := s.load()
	doc.History[parmName] = cloneEntry(entry)
	s.save()
}

// HistoryNames returns every parameter name with a stored entry, sorted.
func (s *Store) HistoryNames() []string {
	doc := s.load()
	names := make([]string, 0, len(doc.History))
	for name := range doc.History {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Presets returns the stored expressions in insertion order.
func (s *Store) Presets() []string {
	return append([]string(nil), s.load().Presets...)
}

// AddPreset appends expression unless it is already present.
func (s *Store) AddPreset(expression string) bool {
	doc := s.load()
	for _, p := range doc.Presets {
		if p == expression {
			return false
		}
	}
	doc.Presets = append(doc.Presets, expression)
	s.save()
	return true
}

// RemovePreset deletes expression from the preset list.
func (s *Store) RemovePreset(expression string) bool {
	doc := s.load()
	for i, p := range doc.Presets {
		if p == expression {
			doc.Presets = append(doc.Presets[:i], doc.Presets[i+1:]...)
			s.save()
			return true
		}
	}
	return false
}

func cloneEntry(entry model.HistoryEntry) model.HistoryEntry {
	vars := make(map[string]float64, len(entry.Variables))
	for name, value := range entry.Variables {
		vars[name] = value
	}
	return model.HistoryEntry{Expression: entry.Expression, Variables: vars}
}
