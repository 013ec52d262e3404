package expansion

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/CodexForgeBR/autobattle/internal/logging"
)

var (
	// ErrInvalidSlot is returned for slot ids outside 0..MaxSlots-1.
	ErrInvalidSlot = errors.New("invalid slot")
	// ErrSave is returned when the document cannot be written.
	ErrSave = errors.New("save completion state")
)

type botEntry struct {
	Completed []string `json:"completed"`
}

// document is the on-disk shape. Slot ids are 1-indexed strings. Completed
// is only set by the legacy single-slot layout.
type document struct {
	Bots      map[string]botEntry `json:"bots"`
	Completed []string            `json:"completed,omitempty"`
}

// Store reads and writes the completion document. One Store should be shared
// by every slot of a process: saves are serialized and always merge into the
// latest document on disk, so one slot never drops another slot's entries.
type Store struct {
	fs   afero.Fs
	path string

	mu     sync.Mutex
	flagMu sync.Mutex
}

// NewStore returns a Store for path on fs. A nil fs uses the OS filesystem.
func NewStore(fs afero.Fs, path string) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs, path: path}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Fs returns the filesystem the store writes to.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// LoadAll returns every slot's completion set, keyed by 0-indexed slot.
// A missing or empty document yields an empty map. A corrupt document is
// replaced by an empty one.
func (s *Store) LoadAll() (map[int]CompletionSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Load returns the completion set of one slot.
func (s *Store) Load(slot int) (CompletionSet, error) {
	if !ValidSlot(slot) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	all, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	if set, ok := all[slot]; ok {
		return set, nil
	}
	return NewCompletionSet(), nil
}

// Save replaces slot's completion set, leaving other slots untouched.
func (s *Store) Save(slot int, set CompletionSet) error {
	if !ValidSlot(slot) {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readLocked()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSave, err)
	}
	all[slot] = set.Clone()
	if err := s.writeLocked(all); err != nil {
		return fmt.Errorf("%w: %w", ErrSave, err)
	}
	return nil
}

// Add records key in slot's persisted set, keeping whatever else is on
// disk for that slot, including a reset done since the slot was loaded.
func (s *Store) Add(slot int, key Key) error {
	if !ValidSlot(slot) {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readLocked()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSave, err)
	}
	set, ok := all[slot]
	if !ok {
		set = NewCompletionSet()
		all[slot] = set
	}
	if set.Contains(key) {
		return nil
	}
	set.Add(key)
	if err := s.writeLocked(all); err != nil {
		return fmt.Errorf("%w: %w", ErrSave, err)
	}
	return nil
}

// Reset clears one slot.
func (s *Store) Reset(slot int) error {
	if err := s.Save(slot, NewCompletionSet()); err != nil {
		return err
	}
	logging.Info(fmt.Sprintf("Completed expansions reset for bot %d", slot+1))
	return nil
}

// ResetAll clears every slot.
func (s *Store) ResetAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeLocked(map[int]CompletionSet{}); err != nil {
		return fmt.Errorf("%w: %w", ErrSave, err)
	}
	logging.Info("Completed expansions reset for all bots")
	return nil
}

func (s *Store) readLocked() (map[int]CompletionSet, error) {
	all := make(map[int]CompletionSet)

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return all, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return all, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		logging.Warn(fmt.Sprintf("Completion state %s is corrupt (%v), starting fresh", s.path, err))
		if werr := s.writeLocked(all); werr != nil {
			logging.Warn(fmt.Sprintf("Failed to reinitialize %s: %v", s.path, werr))
		}
		return all, nil
	}

	if doc.Bots == nil && doc.Completed != nil {
		all[0] = parseKeys(doc.Completed)
		return all, nil
	}
	for id, entry := range doc.Bots {
		n, err := strconv.Atoi(id)
		if err != nil || !ValidSlot(n-1) {
			logging.Debug(fmt.Sprintf("Ignoring unknown bot id %q in %s", id, s.path))
			continue
		}
		all[n-1] = parseKeys(entry.Completed)
	}
	return all, nil
}

func parseKeys(values []string) CompletionSet {
	set := NewCompletionSet()
	for _, v := range values {
		k, err := ParseKey(v)
		if err != nil {
			logging.Debug(fmt.Sprintf("Skipping %v", err))
			continue
		}
		set.Add(k)
	}
	return set
}

func (s *Store) writeLocked(all map[int]CompletionSet) error {
	doc := document{Bots: make(map[string]botEntry, len(all))}
	slots := make([]int, 0, len(all))
	for slot := range all {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	for _, slot := range slots {
		doc.Bots[strconv.Itoa(slot+1)] = botEntry{Completed: all[slot].Strings()}
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal completion state: %w", err)
	}
	return writeFileAtomic(s.fs, s.path, data)
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place, so readers never see a half-written document.
func writeFileAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fs, dir, ".completed-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer fs.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}
