package expansion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/CodexForgeBR/autobattle/internal/logging"
)

// The reset flag is a sentinel file. Its content selects what to reset:
// empty or "all" clears every slot, a number N clears bot N (1-indexed).
// The file is removed once the reset has been applied.

// WriteResetFlag drops the sentinel at path. A nil slot requests a reset of
// every slot.
func WriteResetFlag(fs afero.Fs, path string, slot *int) error {
	content := "all"
	if slot != nil {
		if !ValidSlot(*slot) {
			return fmt.Errorf("%w: %d", ErrInvalidSlot, *slot)
		}
		content = strconv.Itoa(*slot + 1)
	}
	// Written via rename so a watcher never reads a half-written flag.
	return writeFileAtomic(fs, path, []byte(content+"\n"))
}

// ParseResetFlag returns the 0-indexed slots selected by flag content.
func ParseResetFlag(content string) ([]int, error) {
	content = strings.TrimSpace(content)
	if content == "" || strings.EqualFold(content, "all") {
		all := make([]int, MaxSlots)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	n, err := strconv.Atoi(content)
	if err != nil || !ValidSlot(n-1) {
		return nil, fmt.Errorf("invalid reset flag content %q", content)
	}
	return []int{n - 1}, nil
}

// ConsumeResetFlag applies and removes the sentinel at path if it exists.
// It returns the slots that were reset, or nil when there was no flag.
// An unreadable flag is removed so it cannot trigger again.
func (s *Store) ConsumeResetFlag(path string) ([]int, error) {
	s.flagMu.Lock()
	defer s.flagMu.Unlock()

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reset flag: %w", err)
	}

	slots, parseErr := ParseResetFlag(string(data))
	if parseErr == nil {
		logging.Info(fmt.Sprintf("Reset flag found at %s, resetting completed expansions", path))
		if len(slots) == MaxSlots {
			err = s.ResetAll()
		} else {
			err = s.Reset(slots[0])
		}
	}

	if rmErr := s.fs.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		logging.Warn(fmt.Sprintf("Error removing reset flag file: %v", rmErr))
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// ResetWatcher applies the reset flag as soon as it appears, instead of
// waiting for a bot to poll for it at the start of its next cycle.
type ResetWatcher struct {
	store   *Store
	path    string
	onReset func(slots []int)
	watcher *fsnotify.Watcher
}

// NewResetWatcher watches the directory holding flagPath. onReset, if not
// nil, is called with the slots reset after each consumed flag. The store
// must be backed by the OS filesystem.
func NewResetWatcher(store *Store, flagPath string, onReset func(slots []int)) (*ResetWatcher, error) {
	abs, err := filepath.Abs(flagPath)
	if err != nil {
		return nil, fmt.Errorf("resolve reset flag path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &ResetWatcher{store: store, path: abs, onReset: onReset, watcher: w}, nil
}

// Run consumes a flag that already exists, then handles flag events until
// ctx is canceled. It closes the underlying watcher before returning.
func (r *ResetWatcher) Run(ctx context.Context) {
	defer r.watcher.Close()

	r.consume()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != r.path {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				r.consume()
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn(fmt.Sprintf("Reset flag watcher error: %v", err))
		}
	}
}

func (r *ResetWatcher) consume() {
	slots, err := r.store.ConsumeResetFlag(r.path)
	if err != nil {
		logging.Warn(fmt.Sprintf("Reset flag ignored: %v", err))
		return
	}
	if len(slots) > 0 && r.onReset != nil {
		r.onReset(slots)
	}
}
