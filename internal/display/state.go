package display

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	gap "github.com/muesli/go-app-paths"
	"gopkg.in/yaml.v3"
)

const appName = "clinic-queue"

// AudioGate reports whether announcements may be played aloud.
type AudioGate interface {
	AudioEnabled() bool
}

// State is what the display remembers between runs.
type State struct {
	AudioEnabled bool       `yaml:"audio_enabled"`
	EnabledAt    *time.Time `yaml:"enabled_at,omitempty"`
}

// StateFile persists State as YAML. Audio stays off until an operator has
// confirmed once that the probe segment is audible.
type StateFile struct {
	path    string
	mu      sync.Mutex
	state   State
	enabled atomic.Bool
}

var _ AudioGate = (*StateFile)(nil)

// DefaultStatePath is display.yaml in the user's data directory.
func DefaultStatePath() (string, error) {
	return gap.NewScope(gap.User, appName).DataPath("display.yaml")
}

// DefaultCacheDir is the user's cache directory for downloaded segments.
func DefaultCacheDir() (string, error) {
	dirs, err := gap.NewScope(gap.User, appName).CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dirs, "segments"), nil
}

// OpenStateFile loads the state at path. A missing file is an empty state.
func OpenStateFile(path string) (*StateFile, error) {
	state, err := readState(path)
	if err != nil {
		return nil, err
	}
	f := &StateFile{path: path, state: state}
	f.enabled.Store(state.AudioEnabled)
	return f, nil
}

func readState(path string) (State, error) {
	var state State

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return state, nil
	case err != nil:
		return state, fmt.Errorf("read state file: %w", err)
	}

	if err := yaml.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parse state file %s: %w", path, err)
	}
	return state, nil
}

// Reload re-reads the file. A file that has been removed disables audio.
func (f *StateFile) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := readState(f.path)
	if err != nil {
		return err
	}
	f.state = state
	f.enabled.Store(state.AudioEnabled)
	return nil
}

// Watch reloads the state whenever the file changes on disk, so a running
// display follows enable-audio and disable-audio from another process.
// The returned function stops the watcher.
func (f *StateFile) Watch(logger *slog.Logger) (func() error, error) {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create state watcher: %w", err)
	}
	// The directory is watched because writes replace the file by rename.
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	// Pick up anything written between open and watch.
	if err := f.Reload(); err != nil {
		logger.Warn("failed to reload display state", "path", f.path, "error", err)
	}

	target := filepath.Clean(f.path)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
					continue
				}

				before := f.AudioEnabled()
				if err := f.Reload(); err != nil {
					logger.Warn("failed to reload display state", "path", f.path, "error", err)
					continue
				}
				if after := f.AudioEnabled(); after != before {
					logger.Info("audio setting changed", "audio_enabled", after)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("state file watcher error", "error", err)
			}
		}
	}()

	return func() error {
		err := watcher.Close()
		<-done
		return err
	}, nil
}

// Path returns the file location.
func (f *StateFile) Path() string {
	return f.path
}

// AudioEnabled is safe to call from any goroutine.
func (f *StateFile) AudioEnabled() bool {
	return f.enabled.Load()
}

// State returns a copy of the current state.
func (f *StateFile) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetAudioEnabled updates and persists the flag.
func (f *StateFile) SetAudioEnabled(enabled bool, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := State{AudioEnabled: enabled}
	if enabled {
		at := now.UTC()
		next.EnabledAt = &at
	}

	if err := f.write(next); err != nil {
		return err
	}
	f.state = next
	f.enabled.Store(enabled)
	return nil
}

func (f *StateFile) write(state State) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".display-*.yaml")
	if err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}
