// Package watcher monitors ciphertext files and reports them once they stop
// changing.
package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/blake2b"
)

// DefaultDebounce is how long a file must stay unmodified before it is
// reported.
const DefaultDebounce = 500 * time.Millisecond

// Event is a file that has settled.
type Event struct {
	Path        string
	Data        []byte
	Fingerprint [32]byte
	Timestamp   time.Time
}

// Options configures a Watcher.
type Options struct {
	Paths []string
	// Patterns are filepath.Match globs tested against the base name. An
	// empty list accepts every file.
	Patterns []string
	Debounce time.Duration
	// SkipExisting ignores files already present when Start is called.
	SkipExisting bool
}

// Watcher monitors files and directories for changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	opts      Options
	tick      time.Duration

	// path -> last modification seen
	state   map[string]time.Time
	stateMu sync.RWMutex

	events chan Event
	errors chan error

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new file watcher.
func New(opts Options) (*Watcher, error) {
	if len(opts.Paths) == 0 {
		return nil, errors.New("watcher: no paths")
	}
	for _, p := range opts.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, err
		}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	tick := opts.Debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	if tick > time.Second {
		tick = time.Second
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		opts:      opts,
		tick:      tick,
		state:     make(map[string]time.Time),
		events:    make(chan Event, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel of settled files.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Matches reports whether a file name passes the include patterns.
func (w *Watcher) Matches(path string) bool {
	if len(w.opts.Patterns) == 0 {
		return true
	}
	base := filepath.Base(path)
	for _, p := range w.opts.Patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// Start begins watching all configured paths.
func (w *Watcher) Start() error {
	for _, path := range w.opts.Paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if err := w.fsWatcher.Add(absPath); err != nil {
				return err
			}
			if w.opts.SkipExisting {
				continue
			}
			entries, err := os.ReadDir(absPath)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if !entry.IsDir() {
					w.trackFile(filepath.Join(absPath, entry.Name()))
				}
			}
		} else {
			// Single files are watched through their directory.
			if err := w.fsWatcher.Add(filepath.Dir(absPath)); err != nil {
				return err
			}
			if !w.opts.SkipExisting {
				w.trackFile(absPath)
			}
		}
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()

	return nil
}

// Stop shuts the watcher down and closes both channels.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		close(w.events)
		close(w.errors)
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) trackFile(path string) {
	if !w.Matches(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.stateMu.Lock()
	w.state[path] = info.ModTime()
	w.stateMu.Unlock()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !w.Matches(event.Name) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil || info.IsDir() {
				continue
			}

			w.stateMu.Lock()
			w.state[event.Name] = time.Now()
			w.stateMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}

func (w *Watcher) report(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			w.checkStableFiles(now)
		}
	}
}

type stableFile struct {
	path    string
	lastMod time.Time
}

// checkStableFiles emits files untouched for the debounce interval. Reads
// happen without the lock so eventLoop is never blocked on I/O.
func (w *Watcher) checkStableFiles(now time.Time) {
	threshold := now.Add(-w.opts.Debounce)

	var stable []stableFile
	w.stateMu.RLock()
	for path, lastMod := range w.state {
		if lastMod.Before(threshold) {
			stable = append(stable, stableFile{path: path, lastMod: lastMod})
		}
	}
	w.stateMu.RUnlock()

	if len(stable) == 0 {
		return
	}

	type readResult struct {
		stableFile
		data []byte
		err  error
	}
	results := make([]readResult, len(stable))
	for i, sf := range stable {
		data, err := os.ReadFile(sf.path)
		results[i] = readResult{stableFile: sf, data: data, err: err}
	}

	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	for _, r := range results {
		if r.err != nil {
			delete(w.state, r.path)
			w.report(r.err)
			continue
		}

		current, exists := w.state[r.path]
		if !exists || !current.Equal(r.lastMod) {
			// Modified while reading; wait for it to settle again.
			continue
		}

		event := Event{
			Path:        r.path,
			Data:        r.data,
			Fingerprint: blake2b.Sum256(r.data),
			Timestamp:   now,
		}

		select {
		case w.events <- event:
			delete(w.state, r.path)
		default:
			// Channel full, retry on the next tick.
		}
	}
}

// WatchedPaths returns the list of paths being watched.
func (w *Watcher) WatchedPaths() []string {
	return w.opts.Paths
}

// TrackedFiles returns the number of files waiting to settle.
func (w *Watcher) TrackedFiles() int {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return len(w.state)
}
