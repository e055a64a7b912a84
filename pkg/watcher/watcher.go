// Package watcher turns filesystem notifications in the download directory
// into DropEvents.
//
// Notifications are coalesced per path: a file is reported once it has been
// quiet for the debounce window, so a download that is still being written
// produces a single event. Only regular files that still exist at that point
// are reported.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/symblink/pkg/errors"
	"github.com/arthur-debert/symblink/pkg/logging"
	"github.com/arthur-debert/symblink/pkg/types"
)

const (
	defaultDebounce = 750 * time.Millisecond
	minTick         = 10 * time.Millisecond
)

// Config holds the parameters for a Watcher.
type Config struct {
	// Dir is the directory to watch.
	Dir string

	// Recursive also watches subdirectories, including ones created later.
	Recursive bool

	// Debounce is the quiet period a path needs before it is reported. Zero
	// or negative values fall back to defaultDebounce.
	Debounce time.Duration

	// Ignore are doublestar patterns matched against the slash-separated
	// path relative to Dir.
	Ignore []string

	// OnDrop receives every event from the Run goroutine. It must not block
	// for long.
	OnDrop func(types.DropEvent)
}

type pendingEntry struct {
	kind types.ChangeKind
	last time.Time
}

// Watcher reports files arriving in a directory. Run must be called exactly
// once.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	dir      string
	debounce time.Duration
	logger   zerolog.Logger
	started  atomic.Bool

	// pending is only touched by the Run goroutine.
	pending map[string]pendingEntry
}

// New creates a Watcher and registers Dir (and its subdirectories when
// Recursive is set).
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New(errors.ErrInvalidInput, "watch directory is empty")
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrWatch, "resolving %s", cfg.Dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrWatch, "watch directory %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.Newf(errors.ErrWatch, "%s is not a directory", dir)
	}

	for _, pat := range cfg.Ignore {
		if !doublestar.ValidatePattern(pat) {
			return nil, errors.Newf(errors.ErrInvalidInput, "invalid ignore pattern %q", pat).
				WithDetail("pattern", pat)
		}
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrWatch, "creating fsnotify watcher")
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		dir:      dir,
		debounce: debounce,
		logger:   logging.GetLogger("watcher"),
		pending:  make(map[string]pendingEntry),
	}

	if err := w.register(dir, nil); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			w.logger.Warn().Err(closeErr).Msg("Failed to close fsnotify after init failure")
		}
		return nil, err
	}
	return w, nil
}

// Dir returns the absolute watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run blocks until ctx is cancelled, reporting debounced drops to OnDrop. It
// returns nil on cancellation and an error when the underlying watcher
// breaks. Paths still inside their debounce window at cancellation are
// dropped.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New(errors.ErrWatch, "Run called more than once")
	}
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Failed to close fsnotify watcher")
		}
	}()

	tick := w.debounce / 4
	if tick < minTick {
		tick = minTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	w.logger.Info().
		Str("dir", w.dir).
		Bool("recursive", w.cfg.Recursive).
		Dur("debounce", w.debounce).
		Msg("Watching download directory")

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New(errors.ErrWatch, "fsnotify event channel closed unexpectedly")
			}
			w.handle(evt, time.Now())

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New(errors.ErrWatch, "fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return errors.Wrap(err, errors.ErrWatch, "fatal fsnotify error")
			}
			w.logger.Warn().Err(err).Msg("fsnotify error")

		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

func (w *Watcher) handle(evt fsnotify.Event, now time.Time) {
	path := filepath.Clean(evt.Name)
	if w.Ignored(path) {
		return
	}
	w.logger.Trace().Str("path", path).Str("op", evt.Op.String()).Msg("fsnotify event")

	switch {
	case evt.Has(fsnotify.Create):
		info, err := os.Lstat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if w.cfg.Recursive {
				// Files moved in together with a directory raise no events
				// of their own.
				_ = w.register(path, func(p string) { w.track(p, types.Created, now) })
			}
			return
		}
		w.track(path, types.Created, now)

	case evt.Has(fsnotify.Rename):
		// fsnotify reports the old name; the new name arrives as Create.
		if _, err := os.Lstat(path); err == nil {
			w.track(path, types.Renamed, now)
			return
		}
		delete(w.pending, path)

	case evt.Has(fsnotify.Remove):
		delete(w.pending, path)

	case evt.Has(fsnotify.Write):
		if e, ok := w.pending[path]; ok {
			e.last = now
			w.pending[path] = e
		}
	}
}

func (w *Watcher) track(path string, kind types.ChangeKind, now time.Time) {
	if e, ok := w.pending[path]; ok {
		e.last = now
		w.pending[path] = e
		return
	}
	w.pending[path] = pendingEntry{kind: kind, last: now}
}

// flush reports every pending path that has been quiet for the debounce
// window.
func (w *Watcher) flush(now time.Time) {
	var ready []string
	for path, e := range w.pending {
		if now.Sub(e.last) >= w.debounce {
			ready = append(ready, path)
		}
	}
	slices.Sort(ready)

	for _, path := range ready {
		e := w.pending[path]
		delete(w.pending, path)

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			w.logger.Debug().Str("path", path).Msg("Dropping event for path that is no longer a file")
			continue
		}

		ev := types.NewDropEvent(path, e.kind)
		w.logger.Debug().Str("path", ev.FullPath).Str("kind", ev.Kind.String()).Msg("File dropped")
		if w.cfg.OnDrop != nil {
			w.cfg.OnDrop(ev)
		}
	}
}

// register adds root (and, when recursive, every non-ignored directory under
// it) to the fsnotify watcher. onFile, when set, is called for each regular
// file found under root.
func (w *Watcher) register(root string, onFile func(string)) error {
	if !w.cfg.Recursive {
		if err := w.fsw.Add(root); err != nil {
			return errors.Wrapf(err, errors.ErrWatch, "watching %s", root)
		}
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return errors.Wrapf(walkErr, errors.ErrWatch, "walking %s", root)
			}
			w.logger.Warn().Err(walkErr).Str("path", path).Msg("Skipping inaccessible path")
			return nil
		}
		if w.Ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if onFile != nil && d.Type().IsRegular() {
				onFile(path)
			}
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			if path == root {
				return errors.Wrapf(err, errors.ErrWatch, "watching %s", path)
			}
			w.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch subdirectory")
		}
		return nil
	})
}

// Ignored reports whether path, relative to the watched directory, matches
// an ignore pattern.
func (w *Watcher) Ignored(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil || rel == "." {
		return false
	}
	return matchAny(w.cfg.Ignore, filepath.ToSlash(rel))
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}
