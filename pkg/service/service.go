// Package service runs the ingestion pipeline against the download
// directory: it owns the watcher, the event queue and the worker pool.
package service

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/arthur-debert/symblink/pkg/activity"
	"github.com/arthur-debert/symblink/pkg/archive"
	"github.com/arthur-debert/symblink/pkg/config"
	"github.com/arthur-debert/symblink/pkg/errors"
	"github.com/arthur-debert/symblink/pkg/filesystem"
	"github.com/arthur-debert/symblink/pkg/logging"
	"github.com/arthur-debert/symblink/pkg/mover"
	"github.com/arthur-debert/symblink/pkg/paths"
	"github.com/arthur-debert/symblink/pkg/pipeline"
	"github.com/arthur-debert/symblink/pkg/policy"
	"github.com/arthur-debert/symblink/pkg/scanner"
	"github.com/arthur-debert/symblink/pkg/staging"
	"github.com/arthur-debert/symblink/pkg/types"
	"github.com/arthur-debert/symblink/pkg/watcher"
)

// Option customizes a Service.
type Option func(*options)

type options struct {
	fs          afero.Fs
	volumes     filesystem.VolumeProbe
	locks       filesystem.LockProbe
	listener    activity.Listener
	onResult    func(types.Result)
	stagingRoot string
}

// WithFs replaces the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithVolumeProbe replaces the OS volume probe.
func WithVolumeProbe(p filesystem.VolumeProbe) Option {
	return func(o *options) { o.volumes = p }
}

// WithLockProbe replaces the OS lock probe.
func WithLockProbe(p filesystem.LockProbe) Option {
	return func(o *options) { o.locks = p }
}

// WithListener receives load level changes in addition to the log.
func WithListener(l activity.Listener) Option {
	return func(o *options) { o.listener = l }
}

// WithResultHandler is called with every finished run. It is called from
// worker goroutines and must be safe for concurrent use.
func WithResultHandler(fn func(types.Result)) Option {
	return func(o *options) { o.onResult = fn }
}

// WithStagingRoot overrides the staging root resolved by pkg/paths.
func WithStagingRoot(root string) Option {
	return func(o *options) { o.stagingRoot = root }
}

// Service ingests files dropped into the download directory.
type Service struct {
	cfg      *config.Config
	opts     options
	staging  *staging.Manager
	activity *activity.Companion
	pipeline *pipeline.Pipeline
	logger   zerolog.Logger

	unsupported []string

	mu    sync.Mutex
	tally map[types.Outcome]int
}

// New validates cfg, ensures the Mods directory exists and wires the
// pipeline. Any error here is fatal for the caller.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrInvalidInput, "configuration is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		o.fs = filesystem.NewOS()
	}
	if o.volumes == nil {
		o.volumes = filesystem.OSVolumes{}
	}
	if o.locks == nil {
		o.locks = filesystem.OSLocks{}
	}
	if o.stagingRoot == "" {
		p, err := paths.New()
		if err != nil {
			return nil, err
		}
		o.stagingRoot = p.StagingRoot()
	}

	logger := logging.GetLogger("service")

	modsDir := cfg.ModsDir()
	if err := o.fs.MkdirAll(modsDir, 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", modsDir).
			WithDetail("path", modsDir)
	}

	var listener activity.Listener = activity.LogListener{Logger: logging.GetLogger("activity")}
	if o.listener != nil {
		listener = activity.Multi(listener, o.listener)
	}

	s := &Service{
		cfg:      cfg,
		opts:     o,
		staging:  staging.NewManager(o.fs, o.stagingRoot),
		activity: activity.NewCompanion(listener),
		logger:   logger,
		tally:    make(map[types.Outcome]int),
	}
	pol := cfg.Policy()
	extractors := archive.NewRegistry(cfg.Pipeline.MaxExtractBytes)
	s.pipeline = pipeline.New(pipeline.Options{
		Fs:         o.fs,
		Policy:     pol,
		Staging:    s.staging,
		Mover:      mover.New(o.fs, o.volumes),
		Extractors: extractors,
		Locks:      o.locks,
		ModsDir:    modsDir,
		Activity:   s.activity,
	})

	s.unsupported = unextractable(pol, extractors)
	if len(s.unsupported) > 0 {
		logger.Warn().
			Strs("extensions", s.unsupported).
			Msg("Whitelisted formats have no extractor, these drops will fail")
	}

	logger.Debug().
		Str("download_dir", cfg.DownloadDir).
		Str("mods_dir", modsDir).
		Str("staging_root", o.stagingRoot).
		Int("workers", cfg.Pipeline.Workers).
		Msg("Service ready")
	return s, nil
}

// Activity returns the load companion shared by every run.
func (s *Service) Activity() *activity.Companion {
	return s.activity
}

// UnsupportedFormats lists whitelisted extensions that are neither assets nor
// archives an extractor is registered for.
func (s *Service) UnsupportedFormats() []string {
	return slices.Clone(s.unsupported)
}

func unextractable(pol *policy.Policy, reg *archive.Registry) []string {
	known := reg.Extensions()
	var out []string
	for _, ext := range pol.Whitelist() {
		if !pol.IsArchive(ext) || slices.Contains(known, ext) {
			continue
		}
		out = append(out, ext)
	}
	return out
}

// Tally returns how many runs ended with each outcome so far.
func (s *Service) Tally() map[types.Outcome]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[types.Outcome]int, len(s.tally))
	for k, v := range s.tally {
		out[k] = v
	}
	return out
}

// Run watches the download directory until ctx is cancelled. Queued and
// in-flight runs are finished with a context that is not cancelled, then the
// staging root is purged. The returned error is the watcher's.
func (s *Service) Run(ctx context.Context) error {
	queue := make(chan types.DropEvent, s.cfg.Pipeline.QueueSize)

	w, err := watcher.New(watcher.Config{
		Dir:       s.cfg.DownloadDir,
		Recursive: s.cfg.Watch.Recursive,
		Debounce:  s.cfg.Watch.Debounce,
		Ignore:    s.cfg.Watch.Ignore,
		OnDrop:    func(ev types.DropEvent) { s.enqueue(ctx, queue, ev) },
	})
	if err != nil {
		return err
	}

	var producer errgroup.Group
	producer.Go(func() error {
		defer close(queue)
		if s.cfg.Watch.ScanExisting {
			s.scanExisting(ctx, w, queue)
		}
		return w.Run(ctx)
	})

	runCtx := context.WithoutCancel(ctx)
	var workers errgroup.Group
	workers.SetLimit(s.cfg.Pipeline.Workers)
	for ev := range queue {
		workers.Go(func() error {
			s.process(runCtx, ev)
			return nil
		})
	}
	_ = workers.Wait()
	watchErr := producer.Wait()

	if err := s.staging.Purge(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to purge staging root")
	}
	if watchErr != nil {
		s.logger.Error().Err(watchErr).Msg("Watcher stopped")
		return watchErr
	}
	s.logger.Info().Interface("tally", s.Tally()).Msg("Service stopped")
	return nil
}

// Ingest runs the pipeline once for path.
func (s *Service) Ingest(ctx context.Context, path string) (types.Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return types.Result{}, errors.Wrapf(err, errors.ErrInvalidInput, "cannot resolve %s", path)
	}
	info, err := s.opts.fs.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Result{}, errors.Newf(errors.ErrNotFound, "no such file: %s", abs).WithDetail("path", abs)
		}
		return types.Result{}, errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", abs).WithDetail("path", abs)
	}
	if !info.Mode().IsRegular() {
		return types.Result{}, errors.Newf(errors.ErrInvalidInput, "not a regular file: %s", abs).WithDetail("path", abs)
	}
	return s.process(ctx, types.NewDropEvent(abs, types.Created)), nil
}

// enqueue blocks while the queue is full so the watcher applies backpressure
// instead of dropping events.
func (s *Service) enqueue(ctx context.Context, queue chan<- types.DropEvent, ev types.DropEvent) {
	select {
	case queue <- ev:
	case <-ctx.Done():
		s.logger.Debug().Str("path", ev.FullPath).Msg("Discarding event after shutdown")
	}
}

// scanExisting queues files that were already in the download directory
// when the service started.
func (s *Service) scanExisting(ctx context.Context, w *watcher.Watcher, queue chan<- types.DropEvent) {
	root := w.Dir()
	count := 0
	for asset := range scanner.Scan(s.opts.fs, root, s.cfg.Extensions.Whitelist) {
		if ctx.Err() != nil {
			return
		}
		if !s.cfg.Watch.Recursive && filepath.Dir(asset.Path) != root {
			continue
		}
		if w.Ignored(asset.Path) {
			continue
		}
		s.enqueue(ctx, queue, types.NewDropEvent(asset.Path, types.Created))
		count++
	}
	s.logger.Info().Int("count", count).Str("dir", root).Msg("Queued existing downloads")
}

func (s *Service) process(ctx context.Context, ev types.DropEvent) types.Result {
	res := s.pipeline.Process(ctx, ev)

	s.mu.Lock()
	s.tally[res.Outcome]++
	s.mu.Unlock()

	if s.opts.onResult != nil {
		s.opts.onResult(res)
	}
	return res
}
