// Package pipeline turns a single DropEvent into an installed mod.
//
// Each event runs through Filtering, Staging, Gathering, Assembling,
// Relocating and Cleanup and ends in Done or Failed. Runs for the same mod id
// are serialized; runs for different ids proceed in parallel. Process never
// returns an error or panics: every problem becomes a Result.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arthur-debert/synthfs/pkg/synthfs"
	sfsfilesystem "github.com/arthur-debert/synthfs/pkg/synthfs/filesystem"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/arthur-debert/symblink/pkg/activity"
	"github.com/arthur-debert/symblink/pkg/archive"
	"github.com/arthur-debert/symblink/pkg/errors"
	"github.com/arthur-debert/symblink/pkg/filesystem"
	"github.com/arthur-debert/symblink/pkg/logging"
	"github.com/arthur-debert/symblink/pkg/mover"
	"github.com/arthur-debert/symblink/pkg/policy"
	"github.com/arthur-debert/symblink/pkg/scanner"
	"github.com/arthur-debert/symblink/pkg/staging"
	"github.com/arthur-debert/symblink/pkg/types"
)

// Mover relocates or duplicates a file or directory.
type Mover interface {
	Move(src, dst string) (mover.Strategy, error)
	Copy(src, dst string) error
}

// Extractors finds the extractor for an archive name.
type Extractors interface {
	ForName(name string) (archive.Extractor, error)
}

// Options wires a Pipeline. Fs, Policy, Staging, Mover, Extractors and ModsDir
// are required.
type Options struct {
	Fs         afero.Fs
	Policy     *policy.Policy
	Staging    *staging.Manager
	Mover      Mover
	Extractors Extractors
	// Locks defaults to filesystem.OSLocks.
	Locks filesystem.LockProbe
	// ModsDir is <SimsDir>/Mods.
	ModsDir string
	// Activity defaults to a Companion that discards signals.
	Activity *activity.Companion
}

// Pipeline processes drop events.
type Pipeline struct {
	opts    Options
	keys    *keyedMutex
	batchFs sfsfilesystem.FullFileSystem
	logger  zerolog.Logger
}

// New returns a Pipeline.
func New(opts Options) *Pipeline {
	if opts.Locks == nil {
		opts.Locks = filesystem.OSLocks{}
	}
	if opts.Activity == nil {
		opts.Activity = activity.NewCompanion(nil)
	}
	return &Pipeline{
		opts:    opts,
		keys:    newKeyedMutex(caseInsensitiveFS),
		batchFs: newBatchFs(),
		logger:  logging.GetLogger("pipeline"),
	}
}

// TargetFor returns the target mod directory for modID.
func (p *Pipeline) TargetFor(modID string) string {
	return filepath.Join(p.opts.ModsDir, modID)
}

// Process runs ev through the state machine and reports what happened.
func (p *Pipeline) Process(ctx context.Context, ev types.DropEvent) (res types.Result) {
	r := &run{
		p:   p,
		ctx: ctx,
		ev:  ev,
		res: &res,
	}
	res.RunID = uuid.NewString()
	res.Event = ev
	res.StartedAt = time.Now()
	r.logger = p.logger.With().Str("run_id", res.RunID).Str("file", ev.Name).Logger()

	p.opts.Activity.Begin()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Msg("Recovered from panic in pipeline run")
			r.fail(errors.Newf(errors.ErrInternal, "panic during %s: %v", r.state, rec))
		}
		res.Duration = time.Since(res.StartedAt)
		p.opts.Activity.End(r.structural)
		r.report()
	}()

	r.execute()
	return res
}

// run carries the mutable state of one Process call.
type run struct {
	p      *Pipeline
	ctx    context.Context
	ev     types.DropEvent
	res    *types.Result
	logger zerolog.Logger

	state      types.State
	area       *staging.Area
	target     string
	created    bool
	placed     []string
	batchErr   error
	direct     bool
	structural bool
}

func (r *run) enter(s types.State) {
	r.state = s
	r.logger.Trace().Str("state", string(s)).Msg("Entering state")
}

func (r *run) done(outcome types.Outcome, reason string) {
	r.res.State = types.StateDone
	r.res.Outcome = outcome
	r.res.Reason = reason
}

func (r *run) fail(err error) {
	if r.res.ModID != "" {
		if details := errors.GetErrorDetails(err); details != nil {
			details["mod_id"] = r.res.ModID
		}
	}
	if errors.IsErrorCode(err, errors.ErrStaging) || errors.IsErrorCode(err, errors.ErrInternal) {
		r.structural = true
	}
	r.res.State = types.StateFailed
	r.res.Outcome = types.OutcomeFailed
	r.res.FailedIn = r.state
	r.res.Err = err
}

// wrap gives err the code of the failing stage unless it already has one of
// the pipeline's own codes.
func wrap(err error, code errors.ErrorCode, msg string) error {
	switch errors.GetErrorCode(err) {
	case code, errors.ErrUnsupportedFormat, errors.ErrExtraction:
		return err
	}
	return errors.Wrap(err, code, msg)
}

func (r *run) execute() {
	r.enter(types.StateFiltering)
	if c := r.p.opts.Policy.ClassifyExtension(r.ev.Name); c != policy.Accepted {
		r.done(types.OutcomeIgnored, c.String())
		return
	}

	r.enter(types.StateStaging)
	modID, err := policy.DeriveModId(r.ev.Name)
	if err != nil {
		r.fail(err)
		return
	}
	r.res.ModID = modID
	r.logger = r.logger.With().Str("mod_id", modID).Logger()

	unlock := r.p.keys.Lock(modID)
	defer unlock()

	// A duplicate event for a drop the previous run already consumed.
	if _, err := r.p.opts.Fs.Stat(r.ev.FullPath); os.IsNotExist(err) {
		r.done(types.OutcomeIgnored, "source vanished")
		return
	}

	area, err := r.p.opts.Staging.Allocate(modID)
	if err != nil {
		r.fail(err)
		return
	}
	r.area = area
	defer r.cleanup()

	assets, ok := r.gather()
	if !ok {
		return
	}
	if !r.assemble(assets) {
		return
	}
	r.relocate()
}

// gather returns the assets to install. ok is false when the run ended.
func (r *run) gather() (assets []scanner.Asset, ok bool) {
	r.enter(types.StateGathering)
	opts := r.p.opts

	if opts.Policy.IsAsset(r.ev.Name) {
		r.direct = true
		return []scanner.Asset{{Path: r.ev.FullPath, Name: r.ev.Name}}, true
	}

	locked, err := opts.Locks.IsLocked(r.ev.FullPath)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Lock probe failed, assuming the file is complete")
	}
	if locked {
		r.done(types.OutcomeSkippedLocked, "file is still being written")
		return nil, false
	}

	extractor, err := opts.Extractors.ForName(r.ev.Name)
	if err != nil {
		r.fail(err)
		return nil, false
	}

	done := logging.LogOperationStart(r.logger, "extract")
	err = extractor.Extract(r.ctx, opts.Fs, r.ev.FullPath, r.area.Deflate)
	done()
	if err != nil {
		r.fail(wrap(err, errors.ErrExtraction, "extraction failed"))
		return nil, false
	}

	assets = scanner.Collect(opts.Fs, r.area.Deflate, opts.Policy.AssetExtensions())
	if len(assets) == 0 {
		r.done(types.OutcomeNoAssets, "archive contains no mod files")
		return nil, false
	}
	return assets, true
}

// assemble flattens every asset into the compose directory.
func (r *run) assemble(assets []scanner.Asset) bool {
	r.enter(types.StateAssembling)

	seen := make(map[string]string, len(assets))
	for _, a := range assets {
		key := strings.ToLower(a.Name)
		if prev, dup := seen[key]; dup {
			r.fail(errors.Newf(errors.ErrAssembly, "assets %s and %s flatten to the same name", prev, a.Path).
				WithDetail("asset", a.Name))
			return false
		}
		seen[key] = a.Path

		dst := filepath.Join(r.area.Compose, a.Name)
		var err error
		if r.direct {
			// The download stays where it is until the mod is installed.
			err = r.p.opts.Mover.Copy(a.Path, dst)
		} else {
			_, err = r.p.opts.Mover.Move(a.Path, dst)
		}
		if err != nil {
			r.fail(errors.Wrapf(err, errors.ErrAssembly, "cannot assemble %s", a.Name).
				WithDetail("asset", a.Name))
			return false
		}
		r.res.Assets = append(r.res.Assets, a.Name)
	}
	return true
}

// relocate installs the compose directory's contents into the target
// directory as one batch. A failing entry rolls back the entries placed before
// it and the target directory when this run created it.
func (r *run) relocate() {
	r.enter(types.StateRelocating)
	fs := r.p.opts.Fs
	r.target = r.p.TargetFor(r.res.ModID)
	r.res.Target = r.target

	entries, err := afero.ReadDir(fs, r.area.Compose)
	if err != nil {
		r.fail(errors.Wrap(err, errors.ErrRelocation, "cannot list assembled assets"))
		return
	}

	ops := make([]synthfs.Operation, 0, len(entries)+1)
	if _, err := fs.Stat(r.target); os.IsNotExist(err) {
		ops = append(ops, r.createTargetOp())
	} else if err != nil {
		r.fail(errors.Wrap(err, errors.ErrRelocation, "cannot inspect target directory").
			WithDetail("target", r.target))
		return
	}
	for _, e := range entries {
		ops = append(ops, r.installOp(e.Name()))
	}

	if err := runBatch(r.ctx, r.p.batchFs, ops); err != nil {
		if r.batchErr == nil {
			r.batchErr = errors.Wrap(err, errors.ErrRelocation, "install batch failed").
				WithDetail("target", r.target)
		}
		r.fail(r.batchErr)
		return
	}

	if r.direct {
		r.consumeSource()
	}
	r.done(types.OutcomeSuccess, "")
}

// consumeSource deletes a directly dropped asset once its copy is installed.
func (r *run) consumeSource() {
	if err := r.p.opts.Fs.Remove(r.ev.FullPath); err != nil && !os.IsNotExist(err) {
		r.logger.Warn().Err(err).Str("path", r.ev.FullPath).Msg("Installed but could not remove download")
	}
}

// cleanup runs on every path after the staging area was allocated, including
// panics.
func (r *run) cleanup() {
	failedIn := r.state
	r.enter(types.StateCleanup)
	fs := r.p.opts.Fs

	// Whatever the batch rollback did not undo, or a panic left behind.
	if r.res.State != types.StateDone {
		switch {
		case r.created:
			if err := fs.RemoveAll(r.target); err != nil {
				r.cleanupFailed(err, "cannot roll back target directory")
			}
		case len(r.placed) > 0:
			for _, path := range r.placed {
				if err := fs.RemoveAll(path); err != nil {
					r.cleanupFailed(err, "cannot roll back installed asset")
				}
			}
		}
	}

	if err := r.p.opts.Staging.Release(r.area); err != nil {
		r.cleanupFailed(err, "cannot release staging area")
	}
	r.state = failedIn
}

func (r *run) cleanupFailed(err error, msg string) {
	r.structural = true
	r.logger.Error().Err(err).Str("target", r.target).Msg(msg)
}

func (r *run) report() {
	res := r.res
	if res.Failed() {
		r.logger.Error().
			Err(res.Err).
			Str("code", string(errors.GetErrorCode(res.Err))).
			Str("state", string(res.FailedIn)).
			Dur("duration", res.Duration).
			Msg("Ingestion failed")
		return
	}

	ev := r.logger.Info()
	if res.Outcome == types.OutcomeIgnored {
		ev = r.logger.Debug()
	}
	ev.Str("outcome", string(res.Outcome)).
		Str("reason", res.Reason).
		Strs("assets", res.Assets).
		Str("target", res.Target).
		Str("strategy", res.Strategy).
		Dur("duration", res.Duration).
		Msgf("Ingestion %s", res.Outcome)
}
