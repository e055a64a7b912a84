package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/arthur-debert/synthfs/pkg/synthfs"
	sfsfilesystem "github.com/arthur-debert/synthfs/pkg/synthfs/filesystem"

	"github.com/arthur-debert/symblink/pkg/errors"
)

// newBatchFs returns the filesystem synthfs hands to operations. Install
// operations work through the pipeline's afero.Fs and ignore it.
func newBatchFs() sfsfilesystem.FullFileSystem {
	osfs := sfsfilesystem.NewOSFileSystem("/")
	return synthfs.NewPathAwareFileSystem(osfs, "/").WithAbsolutePaths()
}

// runBatch executes ops in order, stopping at the first failure and rolling
// back the operations that had completed.
func runBatch(ctx context.Context, fs sfsfilesystem.FullFileSystem, ops []synthfs.Operation) error {
	if len(ops) == 0 {
		return nil
	}
	options := synthfs.DefaultPipelineOptions()
	options.RollbackOnError = true
	_, err := synthfs.RunWithOptions(ctx, fs, options, ops...)
	return err
}

// createTargetOp creates the target directory. Its rollback removes it again.
func (r *run) createTargetOp() synthfs.Operation {
	fs := r.p.opts.Fs
	id := fmt.Sprintf("mkdir_%s", r.res.ModID)

	op := synthfs.NewCustomOperation(id, func(context.Context, sfsfilesystem.FileSystem) error {
		if err := fs.MkdirAll(r.target, 0755); err != nil {
			r.batchErr = errors.Wrap(err, errors.ErrRelocation, "cannot create target directory").
				WithDetail("target", r.target)
			return r.batchErr
		}
		r.created = true
		return nil
	}).WithRollback(func(context.Context, sfsfilesystem.FileSystem) error {
		if err := fs.RemoveAll(r.target); err != nil {
			return err
		}
		r.created = false
		return nil
	}).WithDescription("create " + r.target)
	return synthfs.NewCustomOperationAdapter(op)
}

// installOp moves one compose entry into the target directory through the
// mover. Its rollback removes the installed entry.
func (r *run) installOp(name string) synthfs.Operation {
	fs := r.p.opts.Fs
	src := filepath.Join(r.area.Compose, name)
	dst := filepath.Join(r.target, name)
	id := fmt.Sprintf("install_%s_%s", r.res.ModID, name)

	op := synthfs.NewCustomOperation(id, func(context.Context, sfsfilesystem.FileSystem) error {
		strategy, err := r.p.opts.Mover.Move(src, dst)
		if err != nil {
			r.batchErr = errors.Wrapf(err, errors.ErrRelocation, "cannot install %s", name).
				WithDetail("target", r.target)
			return r.batchErr
		}
		r.placed = append(r.placed, dst)
		if r.res.Strategy == "" {
			r.res.Strategy = string(strategy)
		}
		return nil
	}).WithRollback(func(context.Context, sfsfilesystem.FileSystem) error {
		if err := fs.RemoveAll(dst); err != nil {
			return err
		}
		r.placed = slices.DeleteFunc(r.placed, func(p string) bool { return p == dst })
		return nil
	}).WithDescription("install " + dst)
	return synthfs.NewCustomOperationAdapter(op)
}
