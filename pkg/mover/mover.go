// Package mover relocates files and directory trees, renaming in place when
// source and destination share a volume and copying then deleting otherwise.
package mover

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/arthur-debert/symblink/pkg/errors"
	"github.com/arthur-debert/symblink/pkg/filesystem"
	"github.com/arthur-debert/symblink/pkg/logging"
)

// Strategy records how a Move was carried out.
type Strategy string

const (
	StrategyNone       Strategy = ""
	StrategyRename     Strategy = "rename"
	StrategyCopyDelete Strategy = "copy-delete"
)

// Mover moves paths within one afero filesystem.
type Mover struct {
	fs      afero.Fs
	volumes filesystem.VolumeProbe
	logger  zerolog.Logger
}

// New returns a Mover. volumes decides whether a rename is attempted at all.
func New(fs afero.Fs, volumes filesystem.VolumeProbe) *Mover {
	return &Mover{
		fs:      fs,
		volumes: volumes,
		logger:  logging.GetLogger("mover"),
	}
}

// Move relocates src, a file or a directory, to dst.
//
// dst must not exist, or must be an empty directory. Its parent is created
// when missing. On the copy path the source is removed only after every file
// of the tree has been written to dst; if the copy fails, whatever was written
// to dst is removed and src is left untouched.
func (m *Mover) Move(src, dst string) (Strategy, error) {
	srcInfo, err := m.prepare(src, dst)
	if err != nil {
		return StrategyNone, err
	}

	same, err := m.volumes.SameVolume(src, dst)
	if err != nil {
		m.logger.Debug().Err(err).Str("source", src).Str("destination", dst).
			Msg("Volume probe failed, falling back to copy")
		same = false
	}

	if same {
		err := m.fs.Rename(src, dst)
		if err == nil {
			m.logger.Trace().Str("source", src).Str("destination", dst).Msg("Renamed")
			return StrategyRename, nil
		}
		if !filesystem.IsCrossDevice(err) {
			return StrategyNone, moveErr(err, src, dst, "rename failed")
		}
		m.logger.Debug().Str("source", src).Str("destination", dst).
			Msg("Rename crossed devices, copying instead")
	}

	if err := m.copyTree(src, dst, srcInfo); err != nil {
		if rmErr := m.fs.RemoveAll(dst); rmErr != nil {
			m.logger.Warn().Err(rmErr).Str("destination", dst).Msg("Could not remove partial copy")
		}
		return StrategyNone, moveErr(err, src, dst, "copy failed, source left intact")
	}

	// The copy is complete. A source that cannot be deleted is left behind
	// rather than undoing a finished copy.
	if err := m.fs.RemoveAll(src); err != nil {
		m.logger.Warn().Err(err).Str("source", src).Msg("Copied but could not remove source")
	}
	m.logger.Trace().Str("source", src).Str("destination", dst).Msg("Copied and deleted")
	return StrategyCopyDelete, nil
}

// Copy duplicates src, a file or a directory, at dst and leaves src in place.
// dst follows the same rules as for Move. A failed copy removes whatever it
// wrote to dst.
func (m *Mover) Copy(src, dst string) error {
	srcInfo, err := m.prepare(src, dst)
	if err != nil {
		return err
	}
	if err := m.copyTree(src, dst, srcInfo); err != nil {
		if rmErr := m.fs.RemoveAll(dst); rmErr != nil {
			m.logger.Warn().Err(rmErr).Str("destination", dst).Msg("Could not remove partial copy")
		}
		return moveErr(err, src, dst, "copy failed")
	}
	m.logger.Trace().Str("source", src).Str("destination", dst).Msg("Copied")
	return nil
}

// prepare checks src and makes room for dst.
func (m *Mover) prepare(src, dst string) (os.FileInfo, error) {
	srcInfo, err := m.fs.Stat(src)
	if err != nil {
		return nil, moveErr(err, src, dst, "source is not accessible")
	}
	if err := m.clearDestination(dst); err != nil {
		return nil, err
	}
	if err := m.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return nil, moveErr(err, src, dst, "cannot create destination parent")
	}
	return srcInfo, nil
}

// clearDestination enforces the no-overwrite rule. An existing empty
// directory is removed so a rename can take its place.
func (m *Mover) clearDestination(dst string) error {
	info, err := m.fs.Stat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return moveErr(err, "", dst, "cannot inspect destination")
	}
	if !info.IsDir() {
		return errors.New(errors.ErrMove, "destination already exists").
			WithDetail("destination", dst)
	}
	empty, err := afero.IsEmpty(m.fs, dst)
	if err != nil {
		return moveErr(err, "", dst, "cannot inspect destination")
	}
	if !empty {
		return errors.New(errors.ErrMove, "destination is a non-empty directory").
			WithDetail("destination", dst)
	}
	if err := m.fs.Remove(dst); err != nil {
		return moveErr(err, "", dst, "cannot replace empty destination")
	}
	return nil
}

type copyJob struct {
	src, dst string
	info     os.FileInfo
}

// copyTree copies src to dst without recursion.
func (m *Mover) copyTree(src, dst string, info os.FileInfo) error {
	stack := []copyJob{{src: src, dst: dst, info: info}}
	for len(stack) > 0 {
		job := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch {
		case job.info.IsDir():
			if err := m.fs.MkdirAll(job.dst, job.info.Mode().Perm()|0700); err != nil {
				return err
			}
			entries, err := afero.ReadDir(m.fs, job.src)
			if err != nil {
				return err
			}
			for _, e := range entries {
				stack = append(stack, copyJob{
					src:  filepath.Join(job.src, e.Name()),
					dst:  filepath.Join(job.dst, e.Name()),
					info: e,
				})
			}
		case job.info.Mode().IsRegular():
			if err := m.copyFile(job.src, job.dst, job.info); err != nil {
				return err
			}
		default:
			return &os.PathError{Op: "copy", Path: job.src, Err: errors.New(errors.ErrMove, "unsupported file type")}
		}
	}
	return nil
}

// copyFile writes into a temporary file beside dst and renames it into place,
// so dst never exists half-written.
func (m *Mover) copyFile(src, dst string, info os.FileInfo) (err error) {
	in, err := m.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := afero.TempFile(m.fs, filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = m.fs.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = m.fs.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return err
	}
	if err = m.fs.Chtimes(tmpName, info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	return m.fs.Rename(tmpName, dst)
}

func moveErr(err error, src, dst, msg string) error {
	e := errors.Wrap(err, errors.ErrMove, msg).WithDetail("destination", dst)
	if src != "" {
		e.WithDetail("source", src)
	}
	return e
}
