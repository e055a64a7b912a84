package filesystem

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// NewOS returns the real filesystem.
func NewOS() afero.Fs {
	return afero.NewOsFs()
}

// VolumeProbe decides whether two paths share a storage volume.
type VolumeProbe interface {
	SameVolume(a, b string) (bool, error)
}

// LockProbe reports whether a file is currently held exclusively by another
// process.
type LockProbe interface {
	IsLocked(path string) (bool, error)
}

// OSVolumes is the VolumeProbe backed by the operating system.
type OSVolumes struct{}

// SameVolume compares the volumes of the nearest existing ancestors of a and b,
// so b may be a destination that has not been created yet.
func (OSVolumes) SameVolume(a, b string) (bool, error) {
	va, err := volumeOf(existingAncestor(a))
	if err != nil {
		return false, err
	}
	vb, err := volumeOf(existingAncestor(b))
	if err != nil {
		return false, err
	}
	return va == vb, nil
}

// OSLocks is the LockProbe backed by the operating system.
type OSLocks struct{}

// IsLocked reports true for a missing file: a download that has vanished
// between the event and the probe is still being renamed into place.
func (OSLocks) IsLocked(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	return isLocked(path)
}

// SameVolumeAlways is a VolumeProbe with a fixed answer, used for in-memory
// filesystems and to force a strategy in tests.
type SameVolumeAlways bool

func (s SameVolumeAlways) SameVolume(_, _ string) (bool, error) {
	return bool(s), nil
}

// LockedSet is a LockProbe reporting the listed paths as locked.
type LockedSet map[string]bool

func (l LockedSet) IsLocked(path string) (bool, error) {
	return l[filepath.Clean(path)], nil
}

func existingAncestor(path string) string {
	p := filepath.Clean(path)
	for {
		if _, err := os.Lstat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}
