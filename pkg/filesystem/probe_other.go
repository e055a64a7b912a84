//go:build !unix && !windows

package filesystem

import "path/filepath"

func volumeOf(path string) (string, error) {
	return filepath.VolumeName(path), nil
}

func isLocked(string) (bool, error) {
	return false, nil
}

func IsCrossDevice(error) bool {
	return false
}
