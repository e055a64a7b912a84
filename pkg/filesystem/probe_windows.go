//go:build windows

package filesystem

import (
	"errors"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"
)

func volumeOf(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(filepath.VolumeName(abs)), nil
}

// isLocked opens the file with a zero share mode; a sharing violation means
// some other process still has it open.
func isLocked(path string) (bool, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false, err
	}
	h, err := windows.CreateFile(p, windows.GENERIC_READ, 0, nil,
		windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		if errors.Is(err, windows.ERROR_SHARING_VIOLATION) || errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
			return true, nil
		}
		return false, err
	}
	_ = windows.CloseHandle(h)
	return false, nil
}

// IsCrossDevice reports whether err is a rename failure across volumes.
func IsCrossDevice(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_SAME_DEVICE)
}
