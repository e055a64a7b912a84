//go:build windows

package watcher

import (
	"errors"

	"golang.org/x/sys/windows"
)

// isFatalFsnotifyError reports errors after which ReadDirectoryChangesW
// cannot recover: handle exhaustion, an invalidated directory handle, or no
// memory for the notification buffer.
func isFatalFsnotifyError(err error) bool {
	return errors.Is(err, windows.ERROR_TOO_MANY_OPEN_FILES) ||
		errors.Is(err, windows.ERROR_INVALID_HANDLE) ||
		errors.Is(err, windows.ERROR_NOT_ENOUGH_MEMORY)
}
