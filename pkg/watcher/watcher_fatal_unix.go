//go:build unix

package watcher

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isFatalFsnotifyError reports errors after which inotify cannot recover:
// the watch limit (ENOSPC) or file descriptor exhaustion.
func isFatalFsnotifyError(err error) bool {
	return errors.Is(err, unix.ENOSPC) ||
		errors.Is(err, unix.EMFILE) ||
		errors.Is(err, unix.ENFILE)
}
