//go:build !unix && !windows

package watcher

func isFatalFsnotifyError(error) bool {
	return false
}
