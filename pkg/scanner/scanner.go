// Package scanner finds asset files anywhere below a directory.
package scanner

import (
	"iter"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"

	"github.com/arthur-debert/symblink/pkg/logging"
	"github.com/arthur-debert/symblink/pkg/policy"
)

// Asset is a file whose extension is in the scanned set.
type Asset struct {
	Path string
	Name string
	Size int64
}

// Scan lazily walks root depth-first with an explicit stack and yields every
// regular file whose extension matches one of exts, case-insensitively.
// Directories that cannot be read, typically because they were removed while
// the walk was in progress, are logged and skipped. Symbolic links are never
// followed or yielded.
func Scan(fs afero.Fs, root string, exts []string) iter.Seq[Asset] {
	logger := logging.GetLogger("scanner")

	wanted := make([]string, 0, len(exts))
	for _, e := range exts {
		if n := policy.NormalizeExt(e); n != "" {
			wanted = append(wanted, n)
		}
	}

	return func(yield func(Asset) bool) {
		stack := []string{root}
		for len(stack) > 0 {
			dir := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			entries, err := afero.ReadDir(fs, dir)
			if err != nil {
				logger.Debug().Err(err).Str("dir", dir).Msg("Skipping unreadable directory")
				continue
			}

			var subdirs []string
			for _, entry := range entries {
				path := filepath.Join(dir, entry.Name())
				switch {
				case entry.Mode()&os.ModeSymlink != 0:
					logger.Trace().Str("path", path).Msg("Not following symlink")
				case entry.IsDir():
					subdirs = append(subdirs, path)
				case entry.Mode().IsRegular() && slices.Contains(wanted, policy.Ext(entry.Name())):
					if !yield(Asset{Path: path, Name: entry.Name(), Size: entry.Size()}) {
						return
					}
				}
			}

			// Reverse so the alphabetically first subdirectory is visited next.
			for i := len(subdirs) - 1; i >= 0; i-- {
				stack = append(stack, subdirs[i])
			}
		}
	}
}

// Collect runs Scan to completion.
func Collect(fs afero.Fs, root string, exts []string) []Asset {
	return slices.Collect(Scan(fs, root, exts))
}
