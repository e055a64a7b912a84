package archive

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/nwaples/rardecode/v2"
	"github.com/spf13/afero"

	"github.com/arthur-debert/symblink/pkg/logging"
)

// Rar extracts single-volume .rar archives.
type Rar struct {
	MaxBytes int64
}

func (x *Rar) Extract(ctx context.Context, fs afero.Fs, archivePath, destDir string) error {
	logger := logging.GetLogger("archive").With().Str("archive", archivePath).Logger()

	f, err := fs.Open(archivePath)
	if err != nil {
		return extractionErr(err, archivePath, "cannot open archive")
	}
	defer f.Close()

	r, err := rardecode.NewReader(f)
	if err != nil {
		return extractionErr(err, archivePath, "failed to parse archive")
	}

	b := &budget{limit: x.MaxBytes}
	for {
		if err := ctx.Err(); err != nil {
			return extractionErr(err, archivePath, "extraction cancelled")
		}

		hdr, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return extractionErr(err, archivePath, "failed to read archive")
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return extractionErr(err, archivePath, "unsafe entry")
		}

		mode := hdr.Mode()
		switch {
		case hdr.IsDir:
			if err := fs.MkdirAll(target, 0755); err != nil {
				return extractionErr(err, archivePath, "failed to create directory")
			}
			continue
		case mode&os.ModeSymlink != 0:
			logger.Debug().Str("entry", hdr.Name).Msg("Skipping symlink entry")
			continue
		}

		if err := writeEntry(fs, target, mode, r, b); err != nil {
			return extractionErr(err, archivePath, "failed to extract "+hdr.Name)
		}
		logger.Trace().Str("entry", hdr.Name).Msg("Extracted")
	}
}
