package archive

import (
	"context"
	"os"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"

	"github.com/arthur-debert/symblink/pkg/logging"
)

// Zip extracts .zip archives.
type Zip struct {
	MaxBytes int64
}

func (z *Zip) Extract(ctx context.Context, fs afero.Fs, archivePath, destDir string) error {
	logger := logging.GetLogger("archive").With().Str("archive", archivePath).Logger()

	f, err := fs.Open(archivePath)
	if err != nil {
		return extractionErr(err, archivePath, "cannot open archive")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return extractionErr(err, archivePath, "cannot stat archive")
	}

	r, err := zip.NewReader(f, info.Size())
	if err != nil {
		return extractionErr(err, archivePath, "failed to parse archive")
	}

	b := &budget{limit: z.MaxBytes}
	for _, entry := range r.File {
		if err := ctx.Err(); err != nil {
			return extractionErr(err, archivePath, "extraction cancelled")
		}

		target, err := safeJoin(destDir, entry.Name)
		if err != nil {
			return extractionErr(err, archivePath, "unsafe entry")
		}

		mode := entry.Mode()
		switch {
		case mode.IsDir():
			if err := fs.MkdirAll(target, 0755); err != nil {
				return extractionErr(err, archivePath, "failed to create directory")
			}
			continue
		case mode&os.ModeSymlink != 0 || !mode.IsRegular():
			logger.Debug().Str("entry", entry.Name).Msg("Skipping non-regular entry")
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return extractionErr(err, archivePath, "failed to open entry "+entry.Name)
		}
		err = writeEntry(fs, target, mode, rc, b)
		rc.Close()
		if err != nil {
			return extractionErr(err, archivePath, "failed to extract "+entry.Name)
		}
		logger.Trace().Str("entry", entry.Name).Msg("Extracted")
	}
	return nil
}
