// Package archive extracts downloaded mod archives into a staging directory.
//
// Every supported container implements Extractor and is registered in a
// Registry under its extension. Extraction writes through an afero.Fs, refuses
// entries that would land outside the destination, checks the context between
// entries and can enforce a total uncompressed size budget.
package archive

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/arthur-debert/symblink/pkg/errors"
	"github.com/arthur-debert/symblink/pkg/policy"
)

// Extractor unpacks one archive format.
type Extractor interface {
	// Extract unpacks archivePath into destDir, which must already exist.
	Extract(ctx context.Context, fs afero.Fs, archivePath, destDir string) error
}

// Registry maps lower-case extensions to extractors.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry returns a registry with the zip and rar extractors. maxBytes
// caps the total uncompressed size of one archive; zero means unlimited.
func NewRegistry(maxBytes int64) *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	r.Register(".zip", &Zip{MaxBytes: maxBytes})
	r.Register(".rar", &Rar{MaxBytes: maxBytes})
	return r
}

// Register adds or replaces the extractor for ext.
func (r *Registry) Register(ext string, e Extractor) {
	r.extractors[policy.NormalizeExt(ext)] = e
}

// Extensions lists the registered extensions.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		out = append(out, ext)
	}
	return out
}

// ForName returns the extractor for name's extension, or an
// UNSUPPORTED_FORMAT error when there is none.
func (r *Registry) ForName(name string) (Extractor, error) {
	ext := policy.Ext(name)
	if e, ok := r.extractors[ext]; ok {
		return e, nil
	}
	return nil, errors.Newf(errors.ErrUnsupportedFormat, "no extractor for %q archives", ext).
		WithDetail("extension", ext)
}

// safeJoin resolves an archive entry name below destDir. Absolute names and
// names that climb out of destDir are rejected.
func safeJoin(destDir, name string) (string, error) {
	slashed := strings.ReplaceAll(name, "\\", "/")
	if path.IsAbs(slashed) || filepath.VolumeName(filepath.FromSlash(slashed)) != "" {
		return "", errors.Newf(errors.ErrExtraction, "absolute path in archive: %s", name).
			WithDetail("entry", name)
	}
	cleaned := path.Clean(slashed)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.Newf(errors.ErrExtraction, "path traversal attempt detected in archive: %s", name).
			WithDetail("entry", name)
	}
	return filepath.Join(destDir, filepath.FromSlash(cleaned)), nil
}

// budget tracks the uncompressed bytes an archive may still produce.
type budget struct {
	limit int64
	used  int64
}

func (b *budget) reader(r io.Reader) io.Reader {
	if b.limit <= 0 {
		return r
	}
	return io.LimitReader(r, b.limit-b.used+1)
}

func (b *budget) add(n int64) error {
	b.used += n
	if b.limit > 0 && b.used > b.limit {
		return errors.Newf(errors.ErrExtraction, "archive expands beyond %d bytes", b.limit).
			WithDetail("limit", b.limit)
	}
	return nil
}

func filePerm(mode os.FileMode) os.FileMode {
	perm := mode.Perm() | 0600
	if mode.Perm() == 0 {
		perm = 0644
	}
	return perm
}

// writeEntry copies one file entry to target, creating parent directories.
func writeEntry(fs afero.Fs, target string, mode os.FileMode, src io.Reader, b *budget) error {
	if err := fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	out, err := fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm(mode))
	if err != nil {
		return err
	}
	n, err := io.Copy(out, b.reader(src))
	closeErr := out.Close()
	if err != nil {
		return err
	}
	if err := b.add(n); err != nil {
		return err
	}
	return closeErr
}

func extractionErr(err error, archivePath, msg string) error {
	if errors.IsErrorCode(err, errors.ErrExtraction) {
		errors.GetErrorDetails(err)["archive"] = archivePath
		return err
	}
	return errors.Wrap(err, errors.ErrExtraction, msg).WithDetail("archive", archivePath)
}
