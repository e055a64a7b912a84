// Package staging manages the per-mod temporary workspace used while an
// archive is extracted and its assets are assembled.
package staging

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/arthur-debert/symblink/pkg/errors"
	"github.com/arthur-debert/symblink/pkg/logging"
)

const (
	DeflateDir = "deflate"
	ComposeDir = "compose"
)

// Area is the private workspace of one pipeline run.
type Area struct {
	ModID string
	// Root is <staging root>/<ModID>.
	Root string
	// Deflate receives the raw archive contents.
	Deflate string
	// Compose receives the flattened assets before relocation.
	Compose string
}

// Manager allocates Areas below a single staging root.
type Manager struct {
	fs     afero.Fs
	root   string
	logger zerolog.Logger
}

// NewManager returns a Manager rooted at root. The root is created lazily.
func NewManager(fs afero.Fs, root string) *Manager {
	return &Manager{
		fs:     fs,
		root:   root,
		logger: logging.GetLogger("staging"),
	}
}

// Root returns the staging root.
func (m *Manager) Root() string {
	return m.root
}

// PathFor returns the area root modID would get, without touching disk.
func (m *Manager) PathFor(modID string) string {
	return filepath.Join(m.root, modID)
}

// Allocate returns an empty Area for modID. Leftovers of an earlier run for
// the same id are purged first.
func (m *Manager) Allocate(modID string) (*Area, error) {
	if modID == "" || modID == "." || modID == ".." || filepath.Base(modID) != modID {
		return nil, errors.Newf(errors.ErrStaging, "invalid mod id %q", modID).
			WithDetail("mod_id", modID)
	}

	area := &Area{
		ModID:   modID,
		Root:    m.PathFor(modID),
		Deflate: filepath.Join(m.PathFor(modID), DeflateDir),
		Compose: filepath.Join(m.PathFor(modID), ComposeDir),
	}

	if _, err := m.fs.Stat(area.Root); err == nil {
		m.logger.Debug().Str("mod_id", modID).Str("path", area.Root).Msg("Purging stale staging area")
		if err := m.fs.RemoveAll(area.Root); err != nil {
			return nil, errors.Wrap(err, errors.ErrStaging, "cannot purge stale staging area").
				WithDetail("mod_id", modID).WithDetail("path", area.Root)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, errors.ErrStaging, "cannot inspect staging area").
			WithDetail("mod_id", modID).WithDetail("path", area.Root)
	}

	for _, dir := range []string{area.Deflate, area.Compose} {
		if err := m.fs.MkdirAll(dir, 0700); err != nil {
			// Leave nothing half-allocated behind.
			_ = m.fs.RemoveAll(area.Root)
			return nil, errors.Wrapf(err, errors.ErrStaging, "cannot create %s", filepath.Base(dir)).
				WithDetail("mod_id", modID).WithDetail("path", dir)
		}
	}

	m.logger.Trace().Str("mod_id", modID).Str("path", area.Root).Msg("Staging area allocated")
	return area, nil
}

// Release deletes the area. Releasing a missing or nil area is not an error.
func (m *Manager) Release(area *Area) error {
	if area == nil {
		return nil
	}
	if err := m.fs.RemoveAll(area.Root); err != nil {
		return errors.Wrap(err, errors.ErrStaging, "cannot release staging area").
			WithDetail("mod_id", area.ModID).WithDetail("path", area.Root)
	}
	m.logger.Trace().Str("mod_id", area.ModID).Msg("Staging area released")
	return nil
}

// Purge removes the staging root and everything below it.
func (m *Manager) Purge() error {
	if err := m.fs.RemoveAll(m.root); err != nil {
		return errors.Wrap(err, errors.ErrStaging, "cannot purge staging root").
			WithDetail("path", m.root)
	}
	return nil
}
