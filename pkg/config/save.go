package config

import (
	"os"
	"path/filepath"

	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/arthur-debert/symblink/pkg/errors"
)

// fileWatch mirrors Watch with a human-readable debounce.
type fileWatch struct {
	Recursive    bool     `toml:"recursive"`
	Debounce     string   `toml:"debounce"`
	Ignore       []string `toml:"ignore"`
	ScanExisting bool     `toml:"scan_existing"`
}

type fileConfig struct {
	Version     string     `toml:"version"`
	DownloadDir string     `toml:"download_dir"`
	SimsDir     string     `toml:"sims_dir"`
	Extensions  Extensions `toml:"extensions"`
	Watch       fileWatch  `toml:"watch"`
	Pipeline    Pipeline   `toml:"pipeline"`
}

// Marshal renders the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	out, err := gotoml.Marshal(fileConfig{
		Version:     c.Version,
		DownloadDir: c.DownloadDir,
		SimsDir:     c.SimsDir,
		Extensions:  c.Extensions,
		Watch: fileWatch{
			Recursive:    c.Watch.Recursive,
			Debounce:     c.Watch.Debounce.String(),
			Ignore:       c.Watch.Ignore,
			ScanExisting: c.Watch.ScanExisting,
		},
		Pipeline: c.Pipeline,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigSave, "failed to encode configuration")
	}
	return out, nil
}

// Save writes the configuration to path, creating its directory. An existing
// file is only replaced when overwrite is set.
func (c *Config) Save(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.Newf(errors.ErrConfigSave, "%s already exists", path).WithDetail("path", path)
		}
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, errors.ErrConfigSave, "cannot create config directory").WithDetail("path", path)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, errors.ErrConfigSave, "cannot write config file").WithDetail("path", path)
	}
	return nil
}
