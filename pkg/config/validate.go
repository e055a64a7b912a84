package config

import (
	"os"
	"path/filepath"

	"github.com/arthur-debert/symblink/pkg/errors"
)

// Validate checks everything the service needs before it starts watching.
func (c *Config) Validate() error {
	for _, dir := range []struct{ key, path string }{
		{"download_dir", c.DownloadDir},
		{"sims_dir", c.SimsDir},
	} {
		if err := validateDir(dir.key, dir.path); err != nil {
			return err
		}
	}

	if len(c.Extensions.Whitelist) == 0 {
		return errors.New(errors.ErrConfigValid, "extensions.whitelist is empty")
	}
	if len(c.Extensions.Assets) == 0 {
		return errors.New(errors.ErrConfigValid, "extensions.assets is empty")
	}
	if c.Pipeline.Workers < 1 {
		return errors.Newf(errors.ErrConfigValid, "pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.QueueSize < 0 {
		return errors.Newf(errors.ErrConfigValid, "pipeline.queue_size must not be negative, got %d", c.Pipeline.QueueSize)
	}
	if c.Pipeline.MaxExtractBytes < 0 {
		return errors.Newf(errors.ErrConfigValid, "pipeline.max_extract_bytes must not be negative")
	}
	if c.Watch.Debounce < 0 {
		return errors.Newf(errors.ErrConfigValid, "watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	return nil
}

func validateDir(key, path string) error {
	if path == "" {
		return errors.Newf(errors.ErrConfigValid, "%s is not set", key).WithDetail("key", key)
	}
	if !filepath.IsAbs(path) {
		return errors.Newf(errors.ErrConfigValid, "%s must be absolute: %s", key, path).
			WithDetail("key", key).WithDetail("path", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrConfigValid, "%s is not reachable", key).
			WithDetail("key", key).WithDetail("path", path)
	}
	if !info.IsDir() {
		return errors.Newf(errors.ErrConfigValid, "%s is not a directory: %s", key, path).
			WithDetail("key", key).WithDetail("path", path)
	}
	return nil
}
