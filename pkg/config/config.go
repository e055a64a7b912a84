package config

import "time"

// Config is the complete runtime configuration.
type Config struct {
	Version     string     `koanf:"version" toml:"version"`
	DownloadDir string     `koanf:"download_dir" toml:"download_dir"`
	SimsDir     string     `koanf:"sims_dir" toml:"sims_dir"`
	Extensions  Extensions `koanf:"extensions" toml:"extensions"`
	Watch       Watch      `koanf:"watch" toml:"watch"`
	Pipeline    Pipeline   `koanf:"pipeline" toml:"pipeline"`
}

// Extensions holds the file classification sets.
type Extensions struct {
	Whitelist []string `koanf:"whitelist" toml:"whitelist"`
	Blacklist []string `koanf:"blacklist" toml:"blacklist"`
	Assets    []string `koanf:"assets" toml:"assets"`
}

// Watch configures the download directory watcher.
type Watch struct {
	Recursive    bool          `koanf:"recursive" toml:"recursive"`
	Debounce     time.Duration `koanf:"debounce" toml:"-"`
	Ignore       []string      `koanf:"ignore" toml:"ignore"`
	ScanExisting bool          `koanf:"scan_existing" toml:"scan_existing"`
}

// Pipeline configures ingestion workers.
type Pipeline struct {
	Workers         int   `koanf:"workers" toml:"workers"`
	QueueSize       int   `koanf:"queue_size" toml:"queue_size"`
	MaxExtractBytes int64 `koanf:"max_extract_bytes" toml:"max_extract_bytes"`
}
