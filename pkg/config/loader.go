package config

import (
	_ "embed"
	stderrors "errors"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/arthur-debert/symblink/pkg/errors"
	"github.com/arthur-debert/symblink/pkg/logging"
	"github.com/arthur-debert/symblink/pkg/paths"
	"github.com/arthur-debert/symblink/pkg/policy"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SYMBLINK_"

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, stderrors.New("not implemented")
}

// DefaultConfigBytes returns the embedded default configuration file.
func DefaultConfigBytes() []byte {
	return defaultConfig
}

// Load builds the configuration from defaults, the file at configFile (if it
// exists) and the environment. An empty configFile means the default location.
func Load(configFile string) (*Config, error) {
	logger := logging.GetLogger("config")

	if configFile == "" {
		p, err := paths.New()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to resolve config location")
		}
		configFile = p.ConfigFile()
	}

	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to load defaults")
	}

	// 2. User config file
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to load config from %s", configFile).
				WithDetail("path", configFile)
		}
		logger.Debug().Str("path", configFile).Msg("Loaded config file")
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "cannot read %s", configFile).
			WithDetail("path", configFile)
	}

	// 3. Environment
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load env vars")
	}

	// 4. Unmarshal
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}

	// 5. Post-process
	if err := postProcess(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envValue drops empty variables so an exported but blank override does not
// erase a configured value.
func envValue(key, value string) (string, interface{}) {
	if value == "" {
		return "", nil
	}
	return envKey(key), value
}

// envKey maps SYMBLINK_WATCH__DEBOUNCE to watch.debounce. The path overrides
// read by pkg/paths are not configuration keys and are skipped.
func envKey(s string) string {
	switch s {
	case paths.EnvConfigDir, paths.EnvStateDir, paths.EnvStagingDir:
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

var (
	detectDownloadDir = paths.DetectDownloadDir
	detectSimsDir     = paths.DetectSimsDir
)

func postProcess(cfg *Config) error {
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = detectDownloadDir()
	}
	if cfg.SimsDir == "" {
		cfg.SimsDir = detectSimsDir()
	}

	// An undetectable directory stays empty so Validate reports it as unset.
	for _, dir := range []*string{&cfg.DownloadDir, &cfg.SimsDir} {
		if *dir == "" {
			continue
		}
		abs, err := paths.Expand(*dir)
		if err != nil {
			return errors.Wrapf(err, errors.ErrConfigValid, "cannot resolve %q", *dir)
		}
		*dir = abs
	}

	cfg.Extensions.Whitelist = normalizeExts(cfg.Extensions.Whitelist)
	cfg.Extensions.Blacklist = normalizeExts(cfg.Extensions.Blacklist)
	cfg.Extensions.Assets = normalizeExts(cfg.Extensions.Assets)
	return nil
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		if n := policy.NormalizeExt(e); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Policy builds the extension policy described by the configuration.
func (c *Config) Policy() *policy.Policy {
	return policy.New(c.Extensions.Whitelist, c.Extensions.Blacklist, c.Extensions.Assets)
}

// ModsDir returns <SimsDir>/Mods.
func (c *Config) ModsDir() string {
	return paths.ModsDir(c.SimsDir)
}
