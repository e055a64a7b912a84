package paths

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/xdg"

	"github.com/arthur-debert/symblink/pkg/errors"
)

// Environment variable names
const (
	EnvConfigDir  = "SYMBLINK_CONFIG_DIR"
	EnvStateDir   = "SYMBLINK_STATE_DIR"
	EnvStagingDir = "SYMBLINK_STAGING_DIR"
)

const (
	// AppID namespaces the staging root inside the temp directory.
	AppID = "org.comroid.symblink"

	// AppName is the directory name used below the XDG base directories.
	AppName = "symblink"

	// GameDirName separates staging areas per supported game.
	GameDirName = "ts4"

	ConfigFileName = "config.toml"
	LogFileName    = "symblink.log"
	ModsDirName    = "Mods"
)

// Paths provides the locations of symblink's own files.
type Paths interface {
	ConfigDir() string
	ConfigFile() string
	StateDir() string
	LogFilePath() string
	StagingRoot() string
}

type paths struct {
	configDir   string
	stateDir    string
	stagingRoot string
}

// New resolves every location from the environment.
func New() (Paths, error) {
	xdg.Reload()

	p := &paths{
		configDir:   filepath.Join(xdg.ConfigHome, AppName),
		stateDir:    filepath.Join(xdg.StateHome, AppName),
		stagingRoot: filepath.Join(os.TempDir(), AppID, GameDirName),
	}

	for env, dst := range map[string]*string{
		EnvConfigDir:  &p.configDir,
		EnvStateDir:   &p.stateDir,
		EnvStagingDir: &p.stagingRoot,
	} {
		if v := os.Getenv(env); v != "" {
			abs, err := Expand(v)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrFileAccess, "invalid %s", env).
					WithDetail("value", v)
			}
			*dst = abs
		}
	}
	return p, nil
}

func (p *paths) ConfigDir() string   { return p.configDir }
func (p *paths) ConfigFile() string  { return filepath.Join(p.configDir, ConfigFileName) }
func (p *paths) StateDir() string    { return p.stateDir }
func (p *paths) LogFilePath() string { return filepath.Join(p.stateDir, LogFileName) }
func (p *paths) StagingRoot() string { return p.stagingRoot }

// ModsDir returns <simsDir>/Mods.
func ModsDir(simsDir string) string {
	return filepath.Join(simsDir, ModsDirName)
}

// Expand resolves a leading ~ and makes path absolute.
func Expand(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// DetectDownloadDir returns the user's download directory.
func DetectDownloadDir() string {
	xdg.Reload()
	return xdg.UserDirs.Download
}

// DetectSimsDir returns the first "*Sims 4*" directory below
// Documents/Electronic Arts, or the conventional "The Sims 4" location when
// none exists yet.
func DetectSimsDir() string {
	xdg.Reload()
	ea := filepath.Join(xdg.UserDirs.Documents, "Electronic Arts")

	matches, _ := filepath.Glob(filepath.Join(ea, "*Sims 4*"))
	sort.Strings(matches)
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			return m
		}
	}
	return filepath.Join(ea, "The Sims 4")
}
