package cli

import (
	_ "embed"
	"strings"
)

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort       = "Install The Sims 4 mods straight from your downloads"
	MsgWatchShort      = "Watch the download directory and install mods as they arrive"
	MsgIngestShort     = "Install the given files once"
	MsgConfigShort     = "Inspect or create the configuration file"
	MsgConfigShowShort = "Print the effective configuration as TOML"
	MsgConfigInitShort = "Write the current configuration to a file"
	MsgVersionShort    = "Print version information"
	MsgCompletionShort = "Generate shell completion script"

	// Status messages
	MsgWatching      = "Watching %s, installing into %s (Ctrl-C to stop)"
	MsgConfigWritten = "Wrote %s"
	MsgConfigSource  = "# effective configuration (file: %s)\n"

	// Error messages
	MsgErrLoadConfig   = "failed to load configuration: %w"
	MsgErrIngestFailed = "%d of %d files could not be ingested"
	MsgErrNoCommand    = "no command specified"

	// Flag descriptions
	MsgFlagVerbose      = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagConfig       = "Configuration file (default is $XDG_CONFIG_HOME/symblink/config.toml)"
	MsgFlagFormat       = "Output format: auto, term, text or json"
	MsgFlagScanExisting = "Also ingest files already in the download directory"
	MsgFlagForce        = "Overwrite an existing configuration file"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/watch-long.txt
	msgWatchLongRaw string
	MsgWatchLong    = strings.TrimSpace(msgWatchLongRaw)

	//go:embed msgs/watch-example.txt
	msgWatchExampleRaw string
	MsgWatchExample    = strings.TrimRight(msgWatchExampleRaw, "\n")

	//go:embed msgs/ingest-long.txt
	msgIngestLongRaw string
	MsgIngestLong    = strings.TrimSpace(msgIngestLongRaw)

	//go:embed msgs/ingest-example.txt
	msgIngestExampleRaw string
	MsgIngestExample    = strings.TrimRight(msgIngestExampleRaw, "\n")

	//go:embed msgs/config-init-long.txt
	msgConfigInitLongRaw string
	MsgConfigInitLong    = strings.TrimSpace(msgConfigInitLongRaw)

	//go:embed msgs/completion-long.txt
	msgCompletionLongRaw string
	MsgCompletionLong    = strings.TrimSpace(msgCompletionLongRaw)

	//go:embed msgs/usage-template.txt
	msgUsageTemplateRaw string
	MsgUsageTemplate    = strings.TrimSpace(msgUsageTemplateRaw)
)
