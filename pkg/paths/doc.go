// Package paths provides centralized path handling for symblink.
//
// It resolves where symblink keeps its own files and where the game keeps
// its mods:
//
//   - Config: $XDG_CONFIG_HOME/symblink/config.toml
//   - State:  $XDG_STATE_HOME/symblink (log file)
//   - Staging: <os temp dir>/org.comroid.symblink/ts4, one subdirectory per
//     mod id while it is being ingested
//   - Mods: <SimsDir>/Mods/<ModId>
//
// # Environment Variables
//
//   - SYMBLINK_CONFIG_DIR: override the config directory
//   - SYMBLINK_STATE_DIR: override the state directory
//   - SYMBLINK_STAGING_DIR: override the staging root
//
// When the configuration leaves the download or Sims directory empty,
// DetectDownloadDir and DetectSimsDir supply platform defaults from the XDG
// user directories.
package paths
