// Package config loads symblink's configuration.
//
// Values are layered, later layers overriding earlier ones:
//
//  1. embedded defaults (embedded/defaults.toml)
//  2. the user's config file, $XDG_CONFIG_HOME/symblink/config.toml by default
//  3. SYMBLINK_* environment variables; a double underscore separates
//     sections, so SYMBLINK_WATCH__DEBOUNCE sets watch.debounce
//
// Empty download_dir and sims_dir are filled in from the platform defaults.
// Validate checks the result before the service starts; a configuration that
// fails validation is fatal.
package config
