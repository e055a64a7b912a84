package version

import "fmt"

// Build information set by ldflags
var (
	Version = "dev"     // -X github.com/arthur-debert/symblink/internal/version.Version={{.Version}}
	Commit  = "unknown" // -X github.com/arthur-debert/symblink/internal/version.Commit={{.Commit}}
	Date    = "unknown" // -X github.com/arthur-debert/symblink/internal/version.Date={{.Date}}
)

// String is the multi-line version banner printed by `symblink version`.
func String() string {
	return fmt.Sprintf("symblink version %s\n  commit: %s\n  built:  %s\n", Version, Commit, Date)
}
