package casregistry

import "strings"

// Usage says which binaries may open a backend. A backend registers itself
// from init() and is linked in by a blank import of its package.
type Usage uint8

const (
	// UsageCLI backends can store and fetch fragments for the pixzle CLI.
	UsageCLI Usage = 1 << iota
	// UsageDaemon backends can sit behind pixzle-casd. Remote backends are
	// CLI-only so a daemon never proxies to another daemon.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }

// String lists the binaries u covers, e.g. "cli,daemon".
func (u Usage) String() string {
	var parts []string
	if u&UsageCLI != 0 {
		parts = append(parts, "cli")
	}
	if u&UsageDaemon != 0 {
		parts = append(parts, "daemon")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}
