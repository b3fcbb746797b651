package compliance

import "fmt"

// ComplianceMode selects how aggressively restores reject damaged input.
//
// Permissive restores whatever the fragments still hold: short fragments
// leave zeroed blocks behind and a newer minor manifest version is accepted.
// Strict fails closed on short fragments, on fragment bytes that do not
// match their recorded CIDs and on any manifest version other than the
// current one.
type ComplianceMode int

const (
	Permissive ComplianceMode = iota
	Strict
)

func (m ComplianceMode) String() string {
	switch m {
	case Permissive:
		return "permissive"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("ComplianceMode(%d)", int(m))
	}
}

// Parse maps "permissive" or "strict" to a mode. The empty string is
// Permissive.
func Parse(s string) (ComplianceMode, error) {
	switch s {
	case "", "permissive":
		return Permissive, nil
	case "strict":
		return Strict, nil
	default:
		return Permissive, fmt.Errorf("unknown compliance mode %q (want permissive or strict)", s)
	}
}
