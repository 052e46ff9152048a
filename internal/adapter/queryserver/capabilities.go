package queryserver

import (
	"strconv"
	"strings"

	"qlmodel/internal/domain"
)

// Feature thresholds of the evaluation backend. Old servers accept the
// core compile/run protocol but lack newer request families; every version
// comparison lives here so callers check booleans, not version strings.
var (
	minRegistrationVersion = [2]int{2, 9}
	minQueryPackVersion    = [2]int{2, 11}
)

// resolveCapabilities maps a backend version string to its feature set.
// Unparseable versions resolve to the most conservative capability set.
func resolveCapabilities(version string) domain.Capabilities {
	return domain.Capabilities{
		Version:                      version,
		SupportsDatabaseRegistration: versionAtLeast(version, minRegistrationVersion),
		SupportsQueryPacks:           versionAtLeast(version, minQueryPackVersion),
	}
}

func versionAtLeast(version string, min [2]int) bool {
	major, minor, ok := parseVersion(version)
	if !ok {
		return false
	}
	if major != min[0] {
		return major > min[0]
	}
	return minor >= min[1]
}

func parseVersion(version string) (major, minor int, ok bool) {
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	// Tolerate suffixes like "11-beta".
	minorStr := parts[1]
	if i := strings.IndexFunc(minorStr, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		minorStr = minorStr[:i]
	}
	minor, err = strconv.Atoi(minorStr)
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}
