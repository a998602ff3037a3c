package leanpkg

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/mod/semver"
)

// ErrInvalidVersion is returned when a string carries no Lean version.
var ErrInvalidVersion = errors.New("invalid lean version")

// Version is a Lean release number.
type Version struct {
	Major int
	Minor int
	Patch int
}

// CommunityFork is the first release published by leanprover-community.
var CommunityFork = Version{3, 5, 0}

var versionPatterns = []*regexp.Regexp{
	// branch names (lean-3.4.2) and modern leanpkg.toml values (...lean:3.5.1)
	regexp.MustCompile(`^.*lean[-:](\d+)\.(\d+)\.(\d+)`),
	// output of `lean --version`
	regexp.MustCompile(`^.*version (\d+)\.(\d+)\.(\d+),`),
	// bare version string
	regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`),
}

// ParseVersion extracts a Lean version from a branch name, a leanpkg.toml
// lean_version value, `lean --version` output or a bare version string.
func ParseVersion(s string) (Version, error) {
	for _, pattern := range versionPatterns {
		m := pattern.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		var parts [3]int
		for i := range parts {
			n, err := strconv.Atoi(m[i+1])
			if err != nil {
				return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
			}
			parts[i] = n
		}
		return Version{parts[0], parts[1], parts[2]}, nil
	}
	return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or +1 as v is older than, equal to or newer than o.
func (v Version) Compare(o Version) int {
	return semver.Compare("v"+v.String(), "v"+o.String())
}

// Less reports whether v is older than o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

// LeanVersionTOML renders v the way leanpkg.toml expects it.
func LeanVersionTOML(v Version) string {
	if v.Less(CommunityFork) {
		return v.String()
	}
	return "leanprover-community/lean:" + v.String()
}

// Toolchain returns the elan toolchain name for v.
func Toolchain(v Version) string {
	if v.Less(CommunityFork) {
		return v.String()
	}
	return "leanprover-community-lean-" + v.String()
}
