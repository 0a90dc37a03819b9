package release

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a (major, minor, patch) release triple.
// The zero value is not a valid version; build one with NewVersion or a parser.
type Version struct {
	v *semver.Version
}

// NewVersion builds a Version from integer components.
func NewVersion(major, minor, patch int) (Version, error) {
	if major < 0 || minor < 0 || patch < 0 {
		return Version{}, fmt.Errorf("%w: %d.%d.%d: components must be non-negative",
			ErrInvalidVersion, major, minor, patch)
	}

	return Version{v: semver.New(uint64(major), uint64(minor), uint64(patch), "", "")}, nil
}

// ParseTriple parses three decimal components as given on the command line.
func ParseTriple(major, minor, patch string) (Version, error) {
	parts := [3]uint64{}

	for i, raw := range [3]string{major, minor, patch} {
		n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q is not a non-negative integer", ErrInvalidVersion, raw)
		}

		parts[i] = n
	}

	return Version{v: semver.New(parts[0], parts[1], parts[2], "", "")}, nil
}

// ParseVersion parses a strict "X.Y.Z" string. Prefixes, prerelease
// and build metadata are rejected.
func ParseVersion(s string) (Version, error) {
	parsed, err := semver.StrictNewVersion(strings.TrimSpace(s))
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q: %w", ErrInvalidVersion, s, err)
	}

	if parsed.Prerelease() != "" || parsed.Metadata() != "" {
		return Version{}, fmt.Errorf("%w: %q: only major.minor.patch is accepted", ErrInvalidVersion, s)
	}

	return Version{v: parsed}, nil
}

// Major returns the major component.
func (v Version) Major() uint64 {
	if v.v == nil {
		return 0
	}

	return v.v.Major()
}

// Minor returns the minor component.
func (v Version) Minor() uint64 {
	if v.v == nil {
		return 0
	}

	return v.v.Minor()
}

// Patch returns the patch component.
func (v Version) Patch() uint64 {
	if v.v == nil {
		return 0
	}

	return v.v.Patch()
}

// IsZero reports whether v was never initialized.
func (v Version) IsZero() bool {
	return v.v == nil
}

// String renders the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}
