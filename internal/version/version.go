package version

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	bumpKindMajorStringConstant           = "major"
	bumpKindMinorStringConstant           = "minor"
	bumpKindPatchStringConstant           = "patch"
	versionSegmentSeparatorConstant       = "."
	versionSegmentCountConstant           = 3
	versionStringTemplateConstant         = "%d.%d.%d"
	malformedVersionMessageConstant       = "malformed version"
	malformedVersionErrorTemplateConstant = "%w: %q"
)

// ErrMalformedVersion indicates that a version string is not three dot-separated non-negative integers.
var ErrMalformedVersion = errors.New(malformedVersionMessageConstant)

// BumpKind enumerates the version segment to increment.
type BumpKind string

// Supported bump kinds.
const (
	BumpKindMajor BumpKind = BumpKind(bumpKindMajorStringConstant)
	BumpKindMinor BumpKind = BumpKind(bumpKindMinorStringConstant)
	BumpKindPatch BumpKind = BumpKind(bumpKindPatchStringConstant)
)

// BumpKinds lists the supported bump kinds in precedence order.
func BumpKinds() []BumpKind {
	return []BumpKind{BumpKindMajor, BumpKindMinor, BumpKindPatch}
}

// ParseBumpKind resolves a bump kind case-insensitively. Unknown or empty input resolves to patch.
func ParseBumpKind(rawKind string) BumpKind {
	switch BumpKind(strings.ToLower(strings.TrimSpace(rawKind))) {
	case BumpKindMajor:
		return BumpKindMajor
	case BumpKindMinor:
		return BumpKindMinor
	default:
		return BumpKindPatch
	}
}

// Version is a semantic version triple.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses a major.minor.patch string.
// A segment at math.MaxInt is rejected so that every parsed version can be bumped.
func ParseVersion(rawVersion string) (Version, error) {
	segments := strings.Split(strings.TrimSpace(rawVersion), versionSegmentSeparatorConstant)
	if len(segments) != versionSegmentCountConstant {
		return Version{}, fmt.Errorf(malformedVersionErrorTemplateConstant, ErrMalformedVersion, rawVersion)
	}

	parsedSegments := make([]int, 0, versionSegmentCountConstant)
	for _, segment := range segments {
		if len(segment) == 0 || strings.ContainsAny(segment, "+-") {
			return Version{}, fmt.Errorf(malformedVersionErrorTemplateConstant, ErrMalformedVersion, rawVersion)
		}
		parsedSegment, parseError := strconv.Atoi(segment)
		if parseError != nil || parsedSegment < 0 || parsedSegment == math.MaxInt {
			return Version{}, fmt.Errorf(malformedVersionErrorTemplateConstant, ErrMalformedVersion, rawVersion)
		}
		parsedSegments = append(parsedSegments, parsedSegment)
	}

	return Version{Major: parsedSegments[0], Minor: parsedSegments[1], Patch: parsedSegments[2]}, nil
}

// Bump returns the version with the requested segment incremented and all lower segments reset.
func (version Version) Bump(kind BumpKind) Version {
	switch ParseBumpKind(string(kind)) {
	case BumpKindMajor:
		return Version{Major: version.Major + 1}
	case BumpKindMinor:
		return Version{Major: version.Major, Minor: version.Minor + 1}
	default:
		return Version{Major: version.Major, Minor: version.Minor, Patch: version.Patch + 1}
	}
}

// String renders the version as major.minor.patch.
func (version Version) String() string {
	return fmt.Sprintf(versionStringTemplateConstant, version.Major, version.Minor, version.Patch)
}
