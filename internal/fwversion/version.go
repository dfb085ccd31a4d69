// Package fwversion handles firmware version parsing, comparison, and
// persistence of the on-device version marker.
package fwversion

import (
	"fmt"
	"strconv"
	"strings"
)

// Version represents a dotted numeric firmware version.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Parse parses a version string leniently.
// Supports formats like "1.7.0", "v1.7", "1" — missing components
// default to 0. A string that fails to parse entirely degrades to
// 0.0.0 rather than returning an error, so a malformed version is
// never preferred over a valid one.
func Parse(s string) Version {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "v"))
	if s == "" {
		return Version{}
	}

	parts := strings.Split(s, ".")
	nums := make([]int, 3)
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 {
			return Version{}
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}
}

// String returns the canonical dotted representation.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare compares two versions component-wise.
// Returns:
//   - 1 if v > other
//   - 0 if v == other
//   - -1 if v < other
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		if v.Major > other.Major {
			return 1
		}
		return -1
	}

	if v.Minor != other.Minor {
		if v.Minor > other.Minor {
			return 1
		}
		return -1
	}

	if v.Patch != other.Patch {
		if v.Patch > other.Patch {
			return 1
		}
		return -1
	}

	return 0
}

// IsNewerThan returns true if v > other.
func (v Version) IsNewerThan(other Version) bool {
	return v.Compare(other) > 0
}

// Compare compares two version strings with Parse's lenient rules.
func Compare(a, b string) int {
	return Parse(a).Compare(Parse(b))
}
