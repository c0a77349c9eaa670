// Package id formats and parses the human-readable references that appear
// next to opaque uuids in operator-facing output.
package id

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatMatchRef returns a match reference like "M-2025-01-001".
func FormatMatchRef(year, month, seq int) string {
	return fmt.Sprintf("M-%04d-%02d-%03d", year, month, seq)
}

// ParseMatchRef parses "M-2025-01-001" into year, month, seq.
func ParseMatchRef(ref string) (year, month, seq int, err error) {
	rest, ok := strings.CutPrefix(ref, "M-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid match ref format: %q", ref)
	}

	parts := strings.SplitN(rest, "-", 3)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid match ref format: %q", ref)
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid year in match ref %q: %w", ref, err)
	}

	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid month in match ref %q: %w", ref, err)
	}

	seq, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid sequence in match ref %q: %w", ref, err)
	}

	return year, month, seq, nil
}
