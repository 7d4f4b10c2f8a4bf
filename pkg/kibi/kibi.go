// Package kibi converts between byte counts and human strings such as "64 KB".
// All multipliers are powers of 1024.
package kibi

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidByteSize = errors.New("invalid byte size")

var sizeRegex = regexp.MustCompile(`^(\d+)\s*([a-z]*)$`)

type unit struct {
	name  string
	short string
	bytes int64
}

// Largest first
var units = []unit{
	{"PB", "p", 1 << 50},
	{"TB", "t", 1 << 40},
	{"GB", "g", 1 << 30},
	{"MB", "m", 1 << 20},
	{"KB", "k", 1 << 10},
}

// FormatBytes returns b in the largest unit that it fills at least once, rounded down.
// eg 1536 -> "1 KB"
func FormatBytes(b int64) string {
	for _, u := range units {
		if b >= u.bytes {
			return fmt.Sprintf("%v %v", b/u.bytes, u.name)
		}
	}
	return fmt.Sprintf("%v bytes", b)
}

// ParseBytes parses a size such as "64 KB", "64kb", "64k", "2 m" or "100 bytes".
// A bare number is a count of bytes. Case is ignored.
func ParseBytes(s string) (int64, error) {
	m := sizeRegex.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return 0, fmt.Errorf("%w: '%v'", ErrInvalidByteSize, s)
	}
	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: '%v': %w", ErrInvalidByteSize, s, err)
	}
	suffix := m[2]
	if suffix == "" || suffix == "b" || suffix == "bytes" {
		return value, nil
	}
	for _, u := range units {
		if suffix == u.short || suffix == strings.ToLower(u.name) {
			if value > (1<<63-1)/u.bytes {
				return 0, fmt.Errorf("%w: '%v' is too large", ErrInvalidByteSize, s)
			}
			return value * u.bytes, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown unit '%v'", ErrInvalidByteSize, m[2])
}

// SamplesForBytes returns the number of whole records of 'width' bytes that fit into 'bytes'
func SamplesForBytes(bytes int64, width int) int {
	if width <= 0 || bytes <= 0 {
		return 0
	}
	return int(bytes / int64(width))
}
