// Package slug derives URL-safe item identifiers and resolves collisions.
package slug

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxLength bounds a generated base slug.
	MaxLength = 100
	// MaxSuffixAttempts is how many numbered suffixes Resolve tries before
	// falling back to random suffixes.
	MaxSuffixAttempts = 100
	randomAttempts    = 5
	fallbackBase      = "item"
)

// ErrExhausted is returned when no free slug could be found.
var ErrExhausted = errors.New("slug: no free candidate found")

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	pattern  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// ExistsFunc reports whether a candidate slug is already taken.
type ExistsFunc func(candidate string) (bool, error)

// Generate lowercases name, collapses non-alphanumeric runs into single
// hyphens, trims edge hyphens and truncates to MaxLength.
func Generate(name string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxLength {
		s = strings.TrimRight(s[:MaxLength], "-")
	}
	return s
}

// Valid reports whether s is lowercase alphanumerics separated by single hyphens.
func Valid(s string) bool {
	return pattern.MatchString(s)
}

// Resolve returns base if free, otherwise base-1, base-2, ... up to
// MaxSuffixAttempts, then a few random hex suffixes.
func Resolve(base string, exists ExistsFunc) (string, error) {
	if base == "" {
		base = fallbackBase
	}
	taken, err := exists(base)
	if err != nil {
		return "", fmt.Errorf("check slug %q: %w", base, err)
	}
	if !taken {
		return base, nil
	}
	for n := 1; n <= MaxSuffixAttempts; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		taken, err := exists(candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	for i := 0; i < randomAttempts; i++ {
		candidate := base + "-" + randomSuffix()
		taken, err := exists(candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

func randomSuffix() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
