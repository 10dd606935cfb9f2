// Package cachepolicy maps media server request paths to cache lifetimes.
package cachepolicy

import (
	"regexp"
	"strings"
)

const (
	// DefaultSeconds applies to paths no rule matches.
	DefaultSeconds = 3600
	// ImageSeconds is the lifetime of relayed artwork.
	ImageSeconds = 24 * 60 * 60
	// NoCache marks live state that must never be cached.
	NoCache = 0
)

// Classifier returns the cache lifetime in seconds for a path.
type Classifier interface {
	Classify(path string) int
}

// PrefixRule assigns Seconds to paths starting with Prefix.
type PrefixRule struct {
	Prefix  string
	Seconds int
}

// PatternRule assigns Seconds to paths matching Pattern.
type PatternRule struct {
	Pattern *regexp.Regexp
	Seconds int
}

// Policy is an ordered rule table. Patterns are checked first, then
// prefixes, then exact no-cache paths, then the default.
type Policy struct {
	Patterns []PatternRule
	Prefixes []PrefixRule
	NoCache  []string
	Default  int
}

var _ Classifier = (*Policy)(nil)

// Default returns the media server API policy.
func Default() *Policy {
	return &Policy{
		Patterns: []PatternRule{
			{Pattern: regexp.MustCompile(`^/library/sections/\d+/all`), Seconds: 30 * 60},
			{Pattern: regexp.MustCompile(`^/library/metadata/\d+/allLeaves`), Seconds: 30 * 60},
		},
		Prefixes: []PrefixRule{
			{Prefix: "/library/sections", Seconds: 10 * 60},
			{Prefix: "/library/metadata/", Seconds: 2 * 60 * 60},
		},
		NoCache: []string{"/status/sessions"},
		Default: DefaultSeconds,
	}
}

// Classify is a pure function of path.
func (p *Policy) Classify(path string) int {
	for _, r := range p.Patterns {
		if r.Pattern.MatchString(path) {
			return r.Seconds
		}
	}
	for _, r := range p.Prefixes {
		if strings.HasPrefix(path, r.Prefix) {
			return r.Seconds
		}
	}
	for _, exact := range p.NoCache {
		if path == exact {
			return NoCache
		}
	}
	return p.Default
}

// Fixed classifies every path with the same lifetime.
type Fixed int

func (f Fixed) Classify(string) int { return int(f) }
