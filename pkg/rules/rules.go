// Package rules implements the inclusion/exclusion rule engine used to decide
// which filesystem paths the agent tracks.
package rules

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// Status represents the result of evaluating a path against a rule set.
type Status int

const (
	// StatusOk indicates that the path passed evaluation.
	StatusOk Status = iota
	// StatusNotIncluded indicates that the path matched no inclusion rule.
	StatusNotIncluded
	// StatusExcluded indicates that the path was included but matched an
	// exclusion rule.
	StatusExcluded
)

// Ok indicates whether or not the status represents a passing evaluation.
func (s Status) Ok() bool {
	return s == StatusOk
}

// String provides a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusNotIncluded:
		return "not included"
	case StatusExcluded:
		return "excluded"
	default:
		return "unknown"
	}
}

// Rule is the interface implemented by individual path matchers.
type Rule interface {
	// Matches indicates whether or not the rule matches the specified path.
	Matches(path string) bool
}

// GlobRule matches paths against a doublestar glob pattern. A pattern that
// contains no separator is also matched against the path's base name, so that
// a rule like "*.log" applies to files at any depth.
type GlobRule struct {
	// pattern is the compiled-validated glob pattern.
	pattern string
	// matchLeaf indicates whether the pattern should also be matched against
	// a path's base name.
	matchLeaf bool
}

// NewGlobRule creates a new glob rule, validating the pattern.
func NewGlobRule(pattern string) (*GlobRule, error) {
	// Validate the pattern by matching it against a non-empty path. Bad
	// patterns are only detected when a match is attempted.
	if _, err := doublestar.Match(pattern, "a"); err != nil {
		return nil, errors.Wrap(err, "invalid glob pattern")
	}

	// Success.
	return &GlobRule{
		pattern:   pattern,
		matchLeaf: !strings.ContainsRune(pattern, filepath.Separator),
	}, nil
}

// Matches implements Rule.Matches.
func (r *GlobRule) Matches(path string) bool {
	// The pattern was validated at construction, so a match can't fail.
	if matched, _ := doublestar.Match(r.pattern, path); matched {
		return true
	}
	if r.matchLeaf && path != "" {
		matched, _ := doublestar.Match(r.pattern, filepath.Base(path))
		return matched
	}
	return false
}

// String returns the rule's pattern.
func (r *GlobRule) String() string {
	return r.pattern
}

// RegexRule matches paths against a compiled regular expression.
type RegexRule struct {
	// expression is the compiled regular expression.
	expression *regexp.Regexp
}

// NewRegexRule creates a new regular expression rule, validating the pattern.
func NewRegexRule(pattern string) (*RegexRule, error) {
	expression, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrap(err, "invalid regular expression")
	}
	return &RegexRule{expression: expression}, nil
}

// Matches implements Rule.Matches.
func (r *RegexRule) Matches(path string) bool {
	return r.expression.MatchString(path)
}

// String returns the rule's pattern.
func (r *RegexRule) String() string {
	return r.expression.String()
}

// Set holds ordered inclusion and exclusion rule lists.
type Set struct {
	// inclusions are the inclusion rules, evaluated in insertion order.
	inclusions []Rule
	// exclusions are the exclusion rules, evaluated in insertion order.
	exclusions []Rule
}

// NewSet creates an empty rule set.
func NewSet() *Set {
	return &Set{}
}

// AddInclusion appends an inclusion rule.
func (s *Set) AddInclusion(rule Rule) {
	s.inclusions = append(s.inclusions, rule)
}

// AddExclusion appends an exclusion rule.
func (s *Set) AddExclusion(rule Rule) {
	s.exclusions = append(s.exclusions, rule)
}

// AddAll appends all rules from another set, preserving their order.
func (s *Set) AddAll(other *Set) {
	s.inclusions = append(s.inclusions, other.inclusions...)
	s.exclusions = append(s.exclusions, other.exclusions...)
}

// Included checks if the path matches at least one inclusion rule.
func (s *Set) Included(path string) Status {
	for _, rule := range s.inclusions {
		if rule.Matches(path) {
			return StatusOk
		}
	}
	return StatusNotIncluded
}

// Excluded checks if the path matches any exclusion rule.
func (s *Set) Excluded(path string) Status {
	for _, rule := range s.exclusions {
		if rule.Matches(path) {
			return StatusExcluded
		}
	}
	return StatusOk
}

// Passes indicates whether the path is included and not excluded. The
// tri-valued result lets callers distinguish paths that were never eligible
// from paths that were actively blocked.
func (s *Set) Passes(path string) Status {
	if s.Included(path) == StatusNotIncluded {
		return StatusNotIncluded
	}
	return s.Excluded(path)
}

// Inclusions returns the inclusion rule list.
func (s *Set) Inclusions() []Rule {
	return s.inclusions
}

// Exclusions returns the exclusion rule list.
func (s *Set) Exclusions() []Rule {
	return s.exclusions
}
