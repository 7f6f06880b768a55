// Package route implements match rules and path rewriting (matching and
// transforming inbound request paths), plus the route manager that applies
// route add/remove commands to a shared routing table and keeps each
// route's load balancer registered with the background-task supervisor.
package route

import (
	"fmt"
	"regexp"
)

// Matcher decides whether a request path belongs to a route.
type Matcher interface {
	Matches(path string) bool
	String() string
}

type prefixMatch struct {
	prefix string
}

// NewPrefixMatch builds a matcher that accepts any path starting with
// prefix.
func NewPrefixMatch(prefix string) Matcher {
	return prefixMatch{prefix: prefix}
}

func (m prefixMatch) Matches(path string) bool { return len(path) >= len(m.prefix) && path[:len(m.prefix)] == m.prefix }
func (m prefixMatch) String() string           { return "path_start_with:" + m.prefix }

type regexMatch struct {
	pattern string
	re      *regexp.Regexp
}

// NewRegexMatch compiles pattern once at construction time and returns a
// matcher backed by the compiled expression, never the raw string.
func NewRegexMatch(pattern string) (Matcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile match regex %q: %w", pattern, err)
	}
	return regexMatch{pattern: pattern, re: re}, nil
}

func (m regexMatch) Matches(path string) bool { return m.re.MatchString(path) }
func (m regexMatch) String() string           { return "path_regex:" + m.pattern }

// Rewrite transforms a matched path by applying a compiled regular
// expression replacement, leaving the query string untouched.
type Rewrite struct {
	pattern     string
	replacement string
	re          *regexp.Regexp
}

// NewRewrite compiles pattern once and pairs it with replacement, using
// regexp.Regexp.ReplaceAllString semantics ($1, $2, ... backreferences).
func NewRewrite(pattern, replacement string) (*Rewrite, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile rewrite regex %q: %w", pattern, err)
	}
	return &Rewrite{pattern: pattern, replacement: replacement, re: re}, nil
}

// Apply returns the rewritten path and true when pattern matched path, or
// the original path and false otherwise.
func (r *Rewrite) Apply(path string) (string, bool) {
	if r == nil || !r.re.MatchString(path) {
		return path, false
	}
	return r.re.ReplaceAllString(path, r.replacement), true
}
