package scanner

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// IgnorePattern is a single gitignore-style pattern.
type IgnorePattern struct {
	raw      string
	glob     string
	negate   bool
	dirOnly  bool
	anchored bool
}

// ParseIgnorePattern parses a pattern read from an ignore file located at
// base (slash separated, relative to the scan root; "" for the root).
//
// A pattern without a slash matches a name at any depth below base. A
// pattern with a leading or inner slash is anchored to base. A trailing
// slash restricts the pattern to directories.
func ParseIgnorePattern(line, base string) IgnorePattern {
	p := IgnorePattern{raw: line}

	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.Contains(line, "/") {
		p.anchored = true
		line = strings.TrimPrefix(line, "/")
	}

	if !p.anchored && !strings.HasPrefix(line, "**") {
		line = "**/" + line
	}
	if base != "" {
		line = path.Join(base, line)
	}
	p.glob = line
	return p
}

// Match reports whether rel (slash separated, relative to the scan root)
// matches the pattern. isDir tells whether rel names a directory.
func (p IgnorePattern) Match(rel string, isDir bool) bool {
	if p.dirOnly && !isDir {
		return false
	}
	ok, err := doublestar.Match(p.glob, rel)
	return err == nil && ok
}

// IsNegation reports whether the pattern starts with "!".
func (p IgnorePattern) IsNegation() bool {
	return p.negate
}

func (p IgnorePattern) String() string {
	return p.raw
}

// matchesIgnorePatterns applies patterns in order; a later negation undoes an
// earlier match.
func matchesIgnorePatterns(rel string, isDir bool, patterns []IgnorePattern) bool {
	ignored := false
	for _, p := range patterns {
		if p.Match(rel, isDir) {
			ignored = !p.IsNegation()
		}
	}
	return ignored
}
