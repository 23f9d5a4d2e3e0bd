package filter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// compiledPattern is a validated rsync-style glob evaluated with doublestar.
type compiledPattern struct {
	glob     string
	original string
	anchored bool // matched against the whole relative path
	dirOnly  bool // pattern ends with /
}

// compilePattern parses an rsync-style pattern. A trailing / restricts the
// rule to directories. A leading / or any inner / anchors it to the sync
// root; otherwise it matches the basename at any depth.
func compilePattern(pattern string) (*compiledPattern, error) {
	cp := &compiledPattern{original: pattern}

	if strings.HasSuffix(pattern, "/") {
		cp.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}

	switch {
	case strings.HasPrefix(pattern, "/"):
		cp.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	case strings.Contains(pattern, "/"):
		cp.anchored = true
	}

	if pattern == "" {
		return nil, fmt.Errorf("empty pattern %q", cp.original)
	}

	if cp.anchored {
		cp.glob = pattern
	} else {
		cp.glob = "**/" + pattern
	}

	if !doublestar.ValidatePattern(cp.glob) {
		return nil, fmt.Errorf("invalid pattern %q", cp.original)
	}
	return cp, nil
}

// match tests whether a root-relative path matches this pattern.
func (cp *compiledPattern) match(relPath string, isDir bool) bool {
	if cp.dirOnly && !isDir {
		return false
	}
	ok, err := doublestar.Match(cp.glob, filepath.ToSlash(relPath))
	return err == nil && ok
}

func (cp *compiledPattern) String() string { return cp.original }
