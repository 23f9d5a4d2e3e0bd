package entry

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// MaxPathLen is the longest path JoinPath will produce (PATH_MAX on Linux).
const MaxPathLen = 4096

// ErrPathTooLong is returned when a joined path exceeds MaxPathLen.
var ErrPathTooLong = errors.New("path too long")

// JoinPath joins dir and name with exactly one separator and returns the
// cleaned result.
func JoinPath(dir, name string) (string, error) {
	var joined string
	switch {
	case dir == "":
		joined = filepath.Clean(name)
	case name == "":
		joined = filepath.Clean(dir)
	default:
		joined = filepath.Join(dir, name)
	}
	if len(joined) > MaxPathLen {
		return "", fmt.Errorf("join %s + %s: %w", dir, name, ErrPathTooLong)
	}
	return joined, nil
}

// RelPath returns path relative to root. It fails when path is not inside root.
func RelPath(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("rel %s: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", path, root)
	}
	return rel, nil
}
