// Package entry defines the filesystem entry record shared by the walker,
// the analyzers and the diff engine, plus the prober that fills it in.
package entry

import (
	"encoding/hex"
	"time"
)

// Kind identifies the kind of filesystem object an Entry describes.
type Kind int

const (
	File Kind = iota
	Dir
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Dir:
		return "dir"
	default:
		return "unknown"
	}
}

// DigestSize is the width of a content hash in bytes (BLAKE3-256).
const DigestSize = 32

// Digest is a fixed-width content hash.
type Digest [DigestSize]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Entry is the discovered metadata of one file or directory.
type Entry struct {
	Path    string    // walked path, including its root
	ModTime time.Time // filesystem mtime, nanosecond precision
	Size    int64     // files only
	Mode    uint32    // permission bits (mode & 0o7777)
	Kind    Kind
	Hash    Digest // set only when HasHash
	HasHash bool
}

// IsDir reports whether e describes a directory.
func (e Entry) IsDir() bool { return e.Kind == Dir }
