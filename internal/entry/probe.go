package entry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/zeebo/blake3"
)

// ProbeKind classifies a probe failure.
type ProbeKind int

const (
	StatFailed ProbeKind = iota + 1
	ReadFailed
)

func (k ProbeKind) String() string {
	switch k {
	case StatFailed:
		return "stat failed"
	case ReadFailed:
		return "read failed"
	default:
		return "probe failed"
	}
}

// ProbeError reports why a single path could not be probed. The entry is
// dropped from its list; sibling probing continues.
type ProbeError struct {
	Err  error
	Path string
	Kind ProbeKind
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// ErrUnsupportedType is wrapped in a StatFailed error for objects that are
// neither regular files nor directories.
var ErrUnsupportedType = errors.New("not a regular file or directory")

const hashChunkSize = 32 * 1024

var hashBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, hashChunkSize)
		return &b
	},
}

// Prober reads metadata for one path at a time.
type Prober struct {
	Hash bool // compute a content digest for regular files
}

// Probe stats path and, for regular files with hashing enabled, streams the
// content through BLAKE3.
func (p Prober) Probe(path string) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, &ProbeError{Kind: StatFailed, Path: path, Err: err}
	}

	mode := info.Mode()
	e := Entry{
		Path:    path,
		Mode:    permBits(mode),
		ModTime: info.ModTime(),
	}

	switch {
	case mode.IsDir():
		e.Kind = Dir
		return e, nil
	case mode.IsRegular():
		e.Kind = File
		e.Size = info.Size()
	default:
		return Entry{}, &ProbeError{Kind: StatFailed, Path: path, Err: ErrUnsupportedType}
	}

	if p.Hash {
		sum, err := HashFile(path)
		if err != nil {
			return Entry{}, &ProbeError{Kind: ReadFailed, Path: path, Err: err}
		}
		e.Hash = sum
		e.HasHash = true
	}
	return e, nil
}

// HashFile computes the BLAKE3 digest of the file at path without buffering
// the whole file.
func HashFile(path string) (Digest, error) {
	var d Digest

	f, err := os.Open(path)
	if err != nil {
		return d, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	bufp := hashBufPool.Get().(*[]byte)
	defer hashBufPool.Put(bufp)

	h := blake3.New()
	if _, err := io.CopyBuffer(h, f, *bufp); err != nil {
		return d, fmt.Errorf("hash %s: %w", path, err)
	}
	copy(d[:], h.Sum(nil))
	return d, nil
}

// permBits maps an os.FileMode onto the classic 12-bit unix permission mask.
func permBits(mode os.FileMode) uint32 {
	bits := uint32(mode.Perm())
	if mode&os.ModeSetuid != 0 {
		bits |= 0o4000
	}
	if mode&os.ModeSetgid != 0 {
		bits |= 0o2000
	}
	if mode&os.ModeSticky != 0 {
		bits |= 0o1000
	}
	return bits
}
