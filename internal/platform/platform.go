// Package platform holds the OS-specific bulk copy used by the copy
// executor.
package platform

import "os"

// CopyMethod identifies which syscall/strategy moved the bytes.
type CopyMethod int

const (
	ReadWrite     CopyMethod = iota
	CopyFileRange            // Linux copy_file_range(2)
	Sendfile                 // Linux sendfile(2)
)

func (m CopyMethod) String() string {
	switch m {
	case ReadWrite:
		return "read_write"
	case CopyFileRange:
		return "copy_file_range"
	case Sendfile:
		return "sendfile"
	default:
		return "unknown"
	}
}

// CopyResult reports the outcome of a copy.
type CopyResult struct {
	BytesWritten int64
	Method       CopyMethod
}

// CopyFileParams describes a whole-file copy between two open files. Src
// must be open for reading and Dst for writing, both positioned at 0.
type CopyFileParams struct {
	Src  *os.File
	Dst  *os.File
	Size int64
}
