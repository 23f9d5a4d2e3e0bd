package platform

import (
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

const bufferSize = 1 << 20 // 1 MiB

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufferSize)
		return &b
	},
}

// copyReadWrite copies with pread/pwrite through a pooled buffer.
//
//nolint:gosec // G115: fd values are small non-negative integers
func copyReadWrite(params CopyFileParams) (CopyResult, error) {
	bufp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bufp)
	buf := *bufp

	srcFd := int(params.Src.Fd())
	dstFd := int(params.Dst.Fd())

	var offset int64
	for offset < params.Size {
		toRead := min(params.Size-offset, int64(len(buf)))

		n, err := unix.Pread(srcFd, buf[:toRead], offset)
		if err != nil {
			return CopyResult{BytesWritten: offset, Method: ReadWrite}, err
		}
		if n == 0 {
			break // source shrank underneath us
		}

		for written := 0; written < n; {
			w, err := unix.Pwrite(dstFd, buf[written:n], offset+int64(written))
			if err != nil {
				return CopyResult{BytesWritten: offset + int64(written), Method: ReadWrite}, err
			}
			written += w
		}
		offset += int64(n)
	}
	return CopyResult{BytesWritten: offset, Method: ReadWrite}, nil
}

// isFallbackErr reports whether err means "try the next copy strategy".
func isFallbackErr(err error) bool {
	for _, target := range []error{unix.ENOSYS, unix.EXDEV, unix.EINVAL, unix.ENOTSUP, unix.EOPNOTSUPP} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
