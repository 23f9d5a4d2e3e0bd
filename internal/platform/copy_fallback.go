//go:build !linux

package platform

// CopyFile uses pread/pwrite on platforms without an in-kernel copy path.
func CopyFile(params CopyFileParams) (CopyResult, error) {
	preallocate(params.Dst, params.Size)
	return copyReadWrite(params)
}
