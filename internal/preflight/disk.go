package preflight

import (
	"fmt"
	"syscall"
)

// MinDiskSpaceBytes is the free space floor for index data (100 MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// CheckDiskSpace verifies free space at the project path.
func (c *Checker) CheckDiskSpace(root string) Result {
	res := Result{Name: "disk_space", Required: true}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(root, &stat); err != nil {
		res.Status = StatusFail
		res.Message = fmt.Sprintf("cannot check disk space: %v", err)
		return res
	}

	available := stat.Bavail * uint64(stat.Bsize)
	res.Message = fmt.Sprintf("%s free (minimum 100 MB)", formatBytes(available))
	if available < MinDiskSpaceBytes {
		res.Status = StatusFail
		return res
	}
	res.Status = StatusPass
	return res
}

func formatBytes(n uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
		tb = 1024 * gb
	)
	switch {
	case n >= tb:
		return fmt.Sprintf("%.1f TB", float64(n)/tb)
	case n >= gb:
		return fmt.Sprintf("%.1f GB", float64(n)/gb)
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.1f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
