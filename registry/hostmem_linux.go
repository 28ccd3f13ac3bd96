//go:build linux

package registry

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// HostMemorySize returns the total physical memory of the host, in bytes.
func HostMemorySize() (uint64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, errors.Wrap(err, "sysinfo failed")
	}
	return uint64(info.Totalram) * uint64(info.Unit), nil
}
