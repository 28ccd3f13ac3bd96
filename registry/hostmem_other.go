//go:build !linux

package registry

import (
	"runtime"

	"github.com/pkg/errors"
)

// HostMemorySize returns the total physical memory of the host, in bytes. Not implemented outside linux.
func HostMemorySize() (uint64, error) {
	return 0, errors.Errorf("HostMemorySize not implemented for %s", runtime.GOOS)
}
