//go:build !linux

package nvidia

import (
	"runtime"

	"github.com/gomlx/gpudevices/driver"
	"github.com/pkg/errors"
)

// Driver for NVIDIA GPUs: only supported on Linux.
type Driver struct {
	driver.Driver
}

// New always fails on this platform.
func New() (*Driver, error) {
	return nil, errors.Errorf("NVIDIA driver not supported in %s/%s", runtime.GOOS, runtime.GOARCH)
}

// HasNvidiaGPU always returns false on this platform.
func HasNvidiaGPU() bool {
	return false
}
