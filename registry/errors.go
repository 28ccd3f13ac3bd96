package registry

import (
	"github.com/pkg/errors"
)

var (
	// ErrNoDevices is returned when building a Registry and the driver reports no devices.
	ErrNoDevices = errors.New("no CUDA-capable devices found")

	// ErrInvalidDevice is returned (wrapped) when an out-of-range logical device is given.
	ErrInvalidDevice = errors.New("invalid device")

	// ErrClosed is returned by operations on a Registry after Destroy.
	ErrClosed = errors.New("device registry already closed")
)

// invalidDeviceError wraps ErrInvalidDevice with the offending index.
func invalidDeviceError(device, numDevices int) error {
	return errors.Wrapf(ErrInvalidDevice, "device %d out of range [0, %d)", device, numDevices)
}
