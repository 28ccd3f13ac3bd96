// Package driver defines the boundary between the device registry and the accelerator runtime.
//
// A Driver is an opaque capability: it enumerates devices, reports their static properties, binds the
// calling process' execution context to a device and creates resources (execution queues and numeric
// library contexts) on whichever device is currently bound.
//
// Implementations: see sub-packages `mock` (scriptable, for tests) and `nvidia` (NVIDIA GPUs, using NVML).
package driver

import (
	"github.com/pkg/errors"
)

// ErrDeviceUnavailable is returned (possibly wrapped) by Driver.SetDevice or Driver.NewQueue when the device
// is held by another process in an exclusive compute mode.
//
// Use errors.Is to test for it.
var ErrDeviceUnavailable = errors.New("all CUDA-capable devices are busy or unavailable")

// Properties are the static, vendor-reported properties of one device.
type Properties struct {
	// Name is the human-readable name, e.g. "Tesla V100-SXM2-16GB".
	Name string

	// Major and Minor are the compute capability version.
	Major, Minor int

	// TotalMemory in bytes.
	TotalMemory uint64

	// MultiprocessorCount is the number of streaming multiprocessors.
	MultiprocessorCount int

	// ClockRate in kHz.
	ClockRate int
}

// Queue is an execution queue (a "stream") created on one device.
type Queue interface {
	// Synchronize blocks until all work queued so far is finished.
	Synchronize() error

	// Close releases the queue.
	Close() error
}

// LibraryContext is a handle to an auxiliary numeric library context (BLAS, solver, ...) created on one device.
// The registry only manages its creation and lifetime.
type LibraryContext interface {
	Kind() LibraryKind
	Close() error
}

// Driver is the capability the registry consumes from the runtime.
//
// The registry serializes SetDevice, NewQueue and NewLibraryContext calls, but DeviceCount and
// DeviceProperties may be called at any time.
type Driver interface {
	// DeviceCount returns the number of devices visible to the process.
	DeviceCount() (int, error)

	// DeviceProperties of the device with the given native index.
	DeviceProperties(nativeIndex int) (Properties, error)

	// SetDevice binds the execution context to the device with the given native index.
	SetDevice(nativeIndex int) error

	// NewQueue creates an execution queue on the currently bound device.
	NewQueue() (Queue, error)

	// NewLibraryContext creates a context of the given kind on the currently bound device.
	NewLibraryContext(kind LibraryKind) (LibraryContext, error)

	// Shutdown releases the driver, after which it is no longer valid.
	Shutdown() error
}

// Versioner is optionally implemented by drivers that can report their versions.
type Versioner interface {
	// DriverVersion, e.g. "550.54.14".
	DriverVersion() (string, error)

	// RuntimeVersion of the compute toolkit, e.g. "12.4".
	RuntimeVersion() (string, error)

	// PlatformName, e.g. "CUDA".
	PlatformName() string
}

// InteropChecker is optionally implemented by drivers that can tell whether graphics interoperability
// is supported by any of the devices. Drivers that don't implement it are assumed capable.
type InteropChecker interface {
	GraphicsInteropCapable() (bool, error)
}
