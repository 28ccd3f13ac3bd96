// Package gpudevices holds the process-wide default device registry, and offers functions that forward to it.
//
// The default registry is installed once, explicitly, at the start of the program:
//
//	if err := gpudevices.Initialize(nil, registry.SortCompute); err != nil {
//		klog.Fatalf("Failed to initialize GPU devices: %+v", err)
//	}
//	defer gpudevices.Shutdown()
//	fmt.Println(gpudevices.Info())
//
// Libraries that can be given a *registry.Registry should prefer it to these functions, see package registry.
package gpudevices

import (
	"sync"

	"github.com/gomlx/gpudevices/driver"
	"github.com/gomlx/gpudevices/driver/nvidia"
	"github.com/gomlx/gpudevices/registry"
	"github.com/pkg/errors"
)

var (
	// ErrNotInitialized is returned by the functions of this package called before Initialize.
	ErrNotInitialized = errors.New("gpudevices not initialized, call gpudevices.Initialize first")

	// ErrAlreadyInitialized is returned by Initialize if a default registry is already installed.
	ErrAlreadyInitialized = errors.New("gpudevices already initialized")
)

var (
	muDefault       sync.Mutex
	defaultRegistry *registry.Registry
)

// Initialize builds the default registry for drv, with the devices ordered by mode.
// If drv is nil, the NVIDIA driver is used (see package nvidia).
//
// It fails with ErrAlreadyInitialized if called more than once, unless Shutdown is called in between.
func Initialize(drv driver.Driver, mode registry.SortMode) error {
	muDefault.Lock()
	defer muDefault.Unlock()
	if defaultRegistry != nil {
		return errors.WithStack(ErrAlreadyInitialized)
	}
	if drv == nil {
		nvidiaDriver, err := nvidia.New()
		if err != nil {
			return errors.WithMessage(err, "failed to create NVIDIA driver")
		}
		drv = nvidiaDriver
	}
	r, err := registry.Build(drv).WithSortMode(mode).Done()
	if err != nil {
		return err
	}
	defaultRegistry = r
	return nil
}

// InitializeWith installs r as the default registry. It fails with ErrAlreadyInitialized if one is already installed.
func InitializeWith(r *registry.Registry) error {
	if r == nil {
		return errors.New("gpudevices.InitializeWith(nil)")
	}
	muDefault.Lock()
	defer muDefault.Unlock()
	if defaultRegistry != nil {
		return errors.WithStack(ErrAlreadyInitialized)
	}
	defaultRegistry = r
	return nil
}

// Default returns the default registry, or ErrNotInitialized.
func Default() (*registry.Registry, error) {
	muDefault.Lock()
	defer muDefault.Unlock()
	if defaultRegistry == nil {
		return nil, errors.WithStack(ErrNotInitialized)
	}
	return defaultRegistry, nil
}

// Shutdown destroys the default registry (see registry.Registry.Destroy) and uninstalls it.
// It is a no-op if not initialized.
func Shutdown() error {
	muDefault.Lock()
	r := defaultRegistry
	defaultRegistry = nil
	muDefault.Unlock()
	if r == nil {
		return nil
	}
	return r.Destroy()
}

// DeviceCount returns the number of devices.
func DeviceCount() (int, error) {
	r, err := Default()
	if err != nil {
		return 0, err
	}
	return r.DeviceCount(), nil
}

// ActiveDeviceID returns the logical index of the active device.
func ActiveDeviceID() (int, error) {
	r, err := Default()
	if err != nil {
		return -1, err
	}
	return r.ActiveDevice(), nil
}

// SetActiveDevice activates the logical device and returns the previously active one.
func SetActiveDevice(device int) (previous int, err error) {
	r, err := Default()
	if err != nil {
		return -1, err
	}
	return r.SetActiveDevice(device)
}

// NativeID returns the native (driver) index of the logical device.
func NativeID(device int) (int, error) {
	r, err := Default()
	if err != nil {
		return -1, err
	}
	return r.NativeIndex(device)
}

// DeviceIDFromNative returns the logical index of the device with the native index, or DeviceCount if not found.
func DeviceIDFromNative(nativeIndex int) (int, error) {
	r, err := Default()
	if err != nil {
		return -1, err
	}
	return r.LogicalIndex(nativeIndex), nil
}

// SetNativeDevice activates the device with the native index and returns the previously active logical device.
func SetNativeDevice(nativeIndex int) (previous int, err error) {
	r, err := Default()
	if err != nil {
		return -1, err
	}
	return r.SetActiveNativeDevice(nativeIndex)
}

// SortDevices reorders the devices, see registry.Registry.Sort.
func SortDevices(mode registry.SortMode) error {
	r, err := Default()
	if err != nil {
		return err
	}
	return r.Sort(mode)
}

// Queue returns the execution queue of the logical device.
func Queue(device int) (driver.Queue, error) {
	r, err := Default()
	if err != nil {
		return nil, err
	}
	return r.Queue(device)
}

// ActiveQueue returns the execution queue of the active device.
func ActiveQueue() (driver.Queue, error) {
	r, err := Default()
	if err != nil {
		return nil, err
	}
	return r.ActiveQueue()
}

// Synchronize waits for the work queued on the logical device.
func Synchronize(device int) error {
	r, err := Default()
	if err != nil {
		return err
	}
	return r.Synchronize(device)
}

func library(kind driver.LibraryKind) (driver.LibraryContext, error) {
	r, err := Default()
	if err != nil {
		return nil, err
	}
	return r.Library(kind)
}

// BLASHandle returns the BLAS context of the active device.
func BLASHandle() (driver.LibraryContext, error) { return library(driver.LibraryBLAS) }

// SparseHandle returns the sparse matrix context of the active device.
func SparseHandle() (driver.LibraryContext, error) { return library(driver.LibrarySparse) }

// FFTPlanCache returns the FFT plan cache of the active device.
func FFTPlanCache() (driver.LibraryContext, error) { return library(driver.LibraryFFTPlanCache) }

// SolverHandle returns the dense solver context of the active device, after synchronizing its queue.
func SolverHandle() (driver.LibraryContext, error) {
	r, err := Default()
	if err != nil {
		return nil, err
	}
	return r.Solver()
}

// InteropManager returns the graphics interop context of the active device.
//
// The first call checks whether any device is capable of graphics interop, and logs a warning if not.
func InteropManager() (driver.LibraryContext, error) {
	r, err := Default()
	if err != nil {
		return nil, err
	}
	r.GraphicsInteropCapable()
	return r.Library(driver.LibraryGraphicsInterop)
}

// DeviceMemorySize returns the total memory in bytes of the logical device.
func DeviceMemorySize(device int) (uint64, error) {
	r, err := Default()
	if err != nil {
		return 0, err
	}
	return r.MemorySize(device)
}

// HostMemorySize returns the total physical memory of the host, in bytes. It doesn't require Initialize.
func HostMemorySize() (uint64, error) {
	return registry.HostMemorySize()
}

// Info returns a report of the platform and the devices, or the error message if not initialized.
func Info() string {
	r, err := Default()
	if err != nil {
		return err.Error()
	}
	return r.Info()
}

// MaxJITLen returns the maximum length of JIT-compiled expression trees, or registry.DefaultMaxJITLen if
// not initialized.
func MaxJITLen() int {
	r, err := Default()
	if err != nil {
		return registry.DefaultMaxJITLen
	}
	return r.MaxJITLen()
}

// SynchronousCalls returns whether every operation should wait for the device to finish.
func SynchronousCalls() bool {
	r, err := Default()
	if err != nil {
		return false
	}
	return r.SynchronousCalls()
}

// EvalFlag returns whether lazily built expressions are evaluated eagerly.
func EvalFlag() bool {
	r, err := Default()
	if err != nil {
		return true
	}
	return r.EvalFlag()
}

// SetEvalFlag sets the value returned by EvalFlag. It is a no-op if not initialized.
func SetEvalFlag(value bool) {
	if r, err := Default(); err == nil {
		r.SetEvalFlag(value)
	}
}
