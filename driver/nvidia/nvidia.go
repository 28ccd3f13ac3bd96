//go:build linux

// Package nvidia implements a driver.Driver for NVIDIA GPUs using NVML (github.com/NVIDIA/go-nvml).
//
// NVML is a management library: it enumerates the devices, reports their properties and compute mode, but
// it doesn't run kernels. The queues and library contexts created by this driver are host-side handles that
// track which device they belong to; devices in an exclusive compute mode already used by another process,
// or in the prohibited compute mode, are reported as driver.ErrDeviceUnavailable when creating a queue.
package nvidia

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/gomlx/gpudevices/driver"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Driver for NVIDIA GPUs. Create it with New.
type Driver struct {
	lib nvml.Interface

	mu      sync.Mutex
	devices []nvml.Device // Indexed by native index.
	bound   int
	closed  bool
}

var (
	_ driver.Driver         = (*Driver)(nil)
	_ driver.Versioner      = (*Driver)(nil)
	_ driver.InteropChecker = (*Driver)(nil)
)

// New initializes NVML and returns the driver.
//
// It fails if no NVIDIA GPU is detected (see HasNvidiaGPU) or if NVML can't be initialized. The NVML library
// is searched in LibrarySearchPaths; if not found there, the system's default dynamic library loading applies.
func New() (*Driver, error) {
	if !HasNvidiaGPU() {
		return nil, errors.New("no NVIDIA GPU found in the system")
	}
	var options []nvml.LibraryOption
	if libraryPath, found := FindLibrary(LibrarySearchPaths()); found {
		klog.V(1).Infof("Using NVML library from %s", libraryPath)
		options = append(options, nvml.WithLibraryPath(libraryPath))
	}
	return NewWithLibrary(nvml.New(options...))
}

// NewWithLibrary initializes the given NVML interface and returns the driver.
func NewWithLibrary(lib nvml.Interface) (*Driver, error) {
	if ret := lib.Init(); ret != nvml.SUCCESS {
		return nil, errors.Errorf("failed to initialize NVML: %v", ret)
	}
	d := &Driver{lib: lib, bound: -1}
	count, ret := lib.DeviceGetCount()
	if ret != nvml.SUCCESS {
		_ = lib.Shutdown()
		return nil, errors.Errorf("failed to get the number of NVML devices: %v", ret)
	}
	d.devices = make([]nvml.Device, count)
	for ii := range count {
		d.devices[ii], ret = lib.DeviceGetHandleByIndex(ii)
		if ret != nvml.SUCCESS {
			_ = lib.Shutdown()
			return nil, errors.Errorf("failed to get NVML handle for device %d: %v", ii, ret)
		}
	}
	return d, nil
}

// device returns the NVML handle for the native index.
func (d *Driver) device(nativeIndex int) (nvml.Device, error) {
	if nativeIndex < 0 || nativeIndex >= len(d.devices) {
		return nil, errors.Errorf("invalid NVIDIA device %d, only %d devices available", nativeIndex, len(d.devices))
	}
	return d.devices[nativeIndex], nil
}

// DeviceCount implements driver.Driver.
func (d *Driver) DeviceCount() (int, error) {
	return len(d.devices), nil
}

// DeviceProperties implements driver.Driver.
func (d *Driver) DeviceProperties(nativeIndex int) (driver.Properties, error) {
	var props driver.Properties
	dev, err := d.device(nativeIndex)
	if err != nil {
		return props, err
	}
	var ret nvml.Return
	if props.Name, ret = dev.GetName(); ret != nvml.SUCCESS {
		return props, errors.Errorf("error getting name of device %d: %v", nativeIndex, ret)
	}
	if props.Major, props.Minor, ret = dev.GetCudaComputeCapability(); ret != nvml.SUCCESS {
		return props, errors.Errorf("error getting compute capability of device %d: %v", nativeIndex, ret)
	}
	memory, ret := dev.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return props, errors.Errorf("error getting memory info of device %d: %v", nativeIndex, ret)
	}
	props.TotalMemory = memory.Total

	// NVML reports clocks in MHz.
	clockMHz, ret := dev.GetMaxClockInfo(nvml.CLOCK_SM)
	if ret != nvml.SUCCESS {
		klog.Warningf("Failed to get SM clock of device %d, throughput score will be 0: %v", nativeIndex, ret)
	}
	props.ClockRate = int(clockMHz) * 1000
	props.MultiprocessorCount = multiprocessorCount(dev, props.Major, props.Minor)
	return props, nil
}

// multiprocessorCount uses the device attributes if available (MIG and recent devices), otherwise derives it from
// the number of cores.
func multiprocessorCount(dev nvml.Device, major, minor int) int {
	if attributes, ret := dev.GetAttributes(); ret == nvml.SUCCESS && attributes.MultiprocessorCount > 0 {
		return int(attributes.MultiprocessorCount)
	}
	cores, ret := dev.GetNumGpuCores()
	perMultiprocessor := driver.CoresPerMultiprocessor(major, minor)
	if ret != nvml.SUCCESS || perMultiprocessor == 0 {
		klog.V(1).Infof("Can't find the number of multiprocessors of device with compute capability %d.%d", major, minor)
		return 0
	}
	return cores / perMultiprocessor
}

// SetDevice implements driver.Driver.
func (d *Driver) SetDevice(nativeIndex int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("NVIDIA driver already shut down")
	}
	if _, err := d.device(nativeIndex); err != nil {
		return err
	}
	d.bound = nativeIndex
	return nil
}

// checkAvailable returns driver.ErrDeviceUnavailable if the device can't be used by this process
// because of its compute mode.
func (d *Driver) checkAvailable(nativeIndex int) error {
	dev := d.devices[nativeIndex]
	mode, ret := dev.GetComputeMode()
	if ret != nvml.SUCCESS {
		return errors.Errorf("error getting compute mode of device %d: %v", nativeIndex, ret)
	}
	switch mode {
	case nvml.COMPUTEMODE_PROHIBITED:
		return errors.Wrapf(driver.ErrDeviceUnavailable, "device %d is in prohibited compute mode", nativeIndex)
	case nvml.COMPUTEMODE_EXCLUSIVE_PROCESS, nvml.COMPUTEMODE_EXCLUSIVE_THREAD:
		processes, ret := dev.GetComputeRunningProcesses()
		if ret != nvml.SUCCESS {
			return errors.Errorf("error getting running processes of device %d: %v", nativeIndex, ret)
		}
		pid := uint32(os.Getpid())
		for _, p := range processes {
			if p.Pid != pid {
				return errors.Wrapf(driver.ErrDeviceUnavailable, "device %d is in exclusive compute mode and used by process %d",
					nativeIndex, p.Pid)
			}
		}
	}
	return nil
}

// NewQueue implements driver.Driver.
func (d *Driver) NewQueue() (driver.Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bound < 0 {
		return nil, errors.New("no NVIDIA device bound")
	}
	if err := d.checkAvailable(d.bound); err != nil {
		return nil, err
	}
	return &queue{nativeIndex: d.bound}, nil
}

// NewLibraryContext implements driver.Driver.
func (d *Driver) NewLibraryContext(kind driver.LibraryKind) (driver.LibraryContext, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bound < 0 {
		return nil, errors.New("no NVIDIA device bound")
	}
	return &libraryContext{kind: kind, nativeIndex: d.bound}, nil
}

// Shutdown implements driver.Driver.
func (d *Driver) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if ret := d.lib.Shutdown(); ret != nvml.SUCCESS {
		return errors.Errorf("error shutting down NVML: %v", ret)
	}
	return nil
}

// PlatformName implements driver.Versioner.
func (d *Driver) PlatformName() string { return "CUDA" }

// DriverVersion implements driver.Versioner.
func (d *Driver) DriverVersion() (string, error) {
	version, ret := d.lib.SystemGetDriverVersion()
	if ret != nvml.SUCCESS {
		return "", errors.Errorf("error getting driver version: %v", ret)
	}
	return version, nil
}

// RuntimeVersion implements driver.Versioner. It returns the CUDA version supported by the driver, e.g. "12.4".
func (d *Driver) RuntimeVersion() (string, error) {
	version, ret := d.lib.SystemGetCudaDriverVersion()
	if ret != nvml.SUCCESS {
		return "", errors.Errorf("error getting CUDA driver version: %v", ret)
	}
	return formatCUDAVersion(version), nil
}

// formatCUDAVersion converts versions as encoded by CUDA (1000*major + 10*minor) to "major.minor".
func formatCUDAVersion(version int) string {
	return fmt.Sprintf("%d.%d", version/1000, (version%1000)/10)
}

// GraphicsInteropCapable implements driver.InteropChecker: it is capable if any device has a display enabled.
func (d *Driver) GraphicsInteropCapable() (bool, error) {
	for ii, dev := range d.devices {
		mode, ret := dev.GetDisplayMode()
		if ret == nvml.ERROR_NOT_SUPPORTED {
			continue
		}
		if ret != nvml.SUCCESS {
			return false, errors.Errorf("error getting display mode of device %d: %v", ii, ret)
		}
		if mode == nvml.FEATURE_ENABLED {
			return true, nil
		}
	}
	return false, nil
}

// queue is a host-side execution queue handle: NVML doesn't execute work, so there is nothing to wait for.
type queue struct {
	nativeIndex int
	closed      atomic.Bool
}

func (q *queue) Synchronize() error {
	if q.closed.Load() {
		return errors.Errorf("queue of device %d used after Close", q.nativeIndex)
	}
	return nil
}

func (q *queue) Close() error {
	q.closed.Store(true)
	return nil
}

type libraryContext struct {
	kind        driver.LibraryKind
	nativeIndex int
}

func (c *libraryContext) Kind() driver.LibraryKind { return c.kind }

func (c *libraryContext) Close() error { return nil }
