//go:build linux

package nvidia

import (
	"os"
	"testing"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	nvmlmock "github.com/NVIDIA/go-nvml/pkg/nvml/mock"
	"github.com/gomlx/gpudevices/driver"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// newMockDevice returns an NVML device with compute capability 8.6, 24GB, 82 multiprocessors at 1.7GHz.
func newMockDevice(name string, computeMode nvml.ComputeMode) *nvmlmock.Device {
	return &nvmlmock.Device{
		GetNameFunc: func() (string, nvml.Return) { return name, nvml.SUCCESS },
		GetCudaComputeCapabilityFunc: func() (int, int, nvml.Return) {
			return 8, 6, nvml.SUCCESS
		},
		GetMemoryInfoFunc: func() (nvml.Memory, nvml.Return) {
			return nvml.Memory{Total: 24 << 30}, nvml.SUCCESS
		},
		GetMaxClockInfoFunc: func(clockType nvml.ClockType) (uint32, nvml.Return) {
			return 1700, nvml.SUCCESS
		},
		GetAttributesFunc: func() (nvml.DeviceAttributes, nvml.Return) {
			return nvml.DeviceAttributes{}, nvml.ERROR_NOT_SUPPORTED
		},
		GetNumGpuCoresFunc: func() (int, nvml.Return) { return 82 * 128, nvml.SUCCESS },
		GetComputeModeFunc: func() (nvml.ComputeMode, nvml.Return) { return computeMode, nvml.SUCCESS },
		GetComputeRunningProcessesFunc: func() ([]nvml.ProcessInfo, nvml.Return) {
			return []nvml.ProcessInfo{{Pid: uint32(os.Getpid()) + 1}}, nvml.SUCCESS
		},
		GetDisplayModeFunc: func() (nvml.EnableState, nvml.Return) { return nvml.FEATURE_DISABLED, nvml.SUCCESS },
	}
}

func newMockLibrary(devices ...nvml.Device) *nvmlmock.Interface {
	return &nvmlmock.Interface{
		InitFunc:           func() nvml.Return { return nvml.SUCCESS },
		ShutdownFunc:       func() nvml.Return { return nvml.SUCCESS },
		DeviceGetCountFunc: func() (int, nvml.Return) { return len(devices), nvml.SUCCESS },
		DeviceGetHandleByIndexFunc: func(n int) (nvml.Device, nvml.Return) {
			return devices[n], nvml.SUCCESS
		},
		SystemGetDriverVersionFunc:     func() (string, nvml.Return) { return "550.54.15", nvml.SUCCESS },
		SystemGetCudaDriverVersionFunc: func() (int, nvml.Return) { return 12040, nvml.SUCCESS },
	}
}

func TestDriver(t *testing.T) {
	lib := newMockLibrary(
		newMockDevice("NVIDIA GeForce RTX 3090", nvml.COMPUTEMODE_DEFAULT),
		newMockDevice("NVIDIA A10", nvml.COMPUTEMODE_EXCLUSIVE_PROCESS),
		newMockDevice("NVIDIA A10", nvml.COMPUTEMODE_PROHIBITED))
	drv, err := NewWithLibrary(lib)
	require.NoError(t, err)
	require.Len(t, lib.InitCalls(), 1)

	count, err := drv.DeviceCount()
	require.NoError(t, err)
	require.Equal(t, 3, count)

	props, err := drv.DeviceProperties(0)
	require.NoError(t, err)
	require.Equal(t, driver.Properties{
		Name:                "NVIDIA GeForce RTX 3090",
		Major:               8,
		Minor:               6,
		TotalMemory:         24 << 30,
		MultiprocessorCount: 82,
		ClockRate:           1_700_000,
	}, props)
	_, err = drv.DeviceProperties(3)
	require.Error(t, err)

	// Nothing bound yet.
	_, err = drv.NewQueue()
	require.Error(t, err)

	require.NoError(t, drv.SetDevice(0))
	q, err := drv.NewQueue()
	require.NoError(t, err)
	require.NoError(t, q.Synchronize())
	require.NoError(t, q.Close())
	require.Error(t, q.Synchronize())

	c, err := drv.NewLibraryContext(driver.LibraryBLAS)
	require.NoError(t, err)
	require.Equal(t, driver.LibraryBLAS, c.Kind())
	require.NoError(t, c.Close())

	// Exclusive mode used by another process, and prohibited mode.
	for _, nativeIndex := range []int{1, 2} {
		require.NoError(t, drv.SetDevice(nativeIndex))
		_, err = drv.NewQueue()
		require.Error(t, err)
		require.True(t, errors.Is(err, driver.ErrDeviceUnavailable), "device %d: %v", nativeIndex, err)
	}
	require.Error(t, drv.SetDevice(-1))

	require.Equal(t, "CUDA", drv.PlatformName())
	version, err := drv.DriverVersion()
	require.NoError(t, err)
	require.Equal(t, "550.54.15", version)
	version, err = drv.RuntimeVersion()
	require.NoError(t, err)
	require.Equal(t, "12.4", version)

	capable, err := drv.GraphicsInteropCapable()
	require.NoError(t, err)
	require.False(t, capable)

	require.NoError(t, drv.Shutdown())
	require.NoError(t, drv.Shutdown())
	require.Len(t, lib.ShutdownCalls(), 1)
	require.Error(t, drv.SetDevice(0))
}

func TestMultiprocessorCountFromAttributes(t *testing.T) {
	dev := newMockDevice("NVIDIA H100", nvml.COMPUTEMODE_DEFAULT)
	dev.GetAttributesFunc = func() (nvml.DeviceAttributes, nvml.Return) {
		return nvml.DeviceAttributes{MultiprocessorCount: 132}, nvml.SUCCESS
	}
	require.Equal(t, 132, multiprocessorCount(dev, 9, 0))

	// Unknown compute capability and no attributes.
	dev = newMockDevice("Future GPU", nvml.COMPUTEMODE_DEFAULT)
	require.Equal(t, 0, multiprocessorCount(dev, 42, 0))
}

func TestGraphicsInteropCapable(t *testing.T) {
	withDisplay := newMockDevice("NVIDIA GeForce RTX 4090", nvml.COMPUTEMODE_DEFAULT)
	withDisplay.GetDisplayModeFunc = func() (nvml.EnableState, nvml.Return) { return nvml.FEATURE_ENABLED, nvml.SUCCESS }
	notSupported := newMockDevice("NVIDIA A100", nvml.COMPUTEMODE_DEFAULT)
	notSupported.GetDisplayModeFunc = func() (nvml.EnableState, nvml.Return) {
		return nvml.FEATURE_DISABLED, nvml.ERROR_NOT_SUPPORTED
	}
	drv, err := NewWithLibrary(newMockLibrary(notSupported, withDisplay))
	require.NoError(t, err)
	capable, err := drv.GraphicsInteropCapable()
	require.NoError(t, err)
	require.True(t, capable)
}

func TestNewWithLibraryFailures(t *testing.T) {
	lib := newMockLibrary()
	lib.InitFunc = func() nvml.Return { return nvml.ERROR_DRIVER_NOT_LOADED }
	_, err := NewWithLibrary(lib)
	require.Error(t, err)
	require.Empty(t, lib.ShutdownCalls())

	lib = newMockLibrary()
	lib.DeviceGetCountFunc = func() (int, nvml.Return) { return 0, nvml.ERROR_UNKNOWN }
	_, err = NewWithLibrary(lib)
	require.Error(t, err)
	require.Len(t, lib.ShutdownCalls(), 1)
}

func TestFormatCUDAVersion(t *testing.T) {
	require.Equal(t, "12.4", formatCUDAVersion(12040))
	require.Equal(t, "11.8", formatCUDAVersion(11080))
}
