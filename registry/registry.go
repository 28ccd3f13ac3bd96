// Package registry implements the per-process device registry: it enumerates the devices of a driver, orders
// them, tracks the active device, and lazily creates (once) the per-device resources: execution queues and
// numeric library contexts.
//
// Devices are addressed by their logical index: the position in the current sort order. The native index,
// as assigned by the driver, is the stable identity of a device.
//
// Example:
//
//	reg, err := registry.Build(drv).WithSortMode(registry.SortThroughput).Done()
//	if err != nil { ... }
//	defer reg.Destroy()
//	blas, err := reg.Library(driver.LibraryBLAS)
package registry

import (
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gomlx/gpudevices/driver"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"
)

// MaxDevices is the maximum number of devices managed by a Registry. Devices beyond it are ignored.
const MaxDevices = 32

// Registry of the devices of one driver. It is safe for concurrent use.
//
// Create it with Build. There should be only one Registry per driver, typically one per process.
type Registry struct {
	drv    driver.Driver
	config Config

	// mu is the device-switch lock: it guards the fields below, and serializes the calls to the driver
	// that bind a device or create resources on the bound device.
	mu       sync.Mutex
	devices  []*Device
	sortMode SortMode
	bound    int // Native index bound in the driver, -1 if none.

	// closed is set by Destroy, under mu. It is read without locking by the fast paths that return cached
	// resources, so released handles are never handed out.
	closed atomic.Bool

	// probing is set until the first activation that fails in the driver: only during this first failed
	// activation unavailable devices are skipped, see SetActiveDevice.
	probing bool

	// active logical device: written under mu, read without locking.
	active atomic.Int64

	// Resources are indexed by native index, so sorting never moves them to another device.
	// The slices are allocated at Build and never resized.
	queues    []Slot[driver.Queue]
	libraries map[driver.LibraryKind][]Slot[driver.LibraryContext]

	interopOnce    sync.Once
	interopCapable bool

	evalFlag atomic.Bool
}

// BuildConfig is created with Build, and is a "builder pattern" to configure a new Registry.
//
// Once finished call BuildConfig.Done to enumerate the devices and get the Registry.
type BuildConfig struct {
	drv           driver.Driver
	sortMode      SortMode
	lookup        LookupEnvFn
	defaultDevice int
}

// Build starts the configuration of a new Registry for the given driver.
// Call BuildConfig.Done to create it.
func Build(drv driver.Driver) *BuildConfig {
	return &BuildConfig{drv: drv, sortMode: SortNone, defaultDevice: -1}
}

// WithSortMode sets the initial order of the devices. Default is SortNone, the driver's enumeration order.
//
// It returns itself (BuildConfig) to allow cascading configuration calls.
func (bc *BuildConfig) WithSortMode(mode SortMode) *BuildConfig {
	bc.sortMode = mode
	return bc
}

// WithLookupEnv sets the function used to read the configuration environment variables (see LoadConfig).
// Default is os.LookupEnv.
//
// It returns itself (BuildConfig) to allow cascading configuration calls.
func (bc *BuildConfig) WithLookupEnv(lookup LookupEnvFn) *BuildConfig {
	bc.lookup = lookup
	return bc
}

// WithDefaultDevice sets the logical device activated at start, overriding the DefaultDeviceEnv
// environment variable. Out-of-range values fall back to device 0.
//
// It returns itself (BuildConfig) to allow cascading configuration calls.
func (bc *BuildConfig) WithDefaultDevice(device int) *BuildConfig {
	bc.defaultDevice = device
	return bc
}

// Done enumerates the devices, orders them and activates the default device, creating its execution queue.
//
// It fails if the driver has no devices (ErrNoDevices), or if the default device can't be activated.
// The BuildConfig can only be used once.
func (bc *BuildConfig) Done() (*Registry, error) {
	if bc.drv == nil {
		return nil, errors.New("misconfigured registry.BuildConfig, or an attempt of using it more than once, which is not supported -- call registry.Build() again")
	}
	drv := bc.drv
	bc.drv = nil

	r := &Registry{
		drv:      drv,
		config:   LoadConfig(bc.lookup),
		sortMode: bc.sortMode,
		bound:    -1,
		probing:  true,
	}
	r.active.Store(-1)
	r.evalFlag.Store(true)
	if bc.defaultDevice >= 0 {
		r.config.DefaultDevice = bc.defaultDevice
	}
	if err := r.enumerate(); err != nil {
		return nil, err
	}
	sortDevices(r.devices, r.sortMode)

	numDevices := len(r.devices)
	r.queues = make([]Slot[driver.Queue], numDevices)
	r.libraries = make(map[driver.LibraryKind][]Slot[driver.LibraryContext])
	for _, kind := range driver.LibraryKindValues() {
		r.libraries[kind] = make([]Slot[driver.LibraryContext], numDevices)
	}

	device := r.config.DefaultDevice
	if device >= numDevices {
		klog.Warningf("Default device %d is out of range (%d devices), setting default device as 0", device, numDevices)
		device = 0
	} else if device < 0 {
		device = 0
	}
	if _, err := r.activate(device); err != nil {
		return nil, errors.WithMessagef(err, "failed to activate default device %d", device)
	}

	runtime.SetFinalizer(r, finalizeRegistry)
	return r, nil
}

// enumerate queries the driver for the devices and their properties, in native order.
func (r *Registry) enumerate() error {
	count, err := r.drv.DeviceCount()
	if err != nil {
		return errors.WithMessagef(err, "failed to query the number of devices")
	}
	if count <= 0 {
		return errors.WithStack(ErrNoDevices)
	}
	if count > MaxDevices {
		klog.Warningf("Driver reports %d devices, only the first %d will be used", count, MaxDevices)
		count = MaxDevices
	}
	r.devices = make([]*Device, 0, count)
	for nativeIndex := range count {
		props, err := r.drv.DeviceProperties(nativeIndex)
		if err != nil {
			return errors.WithMessagef(err, "failed to query properties of device %d", nativeIndex)
		}
		r.devices = append(r.devices, newDevice(nativeIndex, props))
	}
	return nil
}

func finalizeRegistry(r *Registry) {
	if err := r.Destroy(); err != nil {
		klog.Errorf("Registry.Destroy failed: %v", err)
	}
}

// Destroy releases every created queue and library context, and shuts down the driver.
// Further operations that need the driver or return its resources (queues, library contexts) fail with ErrClosed.
// Calling it more than once is a no-op.
//
// It is called automatically if the Registry is garbage collected.
func (r *Registry) Destroy() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return nil
	}
	r.closed.Store(true)
	runtime.SetFinalizer(r, nil)

	var err error
	for _, kind := range driver.LibraryKindValues() {
		slots := r.libraries[kind]
		for nativeIndex := range slots {
			err = multierr.Append(err, slots[nativeIndex].release(func(c driver.LibraryContext) error {
				return errors.WithMessagef(c.Close(), "failed to release %s context of device %d", kind, nativeIndex)
			}))
		}
	}
	for nativeIndex := range r.queues {
		err = multierr.Append(err, r.queues[nativeIndex].release(func(q driver.Queue) error {
			return errors.WithMessagef(q.Close(), "failed to release queue of device %d", nativeIndex)
		}))
	}
	err = multierr.Append(err, errors.WithMessage(r.drv.Shutdown(), "failed to shut down driver"))
	return err
}

// Driver used by the Registry.
func (r *Registry) Driver() driver.Driver {
	return r.drv
}

// Config read from the environment when the Registry was built.
func (r *Registry) Config() Config {
	return r.config
}

// MaxJITLen returns the configured maximum length of JIT-compiled expression trees.
func (r *Registry) MaxJITLen() int {
	return r.config.MaxJITLen
}

// SynchronousCalls returns whether every operation should wait for the device to finish.
func (r *Registry) SynchronousCalls() bool {
	return r.config.SynchronousCalls
}

// EvalFlag returns whether lazily built expressions are evaluated eagerly. Default is true.
func (r *Registry) EvalFlag() bool {
	return r.evalFlag.Load()
}

// SetEvalFlag sets the value returned by EvalFlag.
func (r *Registry) SetEvalFlag(value bool) {
	r.evalFlag.Store(value)
}

// DeviceCount returns the number of devices. It never changes.
func (r *Registry) DeviceCount() int {
	return len(r.queues)
}

// ActiveDevice returns the logical index of the active device.
//
// It doesn't lock: a concurrent SetActiveDevice may or may not be reflected.
func (r *Registry) ActiveDevice() int {
	return int(r.active.Load())
}

// checkOpen returns ErrClosed after Destroy. It doesn't require the lock.
func (r *Registry) checkOpen() error {
	if r.closed.Load() {
		return errors.WithStack(ErrClosed)
	}
	return nil
}

// checkDevice returns an error if device is not a valid logical index. It doesn't require the lock.
func (r *Registry) checkDevice(device int) error {
	if device < 0 || device >= r.DeviceCount() {
		return invalidDeviceError(device, r.DeviceCount())
	}
	return nil
}

// Device returns the record of the device with the given logical index.
func (r *Registry) Device(device int) (*Device, error) {
	if err := r.checkDevice(device); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.devices[device], nil
}

// Devices returns the devices in their current order: the position is the logical index.
func (r *Registry) Devices() []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.devices)
}

// NativeIndex returns the native index (the driver's) of the given logical device.
func (r *Registry) NativeIndex(device int) (int, error) {
	d, err := r.Device(device)
	if err != nil {
		return -1, err
	}
	return d.NativeIndex, nil
}

// LogicalIndex returns the logical index of the device with the given native index.
// It returns DeviceCount() if not found.
func (r *Registry) LogicalIndex(nativeIndex int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logicalIndexLocked(nativeIndex)
}

func (r *Registry) logicalIndexLocked(nativeIndex int) int {
	for device, d := range r.devices {
		if d.NativeIndex == nativeIndex {
			return device
		}
	}
	return len(r.devices)
}

// MemorySize returns the total memory in bytes of the given logical device.
func (r *Registry) MemorySize(device int) (uint64, error) {
	d, err := r.Device(device)
	if err != nil {
		return 0, err
	}
	return d.Props.TotalMemory, nil
}

// SortMode returns the current order of the devices.
func (r *Registry) SortMode() SortMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortMode
}

// Sort reorders the devices with a stable sort, using the comparator of the given mode.
//
// The active device stays the same physical device: ActiveDevice returns its new logical index.
// Resources already created remain attached to their devices.
func (r *Registry) Sort(mode SortMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOpen(); err != nil {
		return err
	}
	activeNative := -1
	if active := r.ActiveDevice(); active >= 0 {
		activeNative = r.devices[active].NativeIndex
	}
	sortDevices(r.devices, mode)
	r.sortMode = mode
	if activeNative >= 0 {
		r.active.Store(int64(r.logicalIndexLocked(activeNative)))
	}
	return nil
}
