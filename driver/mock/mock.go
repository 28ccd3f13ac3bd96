// Package mock implements a scriptable in-memory driver.Driver.
//
// It is used by tests and by `gpuinfo -mock`: devices are given up front, and failures can be injected per
// native index for SetDevice and NewQueue, either once or permanently.
package mock

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gomlx/gpudevices/driver"
	"github.com/pkg/errors"
)

// Driver is a fake driver.Driver. Create it with New.
type Driver struct {
	mu        sync.Mutex
	devices   []driver.Properties
	bound     int
	shutdown  bool
	nextQueue int

	bindFailures   map[int]*failure
	queueFailures  map[int]*failure
	libraryFailure map[driver.LibraryKind]*failure

	interopCapable bool
	interopChecks  atomic.Int32

	// Counters, read with the corresponding methods.
	setDeviceCalls atomic.Int32
	queueCalls     atomic.Int32
	libraryCalls   atomic.Int32
}

type failure struct {
	err       error
	remaining int // <0 means permanent.
}

// consume returns the injected error, if any is still pending.
func (f *failure) consume() error {
	if f == nil || f.remaining == 0 {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return f.err
}

var _ driver.Driver = (*Driver)(nil)
var _ driver.Versioner = (*Driver)(nil)
var _ driver.InteropChecker = (*Driver)(nil)

// New returns a mock driver with the given devices: their position is their native index.
func New(devices ...driver.Properties) *Driver {
	return &Driver{
		devices:        devices,
		bound:          -1,
		bindFailures:   make(map[int]*failure),
		queueFailures:  make(map[int]*failure),
		libraryFailure: make(map[driver.LibraryKind]*failure),
		interopCapable: true,
	}
}

// Device is a shortcut to create driver.Properties.
func Device(name string, major, minor int, memoryBytes uint64, multiprocessors, clockRate int) driver.Properties {
	return driver.Properties{
		Name:                name,
		Major:               major,
		Minor:               minor,
		TotalMemory:         memoryBytes,
		MultiprocessorCount: multiprocessors,
		ClockRate:           clockRate,
	}
}

// FailSetDevice makes the next `times` calls to SetDevice(nativeIndex) fail with err. If times < 0 it fails forever.
func (d *Driver) FailSetDevice(nativeIndex int, err error, times int) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bindFailures[nativeIndex] = &failure{err: err, remaining: times}
	return d
}

// FailQueue makes the next `times` queue creations on nativeIndex fail with err. If times < 0 it fails forever.
func (d *Driver) FailQueue(nativeIndex int, err error, times int) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queueFailures[nativeIndex] = &failure{err: err, remaining: times}
	return d
}

// FailLibrary makes the next `times` creations of a library context of the given kind fail with err.
func (d *Driver) FailLibrary(kind driver.LibraryKind, err error, times int) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.libraryFailure[kind] = &failure{err: err, remaining: times}
	return d
}

// SetInteropCapable configures the answer of GraphicsInteropCapable.
func (d *Driver) SetInteropCapable(capable bool) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interopCapable = capable
	return d
}

// DeviceCount implements driver.Driver.
func (d *Driver) DeviceCount() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown {
		return 0, errors.New("mock driver already shutdown")
	}
	return len(d.devices), nil
}

// DeviceProperties implements driver.Driver.
func (d *Driver) DeviceProperties(nativeIndex int) (driver.Properties, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if nativeIndex < 0 || nativeIndex >= len(d.devices) {
		return driver.Properties{}, errors.Errorf("mock driver: invalid native device %d", nativeIndex)
	}
	return d.devices[nativeIndex], nil
}

// SetDevice implements driver.Driver.
func (d *Driver) SetDevice(nativeIndex int) error {
	d.setDeviceCalls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if nativeIndex < 0 || nativeIndex >= len(d.devices) {
		return errors.Errorf("mock driver: invalid native device %d", nativeIndex)
	}
	if err := d.bindFailures[nativeIndex].consume(); err != nil {
		return err
	}
	d.bound = nativeIndex
	return nil
}

// Bound returns the native index of the currently bound device, or -1 if none was bound yet.
func (d *Driver) Bound() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bound
}

// NewQueue implements driver.Driver.
func (d *Driver) NewQueue() (driver.Queue, error) {
	d.queueCalls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bound < 0 {
		return nil, errors.New("mock driver: no device bound")
	}
	if err := d.queueFailures[d.bound].consume(); err != nil {
		return nil, err
	}
	d.nextQueue++
	return &Queue{NativeIndex: d.bound, ID: d.nextQueue}, nil
}

// NewLibraryContext implements driver.Driver.
func (d *Driver) NewLibraryContext(kind driver.LibraryKind) (driver.LibraryContext, error) {
	d.libraryCalls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bound < 0 {
		return nil, errors.New("mock driver: no device bound")
	}
	if err := d.libraryFailure[kind].consume(); err != nil {
		return nil, err
	}
	return &LibraryContext{kind: kind, NativeIndex: d.bound}, nil
}

// Shutdown implements driver.Driver.
func (d *Driver) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown {
		return errors.New("mock driver shutdown twice")
	}
	d.shutdown = true
	return nil
}

// IsShutdown returns whether Shutdown was called.
func (d *Driver) IsShutdown() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown
}

// DriverVersion implements driver.Versioner.
func (d *Driver) DriverVersion() (string, error) { return "mock-1.0", nil }

// RuntimeVersion implements driver.Versioner.
func (d *Driver) RuntimeVersion() (string, error) { return "0.0", nil }

// PlatformName implements driver.Versioner.
func (d *Driver) PlatformName() string { return "Mock" }

// GraphicsInteropCapable implements driver.InteropChecker.
func (d *Driver) GraphicsInteropCapable() (bool, error) {
	d.interopChecks.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interopCapable, nil
}

// SetDeviceCalls returns the number of calls to SetDevice so far.
func (d *Driver) SetDeviceCalls() int { return int(d.setDeviceCalls.Load()) }

// QueueCalls returns the number of calls to NewQueue so far, including failed ones.
func (d *Driver) QueueCalls() int { return int(d.queueCalls.Load()) }

// LibraryCalls returns the number of calls to NewLibraryContext so far, including failed ones.
func (d *Driver) LibraryCalls() int { return int(d.libraryCalls.Load()) }

// InteropChecks returns the number of calls to GraphicsInteropCapable so far.
func (d *Driver) InteropChecks() int { return int(d.interopChecks.Load()) }

// Queue is the driver.Queue created by the mock driver.
type Queue struct {
	NativeIndex, ID int
	syncs           atomic.Int32
	closed          atomic.Bool
}

// Synchronize implements driver.Queue.
func (q *Queue) Synchronize() error {
	if q.closed.Load() {
		return errors.Errorf("mock queue %d synchronized after Close", q.ID)
	}
	q.syncs.Add(1)
	return nil
}

// Syncs returns the number of calls to Synchronize.
func (q *Queue) Syncs() int { return int(q.syncs.Load()) }

// Close implements driver.Queue.
func (q *Queue) Close() error {
	if q.closed.Swap(true) {
		return errors.Errorf("mock queue %d closed twice", q.ID)
	}
	return nil
}

// Closed returns whether Close was called.
func (q *Queue) Closed() bool { return q.closed.Load() }

// String implements fmt.Stringer.
func (q *Queue) String() string {
	return fmt.Sprintf("mock.Queue[#%d, device=%d]", q.ID, q.NativeIndex)
}

// LibraryContext is the driver.LibraryContext created by the mock driver.
type LibraryContext struct {
	kind        driver.LibraryKind
	NativeIndex int
	closed      atomic.Bool
}

// Kind implements driver.LibraryContext.
func (c *LibraryContext) Kind() driver.LibraryKind { return c.kind }

// Close implements driver.LibraryContext.
func (c *LibraryContext) Close() error {
	if c.closed.Swap(true) {
		return errors.Errorf("mock %s context closed twice", c.kind)
	}
	return nil
}

// Closed returns whether Close was called.
func (c *LibraryContext) Closed() bool { return c.closed.Load() }
