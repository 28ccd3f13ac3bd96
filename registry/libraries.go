package registry

import (
	"github.com/gomlx/gpudevices/driver"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Library returns the numeric library context of the given kind for the active device, creating it on first use.
func (r *Registry) Library(kind driver.LibraryKind) (driver.LibraryContext, error) {
	return r.LibraryFor(kind, r.ActiveDevice())
}

// LibraryFor returns the numeric library context of the given kind for the given logical device, creating it on
// first use.
//
// The context is created with the device bound in the driver, which is bound back to the active device afterwards.
// It's up to the caller to use the context while the corresponding device is active.
//
// Since binding a device is process-wide state of the driver, creations are serialized by the device-switch
// lock, also for different devices or kinds, and they are serialized with SetActiveDevice and Sort.
// Only the first call for each kind and device pays for it: later calls read the cached context without locking.
func (r *Registry) LibraryFor(kind driver.LibraryKind, device int) (driver.LibraryContext, error) {
	slots, found := r.libraries[kind]
	if !found {
		return nil, errors.Errorf("unknown library kind %s", kind)
	}
	nativeIndex, err := r.NativeIndex(device)
	if err != nil {
		return nil, err
	}
	slot := &slots[nativeIndex]
	if c, ok := slot.Get(); ok {
		if err := r.checkOpen(); err != nil {
			return nil, err
		}
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	return slot.GetOrCreate(func() (driver.LibraryContext, error) {
		c, err := r.createOnDevice(nativeIndex, kind)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to create %s context for device %d", kind, device)
		}
		return c, nil
	})
}

// createOnDevice creates the library context with nativeIndex bound. It must be called with r.mu locked.
func (r *Registry) createOnDevice(nativeIndex int, kind driver.LibraryKind) (driver.LibraryContext, error) {
	if r.bound != nativeIndex {
		defer r.restoreBinding(r.ActiveDevice())
		if err := r.bind(nativeIndex); err != nil {
			return nil, err
		}
	}
	return r.drv.NewLibraryContext(kind)
}

// Solver returns the dense solver context of the active device.
//
// It synchronizes the active device's queue before returning: solver routines are only reliable when
// used after the pending work on the queue is done.
func (r *Registry) Solver() (driver.LibraryContext, error) {
	c, err := r.Library(driver.LibrarySolver)
	if err != nil {
		return nil, err
	}
	if err = r.Synchronize(r.ActiveDevice()); err != nil {
		return nil, err
	}
	return c, nil
}

// GraphicsInteropCapable returns whether any device supports graphics interoperability.
//
// The driver is only asked once (if it implements driver.InteropChecker, otherwise it's assumed capable), and
// a warning is logged if not capable.
func (r *Registry) GraphicsInteropCapable() bool {
	r.interopOnce.Do(func() {
		r.interopCapable = true
		checker, ok := r.drv.(driver.InteropChecker)
		if !ok {
			return
		}
		capable, err := checker.GraphicsInteropCapable()
		if err != nil {
			klog.Warningf("Failed to check graphics interop capability, assuming capable: %v", err)
			return
		}
		if !capable {
			klog.Warningf("No device capable of graphics interop, it will use a CPU fallback. " +
				"This may happen if all devices are in TCC mode and/or not connected to a display.")
		}
		r.interopCapable = capable
	})
	return r.interopCapable
}
