package registry

import (
	"github.com/gomlx/gpudevices/driver"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// SetActiveDevice makes the given logical device the active one, binding it in the driver and creating its
// execution queue if it doesn't exist yet. It returns the previously active logical device.
//
// On failure the active device is unchanged. Out-of-range devices return an error wrapping ErrInvalidDevice.
//
// Exclusive compute mode: the first activation of the Registry that fails in the driver (the default device
// activated by Build counts too) is special. If it fails with driver.ErrDeviceUnavailable, the following
// devices (in logical order) are tried until one succeeds, and that one becomes the active device.
// Any later activation hitting driver.ErrDeviceUnavailable simply fails.
func (r *Registry) SetActiveDevice(device int) (previous int, err error) {
	return r.activate(device)
}

// SetActiveNativeDevice activates the device with the given native index. See SetActiveDevice.
//
// The native index is resolved to its logical index under the same lock as the activation, so a concurrent
// Sort can't make it activate another device.
func (r *Registry) SetActiveNativeDevice(nativeIndex int) (previous int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activateLocked(r.logicalIndexLocked(nativeIndex))
}

func (r *Registry) activate(device int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activateLocked(device)
}

func (r *Registry) activateLocked(device int) (int, error) {
	previous := r.ActiveDevice()
	if err := r.checkOpen(); err != nil {
		return previous, err
	}
	numDevices := len(r.devices)
	if device < 0 || device >= numDevices {
		return previous, invalidDeviceError(device, numDevices)
	}

	err := r.bindAndCreateQueue(device)
	if err == nil {
		r.active.Store(int64(device))
		return previous, nil
	}
	probing := r.probing
	r.probing = false
	if !probing || !errors.Is(err, driver.ErrDeviceUnavailable) {
		r.restoreBinding(previous)
		return previous, err
	}

	// First failed activation: skip unavailable devices.
	for device++; device < numDevices; device++ {
		klog.V(1).Infof("Device %d is unavailable, trying device %d", device-1, device)
		err = r.bindAndCreateQueue(device)
		if err == nil {
			r.active.Store(int64(device))
			return previous, nil
		}
		if !errors.Is(err, driver.ErrDeviceUnavailable) {
			break
		}
	}
	r.restoreBinding(previous)
	return previous, errors.WithMessagef(err, "no available device found")
}

// bindAndCreateQueue binds the logical device in the driver and makes sure its queue exists.
// It must be called with r.mu locked.
func (r *Registry) bindAndCreateQueue(device int) error {
	nativeIndex := r.devices[device].NativeIndex
	if err := r.bind(nativeIndex); err != nil {
		return errors.WithMessagef(err, "failed to set device %d (native %d)", device, nativeIndex)
	}
	if _, err := r.queues[nativeIndex].GetOrCreate(r.drv.NewQueue); err != nil {
		return errors.WithMessagef(err, "failed to create execution queue for device %d (native %d)", device, nativeIndex)
	}
	return nil
}

// bind the native device in the driver, if not already bound. It must be called with r.mu locked.
func (r *Registry) bind(nativeIndex int) error {
	if r.bound == nativeIndex {
		return nil
	}
	if err := r.drv.SetDevice(nativeIndex); err != nil {
		return err
	}
	r.bound = nativeIndex
	return nil
}

// restoreBinding binds again the given logical device (typically the active one) after a failed activation.
// Errors are only logged: the caller is already returning the original failure.
func (r *Registry) restoreBinding(device int) {
	if device < 0 {
		return
	}
	nativeIndex := r.devices[device].NativeIndex
	if err := r.bind(nativeIndex); err != nil {
		klog.Errorf("Failed to bind again active device %d (native %d): %v", device, nativeIndex, err)
	}
}

// Queue returns the execution queue of the given logical device.
//
// If the queue doesn't exist yet, the device is temporarily activated to create it, and the previously active
// device is activated back.
func (r *Registry) Queue(device int) (driver.Queue, error) {
	if err := r.checkDevice(device); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	slot := &r.queues[r.devices[device].NativeIndex]
	if q, ok := slot.Get(); ok {
		return q, nil
	}
	previous, err := r.activateLocked(device)
	if err != nil {
		return nil, err
	}
	q, ok := slot.Get()
	if previous >= 0 && previous != r.ActiveDevice() {
		if _, err = r.activateLocked(previous); err != nil {
			return nil, errors.WithMessagef(err, "failed to activate back device %d", previous)
		}
	}
	if !ok {
		return nil, errors.Errorf("execution queue for device %d could not be created", device)
	}
	return q, nil
}

// ActiveQueue returns the execution queue of the active device.
func (r *Registry) ActiveQueue() (driver.Queue, error) {
	return r.Queue(r.ActiveDevice())
}

// Synchronize waits for all the work queued on the given logical device.
func (r *Registry) Synchronize(device int) error {
	q, err := r.Queue(device)
	if err != nil {
		return err
	}
	return errors.WithMessagef(q.Synchronize(), "failed to synchronize device %d", device)
}

// SynchronizeAll waits, concurrently, for all the work queued on every device that has an execution queue.
func (r *Registry) SynchronizeAll() error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	var g errgroup.Group
	for nativeIndex := range r.queues {
		q, ok := r.queues[nativeIndex].Get()
		if !ok {
			continue
		}
		g.Go(func() error {
			return errors.WithMessagef(q.Synchronize(), "failed to synchronize device with native index %d", nativeIndex)
		})
	}
	return g.Wait()
}
