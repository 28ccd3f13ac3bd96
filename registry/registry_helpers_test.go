package registry

import (
	"testing"

	"github.com/gomlx/gpudevices/driver"
	"github.com/gomlx/gpudevices/driver/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

const gigabyte = 1024 * megabyte

// envLookup returns a LookupEnvFn backed by a map, so tests don't depend on the process environment.
func envLookup(env map[string]string) LookupEnvFn {
	return func(key string) (string, bool) {
		value, found := env[key]
		return value, found
	}
}

// threeDevices returns a mock driver with three devices of increasing compute capability.
func threeDevices() *mock.Driver {
	return mock.New(
		mock.Device("Tesla K40c", 3, 5, 12*gigabyte, 15, 745_000),
		mock.Device("GeForce GTX 1080", 6, 1, 8*gigabyte, 20, 1_733_000),
		mock.Device("NVIDIA GeForce RTX 3090", 8, 6, 24*gigabyte, 82, 1_695_000),
	)
}

// newTestRegistry builds a Registry on drv with an empty environment.
func newTestRegistry(t *testing.T, drv driver.Driver) *Registry {
	r, err := Build(drv).WithLookupEnv(envLookup(nil)).Done()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Destroy() })
	return r
}

// deviceNames returns the names of the devices in logical order.
func deviceNames(r *Registry) []string {
	var names []string
	for _, d := range r.Devices() {
		names = append(names, d.Props.Name)
	}
	return names
}
