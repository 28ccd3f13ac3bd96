package registry

import (
	"os"
	"strconv"
	"strings"

	"k8s.io/klog/v2"
)

const (
	// DefaultDeviceEnv is the environment variable with the logical device activated when the Registry is built.
	// Invalid or out-of-range values are ignored (with a warning) and device 0 is used.
	DefaultDeviceEnv = "GPUDEVICES_DEFAULT_DEVICE"

	// MaxJITLenEnv is the environment variable with the maximum length of JIT-compiled expression trees.
	MaxJITLenEnv = "GPUDEVICES_MAX_JIT_LEN"

	// SynchronousCallsEnv enables synchronous calls (every operation waits for the device) if set to "1".
	SynchronousCallsEnv = "GPUDEVICES_SYNCHRONOUS_CALLS"

	// DefaultMaxJITLen is used if MaxJITLenEnv is not set.
	DefaultMaxJITLen = 100
)

// LookupEnvFn is the signature of os.LookupEnv, used to inject the environment.
type LookupEnvFn func(key string) (string, bool)

// Config holds the configuration read from the environment. It is read once, when the Registry is built.
type Config struct {
	// DefaultDevice is the logical device to activate at start, or -1 if not set.
	DefaultDevice int

	// MaxJITLen is the maximum length of JIT-compiled expression trees.
	MaxJITLen int

	// SynchronousCalls makes every operation wait for the device to finish.
	SynchronousCalls bool
}

// LoadConfig reads the configuration using lookup. If lookup is nil, os.LookupEnv is used.
//
// Invalid values are logged and replaced by their defaults: configuration never fails.
func LoadConfig(lookup LookupEnvFn) Config {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := Config{DefaultDevice: -1, MaxJITLen: DefaultMaxJITLen}

	if value, found := lookup(DefaultDeviceEnv); found && strings.TrimSpace(value) != "" {
		device, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || device < 0 {
			klog.Warningf("%s=%q is not a valid device number, using device 0", DefaultDeviceEnv, value)
			device = 0
		}
		cfg.DefaultDevice = device
	}

	if value, found := lookup(MaxJITLenEnv); found && strings.TrimSpace(value) != "" {
		length, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || length <= 0 {
			klog.Warningf("%s=%q is not a valid length, using the default %d", MaxJITLenEnv, value, DefaultMaxJITLen)
		} else {
			cfg.MaxJITLen = length
		}
	}

	value, _ := lookup(SynchronousCallsEnv)
	cfg.SynchronousCalls = value == "1"
	return cfg
}
