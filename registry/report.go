package registry

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/gomlx/gpudevices/driver"
	"k8s.io/klog/v2"
)

const megabyte = 1024 * 1024

// platformName returns the name of the platform reported by the driver, or "Unknown".
func (r *Registry) platformName() string {
	if v, ok := r.drv.(driver.Versioner); ok {
		return v.PlatformName()
	}
	return "Unknown"
}

// DeviceInfo returns a one line description of the given logical device, e.g.:
//
//	[0] Tesla K40c, 11520 MB, CUDA Compute 3.5
//
// The active device has its index between brackets, the others between dashes ("-1-").
// Memory is rounded up to the next megabyte.
func (r *Registry) DeviceInfo(device int) (string, error) {
	d, err := r.Device(device)
	if err != nil {
		return "", err
	}
	return r.deviceInfo(device, d), nil
}

func (r *Registry) deviceInfo(device int, d *Device) string {
	id := fmt.Sprintf("-%d-", device)
	if r.ActiveDevice() == device {
		id = fmt.Sprintf("[%d]", device)
	}
	memoryMB := d.Props.TotalMemory / megabyte
	if d.Props.TotalMemory%megabyte != 0 {
		memoryMB++
	}
	return fmt.Sprintf("%s %s, %d MB, %s Compute %d.%d",
		id, d.Props.Name, memoryMB, r.platformName(), d.Props.Major, d.Props.Minor)
}

// PlatformInfo returns a description of the platform and driver versions, if the driver implements
// driver.Versioner, e.g.: "Platform: CUDA Toolkit 12.4, Driver: 550.54.14".
func (r *Registry) PlatformInfo() string {
	v, ok := r.drv.(driver.Versioner)
	if !ok {
		return "Platform: Unknown"
	}
	var sb strings.Builder
	sb.WriteString("Platform: " + v.PlatformName())
	if runtimeVersion, err := v.RuntimeVersion(); err != nil {
		klog.Warningf("Failed to retrieve runtime version: %v", err)
	} else {
		sb.WriteString(" Toolkit " + runtimeVersion)
	}
	if driverVersion, err := v.DriverVersion(); err != nil {
		klog.Warningf("Failed to retrieve driver version: %v", err)
	} else if driverVersion != "" {
		sb.WriteString(", Driver: " + driverVersion)
	}
	return sb.String()
}

// systemName returns e.g. "64-bit Linux".
func systemName() string {
	osName := runtime.GOOS
	switch runtime.GOOS {
	case "linux":
		osName = "Linux"
	case "windows":
		osName = "Windows"
	case "darwin":
		osName = "Mac OSX"
	}
	return strconv.Itoa(strconv.IntSize) + "-bit " + osName
}

// Info returns a multi-line report: platform, driver and one line per device (see DeviceInfo).
func (r *Registry) Info() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "gpudevices (%s, %s)\n", r.platformName(), systemName())
	sb.WriteString(r.PlatformInfo())
	sb.WriteString("\n")
	for device, d := range r.Devices() {
		sb.WriteString(r.deviceInfo(device, d))
		sb.WriteString("\n")
	}
	return sb.String()
}

// DeviceProp holds short descriptive strings of a device, suitable for file names or identifiers.
type DeviceProp struct {
	// Name of the device with spaces replaced by "_", truncated at the first trailing or double space.
	Name string

	// Platform name, e.g. "CUDA".
	Platform string

	// Toolkit version, e.g. "v12.4".
	Toolkit string

	// Compute capability, e.g. "8.6".
	Compute string
}

// ActiveDeviceProp returns the DeviceProp of the active device.
func (r *Registry) ActiveDeviceProp() (DeviceProp, error) {
	d, err := r.Device(r.ActiveDevice())
	if err != nil {
		return DeviceProp{}, err
	}
	prop := DeviceProp{
		Name:     sanitizeName(d.Props.Name),
		Platform: r.platformName(),
		Compute:  fmt.Sprintf("%d.%d", d.Props.Major, d.Props.Minor),
	}
	if v, ok := r.drv.(driver.Versioner); ok {
		if runtimeVersion, err := v.RuntimeVersion(); err == nil {
			prop.Toolkit = "v" + runtimeVersion
		}
	}
	return prop, nil
}

// maxNameLen is the maximum length of DeviceProp.Name.
const maxNameLen = 63

// sanitizeName replaces spaces by "_", and truncates at the first space followed by another space or by
// the end of the name.
func sanitizeName(name string) string {
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == ' ' {
			if i+1 == len(name) || name[i+1] == ' ' {
				break
			}
			c = '_'
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
