// gpuinfo prints the platform and the GPU devices found, in the selected order.
//
// Usage:
//
//	gpuinfo -sort=Throughput -device=1
//
// With -mock it uses a fixed set of fake devices, useful to check the sort orders without a GPU.
package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/gomlx/gpudevices"
	"github.com/gomlx/gpudevices/driver"
	"github.com/gomlx/gpudevices/driver/mock"
	"github.com/gomlx/gpudevices/registry"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagSort = flag.String("sort", registry.SortNone.String(),
		fmt.Sprintf("Order of the devices, one of: %s", strings.Join(registry.SortModeStrings(), ", ")))
	flagDevice = flag.Int("device", -1, "Logical device to activate after sorting. -1 keeps the default device.")
	flagMock   = flag.Bool("mock", false, "Use fake devices instead of the NVIDIA driver.")
	flagProps  = flag.Bool("props", false, "Also print the short properties of the active device.")
)

// mockDevices used with -mock.
func mockDevices() *mock.Driver {
	const gigabyte = 1 << 30
	return mock.New(
		mock.Device("Tesla K40c", 3, 5, 12*gigabyte, 15, 745_000),
		mock.Device("GeForce GTX 1080", 6, 1, 8*gigabyte, 20, 1_733_000),
		mock.Device("NVIDIA GeForce RTX 3090", 8, 6, 24*gigabyte, 82, 1_695_000),
		mock.Device("NVIDIA A100-SXM4-40GB", 8, 0, 40*gigabyte, 108, 1_410_000),
	)
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	mode, err := registry.SortModeString(*flagSort)
	if err != nil {
		klog.Fatalf("Invalid -sort=%q: %v", *flagSort, err)
	}
	var drv driver.Driver
	if *flagMock {
		drv = mockDevices()
	}
	must.M(gpudevices.Initialize(drv, mode))
	defer func() {
		if err := gpudevices.Shutdown(); err != nil {
			klog.Errorf("Shutdown failed: %+v", err)
		}
	}()

	if *flagDevice >= 0 {
		if _, err := gpudevices.SetActiveDevice(*flagDevice); err != nil {
			klog.Fatalf("Failed to activate device %d: %+v", *flagDevice, err)
		}
	}
	fmt.Print(gpudevices.Info())

	if *flagProps {
		must.M(printActiveDeviceProp())
	}
}

func printActiveDeviceProp() error {
	r, err := gpudevices.Default()
	if err != nil {
		return err
	}
	prop, err := r.ActiveDeviceProp()
	if err != nil {
		return errors.WithMessage(err, "failed to get properties of the active device")
	}
	fmt.Printf("\nActive device: %s (%s %s, compute %s)\n", prop.Name, prop.Platform, prop.Toolkit, prop.Compute)
	if hostMemory, err := gpudevices.HostMemorySize(); err == nil {
		fmt.Printf("Host memory: %d MB\n", hostMemory/(1<<20))
	}
	return nil
}
