package registry

import (
	"fmt"

	"github.com/gomlx/gpudevices/driver"
)

// Device is the immutable snapshot of one physical device, taken when the Registry is built.
type Device struct {
	// NativeIndex is the index assigned by the driver. It is the stable identity of the device,
	// independent of the Registry's sort order.
	NativeIndex int

	// Props are the static properties reported by the driver.
	Props driver.Properties

	// Throughput is the derived compute throughput score, see Score.
	Throughput int64
}

// newDevice creates the Device record and computes its throughput score.
func newDevice(nativeIndex int, props driver.Properties) *Device {
	return &Device{NativeIndex: nativeIndex, Props: props, Throughput: Score(props)}
}

// String implements fmt.Stringer.
func (d *Device) String() string {
	return fmt.Sprintf("Device[native=%d, %q, compute=%d.%d, memory=%d, score=%d]",
		d.NativeIndex, d.Props.Name, d.Props.Major, d.Props.Minor, d.Props.TotalMemory, d.Throughput)
}

// Score returns the compute throughput score: multiprocessors x cores per multiprocessor x clock rate.
//
// Unknown compute capabilities score 0: they are ranked last by SortThroughput, but are not an error.
func Score(props driver.Properties) int64 {
	return int64(props.MultiprocessorCount) * int64(driver.CoresPerMultiprocessor(props.Major, props.Minor)) * int64(props.ClockRate)
}
