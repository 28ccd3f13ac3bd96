package registry

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/gomlx/gpudevices/driver/mock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func names(devices []*Device) []string {
	var result []string
	for _, d := range devices {
		result = append(result, d.Props.Name)
	}
	return result
}

func TestSortDevicesTwoDevices(t *testing.T) {
	a := newDevice(0, mock.Device("A", 3, 0, 4*gigabyte, 8, 1_000_000))
	b := newDevice(1, mock.Device("B", 6, 0, 8*gigabyte, 8, 1_000_000))
	devices := []*Device{a, b}

	for _, tc := range []struct {
		mode SortMode
		want []string
	}{
		{SortCompute, []string{"B", "A"}},
		{SortMemory, []string{"B", "A"}},
		{SortThroughput, []string{"A", "B"}}, // 192 cores per multiprocessor in 3.0, only 64 in 6.0.
		{SortNone, []string{"A", "B"}},
	} {
		sortDevices(devices, tc.mode)
		if diff := cmp.Diff(tc.want, names(devices)); diff != "" {
			t.Errorf("sortDevices(%s) mismatch (-want +got):\n%s", tc.mode, diff)
		}
	}
}

func TestSortUnknownComputeLast(t *testing.T) {
	unknown := newDevice(0, mock.Device("Unknown", 42, 0, 8*gigabyte, 80, 2_000_000))
	known := newDevice(1, mock.Device("Known", 3, 0, 8*gigabyte, 1, 500_000))
	require.Equal(t, int64(0), unknown.Throughput)
	devices := []*Device{unknown, known}
	sortDevices(devices, SortThroughput)
	require.Equal(t, []string{"Known", "Unknown"}, names(devices))
}

func TestSortTieBreaks(t *testing.T) {
	// Same memory: throughput decides.
	slow := newDevice(0, mock.Device("Slow", 7, 5, 16*gigabyte, 40, 1_500_000))
	fast := newDevice(1, mock.Device("Fast", 7, 5, 16*gigabyte, 68, 1_500_000))
	devices := []*Device{slow, fast}
	sortDevices(devices, SortMemory)
	require.Equal(t, []string{"Fast", "Slow"}, names(devices))

	// Same compute version: throughput decides, before memory.
	big := newDevice(2, mock.Device("Big", 7, 5, 48*gigabyte, 40, 1_500_000))
	devices = []*Device{big, fast}
	sortDevices(devices, SortCompute)
	require.Equal(t, []string{"Fast", "Big"}, names(devices))

	// Identical devices: higher native index first.
	twin0 := newDevice(0, mock.Device("Twin", 8, 0, 40*gigabyte, 108, 1_410_000))
	twin1 := newDevice(1, mock.Device("Twin", 8, 0, 40*gigabyte, 108, 1_410_000))
	for _, mode := range []SortMode{SortMemory, SortThroughput, SortCompute} {
		devices = []*Device{twin0, twin1}
		sortDevices(devices, mode)
		require.Equal(t, []int{1, 0}, []int{devices[0].NativeIndex, devices[1].NativeIndex}, "mode=%s", mode)
	}
}

// randomDevices returns n devices with properties drawn from small ranges, so ties are frequent.
func randomDevices(rng *rand.Rand, n int) []*Device {
	devices := make([]*Device, n)
	for ii := range devices {
		major := 5 + rng.IntN(4)
		props := mock.Device(fmt.Sprintf("gpu-%d", ii), major, rng.IntN(2)*2, uint64(1+rng.IntN(3))*8*gigabyte,
			10*(1+rng.IntN(3)), 1_000_000*(1+rng.IntN(2)))
		devices[ii] = newDevice(ii, props)
	}
	return devices
}

func TestSortProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	for range 20 {
		devices := randomDevices(rng, 1+rng.IntN(10))
		for _, mode := range SortModeValues() {
			comparator := mode.Comparator()
			sorted := slices.Clone(devices)
			sortDevices(sorted, mode)

			// Non-increasing: every adjacent pair is in order, and distinct devices never compare equal.
			for ii := 1; ii < len(sorted); ii++ {
				require.Negative(t, comparator(sorted[ii-1], sorted[ii]), "mode=%s, %s before %s", mode, sorted[ii-1], sorted[ii])
				require.Positive(t, comparator(sorted[ii], sorted[ii-1]))
			}

			// Idempotent.
			again := slices.Clone(sorted)
			sortDevices(again, mode)
			require.Equal(t, sorted, again)

			// A permutation: native indices map back to every original device.
			natives := make([]int, len(sorted))
			for ii, d := range sorted {
				natives[ii] = d.NativeIndex
			}
			slices.Sort(natives)
			for ii := range natives {
				require.Equal(t, ii, natives[ii])
			}
		}
	}
}

func TestSortModeString(t *testing.T) {
	require.Equal(t, "Throughput", SortThroughput.String())
	mode, err := SortModeString("Memory")
	require.NoError(t, err)
	require.Equal(t, SortMemory, mode)
	_, err = SortModeString("fastest")
	require.Error(t, err)
	require.True(t, SortCompute.IsASortMode())
	require.False(t, SortMode(17).IsASortMode())

	// Unknown modes sort like SortNone.
	devices := []*Device{
		newDevice(1, mock.Device("B", 6, 0, 8*gigabyte, 8, 1_000_000)),
		newDevice(0, mock.Device("A", 3, 0, 4*gigabyte, 8, 1_000_000)),
	}
	sortDevices(devices, SortMode(17))
	require.Equal(t, []string{"A", "B"}, names(devices))
}
