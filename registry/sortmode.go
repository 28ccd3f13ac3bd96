package registry

import (
	"cmp"
	"math"
	"slices"
)

// SortMode selects the criterion used to order the devices in a Registry.
type SortMode int

//go:generate go tool enumer -type=SortMode -trimprefix=Sort sortmode.go

const (
	// SortNone keeps the driver's enumeration order (native index ascending): logical device 0 is the
	// driver's device 0. This is the default.
	SortNone SortMode = iota

	// SortMemory orders by total memory, then throughput score, then compute capability.
	SortMemory

	// SortThroughput orders by throughput score, then total memory, then compute capability.
	SortThroughput

	// SortCompute orders by compute capability, then throughput score, then total memory.
	SortCompute
)

// deviceKey extracts one field used for ordering.
type deviceKey func(d *Device) int64

var (
	keyMajor      deviceKey = func(d *Device) int64 { return int64(d.Props.Major) }
	keyMinor      deviceKey = func(d *Device) int64 { return int64(d.Props.Minor) }
	keyThroughput deviceKey = func(d *Device) int64 { return d.Throughput }
	keyNative     deviceKey = func(d *Device) int64 { return int64(d.NativeIndex) }
	keyMemory     deviceKey = func(d *Device) int64 { return int64(min(d.Props.TotalMemory, math.MaxInt64)) }
)

// descending returns a comparator (for slices.SortStableFunc) that orders devices by the given keys
// in priority order, larger values first.
//
// The native index is always the final key (also descending), so distinct devices never compare equal.
func descending(keys ...deviceKey) func(a, b *Device) int {
	return func(a, b *Device) int {
		for _, key := range keys {
			if c := cmp.Compare(key(b), key(a)); c != 0 {
				return c
			}
		}
		return cmp.Compare(keyNative(b), keyNative(a))
	}
}

// byNativeIndex keeps the enumeration order of the driver.
func byNativeIndex(a, b *Device) int {
	return cmp.Compare(keyNative(a), keyNative(b))
}

var (
	byCompute    = descending(keyMajor, keyMinor, keyThroughput, keyMemory)
	byThroughput = descending(keyThroughput, keyMemory, keyMajor, keyMinor)
	byMemory     = descending(keyMemory, keyThroughput, keyMajor, keyMinor)
)

// Comparator returns the comparator used by the sort mode: it returns a negative number if a comes
// before b. Unknown modes fall back to SortNone.
func (m SortMode) Comparator() func(a, b *Device) int {
	switch m {
	case SortMemory:
		return byMemory
	case SortThroughput:
		return byThroughput
	case SortCompute:
		return byCompute
	default:
		return byNativeIndex
	}
}

// sortDevices sorts the devices in place with a stable sort.
func sortDevices(devices []*Device, mode SortMode) {
	slices.SortStableFunc(devices, mode.Comparator())
}
