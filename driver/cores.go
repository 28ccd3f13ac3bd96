package driver

// computeVersion packs major and minor versions as 0xMm, the key of coresPerMultiprocessor.
func computeVersion(major, minor int) int {
	return major<<4 + minor
}

// coresPerMultiprocessor maps the compute capability version (see computeVersion) to the number
// of cores in each multiprocessor. Values from the CUDA samples' helper_cuda.h.
var coresPerMultiprocessor = map[int]int{
	0x10: 8,
	0x11: 8,
	0x12: 8,
	0x13: 8,
	0x20: 32,
	0x21: 48,
	0x30: 192,
	0x32: 192,
	0x35: 192,
	0x37: 192,
	0x50: 128,
	0x52: 128,
	0x53: 128,
	// GP100 (6.0) has 64 cores per multiprocessor and the other Pascal chips (6.1) have 128: tables that
	// list them the other way around rank 6.1 devices below 6.0 ones.
	0x60: 64,
	0x61: 128,
	0x62: 128,
	0x70: 64,
	0x72: 64,
	0x75: 64,
	0x80: 64,
	0x86: 128,
	0x87: 128,
	0x89: 128,
	0x90: 128,
}

// CoresPerMultiprocessor returns the number of cores per multiprocessor for the given compute capability,
// or 0 if the version is unknown.
func CoresPerMultiprocessor(major, minor int) int {
	if major < 0 || minor < 0 || minor > 0xF {
		return 0
	}
	return coresPerMultiprocessor[computeVersion(major, minor)]
}
