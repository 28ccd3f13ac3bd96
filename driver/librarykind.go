package driver

// LibraryKind enumerates the auxiliary numeric library contexts managed per device.
type LibraryKind int

//go:generate go tool enumer -type=LibraryKind -trimprefix=Library librarykind.go

const (
	// LibraryBLAS is a dense linear algebra (BLAS) handle.
	LibraryBLAS LibraryKind = iota

	// LibrarySolver is a dense solver handle.
	LibrarySolver

	// LibrarySparse is a sparse linear algebra handle.
	LibrarySparse

	// LibraryFFTPlanCache is a cache of FFT plans.
	LibraryFFTPlanCache

	// LibraryGraphicsInterop is a graphics interoperability resource manager.
	LibraryGraphicsInterop
)
