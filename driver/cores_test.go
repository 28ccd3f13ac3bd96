package driver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoresPerMultiprocessor(t *testing.T) {
	for _, tc := range []struct{ major, minor, want int }{
		{1, 0, 8},
		{2, 1, 48},
		{3, 5, 192},
		{6, 0, 64},
		{6, 1, 128},
		{7, 5, 64},
		{8, 6, 128},
		{9, 0, 128},
		{4, 0, 0},
		{42, 0, 0},
		{-1, 0, 0},
		{3, 16, 0},
	} {
		require.Equal(t, tc.want, CoresPerMultiprocessor(tc.major, tc.minor), "compute capability %d.%d", tc.major, tc.minor)
	}
}

func TestLibraryKindString(t *testing.T) {
	require.Equal(t, "BLAS", LibraryBLAS.String())
	kind, err := LibraryKindString("FFTPlanCache")
	require.NoError(t, err)
	require.Equal(t, LibraryFFTPlanCache, kind)
	require.Len(t, LibraryKindValues(), 5)
}
