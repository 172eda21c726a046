package hostbuf

import (
	"testing"
	"unsafe"

	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/stretchr/testify/require"
)

func TestAlignedAlloc(t *testing.T) {
	for _, size := range []int{1, 2, 3, 4, 5, 99, 100, 4095, 4096, 4097, 16384, 16385, 16386, 300000} {
		buf := PageAlignedAlloc(size)
		require.Equal(t, size, len(buf))
		require.Equal(t, size, cap(buf))
		require.Equal(t, 0, int(uintptr(unsafe.Pointer(&buf[0]))%pageSize))
	}
}

func TestRoundUpToPageSize(t *testing.T) {
	ps := PageSize()
	require.Equal(t, 0, RoundUpToPageSize(0))
	require.Equal(t, ps, RoundUpToPageSize(1))
	require.Equal(t, ps, RoundUpToPageSize(ps))
	require.Equal(t, 2*ps, RoundUpToPageSize(ps+1))
}

func TestImageCopyFrom(t *testing.T) {
	img := NewImage(2, 2)
	require.Len(t, img.Pixels, 12)

	// Source has 2 bytes of padding at the end of each row
	src := []byte{
		1, 2, 3, 4, 5, 6, 0, 0,
		7, 8, 9, 10, 11, 12,
	}
	require.NoError(t, img.CopyFrom(2, 2, 8, src))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, img.Pixels)

	require.ErrorIs(t, img.CopyFrom(3, 2, 9, make([]byte, 18)), nn.ErrInputSize)
	require.ErrorIs(t, img.CopyFrom(2, 2, 6, make([]byte, 11)), nn.ErrInputSize)
}

// Allocating a buffer for a 416x256 image, which is the resolution our detection models use
func BenchmarkAlignedAlloc(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = PageAlignedAlloc(416 * 256 * 3)
	}
}
