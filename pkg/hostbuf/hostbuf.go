package hostbuf

import (
	"fmt"
	"unsafe"

	"github.com/cyclopcam/ovplugin/pkg/nn"
	"golang.org/x/sys/unix"
)

// Package hostbuf allocates image buffers for feeding a detector.
// Runtimes that wrap host memory as a tensor without copying (eg OpenVINO) are
// fastest when that memory is page aligned.

// System page size. Read at startup.
var pageSize uintptr

func init() {
	pageSize = uintptr(unix.Getpagesize())
}

// Returns the system page size
func PageSize() int {
	return int(pageSize)
}

// Round size up to the nearest page size
func RoundUpToPageSize(size int) int {
	return int((uintptr(size) + pageSize - 1) & ^(pageSize - 1))
}

// Allocate 'size' bytes of memory, aligned to a page boundary.
func PageAlignedAlloc(size int) []byte {
	raw := make([]byte, size+int(pageSize))
	offset := pageSize - (uintptr(unsafe.Pointer(&raw[0])) % pageSize)
	if offset == pageSize {
		offset = 0
	}
	return raw[offset : int(offset)+size : int(offset)+size]
}

// Image is an NHWC uint8 pixel buffer of a fixed size
type Image struct {
	Width  int
	Height int
	Pixels []byte // Width * Height * 3 bytes, page aligned
}

// NewImage allocates a zeroed, page aligned image
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pixels: PageAlignedAlloc(width * height * nn.InputChannels),
	}
}

// Stride in bytes of one row
func (m *Image) Stride() int {
	return m.Width * nn.InputChannels
}

// CopyFrom copies an RGB image of the same dimensions, with an arbitrary row stride, into 'm'
func (m *Image) CopyFrom(width, height, stride int, pixels []byte) error {
	if width != m.Width || height != m.Height {
		return fmt.Errorf("%w: image is %v x %v, but buffer is %v x %v", nn.ErrInputSize, width, height, m.Width, m.Height)
	}
	rowBytes := m.Stride()
	if stride < rowBytes || len(pixels) < stride*(height-1)+rowBytes {
		return fmt.Errorf("%w: pixel buffer too small", nn.ErrInputSize)
	}
	for y := 0; y < height; y++ {
		copy(m.Pixels[y*rowBytes:(y+1)*rowBytes], pixels[y*stride:y*stride+rowBytes])
	}
	return nil
}
