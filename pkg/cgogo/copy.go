package cgogo

import (
	"unsafe"
)

// Copy a block of memory between two slices of possibly different types.
// To copy a Go string to C, cast the string to []byte.
func CopySlice[TDst any, TSrc any](dst []TDst, src []TSrc) {
	if len(dst) == 0 || len(src) == 0 {
		return
	}
	copy(AsBytes(dst), AsBytes(src))
}

// AsBytes returns the raw memory of 'src' as a byte slice, without copying
func AsBytes[T any](src []T) []byte {
	if len(src) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&src[0])), int(unsafe.Sizeof(src[0]))*len(src))
}
