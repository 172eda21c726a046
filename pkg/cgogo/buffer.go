package cgogo

// #include <stdlib.h>
// #include <string.h>
import "C"

import (
	"unsafe"
)

// Buffer is a block of C heap memory which can be handed to C code that outlives the
// call that produced it. Go memory can't be used for that, because cgo forbids C from
// retaining Go pointers.
// The buffer grows as needed, and is reused between calls to Store.
type Buffer struct {
	ptr unsafe.Pointer
	cap int
}

// Store copies the raw bytes of 'src' into the buffer and returns a pointer to the C memory.
// The pointer is valid until the next call to Store or Free.
// If src is empty, the buffer still returns a valid (non-nil) pointer.
func Store[T any](b *Buffer, src []T) unsafe.Pointer {
	raw := AsBytes(src)
	size := max(len(raw), 1)
	if size > b.cap {
		C.free(b.ptr)
		b.ptr = C.malloc(C.size_t(size))
		if b.ptr == nil {
			panic("cgogo: out of memory")
		}
		b.cap = size
	}
	if len(raw) != 0 {
		C.memcpy(b.ptr, unsafe.Pointer(&raw[0]), C.size_t(len(raw)))
	}
	return b.ptr
}

// Pointer returns the current C memory, or nil if nothing has been stored
func (b *Buffer) Pointer() unsafe.Pointer {
	return b.ptr
}

// Free releases the C memory
func (b *Buffer) Free() {
	C.free(b.ptr)
	b.ptr = nil
	b.cap = 0
}

// StringTable holds NUL terminated copies of Go strings in C memory
type StringTable struct {
	strs []*C.char
}

// Set replaces the contents of the table with copies of 'strs'
func (t *StringTable) Set(strs []string) {
	t.Free()
	for _, s := range strs {
		t.strs = append(t.strs, C.CString(s))
	}
}

// Get returns the C string at index i, or nil if i is out of range
func (t *StringTable) Get(i int) unsafe.Pointer {
	if i < 0 || i >= len(t.strs) {
		return nil
	}
	return unsafe.Pointer(t.strs[i])
}

func (t *StringTable) Len() int {
	return len(t.strs)
}

// Free releases all strings
func (t *StringTable) Free() {
	for _, s := range t.strs {
		C.free(unsafe.Pointer(s))
	}
	t.strs = nil
}
