// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package align provides vector-aligned memory for kernel buffers.
//
// Go does not expose an aligned allocator, so Alloc over-allocates a byte
// slice by the alignment and slices off the first aligned address. The
// backing array stays reachable through the Buffer, which keeps the aligned
// view valid until Free.
//
// Usage:
//
//	err := align.With(n*4, 64, func(b *align.Buffer) error {
//	    xs := b.Float32s()
//	    // ... use xs with aligned vector loads
//	    return nil
//	})
package align

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	"github.com/go-highway/hyperopt/hwy"
)

// DefaultAlignment is one cache line, which also covers 512-bit vectors.
const DefaultAlignment = 64

// MinAlignment is the width of the narrowest vector tier.
const MinAlignment = 16

var (
	// ErrAllocFailed is returned when the requested region cannot be allocated.
	ErrAllocFailed = errors.New("align: allocation failed")

	// ErrInvalidAlignment is returned for alignments that are not a power of
	// two or are narrower than MinAlignment.
	ErrInvalidAlignment = errors.New("align: invalid alignment")
)

// Buffer is an aligned memory region owned by the caller. Release it with
// Free exactly once; the view must not be used afterwards.
type Buffer struct {
	raw       []byte
	mem       []byte
	ptr       unsafe.Pointer
	alignment int
	class     int // size class when the buffer belongs to a Pool, else -1
}

// Alloc returns a buffer of size bytes whose first byte sits at an address
// divisible by alignment. Size 0 yields a valid, aligned, empty buffer.
func Alloc(size, alignment int) (*Buffer, error) {
	if err := checkAlignment(alignment); err != nil {
		return nil, err
	}
	if size < 0 || size > math.MaxInt-alignment {
		return nil, fmt.Errorf("%w: size %d", ErrAllocFailed, size)
	}
	raw, err := makeBytes(size + alignment)
	if err != nil {
		return nil, err
	}
	off := offsetFor(uintptr(unsafe.Pointer(&raw[0])), alignment)
	return &Buffer{
		raw:       raw,
		mem:       raw[off : off+size : off+size],
		ptr:       unsafe.Pointer(&raw[off]),
		alignment: alignment,
		class:     -1,
	}, nil
}

// With allocates a buffer, passes it to fn and frees it on every exit path,
// including a panic in fn.
func With(size, alignment int, fn func(*Buffer) error) error {
	b, err := Alloc(size, alignment)
	if err != nil {
		return err
	}
	defer b.Free()
	return fn(b)
}

// makeBytes converts the runtime's makeslice panic into ErrAllocFailed.
func makeBytes(n int) (raw []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = fmt.Errorf("%w: %v", ErrAllocFailed, r)
		}
	}()
	return make([]byte, n), nil
}

func checkAlignment(alignment int) error {
	if alignment < MinAlignment || alignment&(alignment-1) != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAlignment, alignment)
	}
	return nil
}

func offsetFor(addr uintptr, alignment int) int {
	mod := int(addr % uintptr(alignment))
	if mod == 0 {
		return 0
	}
	return alignment - mod
}

// Free releases the buffer. Calling it on nil or on an already freed
// buffer does nothing.
func (b *Buffer) Free() {
	if b == nil {
		return
	}
	b.raw, b.mem, b.ptr = nil, nil, nil
}

// Freed reports whether Free has been called.
func (b *Buffer) Freed() bool {
	return b == nil || b.ptr == nil
}

// Len returns the usable size in bytes.
func (b *Buffer) Len() int {
	return len(b.mem)
}

// Alignment returns the alignment the buffer was allocated with.
func (b *Buffer) Alignment() int {
	return b.alignment
}

// Ptr returns the aligned start address, for handing to low-level code.
func (b *Buffer) Ptr() unsafe.Pointer {
	return b.ptr
}

// Bytes returns the aligned byte view.
func (b *Buffer) Bytes() []byte {
	return b.mem
}

// Float32s returns the buffer viewed as float32 elements.
func (b *Buffer) Float32s() []float32 {
	return As[float32](b)
}

// Float64s returns the buffer viewed as float64 elements.
func (b *Buffer) Float64s() []float64 {
	return As[float64](b)
}

// As views the buffer as a slice of T. Trailing bytes that do not fill a
// whole element are not part of the view.
func As[T hwy.Floats](b *Buffer) []T {
	if b.ptr == nil {
		return nil
	}
	var zero T
	n := len(b.mem) / int(unsafe.Sizeof(zero))
	return unsafe.Slice((*T)(b.ptr), n)
}

// IsAligned reports whether the first element of s sits on an alignment
// boundary. Empty slices are considered aligned.
func IsAligned[T hwy.Floats](s []T, alignment int) bool {
	if len(s) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&s[0]))%uintptr(alignment) == 0
}

// IsAlignedPtr reports whether p is divisible by alignment.
func IsAlignedPtr(p unsafe.Pointer, alignment int) bool {
	return uintptr(p)%uintptr(alignment) == 0
}
