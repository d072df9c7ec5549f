// Package hwy provides portable vector operations with runtime tier dispatch.
//
// Kernels are written once against a descriptor (Desc) that fixes the lane
// count of a vector tier: 128, 256 or 512 bits, or scalar. The same loop body
// then serves every tier, and a dispatch table picks the widest tier the
// detected hardware supports.
//
// Basic usage:
//
//	d := hwy.NewDesc[float32](hwy.DispatchAVX2, true)
//
//	// Load data into vectors
//	a := d.Load(data1)
//	b := d.Load(data2)
//
//	// Perform vector operations
//	result := hwy.Add(a, b)
//
//	// Store results
//	hwy.Store(result, output)
package hwy

// Floats is a constraint for floating-point types.
type Floats interface {
	~float32 | ~float64
}

// MaxVecLanes is the largest lane count of any supported tier
// (512 bits of float32).
const MaxVecLanes = 16

// Vec is a portable vector handle. It holds up to MaxVecLanes elements in a
// fixed array so that vectors live in registers or on the stack, never on
// the heap.
//
// Vec instances should not be created directly; use Desc.Load, Desc.Set or
// Desc.Zero instead.
type Vec[T Floats] struct {
	n    int
	data [MaxVecLanes]T
}

// NumLanes returns the number of lanes (elements) in this vector.
func (v Vec[T]) NumLanes() int {
	return v.n
}

// Lane returns element i of the vector.
func (v Vec[T]) Lane(i int) T {
	return v.data[i]
}

// Store writes the vector's data to a slice.
// This is the method form of the hwy.Store function.
func (v Vec[T]) Store(dst []T) {
	Store(v, dst)
}
