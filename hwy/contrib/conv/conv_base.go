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

// Package conv provides single-channel valid-mode 2D convolution and
// pooling over row-major images.
//
// Valid mode means no implicit padding: a window only visits positions
// where it lies fully inside the input. For an input extent in, window
// extent k and stride s the output extent is (in-k)/s + 1.
//
// Shapes are checked up front with Geometry.Validate; the kernels
// themselves panic on slices shorter than the geometry requires.
package conv

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-highway/hyperopt/hwy"
	"github.com/go-highway/hyperopt/hwy/contrib/align"
)

var (
	// ErrWindowTooLarge is returned when a kernel or pooling window does
	// not fit inside the input.
	ErrWindowTooLarge = errors.New("conv: window larger than input")

	// ErrInvalidStride is returned for a stride below 1.
	ErrInvalidStride = errors.New("conv: stride must be at least 1")
)

// OutputSize returns the valid-mode output extent along one dimension.
func OutputSize(in, window, stride int) (int, error) {
	if stride < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidStride, stride)
	}
	if window < 1 || window > in {
		return 0, fmt.Errorf("%w: window %d, input %d", ErrWindowTooLarge, window, in)
	}
	return (in-window)/stride + 1, nil
}

// Geometry describes one convolution or pooling call.
type Geometry struct {
	InH, InW         int // input rows, columns
	KH, KW           int // kernel or window rows, columns
	StrideH, StrideW int
}

// Square returns the geometry of an n x n input with a k x k window and
// the same stride in both dimensions.
func Square(n, k, stride int) Geometry {
	return Geometry{InH: n, InW: n, KH: k, KW: k, StrideH: stride, StrideW: stride}
}

// Validate checks the geometry and returns the output shape.
func (g Geometry) Validate() (outH, outW int, err error) {
	if outH, err = OutputSize(g.InH, g.KH, g.StrideH); err != nil {
		return 0, 0, fmt.Errorf("rows: %w", err)
	}
	if outW, err = OutputSize(g.InW, g.KW, g.StrideW); err != nil {
		return 0, 0, fmt.Errorf("columns: %w", err)
	}
	return outH, outW, nil
}

// OutLen returns outH*outW, or 0 for an invalid geometry.
func (g Geometry) OutLen() int {
	oh, ow, err := g.Validate()
	if err != nil {
		return 0
	}
	return oh * ow
}

func (g Geometry) mustValidate(input, kernel, output int) (int, int) {
	oh, ow, err := g.Validate()
	if err != nil {
		panic(err)
	}
	if input < g.InH*g.InW {
		panic("conv: input slice too short")
	}
	if kernel >= 0 && kernel < g.KH*g.KW {
		panic("conv: kernel slice too short")
	}
	if output < oh*ow {
		panic("conv: output slice too short")
	}
	return oh, ow
}

// ScalarConv2D is the reference loop: every output element is the sum of
// the window it covers multiplied elementwise by kernel.
func ScalarConv2D[T hwy.Floats](g Geometry, input, kernel, output []T) {
	oh, ow := g.mustValidate(len(input), len(kernel), len(output))
	for oy := range oh {
		for ox := range ow {
			var sum T
			for ky := range g.KH {
				row := input[(oy*g.StrideH+ky)*g.InW+ox*g.StrideW:]
				for kx := range g.KW {
					sum += row[kx] * kernel[ky*g.KW+kx]
				}
			}
			output[oy*ow+ox] = sum
		}
	}
}

// BaseConv2D computes the convolution one output row at a time, vectorized
// across output columns: for every kernel tap (ky, kx) the output row gets
// kernel[ky,kx] times the input row segment under that tap.
//
// With stride 1 the segment is contiguous and is loaded directly. For
// larger strides it is gathered into a scratch row first; scratch supplies
// that row and may be nil.
func BaseConv2D[T hwy.Floats](d hwy.Desc[T], g Geometry, input, kernel, output []T, scratch *align.Pool) {
	oh, ow := g.mustValidate(len(input), len(kernel), len(output))
	lanes := d.Lanes()

	var gathered []T
	if g.StrideW > 1 {
		buf, release := rowBuffer[T](scratch, ow)
		defer release()
		gathered = buf
	}

	for oy := range oh {
		outRow := output[oy*ow : (oy+1)*ow]
		clear(outRow)
		for ky := range g.KH {
			inRow := input[(oy*g.StrideH+ky)*g.InW : (oy*g.StrideH+ky+1)*g.InW]
			for kx := range g.KW {
				tap := kernel[ky*g.KW+kx]
				src := inRow[kx:]
				if g.StrideW > 1 {
					for ox := range ow {
						gathered[ox] = inRow[kx+ox*g.StrideW]
					}
					src = gathered
				}
				vTap := d.Set(tap)

				var ox int
				for ox = 0; ox+lanes <= ow; ox += lanes {
					acc := d.MulAdd(vTap, d.Load(src[ox:]), d.Load(outRow[ox:]))
					hwy.Store(acc, outRow[ox:])
				}
				for ; ox < ow; ox++ {
					outRow[ox] += tap * src[ox]
				}
			}
		}
	}
}

// rowBuffer returns n elements of scratch, from pool when one is given.
func rowBuffer[T hwy.Floats](pool *align.Pool, n int) ([]T, func()) {
	if pool == nil {
		return make([]T, n), func() {}
	}
	var zero T
	buf, err := pool.GetFloats(n, int(unsafe.Sizeof(zero)))
	if err != nil {
		return make([]T, n), func() {}
	}
	return align.As[T](buf)[:n], func() { pool.Put(buf) }
}
