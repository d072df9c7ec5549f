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

package matmul

import (
	"unsafe"

	"github.com/go-highway/hyperopt/hwy"
	"github.com/go-highway/hyperopt/hwy/contrib/align"
)

// BaseBlockedMatMul computes C = A * B using cache tiling.
//
//   - A is M x K (row-major)
//   - B is K x N (row-major)
//   - C is M x N (row-major)
//
// The K and N dimensions are tiled so that a KC x NC panel of B fits in L1;
// each panel is packed into contiguous aligned scratch and reused for MC
// rows of A, which stay resident in L2. Inside a panel a 2-row micro-kernel
// keeps two output vectors in registers across the whole KC loop.
//
// scratch supplies the packing buffer; pass nil to allocate per call.
func BaseBlockedMatMul[T hwy.Floats](d hwy.Desc[T], a, b, c []T, m, n, k int, bs BlockSizes, scratch *align.Pool) {
	checkShapes(a, b, c, m, n, k)
	clear(c[:m*n])
	if m == 0 || n == 0 || k == 0 {
		return
	}
	bs = bs.normalized()

	var zero T
	panelLen := bs.KC * bs.NC
	packed, release := packBuffer[T](scratch, panelLen*int(unsafe.Sizeof(zero)))
	defer release()

	for j0 := 0; j0 < n; j0 += bs.NC {
		nc := min(bs.NC, n-j0)
		for p0 := 0; p0 < k; p0 += bs.KC {
			kc := min(bs.KC, k-p0)
			packPanel(b, packed, n, p0, j0, kc, nc)

			for i0 := 0; i0 < m; i0 += bs.MC {
				mc := min(bs.MC, m-i0)
				microKernels(d, a, packed, c, i0, mc, p0, kc, j0, nc, n, k)
			}
		}
	}
}

// packPanel copies B[p0:p0+kc, j0:j0+nc] into dst with row stride nc.
func packPanel[T hwy.Floats](b, dst []T, n, p0, j0, kc, nc int) {
	for p := range kc {
		src := b[(p0+p)*n+j0 : (p0+p)*n+j0+nc]
		copy(dst[p*nc:p*nc+nc], src)
	}
}

// microKernels accumulates A[i0:i0+mc, p0:p0+kc] * panel into
// C[i0:i0+mc, j0:j0+nc], two rows at a time.
func microKernels[T hwy.Floats](d hwy.Desc[T], a, panel, c []T, i0, mc, p0, kc, j0, nc, n, k int) {
	lanes := d.Lanes()

	i := i0
	for ; i+2 <= i0+mc; i += 2 {
		aRow0 := a[i*k+p0 : i*k+p0+kc]
		aRow1 := a[(i+1)*k+p0 : (i+1)*k+p0+kc]
		cRow0 := c[i*n+j0 : i*n+j0+nc]
		cRow1 := c[(i+1)*n+j0 : (i+1)*n+j0+nc]

		var j int
		for j = 0; j+lanes <= nc; j += lanes {
			acc0 := d.Load(cRow0[j:])
			acc1 := d.Load(cRow1[j:])
			for p := range kc {
				vb := d.Load(panel[p*nc+j:])
				acc0 = d.MulAdd(d.Set(aRow0[p]), vb, acc0)
				acc1 = d.MulAdd(d.Set(aRow1[p]), vb, acc1)
			}
			hwy.Store(acc0, cRow0[j:])
			hwy.Store(acc1, cRow1[j:])
		}
		for ; j < nc; j++ {
			s0, s1 := cRow0[j], cRow1[j]
			for p := range kc {
				bv := panel[p*nc+j]
				s0 += aRow0[p] * bv
				s1 += aRow1[p] * bv
			}
			cRow0[j], cRow1[j] = s0, s1
		}
	}

	// Odd last row
	if i < i0+mc {
		aRow := a[i*k+p0 : i*k+p0+kc]
		cRow := c[i*n+j0 : i*n+j0+nc]
		var j int
		for j = 0; j+lanes <= nc; j += lanes {
			acc := d.Load(cRow[j:])
			for p := range kc {
				acc = d.MulAdd(d.Set(aRow[p]), d.Load(panel[p*nc+j:]), acc)
			}
			hwy.Store(acc, cRow[j:])
		}
		for ; j < nc; j++ {
			s := cRow[j]
			for p := range kc {
				s += aRow[p] * panel[p*nc+j]
			}
			cRow[j] = s
		}
	}
}

// packBuffer returns packing scratch of at least size bytes viewed as T,
// taken from pool when one is given.
func packBuffer[T hwy.Floats](pool *align.Pool, size int) ([]T, func()) {
	if pool == nil {
		buf, err := align.Alloc(size, align.DefaultAlignment)
		if err != nil {
			var zero T
			return make([]T, size/int(unsafe.Sizeof(zero))), func() {}
		}
		return align.As[T](buf), buf.Free
	}
	buf, err := pool.Get(size)
	if err != nil {
		var zero T
		return make([]T, size/int(unsafe.Sizeof(zero))), func() {}
	}
	return align.As[T](buf), func() { pool.Put(buf) }
}
