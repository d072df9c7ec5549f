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

import "github.com/go-highway/hyperopt/hwy"

// BlockSizes defines the cache tiles of BaseBlockedMatMul.
//
//   - KC x NC: packed B panel, sized for L1
//   - MC x KC: block of A rows reused against one panel, sized for L2
type BlockSizes struct {
	MC int // rows of A per L2 block
	NC int // columns of B per panel
	KC int // depth of the panel
}

// L1 and L2 tiles for a 32 KB L1 and 256 KB L2 with float32 elements.
var (
	L1BlockSizes = BlockSizes{MC: 32, NC: 32, KC: 64}
	L2BlockSizes = BlockSizes{MC: 128, NC: 128, KC: 256}
)

// DefaultBlockSizes are the tiles for platform-typical caches.
var DefaultBlockSizes = BlockSizesFor(hwy.DefaultL1, hwy.DefaultL2, 4)

// BlockSizesFor derives tiles from the cache sizes: the B panel takes half
// of L1 and the A block half of L2, leaving room for C and the stack.
// NC is kept a multiple of 16 so a panel row splits evenly into vectors of
// every tier.
func BlockSizesFor(l1, l2, elemSize int) BlockSizes {
	if l1 <= 0 || l2 <= 0 || elemSize <= 0 {
		return L1BlockSizes
	}
	kc := L1BlockSizes.KC
	if l2 >= 4*hwy.DefaultL2 {
		kc = 2 * kc
	}

	nc := (l1 / 2) / (kc * elemSize)
	nc = clampMultiple(nc, 16, 16, 512)

	mc := (l2 / 2) / (kc * elemSize)
	mc = clampMultiple(mc, 2, 2, 512)

	return BlockSizes{MC: mc, NC: nc, KC: kc}
}

func clampMultiple(v, multiple, lo, hi int) int {
	v = v / multiple * multiple
	return max(lo, min(hi, v))
}

func (bs BlockSizes) normalized() BlockSizes {
	if bs.MC <= 0 || bs.NC <= 0 || bs.KC <= 0 {
		return DefaultBlockSizes
	}
	return bs
}
