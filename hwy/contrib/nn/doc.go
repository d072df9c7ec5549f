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

// Package nn provides normalization and attention-scoring kernels.
//
// # Supported Operations
//
// Normalization operations:
//   - Softmax - numerically stable softmax over a slice
//   - LayerNorm - layer normalization with optional affine transform
//
// Attention operations:
//   - AttentionWeights - softmax(Q@K^T / sqrt(dim)) for one head
//
// Every operation has a ScalarX reference loop and a BaseX form taking a
// hwy.Desc; ParallelX variants split independent rows across a
// workerpool.Pool.
//
// # Example Usage
//
//	d := hwy.NewDesc[float32](hwy.DetectOnce().MaxLevel(), true)
//	probs := make([]float32, len(logits))
//	nn.BaseSoftmax(d, logits, probs)
package nn
