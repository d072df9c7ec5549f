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

//go:build amd64

package hwy

import (
	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sys/cpu"
)

// readISA reads the x86 feature bits. x/sys/cpu already accounts for OS
// support of the wider register state (XSAVE/XCR0); cpuid is consulted as a
// second opinion so that both must agree before a tier is enabled.
func readISA() isaFlags {
	return isaFlags{
		sse41:  cpu.X86.HasSSE41 && cpuid.CPU.Supports(cpuid.SSE4),
		avx2:   cpu.X86.HasAVX2 && cpuid.CPU.Supports(cpuid.AVX2),
		avx512: cpu.X86.HasAVX512F && cpuid.CPU.Supports(cpuid.AVX512F),
		fma:    cpu.X86.HasFMA && cpuid.CPU.Supports(cpuid.FMA3),
	}
}
