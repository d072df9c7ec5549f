// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package workerpool

// Range is the half-open index interval [Start, End).
type Range struct {
	Start, End int
}

// Len returns End - Start.
func (r Range) Len() int {
	return r.End - r.Start
}

// Partition splits [0, n) into min(n, parts) contiguous, non-empty ranges
// whose lengths differ by at most one. The ranges are ordered, disjoint and
// cover [0, n) exactly. It returns nil when n <= 0.
func Partition(n, parts int) []Range {
	if n <= 0 {
		return nil
	}
	parts = max(1, min(n, parts))

	base, extra := n/parts, n%parts
	ranges := make([]Range, parts)
	start := 0
	for i := range ranges {
		size := base
		if i < extra {
			size++
		}
		ranges[i] = Range{Start: start, End: start + size}
		start += size
	}
	return ranges
}
