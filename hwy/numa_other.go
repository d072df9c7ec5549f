//go:build !linux

package hwy

func numaNodes() int {
	return 1
}
