//go:build linux

package hwy

import (
	"os"
	"strconv"
	"strings"
)

// numaNodes counts /sys/devices/system/node/nodeN entries.
func numaNodes() int {
	entries, err := os.ReadDir("/sys/devices/system/node")
	if err != nil {
		return 1
	}
	n := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "node") {
			continue
		}
		if _, err := strconv.Atoi(name[len("node"):]); err == nil {
			n++
		}
	}
	return max(n, 1)
}
