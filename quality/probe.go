package quality

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
)

// DeviceInfo coarse client capabilities
type DeviceInfo struct {
	CPUs       int
	MemoryGB   float64
	Mobile     bool
	PixelRatio float64
}

// LocalDevice describes the host process' machine. Memory is 0 when the
// platform does not report it.
func LocalDevice() DeviceInfo {
	info := DeviceInfo{CPUs: runtime.NumCPU(), PixelRatio: 1}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryGB = float64(vm.Total) / (1 << 30)
	}
	return info
}

// Probe picks the startup level. It runs once; the controller owns the
// level afterwards.
func Probe(d DeviceInfo) Level {
	score := 0
	switch {
	case d.CPUs >= 8:
		score += 2
	case d.CPUs >= 4:
		score++
	}
	switch {
	case d.MemoryGB >= 8:
		score += 2
	case d.MemoryGB >= 4:
		score++
	}
	if d.Mobile {
		score--
	}
	// dense displays cost fill rate
	if d.PixelRatio > 2 {
		score--
	}

	switch {
	case score >= 4:
		return High
	case score >= 2:
		return Medium
	default:
		return Low
	}
}
