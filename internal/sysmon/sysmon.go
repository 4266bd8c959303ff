// Package sysmon provides system-wide CPU, memory and disk usage sampling
// for the preflight phase.
package sysmon

import (
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// Stats holds a single snapshot of system-wide resource usage.
type Stats struct {
	CPUPercent float64 // 0.0 .. 100.0
	MemPercent float64 // 0.0 .. 100.0
}

// Sample collects a single system-wide CPU and memory snapshot.
// CPU uses interval=0 (delta since last call). Returns zero values on error.
func Sample() Stats {
	var s Stats
	cpuPcts, err := cpu.Percent(0, false)
	if err == nil && len(cpuPcts) > 0 {
		s.CPUPercent = cpuPcts[0]
	}
	vmem, err := mem.VirtualMemory()
	if err == nil && vmem != nil {
		s.MemPercent = vmem.UsedPercent
	}
	return s
}

// DiskFree returns the number of free bytes on the filesystem containing
// path. Returns 0 on error; callers treat an unreadable filesystem as "no
// guarantee" rather than a hard failure.
func DiskFree(path string) uint64 {
	usage, err := disk.Usage(path)
	if err != nil || usage == nil {
		return 0
	}
	return usage.Free
}
