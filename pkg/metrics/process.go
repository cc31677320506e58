package metrics

import (
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// MemoryUsage is a snapshot of the process memory.
type MemoryUsage struct {
	RSS uint64 `json:"rss_bytes"`
	VMS uint64 `json:"vms_bytes"`
}

// SampleProcessMemory reads the current process memory and updates
// ProcessMemory. It returns a zero snapshot when the platform does not
// expose the numbers.
func SampleProcessMemory() (MemoryUsage, error) {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return MemoryUsage{}, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return MemoryUsage{}, err
	}
	ProcessMemory.Set(float64(info.RSS))
	return MemoryUsage{RSS: info.RSS, VMS: info.VMS}, nil
}
