package app

import (
	"log/slog"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// bytesPerAnalysis is the working-set budget of one analysis: a decoded RGB
// frame ring, the extracted audio and the per-analysis inference tensors.
const bytesPerAnalysis = 512 << 20

// Concurrency returns how many files can be analysed at once on this host:
// half the logical CPUs (each analysis runs ffmpeg alongside inference),
// capped by available memory. It is at least 1.
func Concurrency() int {
	n := 1
	if cpus, err := cpu.Counts(true); err == nil && cpus > 1 {
		n = cpus / 2
	} else if err != nil {
		slog.Debug("cpu count unavailable", "err", err)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		n = min(n, int(vm.Available/bytesPerAnalysis))
	} else {
		slog.Debug("memory stats unavailable", "err", err)
	}
	return max(n, 1)
}
