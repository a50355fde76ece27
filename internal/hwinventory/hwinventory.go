// Package hwinventory implements the Hardware Inventory Collector
// collaborator: it gathers host facts (OS, CPU, memory, accelerators)
// used both to decide which accelerator types the plan driver should
// enable and to populate the report's hwinfo section.
package hwinventory

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/BotBlake/tabbench/internal/engine"
)

const collectTimeout = 5 * time.Second

// OSInfo mirrors the `os` section of the inventory document.
type OSInfo struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	PrettyName string `json:"pretty_name"`
}

// CPUInfo mirrors the `cpu` section.
type CPUInfo struct {
	Product      string `json:"product"`
	Vendor       string `json:"vendor"`
	Cores        int    `json:"cores"`
	Architecture string `json:"architecture"`
}

// MemoryInfo mirrors the `memory` section, reported in kilobytes to
// match the Stat Parser's RSS unit.
type MemoryInfo struct {
	TotalKB int64 `json:"total_kb"`
}

// HostInfo is the full hardware inventory document embedded in a
// report.
type HostInfo struct {
	OS                  OSInfo                   `json:"os"`
	CPU                 CPUInfo                  `json:"cpu"`
	Memory              MemoryInfo               `json:"memory"`
	EnabledAccelerators []engine.AcceleratorType `json:"enabled_accelerators"`
}

// Collect gathers host facts via gopsutil and determines, from CPU
// vendor string matching, which non-CPU accelerator types this host
// plausibly supports. NVIDIA detection additionally requires the
// caller to have verified an `nvidia-smi`/NVENC-capable transcoder
// build separately — this collector only reports what the CPU tells
// us about itself.
func Collect(ctx context.Context, logger *slog.Logger) (HostInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(ctx, collectTimeout)
	defer cancel()

	info := HostInfo{
		EnabledAccelerators: []engine.AcceleratorType{engine.AcceleratorCPU},
	}

	hostInfo, err := host.InfoWithContext(ctx)
	if err != nil {
		logger.Warn("failed to collect host info, using runtime fallback", slog.String("error", err.Error()))
		info.OS = OSInfo{Name: runtime.GOOS, Version: "unknown", PrettyName: runtime.GOOS}
	} else {
		info.OS = OSInfo{
			Name:       hostInfo.Platform,
			Version:    hostInfo.PlatformVersion,
			PrettyName: hostInfo.PlatformFamily + " " + hostInfo.PlatformVersion,
		}
	}

	cpuInfos, err := cpu.InfoWithContext(ctx)
	if err != nil || len(cpuInfos) == 0 {
		reason := "empty CPU info"
		if err != nil {
			reason = err.Error()
		}
		logger.Warn("failed to collect CPU info, using runtime fallback", slog.String("error", reason))
		info.CPU = CPUInfo{Product: "unknown", Vendor: "unknown", Cores: runtime.NumCPU(), Architecture: runtime.GOARCH}
	} else {
		first := cpuInfos[0]
		info.CPU = CPUInfo{
			Product:      first.ModelName,
			Vendor:       classifyVendor(first.VendorID + " " + first.ModelName),
			Cores:        runtime.NumCPU(),
			Architecture: runtime.GOARCH,
		}
		if accel, ok := acceleratorForVendor(info.CPU.Vendor); ok {
			info.EnabledAccelerators = append(info.EnabledAccelerators, accel)
		}
	}

	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		logger.Warn("failed to collect memory info", slog.String("error", err.Error()))
	} else {
		info.Memory = MemoryInfo{TotalKB: int64(memInfo.Total / 1024)}
	}

	return info, nil
}

// classifyVendor normalizes a raw CPU vendor/model string to one of
// "intel", "amd", "nvidia", or "generic", mirroring the original collector's
// vendor-substring classification.
func classifyVendor(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "intel"):
		return "intel"
	case strings.Contains(lower, "amd") || strings.Contains(lower, "advanced micro devices"):
		return "amd"
	case strings.Contains(lower, "nvidia"):
		return "nvidia"
	default:
		return "generic"
	}
}

func acceleratorForVendor(vendor string) (engine.AcceleratorType, bool) {
	switch vendor {
	case "intel":
		return engine.AcceleratorIntel, true
	case "amd":
		return engine.AcceleratorAMD, true
	case "nvidia":
		return engine.AcceleratorNVIDIA, true
	default:
		return "", false
	}
}

// Hostname returns the local hostname, falling back to "unknown" when
// the OS call fails.
func Hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
