package hardware

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/modelforge-ai/platform/pkg/common/models"
)

// Prober reads live compute headroom from the local machine.
type Prober struct {
	sampleInterval time.Duration
}

func NewProber() *Prober {
	return &Prober{sampleInterval: 100 * time.Millisecond}
}

func (p *Prober) Snapshot(ctx context.Context) (*models.HardwareSnapshot, error) {
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("cpu count: %w", err)
	}

	percents, err := cpu.PercentWithContext(ctx, p.sampleInterval, false)
	if err != nil {
		return nil, fmt.Errorf("cpu utilization: %w", err)
	}
	var utilization float64
	if len(percents) > 0 {
		utilization = percents[0] / 100
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory stats: %w", err)
	}

	snapshot := &models.HardwareSnapshot{
		CPUCores:          cores,
		CPUUtilization:    utilization,
		MemoryTotalMB:     float64(vm.Total) / (1 << 20),
		MemoryAvailableMB: float64(vm.Available) / (1 << 20),
		MemoryUtilization: vm.UsedPercent / 100,
	}
	snapshot.GPU = detectGPU(ctx)
	snapshot.Thermal = readThermal(ctx)
	return snapshot, nil
}

// detectGPU shells out to nvidia-smi; no GPU (or no driver) is not an error.
func detectGPU(ctx context.Context) *models.GPUInfo {
	out, err := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=name,memory.total", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return nil
	}

	line := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)[0]
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return nil
	}
	memMB, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil
	}
	return &models.GPUInfo{
		Model:    strings.TrimSpace(parts[0]),
		MemoryMB: memMB,
	}
}

func readThermal(ctx context.Context) *models.ThermalReadings {
	sensors, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil || len(sensors) == 0 {
		return nil
	}

	var cpuTemp float64
	for _, sensor := range sensors {
		key := strings.ToLower(sensor.SensorKey)
		if strings.Contains(key, "coretemp") || strings.Contains(key, "k10temp") || strings.Contains(key, "cpu") {
			if sensor.Temperature > cpuTemp {
				cpuTemp = sensor.Temperature
			}
		}
	}
	if cpuTemp == 0 {
		return nil
	}
	return &models.ThermalReadings{CPUCelsius: cpuTemp}
}

// Static serves a fixed snapshot where live probing is unavailable or
// undesirable.
type Static struct {
	Snap models.HardwareSnapshot
}

func (s Static) Snapshot(ctx context.Context) (*models.HardwareSnapshot, error) {
	snap := s.Snap
	return &snap, nil
}
