// Package hostinfo describes the machine a session ran on, so that stored
// results can be compared across hosts.
package hostinfo

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
)

// Info is a snapshot of the host.
type Info struct {
	Hostname      string  `json:"hostname"`
	OS            string  `json:"os"`
	Platform      string  `json:"platform"`
	KernelVersion string  `json:"kernel_version"`
	Arch          string  `json:"arch"`
	CPUModel      string  `json:"cpu_model"`
	CPUMhz        float64 `json:"cpu_mhz"`
	LogicalCPUs   int     `json:"logical_cpus"`
	PhysicalCPUs  int     `json:"physical_cpus"`
	Timer         string  `json:"timer"`
	TimerHz       uint64  `json:"timer_hz"`
}

// String returns a one-line description.
func (i Info) String() string {
	return fmt.Sprintf("%s %s/%s, %s (%d logical, %.0f MHz), timer %s @ %d Hz",
		i.Hostname, i.OS, i.Arch, i.CPUModel, i.LogicalCPUs, i.CPUMhz, i.Timer, i.TimerHz)
}

// Collect gathers host information. Fields that cannot be read are left
// empty; the first such error is returned along with the partial result.
func Collect(timer string, timerHz uint64) (Info, error) {
	info := Info{
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		LogicalCPUs: runtime.NumCPU(),
		Timer:       timer,
		TimerHz:     timerHz,
	}
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if h, err := host.Info(); err != nil {
		keep(fmt.Errorf("host info: %w", err))
	} else {
		info.Hostname = h.Hostname
		info.Platform = h.Platform
		info.KernelVersion = h.KernelVersion
	}

	if cpus, err := cpu.Info(); err != nil {
		keep(fmt.Errorf("cpu info: %w", err))
	} else if len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
		info.CPUMhz = cpus[0].Mhz
	}

	if n, err := cpu.Counts(true); err != nil {
		keep(fmt.Errorf("logical cpu count: %w", err))
	} else if n > 0 {
		info.LogicalCPUs = n
	}
	if n, err := cpu.Counts(false); err != nil {
		keep(fmt.Errorf("physical cpu count: %w", err))
	} else {
		info.PhysicalCPUs = n
	}
	return info, firstErr
}
