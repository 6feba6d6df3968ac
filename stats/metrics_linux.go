//go:build linux

package stats

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// sysinfo load averages are fixed point with 16 fractional bits.
const loadShift = 16

func getAdjustedLoad() (float64, error) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0.0, fmt.Errorf("sysinfo: %w", err)
	}
	return float64(si.Loads[0]) / float64(1<<loadShift), nil
}

func getSwapUsage() (int, error) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0, fmt.Errorf("sysinfo: %w", err)
	}
	return swapPercent(float64(si.Totalswap), float64(si.Freeswap)), nil
}
