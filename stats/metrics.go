package stats

// SystemSampler reads the load average and swap usage.
type SystemSampler func() (load float64, swapPct int)

// SampleSystem reads the live system metrics. Errors yield zero values,
// which the throttler treats as "unknown".
func SampleSystem() (float64, int) {
	load, err := getAdjustedLoad()
	if err != nil {
		load = 0
	}
	swap, err := getSwapUsage()
	if err != nil {
		swap = 0
	}
	return load, swap
}

// swapPercent converts total and free swap into a 0-100 usage value.
func swapPercent(total, free float64) int {
	if total <= 0 {
		return 0
	}
	used := total - free
	if used < 0 {
		used = 0
	}
	return int(used / total * 100.0)
}
