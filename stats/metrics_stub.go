//go:build !linux

package stats

// getAdjustedLoad returns 0 where sysinfo(2) is unavailable, which disables
// load throttling.
func getAdjustedLoad() (float64, error) {
	return 0.0, nil
}

func getSwapUsage() (int, error) {
	return 0, nil
}
