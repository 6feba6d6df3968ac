package stats

import (
	"runtime"
	"sync"
)

// WorkerThrottler calculates dynamic worker limits. The limit is the
// smallest of three caps:
//  1. Slow start: starts at the configured value and grows by one worker
//     per tick until it reaches maxWorkers
//  2. Load cap: linear interpolation between 1.5×ncpus and 5.0×ncpus
//  3. Swap cap: linear interpolation between 10% and 40% swap usage
//
// When disabled, the load and swap caps are bypassed; slow start still
// applies.
type WorkerThrottler struct {
	maxWorkers int
	ncpus      int
	disabled   bool

	mu   sync.Mutex
	ramp int
}

// NewWorkerThrottler creates a throttler with the configured max workers.
// The ncpus value is determined automatically via runtime.NumCPU().
func NewWorkerThrottler(maxWorkers int, disabled bool) *WorkerThrottler {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerThrottler{
		maxWorkers: maxWorkers,
		ncpus:      runtime.NumCPU(),
		disabled:   disabled,
		ramp:       maxWorkers,
	}
}

// WithSlowStart starts the ramp at n workers. Values outside 1..maxWorkers
// disable slow start.
func (wt *WorkerThrottler) WithSlowStart(n int) *WorkerThrottler {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	if n >= 1 && n < wt.maxWorkers {
		wt.ramp = n
	} else {
		wt.ramp = wt.maxWorkers
	}
	return wt
}

// Initial returns the limit to use before the first sample.
func (wt *WorkerThrottler) Initial() int {
	wt.mu.Lock()
	defer wt.mu.Unlock()
	return wt.ramp
}

// Ramping reports whether slow start is still below maxWorkers.
func (wt *WorkerThrottler) Ramping() bool {
	wt.mu.Lock()
	defer wt.mu.Unlock()
	return wt.ramp < wt.maxWorkers
}

// Next advances slow start by one step and returns the new limit for the
// given system metrics.
func (wt *WorkerThrottler) Next(load float64, swapPct int) int {
	wt.mu.Lock()
	if wt.ramp < wt.maxWorkers {
		wt.ramp++
	}
	ramp := wt.ramp
	wt.mu.Unlock()

	return min(ramp, wt.CalculateDynMax(load, swapPct))
}

// CalculateDynMax computes the load and swap limit. Returns a value between
// 1 and maxWorkers.
//
// Throttling rules:
//   - Load < 1.5×ncpus: No throttling (return maxWorkers)
//   - Load 1.5-5.0×ncpus: Linear reduction from 100% to 25% of maxWorkers
//   - Load > 5.0×ncpus: Hard cap at 25% of maxWorkers
//   - Swap < 10%: No swap throttling
//   - Swap 10-40%: Linear reduction from 100% to 25% of maxWorkers
//   - Swap > 40%: Hard cap at 25% of maxWorkers
//
// If both load and swap are zero (metrics not available) maxWorkers is
// returned.
func (wt *WorkerThrottler) CalculateDynMax(load float64, swapPct int) int {
	if wt.disabled {
		return wt.maxWorkers
	}
	if load == 0.0 && swapPct == 0 {
		return wt.maxWorkers
	}

	dynMax := min(wt.calculateLoadCap(load), wt.calculateSwapCap(swapPct))
	if dynMax < 1 {
		dynMax = 1
	}
	return dynMax
}

func (wt *WorkerThrottler) calculateLoadCap(load float64) int {
	minLoad := 1.5 * float64(wt.ncpus)
	maxLoad := 5.0 * float64(wt.ncpus)

	if load < minLoad {
		return wt.maxWorkers
	}
	if load >= maxLoad {
		return wt.maxWorkers / 4
	}

	ratio := (load - minLoad) / (maxLoad - minLoad)
	return wt.maxWorkers - int(float64(wt.maxWorkers)*0.75*ratio)
}

func (wt *WorkerThrottler) calculateSwapCap(swapPct int) int {
	const minSwap = 10
	const maxSwap = 40

	if swapPct < minSwap {
		return wt.maxWorkers
	}
	if swapPct >= maxSwap {
		return wt.maxWorkers / 4
	}

	ratio := float64(swapPct-minSwap) / float64(maxSwap-minSwap)
	return wt.maxWorkers - int(float64(wt.maxWorkers)*0.75*ratio)
}
