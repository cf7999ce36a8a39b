// Package engine implements the pure scoring core of warden: policy
// resolution, signal normalization, suspicion scoring, trend analysis and
// community risk aggregation. All functions are deterministic, perform no
// I/O and take the evaluation time explicitly, so callers decide what
// "now" means and results stay reproducible.
package engine

import "math"

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
