// Package loadavg wraps github.com/mikoim/go-loadavg behind a small
// Sampler interface so LimitedCommandRunner's load-average ceiling
// (spec.md §4.6) is testable without reading /proc/loadavg. The
// teacher references this library in RealCommandRunner.CanRunMore but
// never actually calls it; this module finishes that wiring.
package loadavg

import "github.com/mikoim/go-loadavg"

// Sampler reports the current one-minute load average.
type Sampler interface {
	Sample() (float64, error)
}

// System samples the host's real load average.
type System struct{}

// Sample returns the current one-minute load average via
// github.com/mikoim/go-loadavg.
func (System) Sample() (float64, error) {
	avg, err := loadavg.Parse()
	if err != nil {
		return 0, err
	}
	return avg.LoadAverage1, nil
}

// Fixed is a Sampler that always reports a constant value, for tests
// that need a deterministic load-average ceiling.
type Fixed float64

// Sample implements Sampler.
func (f Fixed) Sample() (float64, error) { return float64(f), nil }
