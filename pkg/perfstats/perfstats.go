package perfstats

import (
	"fmt"
	"time"
)

// Accumulate samples of how long something took
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
	Min     time.Duration
	Max     time.Duration
	Last    time.Duration
}

func (a *TimeAccumulator) Reset() {
	*a = TimeAccumulator{}
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	if a.Samples == 0 || v < a.Min {
		a.Min = v
	}
	if v > a.Max {
		a.Max = v
	}
	a.Samples++
	a.Total += v
	a.Last = v
}

// Time how long f takes, and add it as a sample
func (a *TimeAccumulator) Measure(f func()) {
	start := time.Now()
	f()
	a.AddSample(time.Since(start))
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}

// Samples per second, based on the average
func (a *TimeAccumulator) Rate() float64 {
	avg := a.Average()
	if avg == 0 {
		return 0
	}
	return float64(time.Second) / float64(avg)
}

func (a *TimeAccumulator) String() string {
	if a.Samples == 0 {
		return "no samples"
	}
	return fmt.Sprintf("n=%v avg=%v min=%v max=%v (%.1f/s)", a.Samples, a.Average(), a.Min, a.Max, a.Rate())
}
