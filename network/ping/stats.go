package ping

import (
	"math"
	"time"
)

// noData is the min sentinel before the first sample.
const noData = math.MaxFloat64

// stats accumulates round-trip statistics for one run without retaining
// samples. Times are float64 milliseconds. The mean and the sum of squared
// deviations use Welford's online update, which stays numerically stable
// over long runs.
type stats struct {
	sent     int
	received int
	lost     int

	last float64
	min  float64
	max  float64
	mean float64
	m2   float64
}

func (s *stats) reset() {
	*s = stats{min: noData}
}

// observe records one successful round trip. received and the timing
// fields always move together.
func (s *stats) observe(rtt time.Duration) {
	elapsed := float64(rtt.Microseconds()) / 1000
	s.received++
	s.last = elapsed
	if elapsed < s.min {
		s.min = elapsed
	}
	if elapsed > s.max {
		s.max = elapsed
	}
	oldMean := s.mean
	s.mean = oldMean + (elapsed-oldMean)/float64(s.received)
	if s.received > 1 {
		s.m2 += (elapsed - oldMean) * (elapsed - s.mean)
	}
}

// lose records one echo whose reply never arrived. Only the loss counter
// and the last-elapsed marker move.
func (s *stats) lose() {
	s.lost++
	s.last = 0
}

// variance is the population variance over received samples, 0 until the
// first sample so reports never divide by zero.
func (s *stats) variance() float64 {
	if s.received <= 0 {
		return 0
	}
	return s.m2 / float64(s.received)
}

func (s *stats) dev() float64 {
	return math.Sqrt(s.variance())
}
