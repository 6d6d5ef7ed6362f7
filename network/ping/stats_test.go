package ping

import (
	"math"
	"testing"
	"time"
)

func TestStatsWelford(t *testing.T) {
	var s stats
	s.reset()

	samples := []time.Duration{
		1 * time.Millisecond,
		2 * time.Millisecond,
		3 * time.Millisecond,
		4 * time.Millisecond,
	}
	for _, rtt := range samples {
		s.sent++
		s.observe(rtt)
	}

	if s.received != 4 {
		t.Fatalf("received = %d, want 4", s.received)
	}
	if s.min != 1 || s.max != 4 {
		t.Fatalf("min/max = %v/%v, want 1/4", s.min, s.max)
	}
	if math.Abs(s.mean-2.5) > 1e-9 {
		t.Fatalf("mean = %v, want 2.5", s.mean)
	}
	// population variance of {1,2,3,4} is 1.25
	if math.Abs(s.variance()-1.25) > 1e-9 {
		t.Fatalf("variance = %v, want 1.25", s.variance())
	}
	if math.Abs(s.dev()-math.Sqrt(1.25)) > 1e-9 {
		t.Fatalf("dev = %v, want sqrt(1.25)", s.dev())
	}
	if !(s.min <= s.mean && s.mean <= s.max) {
		t.Fatalf("want min <= mean <= max, got %v/%v/%v", s.min, s.mean, s.max)
	}
}

func TestStatsSingleSample(t *testing.T) {
	var s stats
	s.reset()
	s.sent++
	s.observe(7 * time.Millisecond)

	if s.min != 7 || s.max != 7 || s.mean != 7 {
		t.Fatalf("min/max/mean = %v/%v/%v, want 7/7/7", s.min, s.max, s.mean)
	}
	if s.variance() != 0 {
		t.Fatalf("variance of one sample = %v, want 0", s.variance())
	}
}

func TestStatsLossTouchesOnlyLoss(t *testing.T) {
	var s stats
	s.reset()
	s.sent++
	s.lose()

	if s.lost != 1 || s.received != 0 {
		t.Fatalf("lost/received = %d/%d, want 1/0", s.lost, s.received)
	}
	if s.last != 0 {
		t.Fatalf("last = %v, want 0 after loss", s.last)
	}
	if s.min != noData {
		t.Fatal("loss must not disturb the min sentinel")
	}
	if s.variance() != 0 {
		t.Fatalf("variance with no samples = %v, want 0 (no division by zero)", s.variance())
	}
}

func TestStatsResetClearsEverything(t *testing.T) {
	var s stats
	s.reset()
	s.sent++
	s.observe(3 * time.Millisecond)
	s.sent++
	s.lose()

	s.reset()
	if s.sent != 0 || s.received != 0 || s.lost != 0 || s.mean != 0 || s.m2 != 0 {
		t.Fatalf("reset left state behind: %+v", s)
	}
	if s.min != noData {
		t.Fatal("reset must restore the min sentinel")
	}
}
