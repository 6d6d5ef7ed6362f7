package ping

import (
	"net"
	"strings"
	"testing"
)

func TestReportLoss(t *testing.T) {
	tests := []struct {
		name string
		r    Report
		want float64
	}{
		{"nothing sent", Report{}, 0},
		{"no loss", Report{Sent: 4, Received: 4}, 0},
		{"half lost", Report{Sent: 4, Received: 2, Lost: 2}, 50},
		{"all lost", Report{Sent: 3, Lost: 3}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Loss(); got != tt.want {
				t.Fatalf("loss = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReportString(t *testing.T) {
	r := Report{
		Host:     "example.net",
		IP:       net.ParseIP("192.0.2.1"),
		Sent:     2,
		Received: 2,
		Min:      1.1, Mean: 1.5, Max: 1.9, Dev: 0.4,
	}
	got := r.String()
	if !strings.Contains(got, "example.net") || !strings.Contains(got, "192.0.2.1") {
		t.Fatalf("report misses target info: %q", got)
	}
	if !strings.Contains(got, "round-trip min/avg/max/mdev") {
		t.Fatalf("report misses round-trip line: %q", got)
	}
}

func TestReportStringZeroReceived(t *testing.T) {
	r := Report{Host: "example.net", Sent: 2, Lost: 2}
	got := r.String()
	if strings.Contains(got, "round-trip") {
		t.Fatalf("zero-received report must omit round-trip line: %q", got)
	}
	if !strings.Contains(got, "100.00% packet loss") {
		t.Fatalf("report misses loss: %q", got)
	}
}
