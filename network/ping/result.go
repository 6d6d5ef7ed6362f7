package ping

import (
	"fmt"
	"net"
)

// Report is the final outcome of one Run. Times are milliseconds.
type Report struct {
	Host     string
	IP       net.IP
	Sent     int
	Received int
	Lost     int

	Last float64
	Min  float64
	Max  float64
	Mean float64
	Dev  float64
}

// Loss returns the packet loss percentage, 0 when nothing was sent.
func (r Report) Loss() float64 {
	if r.Sent <= 0 {
		return 0
	}
	return float64(r.Lost*100) / float64(r.Sent)
}

func (r Report) String() string {
	var rt string
	if r.Received > 0 {
		rt = fmt.Sprintf("\nround-trip min/avg/max/mdev = %.3f/%.3f/%.3f/%.3f ms",
			r.Min, r.Mean, r.Max, r.Dev)
	}
	return fmt.Sprintf("[%s(%s)]%d packets transmitted, %d packets received, %.2f%% packet loss%s",
		r.Host, r.IP, r.Sent, r.Received, r.Loss(), rt)
}
