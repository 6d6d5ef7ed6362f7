package ping

import (
	"log/slog"
	"time"

	"github.com/taskping/taskping/pkg/resolve"
)

const (
	DefaultCount    = 10
	DefaultInterval = time.Second
	DefaultSize     = 32
	DefaultTimeout  = time.Second

	// pollQuantum bounds one receive wait; waitTick is the stop-flag check
	// period while sleeping out the inter-echo interval.
	pollQuantum = time.Millisecond
	waitTick    = 10 * time.Millisecond
)

type Option func(*Session)

// CountOption sets how many echoes to send. 0 means run until Stop.
// Validated by Run, not here, so an invalid value fails the run instead of
// being silently clamped. The on-wire sequence number is 16 bits wide, so
// counts above 65535 exhaust the sequence space and run unbounded, like
// count 0.
func CountOption(count int) Option {
	return func(s *Session) {
		s.count = count
	}
}

// IntervalOption sets the time between consecutive sends, measured from
// one send instant to the next. Valid range 1s to 3600s.
func IntervalOption(interval time.Duration) Option {
	return func(s *Session) {
		s.interval = interval
	}
}

// SizeOption sets the echo payload size in bytes, timestamp included.
// Valid range 4 to 256.
func SizeOption(size int) Option {
	return func(s *Session) {
		s.size = size
	}
}

// TimeoutOption sets how long to wait for each reply. Valid range 1s to
// 30s. A missed timeout counts as loss and the run continues.
func TimeoutOption(timeout time.Duration) Option {
	return func(s *Session) {
		s.timeout = timeout
	}
}

// NameserverOption routes target resolution through the given DNS server.
func NameserverOption(addr string) Option {
	return func(s *Session) {
		s.nameserver = addr
	}
}

// ResolveTimeoutOption bounds one DNS exchange in nameserver mode.
func ResolveTimeoutOption(timeout time.Duration) Option {
	return func(s *Session) {
		s.resolveTimeout = timeout
	}
}

// ObserverOption sets the progress observer invoked during Run.
func ObserverOption(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// TargetOption binds a pre-resolved target, bypassing resolution.
func TargetOption(t *resolve.Target) Option {
	return func(s *Session) {
		s.target = t
	}
}

// TransportOption substitutes the raw-socket layer, used by tests.
func TransportOption(tr Transport) Option {
	return func(s *Session) {
		if tr != nil {
			s.transport = tr
		}
	}
}

// LoggerOption attaches a logger for debug-level session events.
func LoggerOption(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}
