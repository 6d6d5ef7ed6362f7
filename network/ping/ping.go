// Package ping runs ICMP echo measurements that stay correct when many
// sessions share one network stack.
//
// Raw ICMP sockets all see every inbound ICMP packet of their family, so a
// session polling for its own echo reply routinely dequeues replies that
// belong to other sessions. Every accepted reply is pushed into the shared
// correlation table keyed by the identifier embedded in the packet; each
// session then observes its results as if it owned an exclusive channel.
package ping

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/taskping/taskping/network"
	"github.com/taskping/taskping/pkg/icmp"
	"github.com/taskping/taskping/pkg/logging"
	"github.com/taskping/taskping/pkg/resolve"
)

// State of a session, advanced only by its own Run.
type State int32

const (
	StateIdle State = iota
	StateResolving
	StateRunning
	StateCompleted
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Session is one ping run against one target. A Session is driven
// synchronously by the goroutine calling Run; Stop is the only method safe
// to call from another goroutine while a run is in progress. The read
// accessors are safe from observer callbacks (they run on the Run
// goroutine) and after Run returns.
type Session struct {
	target         *resolve.Target
	nameserver     string
	resolveTimeout time.Duration

	count    int
	interval time.Duration
	size     int
	timeout  time.Duration

	transport Transport
	observer  Observer
	log       *slog.Logger

	state   atomic.Int32
	stopped atomic.Bool
	stats   stats
	lastErr error
}

// New creates an unbound session; the target is passed to Run.
func New(opts ...Option) *Session {
	s := &Session{
		count:     DefaultCount,
		interval:  DefaultInterval,
		size:      DefaultSize,
		timeout:   DefaultTimeout,
		transport: rawTransport{},
		observer:  NopObserver{},
		log:       logging.Discard(),
	}
	s.stats.reset()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewTarget creates a session bound to target, a hostname or a literal
// v4/v6 address, resolving it eagerly. Run("") then reuses the bound
// address without resolving again.
func NewTarget(target string, opts ...Option) (*Session, error) {
	s := New(opts...)
	t, err := resolve.Resolve(target, s.resolveOpts()...)
	if err != nil {
		s.lastErr = err
		return nil, err
	}
	s.target = t
	return s, nil
}

func (s *Session) resolveOpts() []resolve.Option {
	var opts []resolve.Option
	if s.nameserver != "" {
		opts = append(opts, resolve.NameserverOption(s.nameserver))
	}
	if s.resolveTimeout > 0 {
		opts = append(opts, resolve.ExchangeTimeoutOption(s.resolveTimeout))
	}
	return opts
}

// Run performs one complete measurement. With an empty target the session
// must have been bound at construction. Run blocks the calling goroutine
// for up to count*(timeout+interval); Stop aborts it from any other
// goroutine within one poll or wait tick. Statistics are reset at the
// start of every Run, so a Session can be reused sequentially.
func (s *Session) Run(target string) (*Report, error) {
	report, err := s.run(target)
	s.lastErr = err
	if err != nil {
		s.state.Store(int32(StateFailed))
		return nil, err
	}
	return report, nil
}

func (s *Session) run(target string) (*Report, error) {
	// Arguments are checked before any network activity.
	if s.count < 0 {
		return nil, fmt.Errorf("%w: count %d", network.ErrInvalidArgument, s.count)
	}
	if s.interval < time.Second || s.interval > 3600*time.Second {
		return nil, fmt.Errorf("%w: interval %v not in [1s, 3600s]", network.ErrInvalidArgument, s.interval)
	}
	if s.size < icmp.MinPayload || s.size > icmp.MaxPayload {
		return nil, fmt.Errorf("%w: payload size %d not in [%d, %d]",
			network.ErrInvalidArgument, s.size, icmp.MinPayload, icmp.MaxPayload)
	}
	if s.timeout < time.Second || s.timeout > 30*time.Second {
		return nil, fmt.Errorf("%w: timeout %v not in [1s, 30s]", network.ErrInvalidArgument, s.timeout)
	}

	if target != "" {
		s.state.Store(int32(StateResolving))
		t, err := resolve.Resolve(target, s.resolveOpts()...)
		if err != nil {
			return nil, err
		}
		s.target = t
	} else if s.target == nil {
		return nil, fmt.Errorf("%w: no target", network.ErrInvalidArgument)
	}

	s.stopped.Store(false)
	s.stats.reset()

	h, err := s.transport.Open(s.target.Family())
	if err != nil {
		return nil, err
	}
	defer h.Close()

	id := h.Identity()
	s.state.Store(int32(StateRunning))
	s.log.Debug("session started",
		"target", s.target.Text(), "family", s.target.Family().String(), "identity", id)

	// One receive buffer for the whole run: IPv4 header plus echo header
	// plus maximum payload, rounded up.
	buf := make([]byte, 512)

	for seq := uint16(1); (s.count == 0 || int(seq) <= s.count) && !s.stopped.Load(); seq++ {
		sentAt := time.Now()

		// Arm the shared slot before the packet leaves, so a reply picked
		// up by any session finds its place.
		icmp.Replies.Reset(id, seq)

		pkt, err := icmp.BuildEcho(s.target.Family(), id, seq, s.size, sentAt)
		if err != nil {
			return nil, err
		}
		if err := h.Send(pkt, s.target.Sockaddr()); err != nil {
			return nil, err
		}
		s.stats.sent++

		bytes := s.awaitReply(h, id, sentAt, buf)

		if rtt, ok := icmp.Replies.TryElapsed(id); ok {
			s.stats.observe(rtt)
			s.log.Debug("echo reply", "seq", seq, "rtt", rtt, "bytes", bytes)
		} else {
			s.stats.lose()
			s.log.Debug("echo timeout", "seq", seq, "err", network.ErrTimeout)
		}
		s.observer.OnReceive(bytes)

		if (s.count == 0 || int(seq) < s.count) && !s.stopped.Load() {
			s.waitInterval(sentAt)
		}
	}

	if s.stopped.Load() {
		s.state.Store(int32(StateStopped))
	} else {
		s.state.Store(int32(StateCompleted))
	}
	return s.report(), nil
}

// awaitReply polls the handle until the session's correlation slot holds a
// measurement for the armed sequence number, or timeout passes, or Stop is
// observed. Every echo reply dequeued meanwhile is fed to the shared
// table, whichever session it belongs to. Returns the payload byte count
// of the session's own dequeued reply, 0 otherwise.
func (s *Session) awaitReply(h Handle, id uint16, sentAt time.Time, buf []byte) int {
	for {
		// Another session may have dequeued this session's reply and
		// recorded it already.
		if _, ok := icmp.Replies.TryElapsed(id); ok {
			return 0
		}
		if s.stopped.Load() || time.Since(sentAt) >= s.timeout {
			return 0
		}

		h.Wait(pollQuantum)
		n, ok, err := h.Recv(buf)
		if err != nil || !ok {
			continue
		}
		echo, err := icmp.ParseEcho(s.target.Family(), buf[:n])
		if err != nil {
			continue // short, foreign or looped-back packet
		}
		recvAt := time.Now()
		if icmp.Replies.RecordIfMatching(echo.ID, echo.Seq, echo.Elapsed(recvAt)) && echo.ID == id {
			return echo.Bytes
		}
		// Someone else's reply, or a stale sequence number whose timeout
		// was already counted. Keep waiting for this session's own.
	}
}

// waitInterval sleeps out the remainder of the inter-echo interval in
// short ticks so Stop stays responsive, invoking OnWait on every tick.
func (s *Session) waitInterval(sentAt time.Time) {
	for time.Since(sentAt) < s.interval && !s.stopped.Load() {
		s.observer.OnWait()
		time.Sleep(waitTick)
	}
}

// Stop requests cooperative termination of an in-flight Run. Safe to call
// from any goroutine, any number of times; takes effect within one poll or
// wait tick.
func (s *Session) Stop() {
	s.stopped.Store(true)
}

// SetObserver replaces the progress observer. Not safe while Run is in
// progress.
func (s *Session) SetObserver(o Observer) {
	if o == nil {
		o = NopObserver{}
	}
	s.observer = o
}

func (s *Session) report() *Report {
	r := &Report{
		Sent:     s.stats.sent,
		Received: s.stats.received,
		Lost:     s.stats.lost,
		Last:     s.stats.last,
		Mean:     s.stats.mean,
		Dev:      s.stats.dev(),
	}
	if s.target != nil {
		r.Host = s.target.Host()
		r.IP = s.target.IP()
	}
	if s.stats.received > 0 {
		r.Min = s.stats.min
		r.Max = s.stats.max
	}
	return r
}

// State reports where the session currently is in its lifecycle.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Target returns the canonical text of the resolved address, empty before
// the first resolve.
func (s *Session) Target() string {
	if s.target == nil {
		return ""
	}
	return s.target.Text()
}

// Size returns the configured echo payload size in bytes.
func (s *Session) Size() int { return s.size }

func (s *Session) Sent() int     { return s.stats.sent }
func (s *Session) Received() int { return s.stats.received }
func (s *Session) Lost() int     { return s.stats.lost }

// LastRTT returns the round trip of the most recent echo in milliseconds,
// 0 if it was lost.
func (s *Session) LastRTT() float64 { return s.stats.last }

// MinRTT returns the fastest round trip in milliseconds, 0 before the
// first reply.
func (s *Session) MinRTT() float64 {
	if s.stats.received == 0 {
		return 0
	}
	return s.stats.min
}

func (s *Session) MaxRTT() float64  { return s.stats.max }
func (s *Session) MeanRTT() float64 { return s.stats.mean }

// VarRTT returns the population variance of round trips in ms².
func (s *Session) VarRTT() float64 { return s.stats.variance() }

// Err returns the error of the most recent Run, nil after a clean run.
func (s *Session) Err() error { return s.lastErr }
