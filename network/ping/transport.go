package ping

import (
	"syscall"
	"time"

	"github.com/taskping/taskping/network"
	"github.com/taskping/taskping/pkg/icmp"
	"github.com/taskping/taskping/pkg/resolve"
)

// Transport abstracts the raw-socket layer so tests can substitute a stub
// that never touches the network.
type Transport interface {
	// Open allocates a non-blocking handle for the family. The handle's
	// identity is embedded in outbound echo identifiers and must be unique
	// among concurrently live sessions.
	Open(family icmp.Family) (Handle, error)
}

// Handle is one session's channel to the network for the duration of one
// run.
type Handle interface {
	Identity() uint16
	Send(b []byte, sa syscall.Sockaddr) error
	// Recv performs one non-blocking receive; ok is false when nothing is
	// queued.
	Recv(b []byte) (n int, ok bool, err error)
	// Wait parks the caller until the handle may be readable, at most
	// quantum.
	Wait(quantum time.Duration)
	Close() error
}

// rawTransport is the production implementation over raw ICMP sockets. It
// carries the connectivity guard: opening a raw socket with no usable
// network address is a guaranteed failure, so it is refused up front.
type rawTransport struct{}

func (rawTransport) Open(f icmp.Family) (Handle, error) {
	if !resolve.Connected() {
		return nil, network.ErrNotConnected
	}
	return icmp.Open(f)
}
