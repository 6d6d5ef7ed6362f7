package icmp

import (
	"fmt"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/taskping/taskping/network"
	"github.com/taskping/taskping/pkg/netlock"
	"github.com/taskping/taskping/pkg/poll"
)

// Socket is a non-blocking raw ICMP socket. Its descriptor doubles as the
// session identity embedded in outbound echo identifiers.
type Socket struct {
	fd     int
	family Family
	p      *poll.Poller
}

// Open allocates a non-blocking raw socket of the given family. Socket
// setup goes through the netstack lock; the descriptor must fit the
// correlation table or the reply identifier could not be mapped back.
func Open(f Family) (*Socket, error) {
	var domain, proto int
	switch f {
	case IPv4:
		domain, proto = unix.AF_INET, unix.IPPROTO_ICMP
	case IPv6:
		domain, proto = unix.AF_INET6, unix.IPPROTO_ICMPV6
	default:
		return nil, fmt.Errorf("%w: unexpected family %d", network.ErrInvalidArgument, f)
	}
	var fd int
	var err error
	netlock.Do(func() {
		fd, err = unix.Socket(domain, unix.SOCK_RAW, proto)
		if err != nil {
			return
		}
		if nbErr := unix.SetNonblock(fd, true); nbErr != nil {
			unix.Close(fd)
			err = nbErr
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", network.ErrSocketCreation, err)
	}
	if fd >= TableCapacity {
		netlock.Do(func() { unix.Close(fd) })
		return nil, fmt.Errorf("%w: descriptor %d exceeds session capacity %d",
			network.ErrSocketCreation, fd, TableCapacity)
	}
	return &Socket{fd: fd, family: f, p: poll.New(fd)}, nil
}

// Identity returns the correlation identity carried in echo identifiers.
func (s *Socket) Identity() uint16 {
	return uint16(s.fd)
}

// Send writes one echo request. The socket write path is safe without the
// netstack lock; only setup and teardown need it.
func (s *Socket) Send(b []byte, sa syscall.Sockaddr) error {
	if err := syscall.Sendto(s.fd, b, 0, sa); err != nil {
		return fmt.Errorf("%w: %v", network.ErrSendFailed, err)
	}
	return nil
}

// Recv performs one non-blocking receive. ok is false when nothing was
// queued, which is the normal idle case in a polling loop.
func (s *Socket) Recv(b []byte) (n int, ok bool, err error) {
	n, _, err = syscall.Recvfrom(s.fd, b, 0)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// Wait parks the caller until the socket may be readable, at most quantum.
// Errors surface on the following Recv.
func (s *Socket) Wait(quantum time.Duration) {
	s.p.Wait(quantum)
}

// Close releases the descriptor under the netstack lock. The identity may
// be reused by the stack afterwards.
func (s *Socket) Close() error {
	var err error
	netlock.Do(func() { err = unix.Close(s.fd) })
	return err
}
