// Package poll waits on a single raw socket with a bounded timeout.
//
// The socket itself stays non-blocking; Wait only bounds how long one poll
// iteration may park, so stop flags and correlation updates written by
// other sessions are observed within one quantum.
package poll

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

type Poller struct {
	fd   int
	rfds syscall.FdSet
}

func New(fd int) *Poller {
	return &Poller{fd: fd}
}

// Wait parks the caller until the socket is readable or d elapses. It
// reports whether the socket is readable.
func (p *Poller) Wait(d time.Duration) (bool, error) {
	fdZero(&p.rfds)
	fdSet(&p.rfds, p.fd)
	timeout := syscall.NsecToTimeval(d.Nanoseconds())
	for {
		err := sysSelect(p.fd+1, &p.rfds, &timeout)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		return fdIsSet(&p.rfds, p.fd), nil
	}
}

func fdget(fd int, fds *syscall.FdSet) (index, offset int) {
	index = fd / (syscall.FD_SETSIZE / len(fds.Bits)) % len(fds.Bits)
	offset = fd % (syscall.FD_SETSIZE / len(fds.Bits))
	return
}

func fdSet(p *syscall.FdSet, i int) {
	idx, pos := fdget(i, p)
	p.Bits[idx] |= 1 << uint(pos)
}

func fdIsSet(p *syscall.FdSet, i int) bool {
	idx, pos := fdget(i, p)
	return p.Bits[idx]&(1<<uint(pos)) != 0
}

func fdZero(p *syscall.FdSet) {
	for i := range p.Bits {
		p.Bits[i] = 0
	}
}
