// Package resolve turns textual ping targets into address-family-tagged
// binary addresses.
package resolve

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/miekg/dns"

	"github.com/taskping/taskping/network"
	"github.com/taskping/taskping/pkg/icmp"
	"github.com/taskping/taskping/pkg/netlock"
)

const defaultExchangeTimeout = 2 * time.Second

// Target is an immutable resolved ping destination.
type Target struct {
	host   string
	text   string
	ip     net.IP
	family icmp.Family
	sa     syscall.Sockaddr
}

// Host returns the target as it was given, hostname or literal.
func (t *Target) Host() string { return t.host }

// Text returns the canonical textual form of the resolved address.
func (t *Target) Text() string { return t.text }

func (t *Target) IP() net.IP { return t.ip }

func (t *Target) Family() icmp.Family { return t.family }

// Sockaddr returns the binary address used for sendto.
func (t *Target) Sockaddr() syscall.Sockaddr { return t.sa }

type resolver struct {
	nameserver string
	timeout    time.Duration
}

type Option func(*resolver)

// NameserverOption routes lookups directly to the given DNS server instead
// of the host resolver. Address and AAAA answers are both requested; the
// first answer still wins.
func NameserverOption(addr string) Option {
	return func(r *resolver) {
		r.nameserver = addr
	}
}

// ExchangeTimeoutOption bounds one DNS exchange in nameserver mode.
func ExchangeTimeoutOption(timeout time.Duration) Option {
	return func(r *resolver) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// Resolve turns a hostname or literal address into a Target.
//
// The lookup is family-agnostic and the first answer wins, so the v4-or-v6
// choice for a dual-stack name follows resolver answer order. That is a
// documented property, not a preference policy.
//
// Resolution primitives are not safe for unsynchronized concurrent use, so
// the lookup runs under the process-wide netstack lock.
func Resolve(host string, opts ...Option) (*Target, error) {
	r := &resolver{timeout: defaultExchangeTimeout}
	for _, opt := range opts {
		opt(r)
	}
	if !Connected() {
		return nil, network.ErrNotConnected
	}
	var ip net.IP
	var err error
	netlock.Do(func() { ip, err = r.lookup(host) })
	if err != nil {
		return nil, fmt.Errorf("name resolution of %q failed: %w", host, err)
	}
	return FromIP(host, ip)
}

// FromIP builds a Target from a caller-supplied address, bypassing
// resolution. The address is rendered to canonical text and converted back
// to binary form to normalize its representation.
func FromIP(host string, ip net.IP) (*Target, error) {
	if ip == nil {
		return nil, network.ErrInvalidAddress
	}
	text := ip.String()
	ip = net.ParseIP(text)
	if ip == nil {
		return nil, network.ErrInvalidAddress
	}
	if v4 := ip.To4(); v4 != nil {
		sa := &syscall.SockaddrInet4{}
		copy(sa.Addr[:], v4)
		return &Target{host: host, text: text, ip: v4, family: icmp.IPv4, sa: sa}, nil
	}
	v6 := ip.To16()
	if v6 == nil {
		return nil, network.ErrInvalidAddress
	}
	sa := &syscall.SockaddrInet6{}
	copy(sa.Addr[:], v6)
	return &Target{host: host, text: text, ip: v6, family: icmp.IPv6, sa: sa}, nil
}

func (r *resolver) lookup(host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	if r.nameserver != "" {
		return r.exchange(host)
	}
	ns, err := net.LookupHost(host)
	if err != nil {
		return nil, err
	}
	for _, addr := range ns {
		if ip := net.ParseIP(addr); ip != nil {
			return ip, nil
		}
	}
	return nil, fmt.Errorf("no usable address for %q", host)
}

// exchange queries the configured nameserver for A then AAAA records and
// returns the first answer.
func (r *resolver) exchange(host string) (net.IP, error) {
	c := &dns.Client{Timeout: r.timeout}
	nameserver := r.nameserver
	if net.ParseIP(nameserver) != nil {
		nameserver = net.JoinHostPort(nameserver, "53")
	}
	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.Compress = true
		m.SetQuestion(dns.Fqdn(host), qtype)
		rr, _, err := c.Exchange(m, nameserver)
		if err != nil {
			lastErr = err
			continue
		}
		if rr.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("no valid answer: %s", dns.RcodeToString[rr.Rcode])
			continue
		}
		for _, k := range rr.Answer {
			switch a := k.(type) {
			case *dns.A:
				return a.A, nil
			case *dns.AAAA:
				return a.AAAA, nil
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no address records")
	}
	return nil, lastErr
}

// Connected reports whether the host has at least one up, non-loopback
// interface with an assigned address. Resolving or opening raw sockets
// without one is a guaranteed failure, so callers bail out early with
// ErrNotConnected instead.
func Connected() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		if len(addrs) > 0 {
			return true
		}
	}
	return false
}

// LocalAddr returns the local address the stack would source traffic to
// rAddr from. Purely informational, used for report banners; no packet is
// sent by the probe connect.
func LocalAddr(rAddr string) (net.IP, error) {
	conn, err := net.Dial("udp", net.JoinHostPort(rAddr, "80"))
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	host := conn.LocalAddr().String()
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	lAddr := net.ParseIP(strings.Trim(host, "[]"))
	if lAddr == nil {
		return nil, fmt.Errorf("local ip addr not found")
	}
	return lAddr, nil
}
