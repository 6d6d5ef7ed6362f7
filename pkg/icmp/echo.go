// Package icmp builds and parses ICMP echo packets and keeps the shared
// reply correlation table.
//
// Raw ICMP sockets have no port demultiplexing: the stack hands every
// inbound ICMP packet of a family to every open raw socket of that family.
// The echo identifier therefore carries the owning session's socket
// descriptor, and whichever session dequeues a reply records it in the
// shared table for the owner to find.
package icmp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	xicmp "golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/taskping/taskping/network"
)

const (
	// MinPayload and MaxPayload bound the echo payload size, send
	// timestamp included.
	MinPayload = 4
	MaxPayload = 256

	// The payload starts with the send instant in big-endian microseconds
	// since the unix epoch: 8 bytes normally, the low 32 bits when the
	// requested payload cannot hold 8.
	wideStamp   = 8
	narrowStamp = 4
)

type Family int

const (
	IPv4 Family = 4
	IPv6 Family = 6
)

func (f Family) Protocol() int {
	if f == IPv6 {
		return ipv6.ICMPType(0).Protocol()
	}
	return ipv4.ICMPType(0).Protocol()
}

func (f Family) String() string {
	if f == IPv6 {
		return "ipv6"
	}
	return "ipv4"
}

var (
	// ErrNotEcho reports a packet that is not an echo reply of the
	// expected family. Pollers skip it and keep waiting.
	ErrNotEcho = errors.New("not an echo reply")

	// ErrTruncated reports a buffer too short to hold the echo header and
	// the embedded send timestamp.
	ErrTruncated = errors.New("truncated packet")
)

func stampLen(size int) int {
	if size >= wideStamp {
		return wideStamp
	}
	return narrowStamp
}

// BuildEcho builds an echo request for the given session identity and
// sequence number. The payload is the send instant followed by
// deterministic incrementing filler up to size bytes; the responder echoes
// it back, which is how round-trip time is measured without keeping
// per-packet state. The IPv4 checksum is computed here; the ICMPv6
// checksum covers a pseudo-header and is filled in by the kernel on raw
// sockets.
func BuildEcho(family Family, id, seq uint16, size int, sentAt time.Time) ([]byte, error) {
	if size < MinPayload || size > MaxPayload {
		return nil, fmt.Errorf("%w: payload size %d not in [%d, %d]",
			network.ErrInvalidArgument, size, MinPayload, MaxPayload)
	}
	data := make([]byte, size)
	micros := uint64(sentAt.UnixMicro())
	n := stampLen(size)
	if n == wideStamp {
		binary.BigEndian.PutUint64(data, micros)
	} else {
		binary.BigEndian.PutUint32(data, uint32(micros))
	}
	for i := n; i < size; i++ {
		data[i] = byte(i)
	}

	var typ xicmp.Type = ipv4.ICMPTypeEcho
	if family == IPv6 {
		typ = ipv6.ICMPTypeEchoRequest
	}
	msg := xicmp.Message{
		Type: typ, Code: 0,
		Body: &xicmp.Echo{
			ID:   int(id),
			Seq:  int(seq),
			Data: data,
		},
	}
	return msg.Marshal(nil)
}

// Echo is a parsed echo reply.
type Echo struct {
	ID     uint16
	Seq    uint16
	SentAt uint64 // echoed send instant, microseconds since the unix epoch
	Bytes  int    // payload bytes past the echo header

	narrow bool // 4-byte timestamp
}

// Elapsed returns the round trip measured at the receive instant now.
// Narrow timestamps wrap about every 71 minutes; unsigned arithmetic keeps
// the difference correct for any realistic round trip.
func (e *Echo) Elapsed(now time.Time) time.Duration {
	micros := uint64(now.UnixMicro())
	if e.narrow {
		return time.Duration(uint32(micros)-uint32(e.SentAt)) * time.Microsecond
	}
	return time.Duration(micros-e.SentAt) * time.Microsecond
}

// ParseEcho parses a raw received datagram. Raw IPv4 sockets deliver the
// network header, skipped here by its declared length; raw ICMPv6 sockets
// deliver the ICMP message directly. Anything that is not an echo reply of
// the expected family, an echo request looped back included, fails with
// ErrNotEcho so the caller keeps polling.
func ParseEcho(family Family, buf []byte) (*Echo, error) {
	start := 0
	if family == IPv4 {
		_, start = StripIPv4Header(buf)
		if start == 0 {
			return nil, ErrTruncated
		}
	}
	if len(buf) < start+8+narrowStamp {
		return nil, ErrTruncated
	}
	m, err := xicmp.ParseMessage(family.Protocol(), buf[start:])
	if err != nil {
		return nil, err
	}
	if m.Type != ipv4.ICMPTypeEchoReply && m.Type != ipv6.ICMPTypeEchoReply {
		return nil, ErrNotEcho
	}
	body, ok := m.Body.(*xicmp.Echo)
	if !ok {
		return nil, ErrNotEcho
	}
	e := &Echo{
		ID:    uint16(body.ID),
		Seq:   uint16(body.Seq),
		Bytes: len(body.Data),
	}
	switch {
	case len(body.Data) >= wideStamp:
		e.SentAt = binary.BigEndian.Uint64(body.Data)
	case len(body.Data) >= narrowStamp:
		e.SentAt = uint64(binary.BigEndian.Uint32(body.Data))
		e.narrow = true
	default:
		return nil, ErrTruncated
	}
	return e, nil
}

// StripIPv4Header returns the source address and the offset of the ICMP
// message inside a raw IPv4 datagram. The header length is declared in
// 4-byte units in the first byte. Returns a zero offset for anything that
// is not a plausible IPv4 datagram.
func StripIPv4Header(b []byte) (net.IP, int) {
	if len(b) < 20 {
		return nil, 0
	}
	if b[0]>>4 != 4 {
		return nil, 0
	}
	l := int(b[0]&0x0f) << 2
	if l < 20 || l > len(b) {
		return nil, 0
	}
	src := net.IPv4(b[12], b[13], b[14], b[15])
	return src, l
}
