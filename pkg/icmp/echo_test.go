package icmp

import (
	"errors"
	"testing"
	"time"

	"github.com/taskping/taskping/network"
)

const (
	icmp4EchoReply = 0
	icmp6EchoReply = 129
)

// fakeIPv4 prepends a minimal 20-byte IPv4 header, the way a raw IPv4
// socket delivers a datagram.
func fakeIPv4(icmpPkt []byte) []byte {
	hdr := make([]byte, 20)
	hdr[0] = 0x45 // version 4, header length 5*4
	hdr[12], hdr[13], hdr[14], hdr[15] = 192, 0, 2, 1
	return append(hdr, icmpPkt...)
}

func TestEchoRoundTripIPv4(t *testing.T) {
	sentAt := time.Now()
	req, err := BuildEcho(IPv4, 321, 7, 32, sentAt)
	if err != nil {
		t.Fatal(err)
	}

	// A responder echoes the packet back with the reply type.
	req[0] = icmp4EchoReply
	echo, err := ParseEcho(IPv4, fakeIPv4(req))
	if err != nil {
		t.Fatal(err)
	}
	if echo.ID != 321 || echo.Seq != 7 {
		t.Fatalf("id/seq = %d/%d, want 321/7", echo.ID, echo.Seq)
	}
	if echo.SentAt != uint64(sentAt.UnixMicro()) {
		t.Fatalf("timestamp = %d, want %d", echo.SentAt, sentAt.UnixMicro())
	}
	if echo.Bytes != 32 {
		t.Fatalf("payload = %d bytes, want 32", echo.Bytes)
	}
	if rtt := echo.Elapsed(sentAt.Add(3 * time.Millisecond)); rtt != 3*time.Millisecond {
		t.Fatalf("elapsed = %v, want 3ms", rtt)
	}
}

func TestEchoRoundTripIPv6(t *testing.T) {
	sentAt := time.Now()
	req, err := BuildEcho(IPv6, 55, 1, 64, sentAt)
	if err != nil {
		t.Fatal(err)
	}

	req[0] = icmp6EchoReply
	// Raw ICMPv6 sockets deliver the message with no network header.
	echo, err := ParseEcho(IPv6, req)
	if err != nil {
		t.Fatal(err)
	}
	if echo.ID != 55 || echo.Seq != 1 || echo.Bytes != 64 {
		t.Fatalf("id/seq/bytes = %d/%d/%d, want 55/1/64", echo.ID, echo.Seq, echo.Bytes)
	}
	if echo.SentAt != uint64(sentAt.UnixMicro()) {
		t.Fatalf("timestamp = %d, want %d", echo.SentAt, sentAt.UnixMicro())
	}
}

func TestEchoNarrowTimestamp(t *testing.T) {
	sentAt := time.Now()
	req, err := BuildEcho(IPv6, 9, 2, 4, sentAt) // minimum payload, 4-byte stamp
	if err != nil {
		t.Fatal(err)
	}

	req[0] = icmp6EchoReply
	echo, err := ParseEcho(IPv6, req)
	if err != nil {
		t.Fatal(err)
	}
	if echo.SentAt != uint64(uint32(sentAt.UnixMicro())) {
		t.Fatalf("narrow timestamp = %d, want low 32 bits of %d", echo.SentAt, sentAt.UnixMicro())
	}
	if rtt := echo.Elapsed(sentAt.Add(5 * time.Millisecond)); rtt != 5*time.Millisecond {
		t.Fatalf("elapsed = %v, want 5ms despite the narrow stamp", rtt)
	}
}

func TestEchoDeterministicFiller(t *testing.T) {
	a, err := BuildEcho(IPv4, 1, 1, 64, time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	b, err := BuildEcho(IPv4, 1, 1, 64, time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatal("identical inputs must build identical packets")
	}
	// filler bytes follow the incrementing pattern after the 8-byte stamp
	payload := a[8:] // echo header is 8 bytes
	for i := 8; i < 64; i++ {
		if payload[i] != byte(i) {
			t.Fatalf("filler[%d] = %#x, want %#x", i, payload[i], byte(i))
		}
	}
}

func TestEchoSizeValidation(t *testing.T) {
	for _, size := range []int{-1, 0, 3, 257} {
		if _, err := BuildEcho(IPv4, 1, 1, size, time.Now()); !errors.Is(err, network.ErrInvalidArgument) {
			t.Fatalf("size %d: err = %v, want ErrInvalidArgument", size, err)
		}
	}
	for _, size := range []int{4, 256} {
		if _, err := BuildEcho(IPv4, 1, 1, size, time.Now()); err != nil {
			t.Fatalf("size %d: unexpected error %v", size, err)
		}
	}
}

func TestParseRejectsEchoRequest(t *testing.T) {
	req, err := BuildEcho(IPv6, 1, 1, 32, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	// A node may see its own looped-back request; it must be skipped.
	if _, err := ParseEcho(IPv6, req); !errors.Is(err, ErrNotEcho) {
		t.Fatalf("err = %v, want ErrNotEcho", err)
	}
}

func TestParseRejectsTruncated(t *testing.T) {
	if _, err := ParseEcho(IPv6, []byte{icmp6EchoReply, 0, 0}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("short v6 buffer: err = %v, want ErrTruncated", err)
	}
	if _, err := ParseEcho(IPv4, make([]byte, 10)); !errors.Is(err, ErrTruncated) {
		t.Fatalf("short v4 buffer: err = %v, want ErrTruncated", err)
	}
}

func TestStripIPv4Header(t *testing.T) {
	pkt := fakeIPv4(make([]byte, 16))
	src, off := StripIPv4Header(pkt)
	if off != 20 {
		t.Fatalf("offset = %d, want 20", off)
	}
	if src.String() != "192.0.2.1" {
		t.Fatalf("src = %v, want 192.0.2.1", src)
	}
	if _, off := StripIPv4Header([]byte{0x60}); off != 0 {
		t.Fatal("non-IPv4 buffer must yield zero offset")
	}
}
