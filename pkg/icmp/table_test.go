package icmp

import (
	"sync"
	"testing"
	"time"
)

func TestTableResetArmsSlot(t *testing.T) {
	var tbl Table
	tbl.Reset(10, 1)

	if _, ok := tbl.TryElapsed(10); ok {
		t.Fatal("armed slot must read as no-reply-yet")
	}
	if !tbl.RecordIfMatching(10, 1, 42*time.Microsecond) {
		t.Fatal("matching sequence must be recorded")
	}
	rtt, ok := tbl.TryElapsed(10)
	if !ok || rtt != 42*time.Microsecond {
		t.Fatalf("elapsed = %v/%v, want 42µs", rtt, ok)
	}
}

func TestTableStaleSequenceDropped(t *testing.T) {
	var tbl Table
	tbl.Reset(11, 2)

	if tbl.RecordIfMatching(11, 1, time.Millisecond) {
		t.Fatal("stale sequence number must not be recorded")
	}
	if _, ok := tbl.TryElapsed(11); ok {
		t.Fatal("slot must stay empty after a stale reply")
	}
}

func TestTableResetClearsPreviousMeasurement(t *testing.T) {
	var tbl Table
	tbl.Reset(12, 1)
	tbl.RecordIfMatching(12, 1, time.Millisecond)

	tbl.Reset(12, 2)
	if _, ok := tbl.TryElapsed(12); ok {
		t.Fatal("re-arming must clear the previous measurement")
	}
}

func TestTableSubMicrosecondClamped(t *testing.T) {
	var tbl Table
	tbl.Reset(13, 1)
	tbl.RecordIfMatching(13, 1, 0)

	rtt, ok := tbl.TryElapsed(13)
	if !ok || rtt != time.Microsecond {
		t.Fatalf("elapsed = %v/%v, want clamp to 1µs", rtt, ok)
	}
}

func TestTableOutOfRangeIdentity(t *testing.T) {
	var tbl Table
	tbl.Reset(TableCapacity, 1) // must not panic
	if tbl.RecordIfMatching(TableCapacity, 1, time.Millisecond) {
		t.Fatal("out-of-range identity must be ignored")
	}
	if _, ok := tbl.TryElapsed(TableCapacity); ok {
		t.Fatal("out-of-range identity must read empty")
	}
}

// Any number of sessions may race to record the same reply; exactly the
// armed sequence wins and the owner observes one coherent value.
func TestTableConcurrentRecorders(t *testing.T) {
	var tbl Table
	tbl.Reset(14, 9)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tbl.RecordIfMatching(14, 9, time.Duration(n+1)*time.Millisecond)
			tbl.RecordIfMatching(14, 8, time.Hour) // stale, must lose
		}(i)
	}
	wg.Wait()

	rtt, ok := tbl.TryElapsed(14)
	if !ok {
		t.Fatal("a matching reply must have been recorded")
	}
	if rtt < time.Millisecond || rtt > 8*time.Millisecond {
		t.Fatalf("elapsed = %v, want one of the matching writes", rtt)
	}
}
