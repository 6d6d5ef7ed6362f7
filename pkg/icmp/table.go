package icmp

import (
	"sync/atomic"
	"time"
)

// TableCapacity bounds the number of concurrently live sessions. A session
// identity is a raw socket descriptor, a small integer, so a flat array of
// atomic slots covers every identity the stack can hand out; Open rejects
// descriptors beyond it.
const TableCapacity = 4096

// Slot layout, one atomic word per identity: the expected sequence number
// in the top 16 bits, the measured round trip in microseconds in the low
// 48. Zero elapsed means "no reply yet". A slot is meaningful only between
// the owner's send of sequence N and its send of N+1.
const elapsedMask = uint64(1)<<48 - 1

type Table struct {
	slots [TableCapacity]atomic.Uint64
}

// Replies is the process-wide table shared by every live session. A
// session that dequeues a reply owned by another session records it here,
// so the owner finds it on its next poll.
var Replies Table

// Reset arms the slot for identity id with the next expected sequence
// number and clears any previous measurement. Only the owning session
// calls this, immediately before each send.
func (t *Table) Reset(id, seq uint16) {
	if int(id) >= TableCapacity {
		return
	}
	t.slots[id].Store(uint64(seq) << 48)
}

// TryElapsed reads the measured round trip for identity id. ok is false
// while no reply for the armed sequence number has been recorded. The read
// never clears the slot; the next Reset does.
func (t *Table) TryElapsed(id uint16) (time.Duration, bool) {
	if int(id) >= TableCapacity {
		return 0, false
	}
	v := t.slots[id].Load() & elapsedMask
	if v == 0 {
		return 0, false
	}
	return time.Duration(v) * time.Microsecond, true
}

// RecordIfMatching stores elapsed for identity id if the slot still
// expects seq, and reports whether the reply was attributed. A late reply
// whose sequence number no longer matches is dropped: its timeout has
// already been counted by the owner. Double delivery is last-writer-wins.
func (t *Table) RecordIfMatching(id, seq uint16, elapsed time.Duration) bool {
	if int(id) >= TableCapacity {
		return false
	}
	micros := uint64(elapsed/time.Microsecond) & elapsedMask
	if micros == 0 {
		micros = 1 // sub-microsecond trips must not read as "no reply yet"
	}
	for {
		old := t.slots[id].Load()
		if uint16(old>>48) != seq {
			return false
		}
		if t.slots[id].CompareAndSwap(old, uint64(seq)<<48|micros) {
			return true
		}
	}
}
