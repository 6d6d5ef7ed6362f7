// Package netlock serializes calls into the host network stack.
//
// Name resolution and raw socket setup and teardown are documented as
// unsafe for unsynchronized concurrent use, so every such call, across all
// sessions in the process, goes through this one lock. The lock is held
// only for the duration of a single call and never across a poll loop.
package netlock

import "sync"

var mu sync.Mutex

// Do runs fn with the network stack lock held.
func Do(fn func()) {
	mu.Lock()
	defer mu.Unlock()
	fn()
}
