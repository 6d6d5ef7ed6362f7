package ping

// Observer receives progress callbacks during a run, invoked synchronously
// on the goroutine driving Run. Session read accessors are safe to call
// from inside either method. Implementations must return quickly; the poll
// loop is on hold while they run.
type Observer interface {
	// OnReceive is called once per echo cycle with the payload byte count
	// of the reply the session dequeued itself, 0 when the echo timed out
	// or the reply was picked up and recorded by another session.
	OnReceive(bytes int)

	// OnWait is called on every tick while the session sleeps out the
	// inter-echo interval.
	OnWait()
}

// NopObserver is the default Observer. It does nothing.
type NopObserver struct{}

func (NopObserver) OnReceive(int) {}
func (NopObserver) OnWait()       {}

// ObserverFuncs adapts plain functions to Observer. Nil fields are no-ops.
type ObserverFuncs struct {
	Receive func(bytes int)
	Wait    func()
}

func (o ObserverFuncs) OnReceive(bytes int) {
	if o.Receive != nil {
		o.Receive(bytes)
	}
}

func (o ObserverFuncs) OnWait() {
	if o.Wait != nil {
		o.Wait()
	}
}
