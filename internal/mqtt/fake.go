package mqtt

// FakeSubscriber delivers settings payloads directly, for tests.
type FakeSubscriber struct {
	Editor SelectionEditor

	// Rejected counts payloads that failed to parse or apply.
	Rejected int

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakeSubscriber creates a FakeSubscriber that writes to ed.
func NewFakeSubscriber(ed SelectionEditor) *FakeSubscriber {
	return &FakeSubscriber{Editor: ed, Connected: true}
}

// Deliver handles payload as if it arrived from the broker.
func (f *FakeSubscriber) Deliver(payload []byte) error {
	_, err := HandlePayload(f.Editor, payload)
	if err != nil {
		f.Rejected++
	}
	return err
}

// IsConnected reports whether the fake subscriber is "connected".
func (f *FakeSubscriber) IsConnected() bool {
	return f.Connected
}

// Close marks the subscriber as closed.
func (f *FakeSubscriber) Close() error {
	f.Closed = true
	return nil
}
