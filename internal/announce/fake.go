package announce

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	// SignEvents contains all sign events that were published.
	SignEvents []SignEvent

	// SignPayloads contains the JSON payloads that were published.
	SignPayloads [][]byte

	// SystemEvents contains all lifecycle events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for lifecycle events.
	SystemPayloads [][]byte

	// PublishSignError, if set, will be returned by PublishSign.
	PublishSignError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishSign records the sign event.
func (f *FakePublisher) PublishSign(event SignEvent) error {
	if f.PublishSignError != nil {
		return f.PublishSignError
	}

	f.SignEvents = append(f.SignEvents, event)

	payload, err := FormatSignPayload(event)
	if err != nil {
		return err
	}
	f.SignPayloads = append(f.SignPayloads, payload)

	return nil
}

// PublishSystem records the lifecycle event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.SignEvents = nil
	f.SignPayloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishSignError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
