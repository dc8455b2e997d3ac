package announce

// Nop is the publisher used when no broker is configured.
type Nop struct{}

func (Nop) PublishSign(SignEvent) error     { return nil }
func (Nop) PublishSystem(SystemEvent) error { return nil }
func (Nop) Close() error                    { return nil }
func (Nop) IsConnected() bool               { return false }
