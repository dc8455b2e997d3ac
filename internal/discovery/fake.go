package discovery

import "sync"

// Registration records one Register call on the fake.
type Registration struct {
	Instance string
	Port     int
	TXT      []string
}

// Fake is a scripted test double for the Registrar interface.
type Fake struct {
	mu sync.Mutex

	Registrations []Registration
	CloseCalls    int

	// RegisterErr is returned by Register when set.
	RegisterErr error

	active string
}

func (f *Fake) Register(instance string, port int, txt []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.Registrations = append(f.Registrations, Registration{Instance: instance, Port: port, TXT: txt})
	f.active = instance
	return nil
}

func (f *Fake) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CloseCalls++
	f.active = ""
}

// Active reports the currently advertised instance, or "" when withdrawn.
func (f *Fake) Active() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}
