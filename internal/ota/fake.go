package ota

import (
	"bytes"
	"fmt"
)

// Fake is a scripted test double for the Updater interface.
type Fake struct {
	Image      bytes.Buffer
	BeginSize  int64
	BeginCalls int
	Committed  bool
	Aborted    bool

	// Error injection.
	BeginErr  error
	WriteErr  error
	CommitErr error

	inFlight bool
}

func (f *Fake) Begin(size int64) error {
	if f.BeginErr != nil {
		return f.BeginErr
	}
	if f.inFlight {
		return fmt.Errorf("update already in progress")
	}
	f.BeginCalls++
	f.BeginSize = size
	f.Image.Reset()
	f.Committed = false
	f.Aborted = false
	f.inFlight = true
	return nil
}

func (f *Fake) Write(p []byte) (int, error) {
	if f.WriteErr != nil {
		return 0, f.WriteErr
	}
	if !f.inFlight {
		return 0, fmt.Errorf("no update in progress")
	}
	return f.Image.Write(p)
}

func (f *Fake) Commit() error {
	if f.CommitErr != nil {
		return f.CommitErr
	}
	if !f.inFlight {
		return fmt.Errorf("no update in progress")
	}
	f.Committed = true
	f.inFlight = false
	return nil
}

func (f *Fake) Abort() {
	if !f.inFlight {
		return
	}
	f.Aborted = true
	f.inFlight = false
}
