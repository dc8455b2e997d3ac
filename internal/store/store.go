// Package store persists the device's provisioning configuration as a small
// key-value table. Values survive restarts and are wiped wholesale by a
// factory reset. The SQLite implementation is the real backend; Memory backs
// tests and diskless development runs.
package store

// Store is the persisted key-value surface the rest of the firmware talks
// to. Getters report presence separately from errors so callers can
// distinguish "never set" from "set to the zero value".
type Store interface {
	GetString(key string) (value string, ok bool, err error)
	SetString(key, value string) error
	GetInt(key string) (value int, ok bool, err error)
	SetInt(key string, value int) error
	GetBool(key string) (value bool, ok bool, err error)
	SetBool(key string, value bool) error

	// Delete removes a single key. Deleting an absent key is not an error.
	Delete(key string) error
	// Wipe removes every key. This is the factory-reset erase.
	Wipe() error

	Close() error
}
