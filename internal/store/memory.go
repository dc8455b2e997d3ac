package store

import (
	"fmt"
	"strconv"
	"sync"
)

// Memory is an in-process Store for tests and diskless development runs.
type Memory struct {
	mu     sync.Mutex
	values map[string]string

	// Optional fault injection for tests.
	SetError error
	GetError error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetError != nil {
		return "", false, m.GetError
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SetError != nil {
		return m.SetError
	}
	m.values[key] = value
	return nil
}

func (m *Memory) GetString(key string) (string, bool, error) {
	return m.get(key)
}

func (m *Memory) SetString(key, value string) error {
	return m.set(key, value)
}

func (m *Memory) GetInt(key string) (int, bool, error) {
	raw, ok, err := m.get(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("key %q is not an int: %w", key, err)
	}
	return n, true, nil
}

func (m *Memory) SetInt(key string, value int) error {
	return m.set(key, strconv.Itoa(value))
}

func (m *Memory) GetBool(key string) (bool, bool, error) {
	raw, ok, err := m.get(key)
	if err != nil || !ok {
		return false, ok, err
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("key %q is not a bool: %w", key, err)
	}
	return b, true, nil
}

func (m *Memory) SetBool(key string, value bool) error {
	if value {
		return m.set(key, "1")
	}
	return m.set(key, "0")
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

func (m *Memory) Wipe() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values = make(map[string]string)
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// Len reports how many keys are currently stored.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
