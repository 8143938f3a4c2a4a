package bridge

import (
	"sync"
)

// Messages holds console output captured per channel.
type Messages struct {
	mu       sync.RWMutex
	channels map[string][]string
}

func newMessages() *Messages {
	return &Messages{channels: make(map[string][]string)}
}

// Append adds msg to channel.
func (m *Messages) Append(channel, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[channel] = append(m.channels[channel], msg)
}

// Get returns a copy of one channel.
func (m *Messages) Get(channel string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.channels[channel]...)
}

// Len returns the number of channels with output.
func (m *Messages) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels)
}

// Snapshot copies every channel.
func (m *Messages) Snapshot() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string, len(m.channels))
	for ch, msgs := range m.channels {
		out[ch] = append([]string(nil), msgs...)
	}
	return out
}
