// Package metrics keeps in-process counters for handled traffic. The counters
// reset on restart; durable aggregates live in the statistics collection.
package metrics

import "sync"

// Recorder receives one event per handled message or command.
type Recorder interface {
	RecordMessage(kind string)
	RecordCommand(name string)
}

// InMemory is a mutex-guarded Recorder safe for concurrent handlers.
type InMemory struct {
	mu       sync.Mutex
	messages map[string]int64
	commands map[string]int64
}

// NewInMemory returns an empty recorder.
func NewInMemory() *InMemory {
	return &InMemory{
		messages: make(map[string]int64),
		commands: make(map[string]int64),
	}
}

func (m *InMemory) RecordMessage(kind string) {
	if m == nil || kind == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[kind]++
}

func (m *InMemory) RecordCommand(name string) {
	if m == nil || name == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[name]++
}

// Messages returns a copy of the per-kind message counters.
func (m *InMemory) Messages() map[string]int64 {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int64, len(m.messages))
	for kind, n := range m.messages {
		out[kind] = n
	}
	return out
}

// Commands returns a copy of the per-name command counters.
func (m *InMemory) Commands() map[string]int64 {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int64, len(m.commands))
	for name, n := range m.commands {
		out[name] = n
	}
	return out
}

// TotalMessages sums every message counter.
func (m *InMemory) TotalMessages() int64 {
	if m == nil {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, n := range m.messages {
		total += n
	}
	return total
}

// TotalCommands sums every command counter.
func (m *InMemory) TotalCommands() int64 {
	if m == nil {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, n := range m.commands {
		total += n
	}
	return total
}
