package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryBackend struct {
	types   map[string]bool
	records map[string][]byte
	lists   map[string][]string
	// closed and replaced whenever an item is pushed
	pushed chan struct{}
	mu     sync.Mutex
}

// In-process service for a single coordinator and local workers
func NewMemory(opts Options) Service {
	return &service{
		backend: &memoryBackend{
			types:   map[string]bool{},
			records: map[string][]byte{},
			lists:   map[string][]string{},
			pushed:  make(chan struct{}),
		},
		opts: opts.withDefaults(),
	}
}

func typeKey(kind string, t Type) string {
	return kind + ":" + t.Name + ":" + t.Version
}

func (m *memoryBackend) register(_ context.Context, kind string, t Type) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[typeKey(kind, t)] = true
	return nil
}

func (m *memoryBackend) registered(_ context.Context, kind string, t Type) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.types[typeKey(kind, t)], nil
}

// Executions are kept serialized so callers never share state with the store
func (m *memoryBackend) load(id string) (*execution, error) {
	raw, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExecution, id)
	}
	var e execution
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (m *memoryBackend) save(e *execution) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	m.records[e.ID] = raw
	return nil
}

func (m *memoryBackend) create(_ context.Context, e *execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, err := m.load(e.ID); err == nil && existing.open() {
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, e.ID)
	}
	return m.save(e)
}

func (m *memoryBackend) update(_ context.Context, id string, fn func(*execution) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.load(id)
	if err != nil {
		return err
	}
	if err := fn(e); err != nil {
		return err
	}
	return m.save(e)
}

func (m *memoryBackend) executions(_ context.Context) ([]*execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]*execution, 0, len(m.records))
	for id := range m.records {
		e, err := m.load(id)
		if err != nil {
			return nil, err
		}
		all = append(all, e)
	}
	return all, nil
}

func (m *memoryBackend) remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *memoryBackend) push(_ context.Context, list, item string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[list] = append(m.lists[list], item)
	close(m.pushed)
	m.pushed = make(chan struct{})
	return nil
}

func (m *memoryBackend) pop(ctx context.Context, list string, timeout time.Duration) (string, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		m.mu.Lock()
		if items := m.lists[list]; len(items) > 0 {
			m.lists[list] = items[1:]
			m.mu.Unlock()
			return items[0], true, nil
		}
		pushed := m.pushed
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-timer.C:
			return "", false, nil
		case <-pushed:
		}
	}
}
