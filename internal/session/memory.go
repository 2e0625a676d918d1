package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. Sessions do not survive a restart and
// are invisible to other replicas.
type MemoryStore struct {
	mu       sync.Mutex
	opts     Options
	clock    func() time.Time
	sessions map[string]*memSession
}

type memSession struct {
	active  bool
	turns   []Turn
	expires time.Time
}

func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{opts: opts.withDefaults(), clock: time.Now, sessions: map[string]*memSession{}}
}

// WithClock replaces the time source, for expiry tests.
func (m *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	m.clock = clock
	return m
}

// liveLocked returns the session for id, dropping it first if it expired.
func (m *MemoryStore) liveLocked(id string) *memSession {
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	if !m.clock().Before(s.expires) {
		delete(m.sessions, id)
		return nil
	}
	return s
}

func (m *MemoryStore) touchLocked(id string) *memSession {
	s := m.liveLocked(id)
	if s == nil {
		s = &memSession{}
		m.sessions[id] = s
	}
	s.expires = m.clock().Add(m.opts.TTL)
	return s
}

func (m *MemoryStore) Start(ctx context.Context, callID string) error {
	id, err := normalizeID(callID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchLocked(id).active = true
	return nil
}

func (m *MemoryStore) Active(ctx context.Context, callID string) (bool, error) {
	id, err := normalizeID(callID)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.liveLocked(id)
	return s != nil && s.active, nil
}

func (m *MemoryStore) Append(ctx context.Context, callID string, turns ...Turn) error {
	id, err := normalizeID(callID)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.touchLocked(id)
	s.active = true
	s.turns = append(s.turns, turns...)
	if over := len(s.turns) - m.opts.MaxTurns; over > 0 {
		s.turns = append([]Turn(nil), s.turns[over:]...)
	}
	return nil
}

func (m *MemoryStore) History(ctx context.Context, callID string) ([]Turn, error) {
	id, err := normalizeID(callID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.liveLocked(id)
	if s == nil {
		return nil, nil
	}
	return append([]Turn(nil), s.turns...), nil
}

func (m *MemoryStore) End(ctx context.Context, callID string) error {
	id, err := normalizeID(callID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
