package contextstore

import "sync"

// Memory is the default Store: a process-lifetime map with a lock per
// session entry. Entries are never evicted; growth is bounded only by the
// number of distinct sessions.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
}

type memoryEntry struct {
	mu  sync.Mutex
	ctx SessionContext
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*memoryEntry)}
}

func (m *Memory) Get(id string) (SessionContext, bool, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return SessionContext{}, false, nil
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.ctx, true, nil
}

func (m *Memory) Put(id string, sc SessionContext) error {
	entry := m.entry(id)
	entry.mu.Lock()
	entry.ctx = sc
	entry.mu.Unlock()
	return nil
}

func (m *Memory) Update(id string, fn func(*SessionContext)) (SessionContext, error) {
	entry := m.entry(id)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	fn(&entry.ctx)
	return entry.ctx, nil
}

func (m *Memory) entry(id string) *memoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		entry = &memoryEntry{ctx: NewSessionContext()}
		m.sessions[id] = entry
	}
	return entry
}
