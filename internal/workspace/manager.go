package workspace

import (
	"sync"
	"time"
)

// Manager owns the live workspaces.
type Manager struct {
	mu         sync.Mutex
	workspaces map[Key]*Workspace
	now        func() time.Time
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		workspaces: make(map[Key]*Workspace),
		now:        time.Now,
	}
}

// Get returns the workspace for key, creating it on first use, and marks it
// as seen.
func (m *Manager) Get(key Key) *Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws, ok := m.workspaces[key]
	if !ok {
		ws = newWorkspace(key, m.clock)
		m.workspaces[key] = ws
		return ws
	}
	ws.Touch()
	return ws
}

func (m *Manager) clock() time.Time {
	return m.now()
}

// Lookup returns the workspace for key without creating or touching it.
func (m *Manager) Lookup(key Key) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[key]
	return ws, ok
}

// Close discards the workspace for key.
func (m *Manager) Close(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workspaces, key)
}

// Len returns the number of live workspaces.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

// Sweep evicts workspaces idle for longer than ttl and returns their keys.
// A workspace with a run in progress is kept.
func (m *Manager) Sweep(ttl time.Duration) []Key {
	m.mu.Lock()
	defer m.mu.Unlock()

	threshold := m.now().Add(-ttl)
	var evicted []Key
	for key, ws := range m.workspaces {
		if ws.Running() || !ws.LastSeen().Before(threshold) {
			continue
		}
		delete(m.workspaces, key)
		evicted = append(evicted, key)
	}
	return evicted
}
