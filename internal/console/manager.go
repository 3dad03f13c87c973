// Package console serves the live run console: a WebSocket per browser tab
// over which submissions are evaluated and reports streamed back.
package console

import (
	"log/slog"
	"sync"

	"github.com/ashureev/datagym/internal/workspace"
	"github.com/coder/websocket"
)

// SessionManager tracks the open console connection of each workspace.
type SessionManager struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn // device -> session -> conn
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// GetActive returns the open connection for a workspace, or nil.
func (m *SessionManager) GetActive(key workspace.Key) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[key.DeviceID]; ok {
		return sessions[key.SessionID]
	}
	return nil
}

// Count returns the number of open connections.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}

// Register records conn as the console of key. A previous connection for
// the same tab is closed.
func (m *SessionManager) Register(key workspace.Key, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[key.DeviceID]; !exists {
		m.active[key.DeviceID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := m.active[key.DeviceID][key.SessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "console replaced")
	}

	m.active[key.DeviceID][key.SessionID] = conn
	slog.Debug("console registered", "workspace", key.String())
}

// Unregister removes conn if it is still the console of key.
func (m *SessionManager) Unregister(key workspace.Key, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[key.DeviceID]
	if !ok {
		return
	}
	if current, exists := sessions[key.SessionID]; exists && current == conn {
		delete(sessions, key.SessionID)
		if len(sessions) == 0 {
			delete(m.active, key.DeviceID)
		}
		slog.Debug("console unregistered", "workspace", key.String())
	}
}

// CloseWorkspace closes the console of an evicted workspace. It matches
// workspace.EvictCallback.
func (m *SessionManager) CloseWorkspace(key workspace.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[key.DeviceID]
	if !ok {
		return
	}
	conn, ok := sessions[key.SessionID]
	if !ok {
		return
	}
	_ = conn.Close(websocket.StatusGoingAway, "workspace expired")
	delete(sessions, key.SessionID)
	if len(sessions) == 0 {
		delete(m.active, key.DeviceID)
	}
	slog.Info("console closed", "workspace", key.String())
}
