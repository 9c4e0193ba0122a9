// Package ws fans in-app notifications out to live websocket sessions.
package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"flight-alert-service/internal/logging"
)

const maxConnectionsPerUser = 10

// Manager tracks websocket connections per user.
type Manager struct {
	connections map[int64]map[*websocket.Conn]bool
	mutex       sync.Mutex
	logger      *logging.Logger
}

func NewManager(logger *logging.Logger) *Manager {
	return &Manager{
		connections: make(map[int64]map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// AddConnection registers a connection for a user.
func (m *Manager) AddConnection(userID int64, conn *websocket.Conn) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.connections[userID]; !exists {
		m.connections[userID] = make(map[*websocket.Conn]bool)
	}
	if len(m.connections[userID]) >= maxConnectionsPerUser {
		m.logger.Warnf("Max connections reached for user %d", userID)
		return
	}
	m.connections[userID][conn] = true
	m.logger.Infof("Added websocket connection for user %d (total: %d)", userID, len(m.connections[userID]))
}

// RemoveConnection unregisters a connection for a user.
func (m *Manager) RemoveConnection(userID int64, conn *websocket.Conn) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if conns, exists := m.connections[userID]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(m.connections, userID)
		}
		m.logger.Infof("Removed websocket connection for user %d (remaining: %d)", userID, len(conns))
	}
}

// SendToUser writes a message to every live connection of a user. Broken
// connections are dropped.
func (m *Manager) SendToUser(userID int64, message []byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	conns, exists := m.connections[userID]
	if !exists {
		return
	}
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			m.logger.Errorf("Failed to send websocket message to user %d: %v", userID, err)
			delete(conns, conn)
		}
	}
	if len(conns) == 0 {
		delete(m.connections, userID)
	}
}
