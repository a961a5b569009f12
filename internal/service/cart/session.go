package cart

import (
	"sync"

	"github.com/google/uuid"
)

// SessionManager keeps the open carts keyed by session id.
type SessionManager struct {
	carts map[string]*Cart
	mu    sync.RWMutex
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		carts: make(map[string]*Cart),
	}
}

// Create opens an empty cart under a fresh session id.
func (sm *SessionManager) Create() *Cart {
	c := New(uuid.NewString())
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.carts[c.ID()] = c
	return c
}

// Get retrieves the cart for a session.
func (sm *SessionManager) Get(id string) (*Cart, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	c, ok := sm.carts[id]
	return c, ok
}

// Delete removes a session.
func (sm *SessionManager) Delete(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.carts, id)
}

// Len reports the number of open sessions.
func (sm *SessionManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.carts)
}
