package account

import "sync"

// Store exposes account retrieval for the auth service.
type Store interface {
	List() []User
	FindByID(id string) (User, bool)
	FindByUsername(username string) (User, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	mu    sync.RWMutex
	items []User
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied accounts.
func NewMemoryStore(items []User) *MemoryStore {
	return &MemoryStore{items: append([]User(nil), items...)}
}

// List returns all accounts.
func (s *MemoryStore) List() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]User(nil), s.items...)
}

// FindByID looks up an account by identifier.
func (s *MemoryStore) FindByID(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return User{}, false
}

// FindByUsername looks up an account by login name.
func (s *MemoryStore) FindByUsername(username string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.Username == username {
			return item, true
		}
	}
	return User{}, false
}

// Add appends an account.
func (s *MemoryStore) Add(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, u)
}
