package store

import (
	"context"
	"sync"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/model"
)

// InMemoryStore is an implementation of UserStore backed by simple
// in-memory maps.  It is safe for concurrent use and intended primarily
// for unit tests, development and load runs.  Data is not persisted
// beyond the lifetime of the process.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]*model.User
	emails map[string]int64
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:  make(map[int64]*model.User),
		emails: make(map[string]int64),
	}
}

// FindByID retrieves a user by id.  It returns (nil, nil) if the user
// does not exist.
func (s *InMemoryStore) FindByID(ctx context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[id].Clone(), nil
}

// FindByEmail retrieves a user by email.  It returns (nil, nil) if no
// user owns the address.
func (s *InMemoryStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return nil, nil
	}
	return s.users[id].Clone(), nil
}

func (s *InMemoryStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.emails[email]
	return ok, nil
}

// Save upserts u.  IDs are assigned sequentially starting from 1 so
// that the zero value keeps meaning "unassigned".  The email index is
// moved when an existing user changes address.
func (s *InMemoryStore) Save(ctx context.Context, u *model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := u.Clone()
	if stored.ID == 0 {
		s.nextID++
		stored.ID = s.nextID
	} else if prev, ok := s.users[stored.ID]; ok && prev.Email != stored.Email {
		s.dropEmail(prev)
	}
	s.users[stored.ID] = stored
	s.emails[stored.Email] = stored.ID
	return stored.Clone(), nil
}

func (s *InMemoryStore) Delete(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.users[u.ID]
	if !ok {
		return nil
	}
	delete(s.users, u.ID)
	s.dropEmail(prev)
	return nil
}

// FindAll returns all users stored.  The order follows map iteration
// and is therefore unspecified.
func (s *InMemoryStore) FindAll(ctx context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u.Clone())
	}
	return users, nil
}

// dropEmail removes the index entry for u only if it still points at u.
// The store tolerates duplicate emails, so another user may own it now.
func (s *InMemoryStore) dropEmail(u *model.User) {
	if s.emails[u.Email] == u.ID {
		delete(s.emails, u.Email)
	}
}
