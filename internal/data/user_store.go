package data

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundpipe/soundpipe/internal/domain/model"
)

// UserStore tracks known users. Ids are opaque, created once and stable for
// the process lifetime.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]model.User
	now   func() time.Time
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[string]model.User),
		now:   time.Now,
	}
}

// GetOrCreate returns the user with the given id if known; otherwise it
// provisions a new user with a fresh opaque id. An empty id always provisions.
func (s *UserStore) GetOrCreate(id string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if user, ok := s.users[id]; ok {
			return user
		}
	}

	user := model.User{ID: uuid.NewString(), CreatedAt: s.now()}
	s.users[user.ID] = user
	return user
}

// Count returns the number of known users.
func (s *UserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
