package authsdk

import "sync/atomic"

// SessionStore is the single slot holding the current Session.
//
// Get must never block. Set replaces the slot atomically. Clear empties it
// and reports whether a session was actually removed; ClearToken does the
// same but only when the stored session still carries token, so a late
// expiry for an old token can't wipe a newer login.
type SessionStore interface {
	Get() (Session, bool)
	Set(Session) error
	Clear() (bool, error)
	ClearToken(token string) (bool, error)
}

// MemoryStore is a lock-free in-process SessionStore.
type MemoryStore struct {
	cur atomic.Pointer[Session]
}

var _ SessionStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get() (Session, bool) {
	p := m.cur.Load()
	if p == nil {
		return Session{}, false
	}
	return *p, true
}

func (m *MemoryStore) Set(s Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.cur.Store(&s)
	return nil
}

func (m *MemoryStore) Clear() (bool, error) {
	return m.cur.Swap(nil) != nil, nil
}

func (m *MemoryStore) ClearToken(token string) (bool, error) {
	for {
		p := m.cur.Load()
		if p == nil || p.Token != token {
			return false, nil
		}
		if m.cur.CompareAndSwap(p, nil) {
			return true, nil
		}
	}
}
