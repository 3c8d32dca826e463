package authgate

import "sync"

var _ StateStore = (*MemoryStore)(nil)

// MemoryStore is the in-process StateStore used by tests and by hosts that
// handle their own durable persistence (cookies, local storage) outside the
// core.
type MemoryStore struct {
	mu           sync.RWMutex
	token        string
	refreshToken string
	user         *UserRecord
	hint         UserType
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Session() (string, string, *UserRecord) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.refreshToken, m.user
}

func (m *MemoryStore) SaveSession(token, refreshToken string, user *UserRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.refreshToken = refreshToken
	m.user = user
}

// DropSession removes the token pair and user record but keeps the user-type
// hint, so an expired session still steers the next login redirect.
func (m *MemoryStore) DropSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.refreshToken = ""
	m.user = nil
}

func (m *MemoryStore) UserTypeHint() UserType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hint
}

func (m *MemoryStore) SaveUserTypeHint(hint UserType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hint = hint
}

// Clear wipes everything at once; this is the logout path.
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.refreshToken = ""
	m.user = nil
	m.hint = ""
}
