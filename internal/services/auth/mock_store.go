package auth

import "sync"

// MockStore is an in-memory auth store for testing.
type MockStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewMockStore() *MockStore {
	return &MockStore{tokens: make(map[string]string)}
}

func (m *MockStore) SetToken(name string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[NormalizeName(name)] = token
	return nil
}

func (m *MockStore) GetToken(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[NormalizeName(name)]
	if !ok {
		return "", ErrTokenNotFound
	}
	return token, nil
}

func (m *MockStore) DeleteToken(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := NormalizeName(name)
	if _, ok := m.tokens[key]; !ok {
		return ErrTokenNotFound
	}
	delete(m.tokens, key)
	return nil
}
