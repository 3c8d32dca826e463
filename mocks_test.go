package authgate_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	authgate "github.com/clinvia/go-authgate"
)

// MockIssuer mocks the SessionIssuer interface.
type MockIssuer struct {
	mock.Mock
}

func (m *MockIssuer) SignInWithPassword(ctx context.Context, email, password string) (*authgate.AuthSession, error) {
	args := m.Called(ctx, email, password)
	if session, ok := args.Get(0).(*authgate.AuthSession); ok {
		return session, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIssuer) RefreshSession(ctx context.Context, refreshToken string) (*authgate.AuthSession, error) {
	args := m.Called(ctx, refreshToken)
	if session, ok := args.Get(0).(*authgate.AuthSession); ok {
		return session, args.Error(1)
	}
	return nil, args.Error(1)
}

// recordingSink collects activity events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []authgate.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event authgate.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Events() []authgate.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]authgate.ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) Types() []authgate.ActivityEventType {
	var types []authgate.ActivityEventType
	for _, e := range s.Events() {
		types = append(types, e.EventType)
	}
	return types
}
