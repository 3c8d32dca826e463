package gateway_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	authgate "github.com/clinvia/go-authgate"
	"github.com/clinvia/go-authgate/identity"
)

// MockService mocks the IdentityService consumed by the controller.
type MockService struct {
	mock.Mock
}

func (m *MockService) SignInRaw(ctx context.Context, email, password string) (int, []byte, error) {
	args := m.Called(ctx, email, password)
	return args.Int(0), toBytes(args.Get(1)), args.Error(2)
}

func (m *MockService) AdminCreateUser(ctx context.Context, params authgate.CreateUserParams) (int, []byte, error) {
	args := m.Called(ctx, params)
	return args.Int(0), toBytes(args.Get(1)), args.Error(2)
}

func (m *MockService) SignUp(ctx context.Context, params authgate.CreateUserParams, userType authgate.UserType) (int, []byte, error) {
	args := m.Called(ctx, params, userType)
	return args.Int(0), toBytes(args.Get(1)), args.Error(2)
}

func (m *MockService) GetUserByToken(ctx context.Context, bearer string) (*authgate.UserRecord, error) {
	args := m.Called(ctx, bearer)
	if user, ok := args.Get(0).(*authgate.UserRecord); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) GetUserByID(ctx context.Context, id string) (*authgate.UserRecord, error) {
	args := m.Called(ctx, id)
	if user, ok := args.Get(0).(*authgate.UserRecord); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) FindRoleAssignments(ctx context.Context, bearer string, filter identity.RoleFilter) ([]authgate.RoleAssignment, error) {
	args := m.Called(ctx, bearer, filter)
	if rows, ok := args.Get(0).([]authgate.RoleAssignment); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) HasServiceKey() bool {
	return m.Called().Bool(0)
}

func (m *MockService) InsertRoleAssignment(ctx context.Context, userID string, role authgate.UserType) (*authgate.RoleAssignment, error) {
	args := m.Called(ctx, userID, role)
	if row, ok := args.Get(0).(*authgate.RoleAssignment); ok {
		return row, args.Error(1)
	}
	return nil, args.Error(1)
}

func toBytes(v any) []byte {
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	default:
		return nil
	}
}

// captureNotifier records notification payloads for assertions.
type captureNotifier struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (n *captureNotifier) Notify(payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, payload)
}

func (n *captureNotifier) Payloads() []map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]map[string]any, len(n.payloads))
	copy(out, n.payloads)
	return out
}
