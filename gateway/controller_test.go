package gateway_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	authgate "github.com/clinvia/go-authgate"
	"github.com/clinvia/go-authgate/gateway"
	"github.com/clinvia/go-authgate/identity"
)

func newTestApp(svc gateway.IdentityService, opts ...gateway.ControllerOption) *fiber.App {
	app := fiber.New()
	all := append([]gateway.ControllerOption{gateway.WithService(svc)}, opts...)
	gateway.RegisterGatewayRoutes(app, all...)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var decoded map[string]any
	if len(raw) > 0 {
		json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func adminCaller() *authgate.UserRecord {
	return &authgate.UserRecord{
		ID:       "admin-1",
		Email:    "admin@clinic.example",
		UserType: authgate.UserTypeAdministrator,
	}
}

func adminAssignment() []authgate.RoleAssignment {
	return []authgate.RoleAssignment{{UserID: "admin-1", Role: authgate.UserTypeAdministrator}}
}

func TestSignInPassthrough(t *testing.T) {
	svc := new(MockService)
	remoteBody := `{"error":"invalid_grant","error_description":"Invalid login credentials"}`
	svc.On("SignInRaw", mock.Anything, "doc@clinic.example", "wrong").
		Return(http.StatusBadRequest, remoteBody, nil)

	app := newTestApp(svc)
	resp, decoded := postJSON(t, app, "/signin", fiber.Map{
		"email":    "doc@clinic.example",
		"password": "wrong",
	}, nil)

	// The remote status and body come back verbatim.
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_grant", decoded["error"])
	svc.AssertExpectations(t)
}

func TestSignInValidation(t *testing.T) {
	svc := new(MockService)
	app := newTestApp(svc)

	resp, decoded := postJSON(t, app, "/signin", fiber.Map{"email": "not-an-email"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotNil(t, decoded["validation"])
	svc.AssertNotCalled(t, "SignInRaw", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateUserPrimaryPath(t *testing.T) {
	svc := new(MockService)
	notifier := &captureNotifier{}

	svc.On("AdminCreateUser", mock.Anything, mock.MatchedBy(func(p authgate.CreateUserParams) bool {
		return p.Email == "novo@clinic.example" && p.FullName == "Novo Profissional"
	})).Return(http.StatusCreated, `{"id":"user-9"}`, nil)

	app := newTestApp(svc, gateway.WithNotifier(notifier))
	resp, decoded := postJSON(t, app, "/create-user", fiber.Map{
		"email":     "novo@clinic.example",
		"password":  "senha123!",
		"full_name": "Novo Profissional",
		"role":      "profissional",
	}, nil)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "user-9", decoded["id"])
	// No fallback wrapper on the primary path.
	assert.NotContains(t, decoded, "fallback")

	payloads := notifier.Payloads()
	require.Len(t, payloads, 1)
	assert.Equal(t, "user.created", payloads[0]["event"])
	assert.Equal(t, false, payloads[0]["fallback"])
	svc.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateUserFallbackOn404(t *testing.T) {
	svc := new(MockService)
	notifier := &captureNotifier{}

	svc.On("AdminCreateUser", mock.Anything, mock.Anything).
		Return(http.StatusNotFound, `{"message":"not found"}`, nil)

	passwordShape := regexp.MustCompile(`^senha\d{3}!$`)
	svc.On("SignUp", mock.Anything, mock.MatchedBy(func(p authgate.CreateUserParams) bool {
		// No password supplied: the fallback synthesizes one.
		return passwordShape.MatchString(p.Password)
	}), authgate.UserTypePatient).
		Return(http.StatusOK, `{"id":"user-10"}`, nil)

	app := newTestApp(svc, gateway.WithNotifier(notifier))
	resp, decoded := postJSON(t, app, "/create-user", fiber.Map{
		"email":     "paciente@clinic.example",
		"full_name": "Paciente Novo",
		"role":      "Paciente",
	}, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decoded["fallback"])
	assert.Equal(t, "signup", decoded["from"])
	result, ok := decoded["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user-10", result["id"])

	payloads := notifier.Payloads()
	require.Len(t, payloads, 1)
	assert.Equal(t, true, payloads[0]["fallback"])
	svc.AssertExpectations(t)
}

func TestCreateUserFallbackOn5xx(t *testing.T) {
	svc := new(MockService)

	svc.On("AdminCreateUser", mock.Anything, mock.Anything).
		Return(http.StatusServiceUnavailable, `{"message":"unavailable"}`, nil)
	svc.On("SignUp", mock.Anything, mock.Anything, authgate.UserTypeProfessional).
		Return(http.StatusOK, `{"id":"user-11"}`, nil)

	app := newTestApp(svc)
	resp, decoded := postJSON(t, app, "/create-user", fiber.Map{
		"email":     "novo@clinic.example",
		"full_name": "Novo Profissional",
		"role":      "medico",
	}, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decoded["fallback"])
	svc.AssertExpectations(t)
}

func TestCreateUserNoFallbackOn409(t *testing.T) {
	svc := new(MockService)

	// A 409 is a real answer about this user, not an endpoint failure.
	svc.On("AdminCreateUser", mock.Anything, mock.Anything).
		Return(http.StatusConflict, `{"message":"already registered"}`, nil)

	app := newTestApp(svc)
	resp, _ := postJSON(t, app, "/create-user", fiber.Map{
		"email":     "existente@clinic.example",
		"full_name": "Usuario Existente",
	}, nil)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	svc.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateUserKeepsProvidedPassword(t *testing.T) {
	svc := new(MockService)

	svc.On("AdminCreateUser", mock.Anything, mock.Anything).
		Return(http.StatusNotFound, `{}`, nil)
	svc.On("SignUp", mock.Anything, mock.MatchedBy(func(p authgate.CreateUserParams) bool {
		return p.Password == "escolhida123!"
	}), authgate.UserTypeProfessional).
		Return(http.StatusOK, `{"id":"user-12"}`, nil)

	app := newTestApp(svc)
	resp, _ := postJSON(t, app, "/create-user", fiber.Map{
		"email":     "novo@clinic.example",
		"password":  "escolhida123!",
		"full_name": "Novo Profissional",
	}, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	svc.AssertExpectations(t)
}

func TestAssignRoleMissingBearer(t *testing.T) {
	svc := new(MockService)
	app := newTestApp(svc)

	resp, decoded := postJSON(t, app, "/assign-role", fiber.Map{
		"user_id": "b3b1f3a0-9f1e-4c5e-8a2f-0a1b2c3d4e5f",
		"role":    "patient",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, decoded["success"])
	svc.AssertNotCalled(t, "GetUserByToken", mock.Anything, mock.Anything)
}

func TestAssignRoleNonAdminAlwaysForbidden(t *testing.T) {
	svc := new(MockService)
	svc.On("GetUserByToken", mock.Anything, "caller-token").
		Return(&authgate.UserRecord{ID: "user-2"}, nil)
	svc.On("FindRoleAssignments", mock.Anything, "caller-token", identity.RoleFilter{
		UserID: "user-2",
		Role:   authgate.UserTypeAdministrator,
	}).Return([]authgate.RoleAssignment{}, nil)

	app := newTestApp(svc)

	// Even a garbage payload gets 403, never 400: the admin check runs
	// before the payload is read.
	req := httptest.NewRequest(http.MethodPost, "/assign-role", bytes.NewReader([]byte("{{{not json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer caller-token")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	svc.AssertNotCalled(t, "InsertRoleAssignment", mock.Anything, mock.Anything, mock.Anything)
}

func TestAssignRoleUnknownRole(t *testing.T) {
	svc := new(MockService)
	svc.On("GetUserByToken", mock.Anything, "admin-token").Return(adminCaller(), nil)
	svc.On("FindRoleAssignments", mock.Anything, "admin-token", mock.Anything).
		Return(adminAssignment(), nil)

	app := newTestApp(svc)
	resp, decoded := postJSON(t, app, "/assign-role", fiber.Map{
		"user_id": "b3b1f3a0-9f1e-4c5e-8a2f-0a1b2c3d4e5f",
		"role":    "superuser",
	}, map[string]string{"Authorization": "Bearer admin-token"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, decoded["success"])
	// Nothing is written on validation failure.
	svc.AssertNotCalled(t, "InsertRoleAssignment", mock.Anything, mock.Anything, mock.Anything)
}

func TestAssignRoleMissingServiceKey(t *testing.T) {
	svc := new(MockService)
	svc.On("GetUserByToken", mock.Anything, "admin-token").Return(adminCaller(), nil)
	svc.On("FindRoleAssignments", mock.Anything, "admin-token", mock.Anything).
		Return(adminAssignment(), nil)
	svc.On("HasServiceKey").Return(false)

	app := newTestApp(svc)
	resp, _ := postJSON(t, app, "/assign-role", fiber.Map{
		"user_id": "b3b1f3a0-9f1e-4c5e-8a2f-0a1b2c3d4e5f",
		"role":    "patient",
	}, map[string]string{"Authorization": "Bearer admin-token"})

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	svc.AssertNotCalled(t, "InsertRoleAssignment", mock.Anything, mock.Anything, mock.Anything)
}

func TestAssignRoleTargetNotFound(t *testing.T) {
	targetID := "b3b1f3a0-9f1e-4c5e-8a2f-0a1b2c3d4e5f"

	svc := new(MockService)
	svc.On("GetUserByToken", mock.Anything, "admin-token").Return(adminCaller(), nil)
	svc.On("FindRoleAssignments", mock.Anything, "admin-token", mock.Anything).
		Return(adminAssignment(), nil)
	svc.On("HasServiceKey").Return(true)
	svc.On("GetUserByID", mock.Anything, targetID).Return(nil, authgate.ErrUserNotFound)

	app := newTestApp(svc)
	resp, _ := postJSON(t, app, "/assign-role", fiber.Map{
		"user_id": targetID,
		"role":    "patient",
	}, map[string]string{"Authorization": "Bearer admin-token"})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	svc.AssertNotCalled(t, "InsertRoleAssignment", mock.Anything, mock.Anything, mock.Anything)
}

func TestAssignRoleSuccess(t *testing.T) {
	targetID := "b3b1f3a0-9f1e-4c5e-8a2f-0a1b2c3d4e5f"

	svc := new(MockService)
	svc.On("GetUserByToken", mock.Anything, "admin-token").Return(adminCaller(), nil)
	svc.On("FindRoleAssignments", mock.Anything, "admin-token", mock.Anything).
		Return(adminAssignment(), nil)
	svc.On("HasServiceKey").Return(true)
	svc.On("GetUserByID", mock.Anything, targetID).
		Return(&authgate.UserRecord{ID: targetID}, nil)
	svc.On("InsertRoleAssignment", mock.Anything, targetID, authgate.UserTypePatient).
		Return(&authgate.RoleAssignment{UserID: targetID, Role: authgate.UserTypePatient}, nil)

	app := newTestApp(svc)
	resp, decoded := postJSON(t, app, "/assign-role", fiber.Map{
		"user_id": targetID,
		"role":    "Patient",
	}, map[string]string{"Authorization": "Bearer admin-token"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decoded["success"])
	data, ok := decoded["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, targetID, data["user_id"])
	svc.AssertExpectations(t)
}

func TestAssignRoleConflictIsIdempotentSuccess(t *testing.T) {
	targetID := "b3b1f3a0-9f1e-4c5e-8a2f-0a1b2c3d4e5f"

	svc := new(MockService)
	svc.On("GetUserByToken", mock.Anything, "admin-token").Return(adminCaller(), nil)
	svc.On("FindRoleAssignments", mock.Anything, "admin-token", mock.Anything).
		Return(adminAssignment(), nil)
	svc.On("HasServiceKey").Return(true)
	svc.On("GetUserByID", mock.Anything, targetID).
		Return(&authgate.UserRecord{ID: targetID}, nil)
	svc.On("InsertRoleAssignment", mock.Anything, targetID, authgate.UserTypePatient).
		Return(nil, authgate.ErrRoleAlreadyAssigned)

	app := newTestApp(svc)
	resp, decoded := postJSON(t, app, "/assign-role", fiber.Map{
		"user_id": targetID,
		"role":    "patient",
	}, map[string]string{"Authorization": "Bearer admin-token"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, true, decoded["already_exists"])
}

func TestAssignRoleUnresolvedCaller(t *testing.T) {
	svc := new(MockService)
	svc.On("GetUserByToken", mock.Anything, "stale-token").
		Return(nil, authgate.ErrIdentityUnresolved)

	app := newTestApp(svc)
	resp, _ := postJSON(t, app, "/assign-role", fiber.Map{
		"user_id": "b3b1f3a0-9f1e-4c5e-8a2f-0a1b2c3d4e5f",
		"role":    "patient",
	}, map[string]string{"Authorization": "Bearer stale-token"})

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	svc.AssertNotCalled(t, "FindRoleAssignments", mock.Anything, mock.Anything, mock.Anything)
}
