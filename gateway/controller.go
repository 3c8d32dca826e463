// Package gateway exposes the identity proxy surface: sign-in passthrough,
// user creation with signup fallback, and administrator-gated role
// assignment. Every handler is stateless; the only serialization point for
// concurrent role writes is the remote store's uniqueness constraint.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"

	authgate "github.com/clinvia/go-authgate"
	"github.com/clinvia/go-authgate/identity"
)

// IdentityService is what the controller needs from the remote client.
type IdentityService interface {
	SignInRaw(ctx context.Context, email, password string) (int, []byte, error)
	AdminCreateUser(ctx context.Context, params authgate.CreateUserParams) (int, []byte, error)
	SignUp(ctx context.Context, params authgate.CreateUserParams, userType authgate.UserType) (int, []byte, error)
	GetUserByToken(ctx context.Context, bearer string) (*authgate.UserRecord, error)
	GetUserByID(ctx context.Context, id string) (*authgate.UserRecord, error)
	FindRoleAssignments(ctx context.Context, bearer string, filter identity.RoleFilter) ([]authgate.RoleAssignment, error)
	InsertRoleAssignment(ctx context.Context, userID string, role authgate.UserType) (*authgate.RoleAssignment, error)
	HasServiceKey() bool
}

// Notifier schedules best-effort webhook notifications; delivery never
// affects the handler's response.
type Notifier interface {
	Notify(payload map[string]any)
}

// RequestRecorder receives per-route counters; the metrics collector
// implements it.
type RequestRecorder interface {
	RecordGatewayRequest(route string, status int)
	RecordSignInThrottled()
}

type noopRecorder struct{}

func (noopRecorder) RecordGatewayRequest(string, int) {}
func (noopRecorder) RecordSignInThrottled()           {}

// ControllerRoutes names the mount points of the three operations.
type ControllerRoutes struct {
	SignIn     string
	CreateUser string
	AssignRole string
}

type Controller struct {
	Debug    bool
	Logger   authgate.Logger
	Service  IdentityService
	Notifier Notifier
	Metrics  RequestRecorder
	Routes   *ControllerRoutes
	Limiter  fiber.Handler
}

type ControllerOption func(*Controller) *Controller

func WithService(svc IdentityService) ControllerOption {
	return func(c *Controller) *Controller {
		c.Service = svc
		return c
	}
}

func WithLogger(logger authgate.Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithNotifier(n Notifier) ControllerOption {
	return func(c *Controller) *Controller {
		c.Notifier = n
		return c
	}
}

func WithMetrics(r RequestRecorder) ControllerOption {
	return func(c *Controller) *Controller {
		if r != nil {
			c.Metrics = r
		}
		return c
	}
}

func WithSignInLimiter(limiter fiber.Handler) ControllerOption {
	return func(c *Controller) *Controller {
		c.Limiter = limiter
		return c
	}
}

func WithDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:  authgate.NewSlogLogger(nil),
		Metrics: noopRecorder{},
		Routes: &ControllerRoutes{
			SignIn:     "/signin",
			CreateUser: "/create-user",
			AssignRole: "/assign-role",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing IdentityService in gateway controller...")
	}

	return c
}

// RegisterGatewayRoutes mounts the proxy surface on a Fiber router.
func RegisterGatewayRoutes(app fiber.Router, opts ...ControllerOption) *Controller {
	controller := NewController(opts...)

	if controller.Limiter != nil {
		app.Post(controller.Routes.SignIn, controller.Limiter, controller.SignIn)
	} else {
		app.Post(controller.Routes.SignIn, controller.SignIn)
	}
	app.Post(controller.Routes.CreateUser, controller.CreateUser)
	app.Post(controller.Routes.AssignRole, controller.AssignRole)

	return controller
}

// SignIn forwards the password grant verbatim: the remote (status, body)
// pair comes back unmodified, with no local reading of the credentials.
func (g *Controller) SignIn(c *fiber.Ctx) error {
	payload := new(SignInRequest)

	if err := c.BodyParser(payload); err != nil {
		return g.renderError(c, g.Routes.SignIn, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return g.renderValidation(c, g.Routes.SignIn, err)
	}

	status, body, err := g.Service.SignInRaw(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return g.renderError(c, g.Routes.SignIn, err)
	}

	g.Metrics.RecordGatewayRequest(g.Routes.SignIn, status)
	return c.Status(status).Type("json").Send(body)
}

// CreateUser tries the privileged endpoint first and falls back to public
// signup when that endpoint is missing or failing (404 or any 5xx). The
// fallback response is wrapped so callers can tell which path served them.
func (g *Controller) CreateUser(c *fiber.Ctx) error {
	payload := new(CreateUserRequest)

	if err := c.BodyParser(payload); err != nil {
		return g.renderError(c, g.Routes.CreateUser, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return g.renderValidation(c, g.Routes.CreateUser, err)
	}

	params := payload.Params()

	if g.Debug {
		g.Logger.Debug("create-user payload: %s", print.MaybePrettyJSON(params))
	}

	status, body, err := g.Service.AdminCreateUser(c.UserContext(), params)
	if err == nil && !fallbackWorthy(status) {
		g.Metrics.RecordGatewayRequest(g.Routes.CreateUser, status)
		if status >= 200 && status < 300 {
			g.notifyUserCreated(params, false)
		}
		return c.Status(status).Type("json").Send(body)
	}

	if err != nil {
		g.Logger.Warn("privileged create-user unavailable, using signup fallback", "error", err)
	} else {
		g.Logger.Warn("privileged create-user unavailable, using signup fallback", "status", status)
	}

	if params.Password == "" {
		params.Password = synthesizePassword()
	}
	userType := fallbackUserType(params.PrimaryRole())

	status, body, err = g.Service.SignUp(c.UserContext(), params, userType)
	if err != nil {
		return g.renderError(c, g.Routes.CreateUser, err)
	}

	g.Metrics.RecordGatewayRequest(g.Routes.CreateUser, status)
	if status >= 200 && status < 300 {
		g.notifyUserCreated(params, true)
	}

	return c.Status(status).JSON(fiber.Map{
		"fallback": true,
		"from":     "signup",
		"result":   json.RawMessage(body),
	})
}

// AssignRole grants a role to a user. The caller must present a bearer
// token, resolve to a known identity, and already hold an administrator
// assignment before the payload itself is even considered. A duplicate
// assignment is an idempotent success, not an error.
func (g *Controller) AssignRole(c *fiber.Ctx) error {
	route := g.Routes.AssignRole

	bearer := bearerToken(c.Get(fiber.HeaderAuthorization))
	if bearer == "" {
		return g.renderError(c, route, authgate.ErrMissingBearerToken)
	}

	caller, err := g.Service.GetUserByToken(c.UserContext(), bearer)
	if err != nil {
		return g.renderError(c, route, err)
	}

	adminRows, err := g.Service.FindRoleAssignments(c.UserContext(), bearer, identity.RoleFilter{
		UserID: caller.ID,
		Role:   authgate.UserTypeAdministrator,
	})
	if err != nil {
		return g.renderError(c, route, err)
	}
	if len(adminRows) == 0 {
		return g.renderError(c, route, authgate.ErrAdministratorRequired)
	}

	payload := new(AssignRoleRequest)
	if err := c.BodyParser(payload); err != nil {
		return g.renderError(c, route, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}
	if err := payload.Validate(); err != nil {
		return g.renderValidation(c, route, err)
	}

	role, valid := authgate.ParseUserType(payload.Role)
	if !valid {
		return g.renderError(c, route, authgate.ErrUnknownRole)
	}

	// Fail fast on a missing elevated credential: the insert is never
	// attempted without it.
	if !g.Service.HasServiceKey() {
		return g.renderError(c, route, authgate.ErrServiceKeyMissing)
	}

	if _, err := g.Service.GetUserByID(c.UserContext(), payload.UserID); err != nil {
		return g.renderError(c, route, err)
	}

	assignment, err := g.Service.InsertRoleAssignment(c.UserContext(), payload.UserID, role)
	if err != nil {
		if authgate.IsConflict(err) {
			g.Metrics.RecordGatewayRequest(route, fiber.StatusOK)
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"success":        true,
				"already_exists": true,
			})
		}
		return g.renderError(c, route, err)
	}

	g.Metrics.RecordGatewayRequest(route, fiber.StatusOK)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    assignment,
	})
}

func (g *Controller) notifyUserCreated(params authgate.CreateUserParams, fallback bool) {
	if g.Notifier == nil {
		return
	}
	g.Notifier.Notify(map[string]any{
		"event":    "user.created",
		"email":    params.Email,
		"fallback": fallback,
	})
}

func (g *Controller) renderValidation(c *fiber.Ctx, route string, err error) error {
	g.Metrics.RecordGatewayRequest(route, fiber.StatusBadRequest)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success":    false,
		"error":      "validation failed",
		"validation": FormatValidationErrorToMap(err),
	})
}

func (g *Controller) renderError(c *fiber.Ctx, route string, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	switch richErr.Category {
	case goerrors.CategoryInternal, goerrors.CategoryOperation:
		// Full detail goes to the log; the caller gets a safe message.
		g.Logger.Error(
			"gateway upstream failure",
			"route", route,
			"error", richErr.Message,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
		g.Metrics.RecordGatewayRequest(route, fiber.StatusInternalServerError)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "An unexpected server error occurred",
		})
	default:
		status := richErr.Code
		if status == 0 {
			status = fiber.StatusInternalServerError
		}
		g.Metrics.RecordGatewayRequest(route, status)
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   richErr.Message,
			"code":    richErr.TextCode,
		})
	}
}

// fallbackWorthy is true when the privileged endpoint is missing (404) or
// failing server-side (any 5xx).
func fallbackWorthy(status int) bool {
	return status == fiber.StatusNotFound || status >= 500
}

func fallbackUserType(role string) authgate.UserType {
	if strings.EqualFold(strings.TrimSpace(role), "paciente") {
		return authgate.UserTypePatient
	}
	return authgate.UserTypeProfessional
}

// synthesizePassword builds the legacy signup default: "senha", three
// digits, and a bang.
func synthesizePassword() string {
	return fmt.Sprintf("senha%d!", 100+rand.IntN(900))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
