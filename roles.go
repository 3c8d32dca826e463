package authgate

import "strings"

// homeRoutes is the fixed map from user type to that user's own home route.
var homeRoutes = map[UserType]string{
	UserTypeProfessional:  "/profissional",
	UserTypePatient:       "/paciente",
	UserTypeAdministrator: "/dashboard",
}

// loginRoutes maps the last known user-type hint to the login route the
// guard redirects unauthenticated visitors to.
var loginRoutes = map[UserType]string{
	UserTypeProfessional:  "/login",
	UserTypePatient:       "/login-paciente",
	UserTypeAdministrator: "/login-admin",
}

// IsValid checks if the user type is one of the predefined valid types
func IsValidUserType(t UserType) bool {
	switch t {
	case UserTypeProfessional, UserTypePatient, UserTypeAdministrator:
		return true
	default:
		return false
	}
}

// AssignableRoles returns the fixed allow-list accepted by the role
// assignment operation.
func AssignableRoles() []UserType {
	return []UserType{
		UserTypeProfessional,
		UserTypePatient,
		UserTypeAdministrator,
	}
}

// ParseUserType safely parses a string into a UserType
func ParseUserType(raw string) (UserType, bool) {
	t := UserType(strings.ToLower(strings.TrimSpace(raw)))
	return t, IsValidUserType(t)
}

// HomeRouteFor returns the home route of a user type. Unknown types land on
// the professional home, mirroring the sign-up default.
func HomeRouteFor(t UserType) string {
	if route, ok := homeRoutes[t]; ok {
		return route
	}
	return homeRoutes[UserTypeProfessional]
}

// LoginRouteFor returns the login route for a user-type hint, defaulting to
// the professional login when no hint was persisted.
func LoginRouteFor(hint UserType) string {
	if route, ok := loginRoutes[hint]; ok {
		return route
	}
	return loginRoutes[UserTypeProfessional]
}
