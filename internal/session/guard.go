package session

import (
	"fmt"

	"github.com/feedbackhq/pulse/internal/api"
)

// Route identifies one of the client's views.
type Route int

const (
	RouteLogin Route = iota
	RouteEmployee
	RouteManager
)

// requiredRole maps each gated route to the role it demands. Routes absent
// from the map accept any authenticated session.
var requiredRole = map[Route]Role{
	RouteEmployee: RoleEmployee,
	RouteManager:  RoleManager,
}

// Resolve gates navigation: no session redirects to login, and a session
// whose role does not match the route's requirement also redirects to login,
// never to the other role's dashboard.
func Resolve(store *Store, requested Route) Route {
	if requested == RouteLogin {
		return RouteLogin
	}
	sess, ok := store.Current()
	if !ok {
		return RouteLogin
	}
	required, gated := requiredRole[requested]
	if gated && sess.Role != required {
		return RouteLogin
	}
	return requested
}

// HomeRoute returns the dashboard a session lands on after login.
func HomeRoute(role Role) Route {
	if role == RoleManager {
		return RouteManager
	}
	return RouteEmployee
}

// RequireRole returns an authorization error when the current session is
// absent or carries a different role. Used by callers that need the failure
// itself rather than a redirect.
func RequireRole(store *Store, role Role) error {
	sess, ok := store.Current()
	if !ok {
		return api.NewAuthorizationError("not signed in")
	}
	if sess.Role != role {
		return api.NewAuthorizationError(fmt.Sprintf("%s role required", role))
	}
	return nil
}
