package access

import "github.com/panoraguard/alarm-console/internal/domain/user"

// Route is a named home destination.
type Route string

// Home destinations.
const (
	RouteAdmin     Route = "/admin"
	RouteOperator  Route = "/operator"
	RouteDashboard Route = "/dashboard"
)

// homes is the only place roles are mapped to destinations.
//
//nolint:gochecknoglobals // Read-only table.
var homes = map[user.Role]Route{
	user.RoleAdmin:    RouteAdmin,
	user.RoleOperator: RouteOperator,
	user.RoleManager:  RouteDashboard,
}

// Home returns the destination for role. Guards have no console home.
func Home(role user.Role) (Route, bool) {
	r, ok := homes[role]

	return r, ok
}
