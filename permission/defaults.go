package permission

// Wildcard grants every permission.
const Wildcard = "*"

// Built-in role names.
const (
	RoleUser        = "USER"
	RoleAdmin       = "ADMIN"
	RoleSystemAdmin = "SYSTEM_ADMIN"
)

// UserPermissions is the permission set of the USER role.
var UserPermissions = []string{
	"service:view",
	"auth:login",
	"auth:logout",
	"form:create",
	"form:edit",
	"form:delete",
	"form:preview",
	"form:diagnosis:select",
	"form:finalUrl:set",
	"embed:issue",
	"embed:customize",
	"embed:displayMode",
	"template:create",
	"template:edit",
	"template:delete",
	"dashboard:view",
	"dashboard:report:generate",
	"account:view",
	"account:update",
	"form:submit",
}

// AdminPermissions extends UserPermissions with account administration.
var AdminPermissions = append(append([]string{}, UserPermissions...),
	"account:create",
	"account:delete",
)

// DefaultCatalog returns a frozen catalog holding the built-in roles.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	// The built-in table is static; registration cannot fail.
	_ = c.RegisterRole(RoleUser, UserPermissions...)
	_ = c.RegisterRole(RoleAdmin, AdminPermissions...)
	_ = c.RegisterRole(RoleSystemAdmin, Wildcard)
	c.Freeze()
	return c
}
