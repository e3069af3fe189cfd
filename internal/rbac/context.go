package rbac

import (
	"sort"

	"qrattendance/internal/models"
)

// Membership is the resolved role and permission set of one user within a
// guard. Permissions include those inherited through roles.
type Membership struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// AuthorizationContext is resolved once per request and handed to every
// permission gate and scope resolver for that request.
type AuthorizationContext struct {
	UserID      int64
	roles       map[string]struct{}
	permissions map[string]struct{}
}

func NewAuthorizationContext(userID int64, m Membership) AuthorizationContext {
	ctx := AuthorizationContext{
		UserID:      userID,
		roles:       make(map[string]struct{}, len(m.Roles)),
		permissions: make(map[string]struct{}, len(m.Permissions)),
	}
	for _, r := range m.Roles {
		ctx.roles[r] = struct{}{}
	}
	for _, p := range m.Permissions {
		ctx.permissions[p] = struct{}{}
	}
	return ctx
}

func (a AuthorizationContext) Can(permission string) bool {
	_, ok := a.permissions[permission]
	return ok
}

func (a AuthorizationContext) HasRole(role string) bool {
	_, ok := a.roles[role]
	return ok
}

func (a AuthorizationContext) IsAdministrator() bool {
	return a.HasRole(models.RoleAdministrator)
}

func (a AuthorizationContext) IsManager() bool {
	return a.HasRole(models.RoleManager)
}

// Owns applies the single-object policy: the permission is required and the
// caller must either own the object or be an administrator.
func (a AuthorizationContext) Owns(permission string, ownerID int64) bool {
	if !a.Can(permission) {
		return false
	}
	return a.IsAdministrator() || (ownerID != 0 && ownerID == a.UserID)
}

func (a AuthorizationContext) Roles() []string {
	return sortedKeys(a.roles)
}

func (a AuthorizationContext) Permissions() []string {
	return sortedKeys(a.permissions)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
