package rbac

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"qrattendance/internal/apperror"
	"qrattendance/internal/models"
)

var (
	ErrRoleNotFound       = errors.New("role not found")
	ErrPermissionNotFound = errors.New("permission not found")
)

// Store persists roles, permissions and user memberships.
type Store interface {
	ListRoles(ctx context.Context, guard string) ([]models.Role, error)
	ListPermissions(ctx context.Context, guard string) ([]models.Permission, error)
	FindRole(ctx context.Context, name, guard string) (models.Role, error)
	FindPermission(ctx context.Context, name, guard string) (models.Permission, error)
	LoadMembership(ctx context.Context, userID int64, guard string) (Membership, error)
	AttachRole(ctx context.Context, userID, roleID int64) error
	DetachRole(ctx context.Context, userID, roleID int64) error
	// ReplaceRoles swaps the user's roles within guard for roleIDs atomically.
	ReplaceRoles(ctx context.Context, userID int64, guard string, roleIDs []int64) error
	AttachPermission(ctx context.Context, userID, permissionID int64) error
	DetachPermission(ctx context.Context, userID, permissionID int64) error
	SeedCatalog(ctx context.Context, guard string, permissions []string, roles map[string][]string) error
}

// Cache holds resolved memberships. Get returns a stamp that Set must be
// given back; a Forget or Flush in between makes that stamp unreadable.
type Cache interface {
	Get(ctx context.Context, userID int64, guard string) (m Membership, stamp string, ok bool, err error)
	Set(ctx context.Context, stamp string, m Membership) error
	Forget(ctx context.Context, userID int64, guard string) error
	Flush(ctx context.Context) error
}

type Engine struct {
	store Store
	cache Cache
	log   zerolog.Logger
}

func NewEngine(store Store, cache Cache, log zerolog.Logger) *Engine {
	if cache == nil {
		cache = NopCache{}
	}
	return &Engine{store: store, cache: cache, log: log}
}

func knownGuard(guard string) bool {
	return guard == models.GuardAPI
}

// Membership returns the user's roles and effective permissions. An unknown
// guard yields an empty membership.
func (e *Engine) Membership(ctx context.Context, userID int64, guard string) (Membership, error) {
	if !knownGuard(guard) {
		return Membership{}, nil
	}

	cached, stamp, ok, err := e.cache.Get(ctx, userID, guard)
	if err != nil {
		e.log.Warn().Err(err).Int64("user_id", userID).Msg("rbac cache read failed")
	} else if ok {
		return cached, nil
	}

	m, err := e.store.LoadMembership(ctx, userID, guard)
	if err != nil {
		return Membership{}, fmt.Errorf("load membership: %w", err)
	}
	sort.Strings(m.Roles)
	sort.Strings(m.Permissions)

	if err := e.cache.Set(ctx, stamp, m); err != nil {
		e.log.Warn().Err(err).Int64("user_id", userID).Msg("rbac cache write failed")
	}
	return m, nil
}

// Resolve builds the request-scoped authorization context for a user.
func (e *Engine) Resolve(ctx context.Context, user models.User) (AuthorizationContext, error) {
	m, err := e.Membership(ctx, user.ID, models.GuardAPI)
	if err != nil {
		return AuthorizationContext{}, err
	}
	return NewAuthorizationContext(user.ID, m), nil
}

func (e *Engine) HasPermission(ctx context.Context, user models.User, permission, guard string) (bool, error) {
	m, err := e.Membership(ctx, user.ID, guard)
	if err != nil {
		return false, err
	}
	return NewAuthorizationContext(user.ID, m).Can(permission), nil
}

func (e *Engine) HasRole(ctx context.Context, user models.User, role, guard string) (bool, error) {
	m, err := e.Membership(ctx, user.ID, guard)
	if err != nil {
		return false, err
	}
	return NewAuthorizationContext(user.ID, m).HasRole(role), nil
}

func (e *Engine) Roles(ctx context.Context, guard string) ([]models.Role, error) {
	if !knownGuard(guard) {
		return []models.Role{}, nil
	}
	return e.store.ListRoles(ctx, guard)
}

func (e *Engine) Permissions(ctx context.Context, guard string) ([]models.Permission, error) {
	if !knownGuard(guard) {
		return []models.Permission{}, nil
	}
	return e.store.ListPermissions(ctx, guard)
}

func (e *Engine) AssignRole(ctx context.Context, userID int64, role, guard string) error {
	r, err := e.findRole(ctx, role, guard)
	if err != nil {
		return err
	}
	if err := e.store.AttachRole(ctx, userID, r.ID); err != nil {
		return fmt.Errorf("attach role: %w", err)
	}
	return e.forget(ctx, userID, guard)
}

func (e *Engine) RemoveRole(ctx context.Context, userID int64, role, guard string) error {
	r, err := e.findRole(ctx, role, guard)
	if err != nil {
		return err
	}
	if err := e.store.DetachRole(ctx, userID, r.ID); err != nil {
		return fmt.Errorf("detach role: %w", err)
	}
	return e.forget(ctx, userID, guard)
}

// SyncRoles replaces the user's role set. Every name is resolved before
// anything is written so an unknown role leaves the set untouched.
func (e *Engine) SyncRoles(ctx context.Context, userID int64, roles []string, guard string) error {
	ids := make([]int64, 0, len(roles))
	seen := make(map[int64]struct{}, len(roles))
	for _, name := range roles {
		r, err := e.findRole(ctx, name, guard)
		if err != nil {
			return err
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		ids = append(ids, r.ID)
	}
	if err := e.store.ReplaceRoles(ctx, userID, guard, ids); err != nil {
		return fmt.Errorf("replace roles: %w", err)
	}
	return e.forget(ctx, userID, guard)
}

func (e *Engine) GrantPermission(ctx context.Context, userID int64, permission, guard string) error {
	p, err := e.findPermission(ctx, permission, guard)
	if err != nil {
		return err
	}
	if err := e.store.AttachPermission(ctx, userID, p.ID); err != nil {
		return fmt.Errorf("attach permission: %w", err)
	}
	return e.forget(ctx, userID, guard)
}

func (e *Engine) RevokePermission(ctx context.Context, userID int64, permission, guard string) error {
	p, err := e.findPermission(ctx, permission, guard)
	if err != nil {
		return err
	}
	if err := e.store.DetachPermission(ctx, userID, p.ID); err != nil {
		return fmt.Errorf("detach permission: %w", err)
	}
	return e.forget(ctx, userID, guard)
}

// Seed writes the fixed catalog and invalidates every cached membership,
// since role permission sets may have changed.
func (e *Engine) Seed(ctx context.Context) error {
	if err := e.store.SeedCatalog(ctx, models.GuardAPI, Permissions, RolePermissions); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	if err := e.cache.Flush(ctx); err != nil {
		return fmt.Errorf("flush rbac cache: %w", err)
	}
	return nil
}

func (e *Engine) findRole(ctx context.Context, name, guard string) (models.Role, error) {
	if !knownGuard(guard) {
		return models.Role{}, apperror.NotFound("role.not_found")
	}
	r, err := e.store.FindRole(ctx, name, guard)
	if errors.Is(err, ErrRoleNotFound) {
		return models.Role{}, apperror.NotFound("role.not_found")
	}
	return r, err
}

func (e *Engine) findPermission(ctx context.Context, name, guard string) (models.Permission, error) {
	if !knownGuard(guard) {
		return models.Permission{}, apperror.NotFound("permission.not_found")
	}
	p, err := e.store.FindPermission(ctx, name, guard)
	if errors.Is(err, ErrPermissionNotFound) {
		return models.Permission{}, apperror.NotFound("permission.not_found")
	}
	return p, err
}

// forget drops the user's cached membership. A failure here would leave a
// stale grant visible, so it is reported instead of logged.
func (e *Engine) forget(ctx context.Context, userID int64, guard string) error {
	if err := e.cache.Forget(ctx, userID, guard); err != nil {
		return fmt.Errorf("invalidate rbac cache: %w", err)
	}
	return nil
}
