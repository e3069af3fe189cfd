package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"qrattendance/internal/apperror"
	"qrattendance/internal/models"
	"qrattendance/internal/rbac"
	"qrattendance/internal/repository"
)

type UserReader interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
}

type RoleEngine interface {
	Membership(ctx context.Context, userID int64, guard string) (rbac.Membership, error)
	Roles(ctx context.Context, guard string) ([]models.Role, error)
	Permissions(ctx context.Context, guard string) ([]models.Permission, error)
	AssignRole(ctx context.Context, userID int64, role, guard string) error
	RemoveRole(ctx context.Context, userID int64, role, guard string) error
	SyncRoles(ctx context.Context, userID int64, roles []string, guard string) error
	GrantPermission(ctx context.Context, userID int64, permission, guard string) error
	RevokePermission(ctx context.Context, userID int64, permission, guard string) error
}

// UserMembership is a user together with their resolved roles and
// permissions.
type UserMembership struct {
	models.User
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// RoleService manages role and permission membership on behalf of an
// administrator. The route gate enforces the administrator role.
type RoleService struct {
	users  UserReader
	engine RoleEngine
	log    zerolog.Logger
}

func NewRoleService(users UserReader, engine RoleEngine, log zerolog.Logger) *RoleService {
	return &RoleService{users: users, engine: engine, log: log}
}

func (s *RoleService) Roles(ctx context.Context) ([]models.Role, error) {
	roles, err := s.engine.Roles(ctx, models.GuardAPI)
	if err != nil {
		return nil, internalError(err)
	}
	return roles, nil
}

func (s *RoleService) Permissions(ctx context.Context) ([]models.Permission, error) {
	perms, err := s.engine.Permissions(ctx, models.GuardAPI)
	if err != nil {
		return nil, internalError(err)
	}
	return perms, nil
}

// Describe returns the user with their membership.
func (s *RoleService) Describe(ctx context.Context, user models.User) (UserMembership, error) {
	m, err := s.engine.Membership(ctx, user.ID, models.GuardAPI)
	if err != nil {
		return UserMembership{}, internalError(err)
	}
	return UserMembership{User: user, Roles: nonNil(m.Roles), Permissions: nonNil(m.Permissions)}, nil
}

func (s *RoleService) AssignRole(ctx context.Context, userID int64, role string) (UserMembership, error) {
	return s.mutate(ctx, userID, "assign role", role, func(ctx context.Context) error {
		return s.engine.AssignRole(ctx, userID, role, models.GuardAPI)
	})
}

func (s *RoleService) RemoveRole(ctx context.Context, userID int64, role string) (UserMembership, error) {
	return s.mutate(ctx, userID, "remove role", role, func(ctx context.Context) error {
		return s.engine.RemoveRole(ctx, userID, role, models.GuardAPI)
	})
}

func (s *RoleService) SyncRoles(ctx context.Context, userID int64, roles []string) (UserMembership, error) {
	return s.mutate(ctx, userID, "sync roles", "", func(ctx context.Context) error {
		return s.engine.SyncRoles(ctx, userID, roles, models.GuardAPI)
	})
}

func (s *RoleService) GrantPermission(ctx context.Context, userID int64, permission string) (UserMembership, error) {
	return s.mutate(ctx, userID, "grant permission", permission, func(ctx context.Context) error {
		return s.engine.GrantPermission(ctx, userID, permission, models.GuardAPI)
	})
}

func (s *RoleService) RevokePermission(ctx context.Context, userID int64, permission string) (UserMembership, error) {
	return s.mutate(ctx, userID, "revoke permission", permission, func(ctx context.Context) error {
		return s.engine.RevokePermission(ctx, userID, permission, models.GuardAPI)
	})
}

func (s *RoleService) mutate(ctx context.Context, userID int64, action, name string, fn func(context.Context) error) (UserMembership, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return UserMembership{}, apperror.NotFound("user.not_found")
	}
	if err != nil {
		return UserMembership{}, internalError(err)
	}

	if err := fn(ctx); err != nil {
		return UserMembership{}, internalError(err)
	}

	s.log.Info().Int64("user_id", userID).Str("action", action).Str("name", name).Msg("membership changed")
	return s.Describe(ctx, user)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
