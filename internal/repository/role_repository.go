package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"qrattendance/internal/database"
	"qrattendance/internal/models"
	"qrattendance/internal/rbac"
)

// RoleRepository is the postgres implementation of rbac.Store.
type RoleRepository struct {
	pool *pgxpool.Pool
}

var _ rbac.Store = (*RoleRepository)(nil)

func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

func (r *RoleRepository) ListRoles(ctx context.Context, guard string) ([]models.Role, error) {
	const query = `
		SELECT r.id, r.name, r.guard_name,
		       COALESCE(ARRAY_AGG(p.name ORDER BY p.name) FILTER (WHERE p.id IS NOT NULL), '{}')
		FROM roles r
		LEFT JOIN role_has_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE r.guard_name = $1
		GROUP BY r.id
		ORDER BY r.id
	`
	rows, err := r.pool.Query(ctx, query, guard)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []models.Role{}
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.GuardName, &role.Permissions); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *RoleRepository) ListPermissions(ctx context.Context, guard string) ([]models.Permission, error) {
	const query = `SELECT id, name, guard_name FROM permissions WHERE guard_name = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, guard)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	permissions := []models.Permission{}
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.GuardName); err != nil {
			return nil, err
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}

func (r *RoleRepository) FindRole(ctx context.Context, name, guard string) (models.Role, error) {
	const query = `SELECT id, name, guard_name FROM roles WHERE name = $1 AND guard_name = $2`
	var role models.Role
	if err := r.pool.QueryRow(ctx, query, name, guard).Scan(&role.ID, &role.Name, &role.GuardName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Role{}, rbac.ErrRoleNotFound
		}
		return models.Role{}, err
	}
	return role, nil
}

func (r *RoleRepository) FindPermission(ctx context.Context, name, guard string) (models.Permission, error) {
	const query = `SELECT id, name, guard_name FROM permissions WHERE name = $1 AND guard_name = $2`
	var p models.Permission
	if err := r.pool.QueryRow(ctx, query, name, guard).Scan(&p.ID, &p.Name, &p.GuardName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Permission{}, rbac.ErrPermissionNotFound
		}
		return models.Permission{}, err
	}
	return p, nil
}

// LoadMembership reads roles and effective permissions in one snapshot.
func (r *RoleRepository) LoadMembership(ctx context.Context, userID int64, guard string) (rbac.Membership, error) {
	const query = `
		SELECT
			COALESCE((
				SELECT ARRAY_AGG(r.name ORDER BY r.name)
				FROM user_has_roles ur JOIN roles r ON r.id = ur.role_id
				WHERE ur.user_id = $1 AND r.guard_name = $2
			), '{}'),
			COALESCE((
				SELECT ARRAY_AGG(DISTINCT p.name ORDER BY p.name)
				FROM permissions p
				WHERE p.guard_name = $2 AND (
					p.id IN (
						SELECT rp.permission_id
						FROM user_has_roles ur JOIN role_has_permissions rp ON rp.role_id = ur.role_id
						WHERE ur.user_id = $1
					)
					OR p.id IN (SELECT permission_id FROM user_has_permissions WHERE user_id = $1)
				)
			), '{}')
	`
	var m rbac.Membership
	if err := r.pool.QueryRow(ctx, query, userID, guard).Scan(&m.Roles, &m.Permissions); err != nil {
		return rbac.Membership{}, err
	}
	return m, nil
}

func (r *RoleRepository) AttachRole(ctx context.Context, userID, roleID int64) error {
	const query = `INSERT INTO user_has_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := r.pool.Exec(ctx, query, userID, roleID)
	return mapWriteError("user_has_roles", err)
}

func (r *RoleRepository) DetachRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_has_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}

func (r *RoleRepository) ReplaceRoles(ctx context.Context, userID int64, guard string, roleIDs []int64) error {
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		// lock the user row so concurrent syncs apply one after the other
		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}

		const clear = `
			DELETE FROM user_has_roles ur
			USING roles r
			WHERE ur.role_id = r.id AND ur.user_id = $1 AND r.guard_name = $2
		`
		if _, err := tx.Exec(ctx, clear, userID, guard); err != nil {
			return fmt.Errorf("clear roles: %w", err)
		}
		if len(roleIDs) == 0 {
			return nil
		}
		const insert = `INSERT INTO user_has_roles (user_id, role_id) SELECT $1, unnest($2::bigint[])`
		if _, err := tx.Exec(ctx, insert, userID, roleIDs); err != nil {
			return fmt.Errorf("insert roles: %w", err)
		}
		return nil
	})
}

func (r *RoleRepository) AttachPermission(ctx context.Context, userID, permissionID int64) error {
	const query = `INSERT INTO user_has_permissions (user_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := r.pool.Exec(ctx, query, userID, permissionID)
	return mapWriteError("user_has_permissions", err)
}

func (r *RoleRepository) DetachPermission(ctx context.Context, userID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_has_permissions WHERE user_id = $1 AND permission_id = $2`, userID, permissionID)
	return err
}

// SeedCatalog upserts permissions and roles and resets each seeded role's
// permission set.
func (r *RoleRepository) SeedCatalog(ctx context.Context, guard string, permissions []string, roles map[string][]string) error {
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		const upsertPermissions = `
			INSERT INTO permissions (name, guard_name)
			SELECT unnest($1::text[]), $2
			ON CONFLICT ON CONSTRAINT permissions_name_guard DO NOTHING
		`
		if _, err := tx.Exec(ctx, upsertPermissions, permissions, guard); err != nil {
			return fmt.Errorf("seed permissions: %w", err)
		}

		for name, granted := range roles {
			var roleID int64
			const upsertRole = `
				INSERT INTO roles (name, guard_name) VALUES ($1, $2)
				ON CONFLICT ON CONSTRAINT roles_name_guard DO UPDATE SET updated_at = NOW()
				RETURNING id
			`
			if err := tx.QueryRow(ctx, upsertRole, name, guard).Scan(&roleID); err != nil {
				return fmt.Errorf("seed role %s: %w", name, err)
			}
			if _, err := tx.Exec(ctx, `DELETE FROM role_has_permissions WHERE role_id = $1`, roleID); err != nil {
				return fmt.Errorf("reset role %s: %w", name, err)
			}
			const grant = `
				INSERT INTO role_has_permissions (role_id, permission_id)
				SELECT $1, id FROM permissions WHERE guard_name = $2 AND name = ANY($3::text[])
			`
			if _, err := tx.Exec(ctx, grant, roleID, guard, granted); err != nil {
				return fmt.Errorf("grant role %s: %w", name, err)
			}
		}
		return nil
	})
}
