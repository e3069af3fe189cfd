package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"qrattendance/internal/models"
	"qrattendance/internal/scope"
)

type EmployeeFilter struct {
	Scope       scope.Predicate
	Search      string
	IsActive    *bool
	WithTrashed bool
}

type EmployeeRepository struct {
	pool *pgxpool.Pool
}

func NewEmployeeRepository(pool *pgxpool.Pool) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

func (r *EmployeeRepository) Create(ctx context.Context, e models.Employee) (models.Employee, error) {
	const query = `
		INSERT INTO employees AS e (
			user_id, first_name, last_name, email, employee_code, phone, hire_date, position, notes,
			is_active, password_hash, force_password_change, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW()
		)
		RETURNING ` + employeeColumns

	var created models.Employee
	err := r.pool.QueryRow(ctx, query,
		e.UserID,
		e.FirstName,
		e.LastName,
		strings.ToLower(strings.TrimSpace(e.Email)),
		strings.TrimSpace(e.EmployeeCode),
		e.Phone,
		e.HireDate,
		e.Position,
		e.Notes,
		e.IsActive,
		e.PasswordHash,
		e.ForcePasswordChange,
	).Scan(employeeDest(&created)...)
	if err != nil {
		return models.Employee{}, mapWriteError("employees", err)
	}
	return created, nil
}

// Update writes the profile fields of e. Credentials are changed through
// SetPassword only.
func (r *EmployeeRepository) Update(ctx context.Context, e models.Employee) (models.Employee, error) {
	const query = `
		UPDATE employees AS e SET
			first_name = $2, last_name = $3, email = $4, employee_code = $5, phone = $6,
			hire_date = $7, position = $8, notes = $9, is_active = $10, updated_at = NOW()
		WHERE e.id = $1 AND e.deleted_at IS NULL
		RETURNING ` + employeeColumns

	var updated models.Employee
	err := r.pool.QueryRow(ctx, query,
		e.ID,
		e.FirstName,
		e.LastName,
		strings.ToLower(strings.TrimSpace(e.Email)),
		strings.TrimSpace(e.EmployeeCode),
		e.Phone,
		e.HireDate,
		e.Position,
		e.Notes,
		e.IsActive,
	).Scan(employeeDest(&updated)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Employee{}, ErrEmployeeNotFound
		}
		return models.Employee{}, mapWriteError("employees", err)
	}
	return updated, nil
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id int64, withTrashed bool) (models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees e WHERE e.id = $1`
	if !withTrashed {
		query += ` AND e.deleted_at IS NULL`
	}
	return scanEmployee(r.pool.QueryRow(ctx, query, id))
}

// FindForLogin resolves a login identifier among active, non-deleted
// employees. An email match wins over an employee code match.
func (r *EmployeeRepository) FindForLogin(ctx context.Context, identifier string) (models.Employee, error) {
	const query = `
		SELECT ` + employeeColumns + `
		FROM employees e
		WHERE e.is_active AND e.deleted_at IS NULL
		  AND (e.email = LOWER($1) OR e.employee_code = $1)
		ORDER BY (e.email = LOWER($1)) DESC, e.id
		LIMIT 1
	`
	return scanEmployee(r.pool.QueryRow(ctx, query, strings.TrimSpace(identifier)))
}

func (r *EmployeeRepository) List(ctx context.Context, filter EmployeeFilter) ([]models.Employee, error) {
	var params args
	clause, scopeArgs := filter.Scope.SQL("e.user_id", len(params)+1)
	params = append(params, scopeArgs...)

	where := []string{clause}
	if !filter.WithTrashed {
		where = append(where, "e.deleted_at IS NULL")
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		n := params.add("%" + escapeLike(search) + "%")
		where = append(where, fmt.Sprintf(
			"(e.first_name ILIKE $%[1]d OR e.last_name ILIKE $%[1]d OR e.email ILIKE $%[1]d OR e.employee_code ILIKE $%[1]d)", n))
	}
	if filter.IsActive != nil {
		n := params.add(*filter.IsActive)
		where = append(where, fmt.Sprintf("e.is_active = $%d", n))
	}

	query := `SELECT ` + employeeColumns + ` FROM employees e WHERE ` + strings.Join(where, " AND ") + ` ORDER BY e.id`

	rows, err := r.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := []models.Employee{}
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(employeeDest(&e)...); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (r *EmployeeRepository) SoftDelete(ctx context.Context, id int64) error {
	const query = `UPDATE employees SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

// SetPassword stores hash (nil clears it) together with the force flag.
func (r *EmployeeRepository) SetPassword(ctx context.Context, id int64, hash []byte, force bool) error {
	const query = `
		UPDATE employees SET password_hash = $2, force_password_change = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := r.pool.Exec(ctx, query, id, hash, force)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

// AttachLocations adds assignments, keeping existing ones.
func (r *EmployeeRepository) AttachLocations(ctx context.Context, employeeID int64, locationIDs []int64) error {
	const query = `
		INSERT INTO employee_location (employee_id, location_id, created_at, updated_at)
		SELECT $1, unnest($2::bigint[]), NOW(), NOW()
		ON CONFLICT ON CONSTRAINT employee_location_pair DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, employeeID, locationIDs)
	return mapWriteError("employee_location", err)
}

func (r *EmployeeRepository) DetachLocations(ctx context.Context, employeeID int64, locationIDs []int64) error {
	const query = `DELETE FROM employee_location WHERE employee_id = $1 AND location_id = ANY($2::bigint[])`
	_, err := r.pool.Exec(ctx, query, employeeID, locationIDs)
	return err
}

func (r *EmployeeRepository) Locations(ctx context.Context, employeeID int64) ([]models.Location, error) {
	const query = `
		SELECT ` + locationColumns + `
		FROM locations l
		JOIN employee_location el ON el.location_id = l.id
		WHERE el.employee_id = $1 AND l.deleted_at IS NULL
		ORDER BY l.id
	`
	rows, err := r.pool.Query(ctx, query, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := []models.Location{}
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(locationDest(&l)...); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (r *EmployeeRepository) HasLocationAccess(ctx context.Context, employeeID, locationID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM employee_location WHERE employee_id = $1 AND location_id = $2)`
	var ok bool
	err := r.pool.QueryRow(ctx, query, employeeID, locationID).Scan(&ok)
	return ok, err
}

func scanEmployee(row pgx.Row) (models.Employee, error) {
	var e models.Employee
	if err := row.Scan(employeeDest(&e)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Employee{}, ErrEmployeeNotFound
		}
		return models.Employee{}, err
	}
	return e, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
