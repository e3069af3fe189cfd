package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"qrattendance/internal/database"
	"qrattendance/internal/models"
	"qrattendance/internal/scope"
)

const openAttendanceIndex = "attendances_one_open_per_employee"

type AttendanceFilter struct {
	// Scope restricts rows by the owning user of the attendance's employee.
	Scope      scope.Predicate
	EmployeeID *int64
	LocationID *int64
	StartDate  *time.Time
	EndDate    *time.Time
}

// sqlDate renders the calendar date of t as written, so a date bound never
// shifts with the zone of t or of the session.
func sqlDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

type CheckInParams struct {
	EmployeeID int64
	LocationID int64
	At         time.Time
	Latitude   *float64
	Longitude  *float64
	Notes      *string
}

type CheckOutParams struct {
	EmployeeID int64
	At         time.Time
	Latitude   *float64
	Longitude  *float64
	Notes      *string
}

// AttendanceChanges holds the fields an update sets; nil fields are kept.
type AttendanceChanges struct {
	EmployeeID        *int64
	LocationID        *int64
	CheckIn           *time.Time
	CheckOut          *time.Time
	CheckInLatitude   *float64
	CheckInLongitude  *float64
	CheckOutLatitude  *float64
	CheckOutLongitude *float64
	Notes             *string
}

type SummaryFilter struct {
	Scope     scope.Predicate
	StartDate time.Time
	EndDate   time.Time
}

type AttendanceRepository struct {
	pool *pgxpool.Pool
}

func NewAttendanceRepository(pool *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceJoins = `
	FROM attendances a
	JOIN employees e ON e.id = a.employee_id
	JOIN locations l ON l.id = a.location_id
`

// CheckIn opens an attendance for the employee. The employee row is locked
// for the duration of the check so concurrent check-ins queue behind each
// other; the partial unique index catches anything that slips past.
func (r *AttendanceRepository) CheckIn(ctx context.Context, p CheckInParams) (models.Attendance, error) {
	var created models.Attendance

	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var locked int64
		err := tx.QueryRow(ctx, `SELECT id FROM employees WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, p.EmployeeID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEmployeeNotFound
		}
		if err != nil {
			return fmt.Errorf("lock employee: %w", err)
		}

		open, err := findOpen(ctx, tx, p.EmployeeID)
		if err == nil {
			return &OpenAttendanceError{Open: open}
		}
		if !errors.Is(err, ErrNoOpenAttendance) {
			return err
		}

		const insert = `
			INSERT INTO attendances AS a (
				employee_id, location_id, check_in, check_in_latitude, check_in_longitude, notes, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			RETURNING ` + attendanceColumns
		return tx.QueryRow(ctx, insert,
			p.EmployeeID, p.LocationID, p.At, p.Latitude, p.Longitude, p.Notes,
		).Scan(attendanceDest(&created)...)
	})
	if err != nil {
		return models.Attendance{}, r.openConflict(ctx, p.EmployeeID, err)
	}

	return r.withLocation(ctx, created)
}

// CheckOut closes the latest open attendance in a single statement. When no
// attendance is open nothing is written.
func (r *AttendanceRepository) CheckOut(ctx context.Context, p CheckOutParams) (models.Attendance, error) {
	const query = `
		UPDATE attendances AS a SET
			check_out = $2,
			check_out_latitude = $3,
			check_out_longitude = $4,
			notes = COALESCE($5, a.notes),
			updated_at = NOW()
		WHERE a.id = (
			SELECT id FROM attendances
			WHERE employee_id = $1 AND check_out IS NULL
			ORDER BY check_in DESC
			LIMIT 1
			FOR UPDATE
		)
		RETURNING ` + attendanceColumns

	var closed models.Attendance
	err := r.pool.QueryRow(ctx, query, p.EmployeeID, p.At, p.Latitude, p.Longitude, p.Notes).Scan(attendanceDest(&closed)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Attendance{}, ErrNoOpenAttendance
		}
		return models.Attendance{}, mapWriteError("attendances", err)
	}
	return r.withLocation(ctx, closed)
}

// FindOpen returns the employee's open attendance with its location.
func (r *AttendanceRepository) FindOpen(ctx context.Context, employeeID int64) (models.Attendance, error) {
	open, err := findOpen(ctx, r.pool, employeeID)
	if err != nil {
		return models.Attendance{}, err
	}
	return r.withLocation(ctx, open)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func findOpen(ctx context.Context, q querier, employeeID int64) (models.Attendance, error) {
	const query = `
		SELECT ` + attendanceColumns + `
		FROM attendances a
		WHERE a.employee_id = $1 AND a.check_out IS NULL
		ORDER BY a.check_in DESC
		LIMIT 1
	`
	var open models.Attendance
	if err := q.QueryRow(ctx, query, employeeID).Scan(attendanceDest(&open)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Attendance{}, ErrNoOpenAttendance
		}
		return models.Attendance{}, err
	}
	return open, nil
}

// openConflict turns a violation of the open-attendance index into an
// OpenAttendanceError carrying the winning row.
func (r *AttendanceRepository) openConflict(ctx context.Context, employeeID int64, err error) error {
	code, constraint := database.PgCode(err)
	if code != database.UniqueViolation || constraint != openAttendanceIndex {
		return mapWriteError("attendances", err)
	}
	open, findErr := r.FindOpen(ctx, employeeID)
	if findErr != nil {
		return ErrAttendanceOpen
	}
	return &OpenAttendanceError{Open: open}
}

func (r *AttendanceRepository) withLocation(ctx context.Context, a models.Attendance) (models.Attendance, error) {
	const query = `SELECT ` + locationColumns + ` FROM locations l WHERE l.id = $1`
	var l models.Location
	if err := r.pool.QueryRow(ctx, query, a.LocationID).Scan(locationDest(&l)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return a, nil
		}
		return models.Attendance{}, err
	}
	a.Location = &l
	return a, nil
}

func (r *AttendanceRepository) GetByID(ctx context.Context, id int64) (models.Attendance, error) {
	query := `SELECT ` + attendanceColumns + `, ` + employeeColumns + `, ` + locationColumns + attendanceJoins + ` WHERE a.id = $1`

	var (
		a models.Attendance
		e models.Employee
		l models.Location
	)
	if err := r.pool.QueryRow(ctx, query, id).Scan(concat(attendanceDest(&a), employeeDest(&e), locationDest(&l))...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Attendance{}, ErrAttendanceNotFound
		}
		return models.Attendance{}, err
	}
	a.Employee = &e
	a.Location = &l
	return a, nil
}

// List returns attendances newest first. Date bounds are inclusive and
// compare the calendar date of check_in.
func (r *AttendanceRepository) List(ctx context.Context, filter AttendanceFilter) ([]models.Attendance, error) {
	var params args
	clause, scopeArgs := filter.Scope.SQL("e.user_id", 1)
	params = append(params, scopeArgs...)
	where := []string{clause}

	if filter.EmployeeID != nil {
		where = append(where, fmt.Sprintf("a.employee_id = $%d", params.add(*filter.EmployeeID)))
	}
	if filter.LocationID != nil {
		where = append(where, fmt.Sprintf("a.location_id = $%d", params.add(*filter.LocationID)))
	}
	if filter.StartDate != nil {
		where = append(where, fmt.Sprintf("a.check_in::date >= $%d::date", params.add(sqlDate(*filter.StartDate))))
	}
	if filter.EndDate != nil {
		where = append(where, fmt.Sprintf("a.check_in::date <= $%d::date", params.add(sqlDate(*filter.EndDate))))
	}

	query := `SELECT ` + attendanceColumns + `, ` + employeeColumns + `, ` + locationColumns + attendanceJoins +
		` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY a.check_in DESC, a.id DESC`

	rows, err := r.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attendances := []models.Attendance{}
	for rows.Next() {
		var (
			a models.Attendance
			e models.Employee
			l models.Location
		)
		if err := rows.Scan(concat(attendanceDest(&a), employeeDest(&e), locationDest(&l))...); err != nil {
			return nil, err
		}
		a.Employee = &e
		a.Location = &l
		attendances = append(attendances, a)
	}
	return attendances, rows.Err()
}

func (r *AttendanceRepository) Create(ctx context.Context, a models.Attendance) (models.Attendance, error) {
	const query = `
		INSERT INTO attendances AS a (
			employee_id, location_id, check_in, check_out, check_in_latitude, check_in_longitude,
			check_out_latitude, check_out_longitude, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING a.id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		a.EmployeeID, a.LocationID, a.CheckIn, a.CheckOut,
		a.CheckInLatitude, a.CheckInLongitude, a.CheckOutLatitude, a.CheckOutLongitude, a.Notes,
	).Scan(&id)
	if err != nil {
		return models.Attendance{}, r.openConflict(ctx, a.EmployeeID, err)
	}
	return r.GetByID(ctx, id)
}

func (r *AttendanceRepository) Update(ctx context.Context, id int64, c AttendanceChanges) (models.Attendance, error) {
	const query = `
		UPDATE attendances SET
			employee_id = COALESCE($2, employee_id),
			location_id = COALESCE($3, location_id),
			check_in = COALESCE($4, check_in),
			check_out = COALESCE($5, check_out),
			check_in_latitude = COALESCE($6, check_in_latitude),
			check_in_longitude = COALESCE($7, check_in_longitude),
			check_out_latitude = COALESCE($8, check_out_latitude),
			check_out_longitude = COALESCE($9, check_out_longitude),
			notes = COALESCE($10, notes),
			updated_at = NOW()
		WHERE id = $1
		RETURNING employee_id
	`
	var employeeID int64
	err := r.pool.QueryRow(ctx, query, id,
		c.EmployeeID, c.LocationID, c.CheckIn, c.CheckOut,
		c.CheckInLatitude, c.CheckInLongitude, c.CheckOutLatitude, c.CheckOutLongitude, c.Notes,
	).Scan(&employeeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Attendance{}, ErrAttendanceNotFound
		}
		conflictEmployee := int64(0)
		if c.EmployeeID != nil {
			conflictEmployee = *c.EmployeeID
		} else if current, getErr := r.GetByID(ctx, id); getErr == nil {
			conflictEmployee = current.EmployeeID
		}
		return models.Attendance{}, r.openConflict(ctx, conflictEmployee, err)
	}
	return r.GetByID(ctx, id)
}

func (r *AttendanceRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM attendances WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAttendanceNotFound
	}
	return nil
}

// ListByLocation returns the attendances recorded at a location.
func (r *AttendanceRepository) ListByLocation(ctx context.Context, locationID int64) ([]models.Attendance, error) {
	return r.listSimple(ctx, `a.location_id = $1`, locationID)
}

// ListByEmployee returns the employee's attendances newest first.
func (r *AttendanceRepository) ListByEmployee(ctx context.Context, employeeID int64) ([]models.Attendance, error) {
	return r.listSimple(ctx, `a.employee_id = $1`, employeeID)
}

func (r *AttendanceRepository) listSimple(ctx context.Context, where string, arg int64) ([]models.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendances a WHERE ` + where + ` ORDER BY a.check_in DESC`
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attendances := []models.Attendance{}
	for rows.Next() {
		var a models.Attendance
		if err := rows.Scan(attendanceDest(&a)...); err != nil {
			return nil, err
		}
		attendances = append(attendances, a)
	}
	return attendances, rows.Err()
}

// Summary aggregates closed hours per employee over an inclusive date range.
func (r *AttendanceRepository) Summary(ctx context.Context, filter SummaryFilter) ([]models.AttendanceSummary, error) {
	var params args
	clause, scopeArgs := filter.Scope.SQL("e.user_id", 1)
	params = append(params, scopeArgs...)
	start := params.add(sqlDate(filter.StartDate))
	end := params.add(sqlDate(filter.EndDate))

	query := fmt.Sprintf(`
		SELECT e.id, e.first_name || ' ' || e.last_name, e.employee_code,
		       COUNT(a.id),
		       COUNT(a.id) FILTER (WHERE a.check_out IS NULL),
		       COALESCE(SUM(EXTRACT(EPOCH FROM (a.check_out - a.check_in))) FILTER (WHERE a.check_out IS NOT NULL), 0)::float8 / 3600
		FROM employees e
		JOIN attendances a ON a.employee_id = e.id
		WHERE %s AND e.deleted_at IS NULL
		  AND a.check_in::date >= $%d::date AND a.check_in::date <= $%d::date
		GROUP BY e.id, e.first_name, e.last_name, e.employee_code
		ORDER BY e.id
	`, clause, start, end)

	rows, err := r.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := []models.AttendanceSummary{}
	for rows.Next() {
		var s models.AttendanceSummary
		if err := rows.Scan(&s.EmployeeID, &s.EmployeeName, &s.EmployeeCode, &s.Sessions, &s.OpenSessions, &s.TotalHours); err != nil {
			return nil, err
		}
		summary = append(summary, s)
	}
	return summary, rows.Err()
}
