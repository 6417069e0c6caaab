package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dan9191/installment-service/internal/models"
)

const employeeColumns = `
	id, name, COALESCE(mobile_username, ''), allow_mobile_access, pin_hash, pin_salt,
	COALESCE(office_location_id, 0), updated_at`

func scanEmployee(row rowScanner) (*models.Employee, error) {
	e := &models.Employee{}
	err := row.Scan(&e.ID, &e.Name, &e.MobileUsername, &e.AllowMobileAccess,
		&e.PinHash, &e.PinSalt, &e.OfficeLocationID, &e.UpdatedAt)
	return e, err
}

// GetEmployee retrieves an employee by id
func (r *Repository) GetEmployee(ctx context.Context, id int64) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM erp.employees WHERE id = $1`
	e, err := scanEmployee(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("employee %d %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return e, nil
}

// FindEmployeeByUsername retrieves an employee by mobile username
func (r *Repository) FindEmployeeByUsername(ctx context.Context, username string) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM erp.employees WHERE mobile_username = $1`
	e, err := scanEmployee(r.db.QueryRowContext(ctx, query, username))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("employee %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find employee: %w", err)
	}
	return e, nil
}

// UpdateEmployeePIN stores a new PIN hash and salt and enables mobile access
func (r *Repository) UpdateEmployeePIN(ctx context.Context, id int64, hash, salt string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE erp.employees
		SET pin_hash = $1, pin_salt = $2, allow_mobile_access = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3`,
		hash, salt, id)
	if err != nil {
		return fmt.Errorf("failed to update pin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("employee %d %w", id, models.ErrNotFound)
	}
	return nil
}

// ListOfficeLocations returns every office location
func (r *Repository) ListOfficeLocations(ctx context.Context) ([]models.OfficeLocation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, latitude, longitude, allowed_radius, allow_flexible_radius, flexible_radius
		FROM erp.office_locations
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query office locations: %w", err)
	}
	defer rows.Close()

	var out []models.OfficeLocation
	for rows.Next() {
		var l models.OfficeLocation
		if err := rows.Scan(&l.ID, &l.Name, &l.Latitude, &l.Longitude,
			&l.AllowedRadius, &l.AllowFlexibleRadius, &l.FlexibleRadius); err != nil {
			return nil, fmt.Errorf("failed to scan office location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const attendanceColumns = `
	id, employee_id, location_id, check_in, check_in_latitude, check_in_longitude, check_in_distance,
	check_out, COALESCE(check_out_latitude, 0), COALESCE(check_out_longitude, 0), COALESCE(check_out_distance, 0)`

func scanAttendance(row rowScanner) (*models.Attendance, error) {
	a := &models.Attendance{}
	var checkOut sql.NullTime
	err := row.Scan(&a.ID, &a.EmployeeID, &a.LocationID, &a.CheckIn,
		&a.CheckInLatitude, &a.CheckInLongitude, &a.CheckInDistance,
		&checkOut, &a.CheckOutLatitude, &a.CheckOutLongitude, &a.CheckOutDistance)
	if checkOut.Valid {
		a.CheckOut = &checkOut.Time
	}
	return a, err
}

// CreateAttendance opens an attendance. A second open attendance for the same
// employee is a conflict.
func (r *Repository) CreateAttendance(ctx context.Context, a *models.Attendance) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO erp.attendances (employee_id, location_id, check_in,
			check_in_latitude, check_in_longitude, check_in_distance)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		a.EmployeeID, a.LocationID, a.CheckIn, a.CheckInLatitude, a.CheckInLongitude, a.CheckInDistance).
		Scan(&a.ID)
	if err != nil {
		return mapPQError(err, "open attendance")
	}
	return nil
}

// GetOpenAttendance returns the employee's attendance without a check-out
func (r *Repository) GetOpenAttendance(ctx context.Context, employeeID int64) (*models.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM erp.attendances WHERE employee_id = $1 AND check_out IS NULL`
	a, err := scanAttendance(r.db.QueryRowContext(ctx, query, employeeID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("open attendance for employee %d %w", employeeID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}
	return a, nil
}

// CloseAttendance stores the check-out of an open attendance. An attendance
// that was already closed is left untouched.
func (r *Repository) CloseAttendance(ctx context.Context, a *models.Attendance) error {
	if a.CheckOut == nil {
		return fmt.Errorf("%w: attendance %d has no check-out time", models.ErrValidation, a.ID)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE erp.attendances
		SET check_out = $1, check_out_latitude = $2, check_out_longitude = $3, check_out_distance = $4
		WHERE id = $5 AND check_out IS NULL`,
		*a.CheckOut, a.CheckOutLatitude, a.CheckOutLongitude, a.CheckOutDistance, a.ID)
	if err != nil {
		return mapPQError(err, "attendance")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: attendance %d is already closed", models.ErrInvalidState, a.ID)
	}
	return nil
}
