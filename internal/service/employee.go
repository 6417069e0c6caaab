package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Dan9191/installment-service/internal/geo"
	"github.com/Dan9191/installment-service/internal/models"
	"github.com/Dan9191/installment-service/internal/pin"
)

// CheckIn is an opened attendance and the office it was matched to
type CheckIn struct {
	Attendance *models.Attendance `json:"attendance"`
	Match      geo.Match          `json:"match"`
}

// CheckOut is a closed attendance with the time worked as H:MM
type CheckOut struct {
	Attendance *models.Attendance `json:"attendance"`
	Match      geo.Match          `json:"match"`
	Duration   string             `json:"duration"`
}

// SetPIN validates, hashes and stores an employee PIN
func (s *Service) SetPIN(ctx context.Context, employeeID int64, code string) error {
	if err := pin.Validate(code); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	hash, salt, err := pin.Generate(code)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateEmployeePIN(ctx, employeeID, hash, salt); err != nil {
		return err
	}
	s.log.Infof("PIN updated for employee %d", employeeID)
	return nil
}

// MobileLogin authenticates an employee by username and PIN
func (s *Service) MobileLogin(ctx context.Context, username, code string) (string, error) {
	e, err := s.repo.FindEmployeeByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrInvalidCredentials
		}
		return "", err
	}
	if !e.AllowMobileAccess || !pin.Verify(code, e.PinHash, e.PinSalt) {
		s.log.Warnf("Mobile login rejected for %s", username)
		return "", models.ErrInvalidCredentials
	}
	return s.issueToken(strconv.FormatInt(e.ID, 10), AudienceMobile)
}

// CheckIn opens an attendance for the employee if they stand inside the
// office geofence. An employee with an open attendance must check out first.
func (s *Service) CheckIn(ctx context.Context, employeeID int64, lat, lon float64) (*CheckIn, error) {
	e, m, err := s.locate(ctx, employeeID, lat, lon, "in")
	if err != nil {
		return nil, err
	}

	open, err := s.repo.GetOpenAttendance(ctx, e.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if open != nil {
		return nil, fmt.Errorf("%w: employee %d checked in at %s and has not checked out",
			models.ErrConflict, e.ID, open.CheckIn.Format(time.RFC3339))
	}

	a := &models.Attendance{
		EmployeeID:       e.ID,
		LocationID:       m.Location.ID,
		CheckIn:          s.now(),
		CheckInLatitude:  lat,
		CheckInLongitude: lon,
		CheckInDistance:  m.Distance,
	}
	if err := s.repo.CreateAttendance(ctx, a); err != nil {
		return nil, err
	}

	s.log.Infof("Employee %d checked in at %s (%.0f m)", e.ID, m.Location.Name, m.Distance)
	return &CheckIn{Attendance: a, Match: m}, nil
}

// CheckOut closes the employee's open attendance. The position is checked
// against the same geofence as a check-in.
func (s *Service) CheckOut(ctx context.Context, employeeID int64, lat, lon float64) (*CheckOut, error) {
	e, m, err := s.locate(ctx, employeeID, lat, lon, "out")
	if err != nil {
		return nil, err
	}

	a, err := s.repo.GetOpenAttendance(ctx, e.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: employee %d is not checked in", models.ErrInvalidState, e.ID)
	}
	if err != nil {
		return nil, err
	}

	at := s.now()
	a.CheckOut = &at
	a.CheckOutLatitude = lat
	a.CheckOutLongitude = lon
	a.CheckOutDistance = m.Distance
	if err := s.repo.CloseAttendance(ctx, a); err != nil {
		return nil, err
	}

	worked := a.Worked()
	s.log.Infof("Employee %d checked out at %s after %s", e.ID, m.Location.Name, worked)
	return &CheckOut{Attendance: a, Match: m, Duration: formatWorked(worked)}, nil
}

// locate loads the employee and matches the position against their offices.
// An employee assigned to an office is only matched against that office.
func (s *Service) locate(ctx context.Context, employeeID int64, lat, lon float64, direction string) (*models.Employee, geo.Match, error) {
	e, err := s.repo.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, geo.Match{}, err
	}
	if !e.AllowMobileAccess {
		return nil, geo.Match{}, fmt.Errorf("%w: mobile access disabled", models.ErrInvalidCredentials)
	}

	locations, err := s.repo.ListOfficeLocations(ctx)
	if err != nil {
		return nil, geo.Match{}, err
	}
	if e.OfficeLocationID != 0 {
		assigned := locations[:0:0]
		for _, l := range locations {
			if l.ID == e.OfficeLocationID {
				assigned = append(assigned, l)
			}
		}
		locations = assigned
	}

	m, err := geo.Nearest(locations, lat, lon)
	if errors.Is(err, geo.ErrNoLocations) {
		return nil, geo.Match{}, fmt.Errorf("office location %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, geo.Match{}, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	if !m.Allowed {
		s.log.Warnf("Employee %d tried to check %s %.0f m from %s", e.ID, direction, m.Distance, m.Location.Name)
		return nil, geo.Match{}, fmt.Errorf("%w: %.0f m from %s", models.ErrOutOfRange, m.Distance, m.Location.Name)
	}
	return e, m, nil
}

// formatWorked renders d as hours and zero-padded minutes, e.g. 8:05.
func formatWorked(d time.Duration) string {
	minutes := int64(d / time.Minute)
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}
