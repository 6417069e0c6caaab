package models

import "time"

// User represents a back-office staff user
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Not serialized
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Employee is a staff member with mobile app access
type Employee struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	MobileUsername    string    `json:"mobile_username"`
	AllowMobileAccess bool      `json:"allow_mobile_access"`
	PinHash           string    `json:"-"`
	PinSalt           string    `json:"-"`
	OfficeLocationID  int64     `json:"office_location_id,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// OfficeLocation is a geofenced site where employees may check in
type OfficeLocation struct {
	ID                  int64   `json:"id"`
	Name                string  `json:"name"`
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
	AllowedRadius       int     `json:"allowed_radius"`
	AllowFlexibleRadius bool    `json:"allow_flexible_radius"`
	FlexibleRadius      int     `json:"flexible_radius"`
}

// Attendance is one check-in, closed by a later check-out
type Attendance struct {
	ID                int64      `json:"id"`
	EmployeeID        int64      `json:"employee_id"`
	LocationID        int64      `json:"location_id"`
	CheckIn           time.Time  `json:"check_in"`
	CheckInLatitude   float64    `json:"check_in_latitude"`
	CheckInLongitude  float64    `json:"check_in_longitude"`
	CheckInDistance   float64    `json:"check_in_distance"`
	CheckOut          *time.Time `json:"check_out,omitempty"`
	CheckOutLatitude  float64    `json:"check_out_latitude,omitempty"`
	CheckOutLongitude float64    `json:"check_out_longitude,omitempty"`
	CheckOutDistance  float64    `json:"check_out_distance,omitempty"`
}

// Worked is the time between check-in and check-out, zero while open.
func (a *Attendance) Worked() time.Duration {
	if a.CheckOut == nil {
		return 0
	}
	return a.CheckOut.Sub(a.CheckIn)
}
