package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/installment-service/internal/models"
)

func seedEmployees(repo *memoryRepo) {
	repo.locations = []models.OfficeLocation{
		{ID: 1, Name: "Head office", Latitude: 25.2048, Longitude: 55.2708, AllowedRadius: 100},
		{ID: 2, Name: "Branch", Latitude: 24.4539, Longitude: 54.3773, AllowedRadius: 200},
	}
	repo.employees[10] = &models.Employee{ID: 10, Name: "Mariam", MobileUsername: "mariam"}
	repo.employees[11] = &models.Employee{ID: 11, Name: "Omar", MobileUsername: "omar", OfficeLocationID: 2}
	repo.employees[12] = &models.Employee{ID: 12, Name: "Sara", MobileUsername: "sara", OfficeLocationID: 9}
}

func TestSetPINAndMobileLogin(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)
	seedEmployees(repo)

	_, err := svc.MobileLogin(ctx, "mariam", "1234")
	require.ErrorIs(t, err, models.ErrInvalidCredentials, "no access before a PIN is set")

	require.ErrorIs(t, svc.SetPIN(ctx, 10, "12a4"), models.ErrValidation)
	require.ErrorIs(t, svc.SetPIN(ctx, 10, "123"), models.ErrValidation)
	require.ErrorIs(t, svc.SetPIN(ctx, 99, "1234"), models.ErrNotFound)

	require.NoError(t, svc.SetPIN(ctx, 10, "482913"))
	assert.True(t, repo.employees[10].AllowMobileAccess)
	assert.NotEqual(t, "482913", repo.employees[10].PinHash)

	token, err := svc.MobileLogin(ctx, "mariam", "482913")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = svc.MobileLogin(ctx, "mariam", "482914")
	require.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = svc.MobileLogin(ctx, "nobody", "482913")
	require.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestCheckIn(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)
	seedEmployees(repo)

	_, err := svc.CheckIn(ctx, 10, 25.2049, 55.2708)
	require.ErrorIs(t, err, models.ErrInvalidCredentials, "mobile access not enabled yet")

	for _, id := range []int64{10, 11, 12} {
		require.NoError(t, svc.SetPIN(ctx, id, "1234"))
	}

	_, err = svc.CheckIn(ctx, 10, 25.2100, 55.2708)
	require.ErrorIs(t, err, models.ErrOutOfRange)
	assert.Empty(t, repo.attendances, "rejected check-ins are not stored")

	_, err = svc.CheckIn(ctx, 10, 91, 55.2708)
	require.ErrorIs(t, err, models.ErrValidation)

	ci, err := svc.CheckIn(ctx, 10, 25.2049, 55.2708)
	require.NoError(t, err)
	assert.EqualValues(t, 1, ci.Match.Location.ID)
	assert.InDelta(t, 11, ci.Match.Distance, 1)
	assert.True(t, ci.Match.Allowed)
	require.Contains(t, repo.attendances, ci.Attendance.ID)
	stored := repo.attendances[ci.Attendance.ID]
	assert.EqualValues(t, 10, stored.EmployeeID)
	assert.EqualValues(t, 1, stored.LocationID)
	assert.Equal(t, svc.now(), stored.CheckIn)
	assert.InDelta(t, 25.2049, stored.CheckInLatitude, 1e-9)
	assert.Nil(t, stored.CheckOut)

	// Omar is only matched against the branch, even standing at head office.
	_, err = svc.CheckIn(ctx, 11, 25.2049, 55.2708)
	require.ErrorIs(t, err, models.ErrOutOfRange)
	ci, err = svc.CheckIn(ctx, 11, 24.4540, 54.3773)
	require.NoError(t, err)
	assert.EqualValues(t, 2, ci.Match.Location.ID)

	_, err = svc.CheckIn(ctx, 12, 25.2049, 55.2708)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestCheckInFlexibleRadius(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)
	seedEmployees(repo)
	repo.locations[0].AllowFlexibleRadius = true
	repo.locations[0].FlexibleRadius = 1000
	require.NoError(t, svc.SetPIN(ctx, 10, "1234"))

	ci, err := svc.CheckIn(ctx, 10, 25.2100, 55.2708)
	require.NoError(t, err)
	assert.InDelta(t, 578, ci.Match.Distance, 2)
}

func TestCheckInTwiceWithoutCheckOut(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)
	seedEmployees(repo)
	require.NoError(t, svc.SetPIN(ctx, 10, "1234"))

	_, err := svc.CheckIn(ctx, 10, 25.2049, 55.2708)
	require.NoError(t, err)
	_, err = svc.CheckIn(ctx, 10, 25.2049, 55.2708)
	require.ErrorIs(t, err, models.ErrConflict)
	assert.Len(t, repo.attendances, 1)
}

func TestCheckOut(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := newTestService(repo)
	seedEmployees(repo)
	require.NoError(t, svc.SetPIN(ctx, 10, "1234"))

	_, err := svc.CheckOut(ctx, 10, 25.2049, 55.2708)
	require.ErrorIs(t, err, models.ErrInvalidState, "nothing to close yet")

	start := svc.now()
	ci, err := svc.CheckIn(ctx, 10, 25.2049, 55.2708)
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(8*time.Hour + 5*time.Minute + 40*time.Second) }

	_, err = svc.CheckOut(ctx, 10, 25.2100, 55.2708)
	require.ErrorIs(t, err, models.ErrOutOfRange)
	assert.Nil(t, repo.attendances[ci.Attendance.ID].CheckOut, "out-of-range check-out leaves the attendance open")

	co, err := svc.CheckOut(ctx, 10, 25.2048, 55.2709)
	require.NoError(t, err)
	assert.Equal(t, "8:05", co.Duration)
	assert.Equal(t, ci.Attendance.ID, co.Attendance.ID)

	stored := repo.attendances[ci.Attendance.ID]
	require.NotNil(t, stored.CheckOut)
	assert.Equal(t, start.Add(8*time.Hour+5*time.Minute+40*time.Second), *stored.CheckOut)
	assert.InDelta(t, 55.2709, stored.CheckOutLongitude, 1e-9)
	assert.Equal(t, 8*time.Hour+5*time.Minute+40*time.Second, stored.Worked())

	_, err = svc.CheckOut(ctx, 10, 25.2048, 55.2709)
	require.ErrorIs(t, err, models.ErrInvalidState, "already checked out")

	// A new day opens a new attendance.
	ci2, err := svc.CheckIn(ctx, 10, 25.2049, 55.2708)
	require.NoError(t, err)
	assert.NotEqual(t, ci.Attendance.ID, ci2.Attendance.ID)
}

func TestFormatWorked(t *testing.T) {
	assert.Equal(t, "0:00", formatWorked(0))
	assert.Equal(t, "0:59", formatWorked(59*time.Minute+59*time.Second))
	assert.Equal(t, "1:00", formatWorked(time.Hour))
	assert.Equal(t, "26:30", formatWorked(26*time.Hour+30*time.Minute))
}
