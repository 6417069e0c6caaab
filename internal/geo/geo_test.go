package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/installment-service/internal/models"
)

func TestDistance(t *testing.T) {
	assert.InDelta(t, 0, Distance(25.2, 55.3, 25.2, 55.3), 1e-9)

	// One degree of latitude is roughly 111.2 km.
	assert.InDelta(t, 111195, Distance(0, 0, 1, 0), 50)

	// Dubai to Abu Dhabi, about 123 km.
	d := Distance(25.2048, 55.2708, 24.4539, 54.3773)
	assert.InDelta(t, 122900, d, 1000)
}

func TestNearest(t *testing.T) {
	locations := []models.OfficeLocation{
		{ID: 1, Name: "far", Latitude: 24.4539, Longitude: 54.3773, AllowedRadius: 100},
		{ID: 2, Name: "near", Latitude: 25.2048, Longitude: 55.2708, AllowedRadius: 100},
	}

	m, err := Nearest(locations, 25.2049, 55.2708)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.Location.ID)
	assert.True(t, m.Allowed)
	assert.Less(t, m.Distance, 20.0)

	m, err = Nearest(locations, 25.2100, 55.2708)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.Location.ID)
	assert.False(t, m.Allowed)
}

func TestNearestFlexibleRadius(t *testing.T) {
	loc := models.OfficeLocation{
		ID: 1, Latitude: 25.2048, Longitude: 55.2708,
		AllowedRadius: 100, AllowFlexibleRadius: true, FlexibleRadius: 1000,
	}
	m, err := Nearest([]models.OfficeLocation{loc}, 25.2100, 55.2708)
	require.NoError(t, err)
	assert.True(t, m.Allowed)

	loc.AllowFlexibleRadius = false
	m, err = Nearest([]models.OfficeLocation{loc}, 25.2100, 55.2708)
	require.NoError(t, err)
	assert.False(t, m.Allowed)
}

func TestNearestErrors(t *testing.T) {
	_, err := Nearest(nil, 10, 10)
	assert.ErrorIs(t, err, ErrNoLocations)

	_, err = Nearest([]models.OfficeLocation{{AllowedRadius: 10}}, 91, 10)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestValidateLocation(t *testing.T) {
	assert.NoError(t, ValidateLocation(models.OfficeLocation{Latitude: 1, Longitude: 1, AllowedRadius: 50}))
	assert.ErrorIs(t, ValidateLocation(models.OfficeLocation{Latitude: 100, AllowedRadius: 50}), ErrInvalidCoordinates)
	assert.ErrorIs(t, ValidateLocation(models.OfficeLocation{AllowedRadius: 0}), ErrInvalidRadius)
	assert.ErrorIs(t, ValidateLocation(models.OfficeLocation{
		AllowedRadius: 100, AllowFlexibleRadius: true, FlexibleRadius: 50,
	}), ErrInvalidRadius)
}
