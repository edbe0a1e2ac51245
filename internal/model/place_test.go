package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceDetails_Empty(t *testing.T) {
	t.Parallel()

	assert.True(t, PlaceDetails{}.Empty())
	assert.True(t, PlaceDetails{Parking: []string{ParkingUnsure}}.Empty())
	assert.False(t, PlaceDetails{PlaceName: "Amelie's"}.Empty())
	assert.False(t, PlaceDetails{Description: "cozy"}.Empty())
}

func TestSnapshot_Stamp(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	snap := &PlaceSnapshot{PlaceID: "ChIJx"}
	snap.Stamp(time.Date(2025, 6, 30, 8, 0, 0, 0, loc))

	// Always recorded in UTC.
	assert.Equal(t, "2025-06-30T12:00:00Z", snap.LastUpdated)
}

func TestSnapshot_Age(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

	snap := &PlaceSnapshot{LastUpdated: "2025-06-20T12:00:00Z"}
	age, ok := snap.Age(now)
	require.True(t, ok)
	assert.Equal(t, 10*24*time.Hour, age)

	_, ok = (&PlaceSnapshot{LastUpdated: "not a timestamp"}).Age(now)
	assert.False(t, ok)

	_, ok = (&PlaceSnapshot{}).Age(now)
	assert.False(t, ok)
}

func TestOutcome_Updated(t *testing.T) {
	t.Parallel()

	o := EnrichmentOutcome{Status: StatusSucceeded}
	assert.False(t, o.Updated())

	o.FieldUpdates = map[string]FieldUpdate{
		"Website": {Applied: false, Reason: ReasonValueMatchesExisting},
	}
	assert.False(t, o.Updated())

	o.FieldUpdates["Address"] = FieldUpdate{Applied: true, Reason: ReasonEmptyOrUnsureSlot}
	assert.True(t, o.Updated())
}
