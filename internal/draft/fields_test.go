package draft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debemdeboas/memories/internal/model"
)

func TestFieldsValidate(t *testing.T) {
	base := Fields{
		Title:       "Title",
		Description: "Description",
		Location:    model.Location{Address: "Porto"},
		StartDate:   "2024-01-01",
		EndDate:     "2024-01-02",
	}

	testCases := []struct {
		name   string
		mutate func(f *Fields)
		field  string
	}{
		{name: "valid", mutate: func(f *Fields) {}},
		{name: "missing title", mutate: func(f *Fields) { f.Title = "  " }, field: FieldTitle},
		{name: "missing description", mutate: func(f *Fields) { f.Description = "" }, field: FieldDescription},
		{name: "missing location", mutate: func(f *Fields) { f.Location.Address = "" }, field: FieldLocation},
		{name: "missing start", mutate: func(f *Fields) { f.StartDate = "" }, field: FieldStartDate},
		{name: "missing end", mutate: func(f *Fields) { f.EndDate = "" }, field: FieldEndDate},
		{name: "unparseable start", mutate: func(f *Fields) { f.StartDate = "01/01/2024" }, field: FieldStartDate},
		{name: "unparseable end", mutate: func(f *Fields) { f.EndDate = "tomorrow" }, field: FieldEndDate},
		{name: "end before start", mutate: func(f *Fields) { f.EndDate = "2023-12-31" }, field: FieldEndDate},
		{name: "same day", mutate: func(f *Fields) { f.EndDate = f.StartDate }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := base
			tc.mutate(&f)
			err := f.Validate()
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestFieldsRejectFutureDates(t *testing.T) {
	fixed := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	base := Fields{
		Title:       "Title",
		Description: "Description",
		Location:    model.Location{Address: "Porto"},
	}

	testCases := []struct {
		name       string
		start, end string
		field      string
	}{
		{name: "ends today", start: "2025-06-01", end: "2025-06-10"},
		{name: "ends tomorrow in an earlier zone", start: "2025-06-11", end: "2025-06-11"},
		{name: "ends in the future", start: "2025-06-01", end: "2025-06-12", field: FieldEndDate},
		{name: "starts in the future", start: "2025-07-01", end: "2025-07-02", field: FieldStartDate},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := base
			f.StartDate, f.EndDate = tc.start, tc.end
			err := f.Validate()
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
			assert.Equal(t, "in the future", vErr.Reason)
		})
	}
}

func TestFieldsNewMemory(t *testing.T) {
	lat, lng := 41.15, -8.61
	f := Fields{
		Title:       " Porto ",
		Description: "Bridges",
		Location:    model.Location{Address: "Porto", Lat: &lat, Lng: &lng},
		StartDate:   "2024-01-01",
		EndDate:     "2024-01-03",
		IsPublic:    true,
	}

	m, err := f.NewMemory("user-1", []string{"u2", "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Porto", m.Title)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), m.StartDate)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), m.EndDate)
	assert.Equal(t, []string{"u2", "u1"}, m.PhotoURLs)
	assert.Equal(t, model.UserID("user-1"), m.Owner)
	assert.True(t, m.IsPublic)
	require.NotNil(t, m.Location.Lat)
	assert.Equal(t, lat, *m.Location.Lat)
}

func TestSetField(t *testing.T) {
	t.Run("coordinates are optional and range checked", func(t *testing.T) {
		var f Fields
		require.NoError(t, f.set(FieldLocation, "Porto"))
		require.NoError(t, f.set(FieldLatitude, "41.15"))
		require.NoError(t, f.set(FieldLongitude, ""))
		require.NotNil(t, f.Location.Lat)
		assert.Nil(t, f.Location.Lng)

		var vErr *ValidationError
		require.ErrorAs(t, f.set(FieldLatitude, "91"), &vErr)
		assert.Equal(t, "out of range", vErr.Reason)
		require.ErrorAs(t, f.set(FieldLongitude, "east"), &vErr)
		assert.Equal(t, "not a number", vErr.Reason)
	})

	t.Run("retyping the address drops coordinates", func(t *testing.T) {
		var f Fields
		require.NoError(t, f.set(FieldLocation, "Porto"))
		require.NoError(t, f.set(FieldLatitude, "41.15"))
		require.NoError(t, f.set(FieldLocation, "Porto"))
		assert.NotNil(t, f.Location.Lat, "unchanged address keeps coordinates")
		require.NoError(t, f.set(FieldLocation, "Braga"))
		assert.Nil(t, f.Location.Lat)
	})

	t.Run("isPublic accepts checkbox values", func(t *testing.T) {
		var f Fields
		require.NoError(t, f.set(FieldIsPublic, "on"))
		assert.True(t, f.IsPublic)
		require.NoError(t, f.set(FieldIsPublic, "false"))
		assert.False(t, f.IsPublic)
	})

	t.Run("unknown field", func(t *testing.T) {
		var f Fields
		var vErr *ValidationError
		require.ErrorAs(t, f.set("colour", "pink"), &vErr)
		assert.Equal(t, "colour", vErr.Field)
	})
}
