package draft

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/debemdeboas/memories/internal/model"
)

// DateLayout is the wire format of the start and end dates.
const DateLayout = "2006-01-02"

var now = time.Now

// latestDate is the last day a memory may end on: today, in the earliest
// time zone that has reached it.
func latestDate() time.Time {
	return now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 1)
}

// Field names accepted by SetField.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldLocation    = "location"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
	FieldStartDate   = "startDate"
	FieldEndDate     = "endDate"
	FieldIsPublic    = "isPublic"
)

// Fields holds the first-step form values. They stay unvalidated until the
// draft advances or is finalized.
type Fields struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Location    model.Location `json:"location"`
	StartDate   string         `json:"startDate"`
	EndDate     string         `json:"endDate"`
	IsPublic    bool           `json:"isPublic"`
}

// ValidationError names the first field that blocks advancing or finalizing.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (f Fields) empty() bool {
	return f.Title == "" &&
		f.Description == "" &&
		f.Location.Address == "" &&
		f.StartDate == "" &&
		f.EndDate == ""
}

// Validate checks the required fields. Latitude and longitude are optional.
func (f Fields) Validate() error {
	_, _, err := f.parseDates()
	return err
}

func (f Fields) parseDates() (time.Time, time.Time, error) {
	required := []struct {
		name  string
		value string
	}{
		{FieldTitle, f.Title},
		{FieldDescription, f.Description},
		{FieldLocation, f.Location.Address},
		{FieldStartDate, f.StartDate},
		{FieldEndDate, f.EndDate},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return time.Time{}, time.Time{}, &ValidationError{Field: r.name, Reason: "required"}
		}
	}

	start, err := time.Parse(DateLayout, f.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: FieldStartDate, Reason: "expected YYYY-MM-DD"}
	}
	end, err := time.Parse(DateLayout, f.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: FieldEndDate, Reason: "expected YYYY-MM-DD"}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, &ValidationError{Field: FieldEndDate, Reason: "before start date"}
	}
	latest := latestDate()
	if start.After(latest) {
		return time.Time{}, time.Time{}, &ValidationError{Field: FieldStartDate, Reason: "in the future"}
	}
	if end.After(latest) {
		return time.Time{}, time.Time{}, &ValidationError{Field: FieldEndDate, Reason: "in the future"}
	}

	return start, end, nil
}

// NewMemory converts validated fields and the ordered photo URLs into a
// create-record request.
func (f Fields) NewMemory(owner model.UserID, photoURLs []string) (model.NewMemory, error) {
	start, end, err := f.parseDates()
	if err != nil {
		return model.NewMemory{}, err
	}

	return model.NewMemory{
		Title:       strings.TrimSpace(f.Title),
		Description: strings.TrimSpace(f.Description),
		Location:    f.Location,
		StartDate:   start,
		EndDate:     end,
		IsPublic:    f.IsPublic,
		PhotoURLs:   photoURLs,
		Owner:       owner,
	}, nil
}

func (f *Fields) set(name, value string) error {
	switch name {
	case FieldTitle:
		f.Title = value
	case FieldDescription:
		f.Description = value
	case FieldLocation:
		// A retyped address invalidates any previously resolved coordinates.
		if value != f.Location.Address {
			f.Location = model.Location{Address: value}
		}
	case FieldLatitude, FieldLongitude:
		coord, err := parseCoordinate(name, value)
		if err != nil {
			return err
		}
		if name == FieldLatitude {
			f.Location.Lat = coord
		} else {
			f.Location.Lng = coord
		}
	case FieldStartDate:
		f.StartDate = value
	case FieldEndDate:
		f.EndDate = value
	case FieldIsPublic:
		f.IsPublic = value == "true" || value == "on"
	default:
		return &ValidationError{Field: name, Reason: "unknown field"}
	}
	return nil
}

func parseCoordinate(name, value string) (*float64, error) {
	if value == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, &ValidationError{Field: name, Reason: "not a number"}
	}
	limit := 90.0
	if name == FieldLongitude {
		limit = 180.0
	}
	if v < -limit || v > limit {
		return nil, &ValidationError{Field: name, Reason: "out of range"}
	}
	return &v, nil
}
