package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DayLayout is the date-only format used for attendance days.
const DayLayout = "2006-01-02"

// Attendance statuses.
const (
	StatusPresent = "present"
	StatusLate    = "late"
	StatusAbsent  = "absent"
	StatusLeave   = "leave"
)

// Check-in methods.
const (
	MethodManual      = "manual"
	MethodFace        = "face"
	MethodFingerprint = "fingerprint"
)

// ErrInvalidDay is returned when a date cannot be reduced to a calendar day.
var ErrInvalidDay = errors.New("invalid attendance date")

// Attendance is one employee's presence record for a calendar day. Date may
// be a date-only string or a full RFC 3339 timestamp; see Day.
type Attendance struct {
	ID         string         `json:"id"`
	EmployeeID string         `json:"employeeId"`
	Date       string         `json:"date"`
	CheckIn    *time.Time     `json:"checkIn,omitempty"`
	CheckOut   *time.Time     `json:"checkOut,omitempty"`
	Status     string         `json:"status,omitempty"`
	Method     string         `json:"method,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Day returns the record's calendar day.
func (a *Attendance) Day() (string, error) {
	return NormalizeDay(a.Date)
}

// NormalizeDay reduces a date to YYYY-MM-DD. Timestamps are converted to
// their UTC day.
func NormalizeDay(date string) (string, error) {
	date = strings.TrimSpace(date)
	if t, err := time.Parse(DayLayout, date); err == nil {
		return t.Format(DayLayout), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.UTC().Format(DayLayout), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDay, date)
}
