package models

import "time"

// School identifies one of the two district high schools.
type School string

const (
	SchoolWLHS School = "wlhs"
	SchoolWVHS School = "wvhs"
)

// Valid reports whether s is a known school code.
func (s School) Valid() bool {
	return s == SchoolWLHS || s == SchoolWVHS
}

// Event is the canonical calendar event, the only shape the store accepts.
// Date is always ISO YYYY-MM-DD; Time is 24-hour HH:MM or empty when the
// source carried no usable time.
type Event struct {
	ID          string    `json:"id,omitempty"`
	School      School    `json:"school"`
	Date        string    `json:"date"`
	Time        string    `json:"time,omitempty"`
	Title       string    `json:"title"`
	Department  string    `json:"department,omitempty"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Key returns the dedup key. Comparison is byte-exact on purpose: a stored
// title differing only in trailing whitespace counts as a distinct event.
func (e Event) Key() string {
	return string(e.School) + "|" + e.Date + "|" + e.Title
}

// DayType marks a calendar date with a district day label (A/B rotation,
// no school, late start, ...). One row per date.
type DayType struct {
	Date string `json:"date"`
	Type string `json:"type"`
}

// Material is a class material link published for a school and date.
type Material struct {
	ID          string    `json:"id,omitempty"`
	School      School    `json:"school"`
	Date        string    `json:"date"`
	GradeLevel  int       `json:"grade_level"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description,omitempty"`
	Password    string    `json:"password,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}
