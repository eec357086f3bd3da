package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Weekday is a school day in canonical Monday-through-Friday order.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
)

// Weekdays lists every school day in canonical order.
var Weekdays = [...]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

var (
	weekdayKeys  = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday"}
	weekdayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
)

// Valid reports whether d is one of the five canonical school days.
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Friday
}

// Key returns the lower-case JSON key for the day ("monday").
func (d Weekday) Key() string {
	if !d.Valid() {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayKeys[d]
}

// ParseWeekdayKey is the inverse of Key.
func ParseWeekdayKey(key string) (Weekday, bool) {
	for _, d := range Weekdays {
		if weekdayKeys[d] == key {
			return d, true
		}
	}
	return 0, false
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// PeriodEntry is one lesson slot.
type PeriodEntry struct {
	Period         int    `json:"period"`
	Course         string `json:"course"`
	Teacher        string `json:"teacher"`
	IsClassTeacher bool   `json:"is_class_teacher"`
}

// WeekSchedule holds the lessons of each school day, indexed by Weekday.
// It always serializes all five days in canonical order.
type WeekSchedule [len(Weekdays)][]PeriodEntry

// Day returns the lessons scheduled on d, sorted by period.
func (w WeekSchedule) Day(d Weekday) []PeriodEntry {
	if !d.Valid() {
		return nil
	}
	return w[d]
}

// PeriodCount returns the number of entries across the week.
func (w WeekSchedule) PeriodCount() int {
	n := 0
	for _, day := range w {
		n += len(day)
	}
	return n
}

// MarshalJSON emits {"monday": [...], ..., "friday": [...]} in canonical order,
// with empty days as empty arrays.
func (w WeekSchedule) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range Weekdays {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(d.Key())
		buf.Write(key)
		buf.WriteByte(':')

		entries := w[d]
		if entries == nil {
			entries = []PeriodEntry{}
		}
		data, err := json.Marshal(entries)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the object form produced by MarshalJSON. Unknown keys
// are rejected.
func (w *WeekSchedule) UnmarshalJSON(data []byte) error {
	var raw map[string][]PeriodEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out WeekSchedule
	for key, entries := range raw {
		d, ok := ParseWeekdayKey(key)
		if !ok {
			return fmt.Errorf("unknown weekday key %q", key)
		}
		out[d] = entries
	}
	*w = out
	return nil
}

// ClassSchedule is the weekly schedule of one class.
type ClassSchedule struct {
	ClassName string       `json:"class_name"`
	Schedule  WeekSchedule `json:"schedule"`
}

// ParsingReport carries the extraction quality of one table region.
type ParsingReport struct {
	Accuracy   float64 `json:"accuracy"`   // 0-100
	Whitespace float64 `json:"whitespace"` // 0-100, share of empty cells
	Order      int     `json:"order"`      // 1-based position of the table on its page
	Page       int     `json:"page"`       // 1-based page (or sheet) number
}

// Statistics summarizes a parsed timetable.
type Statistics struct {
	TotalClasses int `json:"total_classes"`
	TotalPeriods int `json:"total_periods"`
}

// Timetable is the outcome of one pipeline run.
type Timetable struct {
	// Classes are sorted by class name.
	Classes    []ClassSchedule
	Statistics Statistics
	// Reports holds one report per table region, in source order.
	Reports []ParsingReport
	// Empty is set when the document yielded no table regions.
	Empty bool
}

// Representative returns the report of the region with the worst accuracy,
// preferring the earliest region on ties. ok is false when there are no reports.
func (t *Timetable) Representative() (report ParsingReport, ok bool) {
	for i, r := range t.Reports {
		if i == 0 || r.Accuracy < report.Accuracy {
			report = r
		}
	}
	return report, len(t.Reports) > 0
}

// Class looks up a class by exact name.
func (t *Timetable) Class(name string) (ClassSchedule, bool) {
	for _, c := range t.Classes {
		if c.ClassName == name {
			return c, true
		}
	}
	return ClassSchedule{}, false
}
