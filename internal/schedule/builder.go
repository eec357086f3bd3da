package schedule

import (
	"sort"
	"strings"

	"timetable/internal/decoder"
	"timetable/pkg/models"
)

type slotKey struct {
	class   string
	weekday models.Weekday
	period  int
}

type filled struct {
	region  int
	entries []decoder.Entry
}

// Builder merges the slots of successive regions into class schedules. A
// region that repeats a slot with the same lessons is accepted; one that
// disagrees is rejected as a whole.
type Builder struct {
	slots map[slotKey]filled
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{slots: make(map[slotKey]filled)}
}

// Add merges the slots of one region. On a *ConflictError nothing from the
// region is kept.
func (b *Builder) Add(region int, slots []Slot) error {
	pending := make(map[slotKey]filled, len(slots))
	for _, s := range slots {
		key := slotKey{class: strings.TrimSpace(s.Class), weekday: s.Weekday, period: s.Period}

		prior, ok := b.slots[key]
		if !ok {
			prior, ok = pending[key]
		}
		if ok {
			if !sameEntries(prior.entries, s.Entries) {
				return &ConflictError{
					Class:       key.class,
					Weekday:     key.weekday,
					Period:      key.period,
					Region:      region,
					PriorRegion: prior.region,
				}
			}
			continue
		}

		pending[key] = filled{region: region, entries: s.Entries}
	}

	for key, f := range pending {
		b.slots[key] = f
	}
	return nil
}

// Build returns the schedules sorted by class name. Each day lists its
// lessons by period; co-taught lessons keep their order within the cell.
func (b *Builder) Build() []models.ClassSchedule {
	keys := make([]slotKey, 0, len(b.slots))
	for key := range b.slots {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, c := keys[i], keys[j]
		if a.class != c.class {
			return a.class < c.class
		}
		if a.weekday != c.weekday {
			return a.weekday < c.weekday
		}
		return a.period < c.period
	})

	classes := []models.ClassSchedule{}
	for _, key := range keys {
		if n := len(classes); n == 0 || classes[n-1].ClassName != key.class {
			classes = append(classes, models.ClassSchedule{ClassName: key.class})
		}
		week := &classes[len(classes)-1].Schedule
		for _, e := range b.slots[key].entries {
			week[key.weekday] = append(week[key.weekday], models.PeriodEntry{
				Period:         key.period,
				Course:         e.Course,
				Teacher:        e.Teacher,
				IsClassTeacher: e.IsClassTeacher,
			})
		}
	}
	return classes
}

func sameEntries(a, b []decoder.Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
