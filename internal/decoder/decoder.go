// Package decoder turns the free text of one timetable cell into lesson
// entries and recognizes weekday and period labels in headers.
package decoder

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"timetable/pkg/models"
)

// Entry is one lesson decoded from a cell.
type Entry struct {
	Course         string
	Teacher        string
	IsClassTeacher bool
}

type alias struct {
	label string
	day   models.Weekday
}

// Decoder is a compiled Grammar. It holds no mutable state and is safe for
// concurrent use.
type Decoder struct {
	grammar    Grammar
	entryDelim []string
	teacherSep []string
	markers    [][]rune
	headerSep  []string
	aliases    []alias
	period     *regexp.Regexp
}

// New compiles g.
func New(g Grammar) (*Decoder, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	d := &Decoder{
		grammar:    g,
		entryDelim: normalizeAll(g.EntryDelimiters),
		teacherSep: normalizeAll(g.TeacherSeparators),
		headerSep:  normalizeAll(g.HeaderSeparators),
	}
	longestFirst(d.entryDelim)
	longestFirst(d.teacherSep)

	for _, m := range normalizeAll(g.ClassTeacherMarkers) {
		if key := foldKey(m); len(key) > 0 {
			d.markers = append(d.markers, key)
		}
	}
	sort.SliceStable(d.markers, func(i, j int) bool { return len(d.markers[i]) > len(d.markers[j]) })

	for _, day := range models.Weekdays {
		for _, label := range g.WeekdayAliases[day.Key()] {
			label = strings.TrimSpace(Normalize(label))
			if label != "" {
				d.aliases = append(d.aliases, alias{label: label, day: day})
			}
		}
	}
	sort.SliceStable(d.aliases, func(i, j int) bool { return len(d.aliases[i].label) > len(d.aliases[j].label) })

	if g.PeriodLabelPattern != "" {
		d.period = regexp.MustCompile(g.PeriodLabelPattern)
	}
	return d, nil
}

// Grammar returns the grammar d was compiled from.
func (d *Decoder) Grammar() Grammar { return d.grammar }

// Decode splits cell text into entries. It never fails: text without a
// teacher separator becomes a course-only entry and blank text yields no
// entries.
func (d *Decoder) Decode(text string) []Entry {
	text = Normalize(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var entries []Entry
	for _, part := range splitAny(text, d.entryDelim) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		entries = append(entries, d.decodeEntry(part))
	}
	return entries
}

func (d *Decoder) decodeEntry(s string) Entry {
	at, sep := indexAny(s, d.teacherSep)
	if at < 0 {
		return Entry{Course: s}
	}

	teacher, marked := d.stripMarker(strings.TrimSpace(s[at+len(sep):]))
	return Entry{
		Course:         strings.TrimSpace(s[:at]),
		Teacher:        teacher,
		IsClassTeacher: marked,
	}
}

// stripMarker removes a class-teacher marker written at either end of the
// teacher field, comparing without case or whitespace.
func (d *Decoder) stripMarker(teacher string) (string, bool) {
	for _, m := range d.markers {
		if rest, ok := trimFoldSuffix(teacher, m); ok {
			return rest, true
		}
		if rest, ok := trimFoldPrefix(teacher, m); ok {
			return rest, true
		}
	}
	return teacher, false
}

func trimFoldSuffix(s string, key []rune) (string, bool) {
	i, k := len(s), len(key)-1
	for i > 0 && k >= 0 {
		r, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
		if unicode.IsSpace(r) {
			continue
		}
		if unicode.ToLower(r) != key[k] {
			return s, false
		}
		k--
	}
	if k >= 0 {
		return s, false
	}
	return strings.TrimSpace(s[:i]), true
}

func trimFoldPrefix(s string, key []rune) (string, bool) {
	i, k := 0, 0
	for i < len(s) && k < len(key) {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if unicode.IsSpace(r) {
			continue
		}
		if unicode.ToLower(r) != key[k] {
			return s, false
		}
		k++
	}
	if k < len(key) {
		return s, false
	}
	return strings.TrimSpace(s[i:]), true
}

// foldKey lowercases s and drops whitespace.
func foldKey(s string) []rune {
	var key []rune
	for _, r := range s {
		if !unicode.IsSpace(r) {
			key = append(key, unicode.ToLower(r))
		}
	}
	return key
}

// Weekday resolves a weekday label such as "Mon" or "星期一".
func (d *Decoder) Weekday(label string) (models.Weekday, bool) {
	label = strings.TrimSpace(Normalize(label))
	for _, a := range d.aliases {
		if strings.EqualFold(label, a.label) {
			return a.day, true
		}
	}
	return 0, false
}

// SplitHeader parses a combined column header such as "高一(1)班-星期一" or
// "Mon 7A". The weekday may come after or before the class name; the suffix
// form is tried first.
func (d *Decoder) SplitHeader(label string) (string, models.Weekday, bool) {
	label = strings.TrimSpace(Normalize(label))
	for _, a := range d.aliases {
		n := len(a.label)
		if len(label) <= n {
			continue
		}
		if strings.EqualFold(label[len(label)-n:], a.label) {
			if class := d.trimHeaderSep(label[:len(label)-n]); class != "" {
				return class, a.day, true
			}
		}
	}
	for _, a := range d.aliases {
		n := len(a.label)
		if len(label) <= n {
			continue
		}
		if strings.EqualFold(label[:n], a.label) {
			if class := d.trimHeaderSep(label[n:]); class != "" {
				return class, a.day, true
			}
		}
	}
	return "", 0, false
}

func (d *Decoder) trimHeaderSep(s string) string {
	for {
		before := s
		s = strings.TrimSpace(s)
		for _, sep := range d.headerSep {
			s = strings.TrimPrefix(s, sep)
			s = strings.TrimSuffix(s, sep)
		}
		if s == before {
			return s
		}
	}
}

// Period parses a row label such as "3", "第3节" or "Period 3". Only positive
// numbers are accepted.
func (d *Decoder) Period(label string) (int, bool) {
	n, ok := d.PeriodLabel(label)
	return n, ok && n > 0
}

// PeriodLabel reports whether label has the shape of a period label and
// returns its number, which may be zero.
func (d *Decoder) PeriodLabel(label string) (int, bool) {
	if d.period == nil {
		return 0, false
	}
	m := d.period.FindStringSubmatch(strings.TrimSpace(Normalize(label)))
	if m == nil {
		return 0, false
	}
	for _, group := range m[1:] {
		if group == "" {
			continue
		}
		n, err := strconv.Atoi(group)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = Normalize(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func longestFirst(list []string) {
	sort.SliceStable(list, func(i, j int) bool { return len(list[i]) > len(list[j]) })
}

// indexAny returns the earliest position of any of seps in s. On a tie the
// longer separator wins because seps is sorted longest first.
func indexAny(s string, seps []string) (int, string) {
	at, found := -1, ""
	for _, sep := range seps {
		if i := strings.Index(s, sep); i >= 0 && (at < 0 || i < at) {
			at, found = i, sep
		}
	}
	return at, found
}

func splitAny(s string, seps []string) []string {
	if len(seps) == 0 {
		return []string{s}
	}
	var parts []string
	for {
		at, sep := indexAny(s, seps)
		if at < 0 {
			return append(parts, s)
		}
		parts = append(parts, s[:at])
		s = s[at+len(sep):]
	}
}
