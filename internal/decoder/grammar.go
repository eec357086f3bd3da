package decoder

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"

	"timetable/pkg/models"
)

// ErrInvalidGrammar is returned when a grammar cannot be compiled.
var ErrInvalidGrammar = errors.New("invalid cell grammar")

// Grammar describes the in-cell and header conventions of a timetable. The
// delimiters differ between schools and export tools, so they are data rather
// than constants. All strings are normalized like cell text before use.
type Grammar struct {
	// EntryDelimiters separate co-taught lessons written in one cell.
	EntryDelimiters []string `toml:"entry_delimiters"`

	// TeacherSeparators split an entry into course and teacher. The first
	// occurrence wins.
	TeacherSeparators []string `toml:"teacher_separators"`

	// ClassTeacherMarkers flag the homeroom teacher when written directly
	// before or after the teacher name.
	ClassTeacherMarkers []string `toml:"class_teacher_markers"`

	// HeaderSeparators may appear between a class name and a weekday in a
	// column header.
	HeaderSeparators []string `toml:"header_separators"`

	// WeekdayAliases maps monday..friday to the labels used for that day.
	WeekdayAliases map[string][]string `toml:"weekday_aliases"`

	// PeriodLabelPattern recognizes period numbers in a row-label column. The
	// first non-empty capture group holds the number.
	PeriodLabelPattern string `toml:"period_label_pattern"`
}

// Preset names accepted by Preset.
const (
	PresetDefault = "default"
	PresetStacked = "stacked"
)

// DefaultGrammar returns the inline convention: "course/teacher", one lesson
// per line, "*" or "(班)" marking the class teacher.
func DefaultGrammar() Grammar {
	return Grammar{
		EntryDelimiters:     []string{"\n"},
		TeacherSeparators:   []string{"/"},
		ClassTeacherMarkers: []string{"*", "(班)", "(班主任)"},
		HeaderSeparators:    []string{"-", "_", " ", "·", ":", "/", "|"},
		WeekdayAliases: map[string][]string{
			"monday":    {"Monday", "Mon", "星期一", "周一", "礼拜一"},
			"tuesday":   {"Tuesday", "Tues", "Tue", "星期二", "周二", "礼拜二"},
			"wednesday": {"Wednesday", "Wed", "星期三", "周三", "礼拜三"},
			"thursday":  {"Thursday", "Thurs", "Thur", "Thu", "星期四", "周四", "礼拜四"},
			"friday":    {"Friday", "Fri", "星期五", "周五", "礼拜五"},
		},
		PeriodLabelPattern: `^(?i)(?:第|period|lesson|p)?\s*(\d{1,2})\s*(?:节课|节|\.|:)?$`,
	}
}

// StackedGrammar returns the stacked convention used by several timetable
// exports: course on the first line, teacher on the second, lessons separated
// by a blank line.
func StackedGrammar() Grammar {
	g := DefaultGrammar()
	g.EntryDelimiters = []string{"\n\n"}
	g.TeacherSeparators = []string{"\n"}
	return g
}

// Preset returns a built-in grammar by name. An empty name selects the default.
func Preset(name string) (Grammar, error) {
	switch name {
	case "", PresetDefault:
		return DefaultGrammar(), nil
	case PresetStacked:
		return StackedGrammar(), nil
	default:
		return Grammar{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidGrammar, name)
	}
}

// LoadGrammar overlays the TOML file at path onto base. Keys missing from the
// file keep the base values.
func LoadGrammar(base Grammar, path string) (Grammar, error) {
	if _, err := os.Stat(path); err != nil {
		return Grammar{}, fmt.Errorf("reading grammar file: %w", err)
	}

	g := base
	if _, err := toml.DecodeFile(path, &g); err != nil {
		return Grammar{}, fmt.Errorf("%w: %s: %v", ErrInvalidGrammar, path, err)
	}
	return g, nil
}

// Validate reports the first problem that would keep the grammar from compiling.
func (g Grammar) Validate() error {
	if len(g.TeacherSeparators) == 0 {
		return fmt.Errorf("%w: no teacher separators", ErrInvalidGrammar)
	}
	for _, list := range [][]string{g.EntryDelimiters, g.TeacherSeparators, g.ClassTeacherMarkers, g.HeaderSeparators} {
		for _, s := range list {
			if s == "" {
				return fmt.Errorf("%w: empty delimiter or marker", ErrInvalidGrammar)
			}
		}
	}
	for key := range g.WeekdayAliases {
		if _, ok := models.ParseWeekdayKey(key); !ok {
			return fmt.Errorf("%w: unknown weekday key %q", ErrInvalidGrammar, key)
		}
	}
	if g.PeriodLabelPattern != "" {
		re, err := regexp.Compile(g.PeriodLabelPattern)
		if err != nil {
			return fmt.Errorf("%w: period label pattern: %v", ErrInvalidGrammar, err)
		}
		if re.NumSubexp() == 0 {
			return fmt.Errorf("%w: period label pattern needs a capture group", ErrInvalidGrammar)
		}
	}
	return nil
}
