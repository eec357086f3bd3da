package schedule

import "timetable/pkg/models"

// Aggregate assembles the final timetable from built schedules and the
// per-region reports. A timetable without reports came from a document with
// no tables and is marked Empty.
func Aggregate(classes []models.ClassSchedule, reports []models.ParsingReport) models.Timetable {
	t := models.Timetable{
		Classes: classes,
		Reports: reports,
		Empty:   len(reports) == 0,
	}
	if t.Classes == nil {
		t.Classes = []models.ClassSchedule{}
	}
	if t.Reports == nil {
		t.Reports = []models.ParsingReport{}
	}

	t.Statistics.TotalClasses = len(classes)
	for _, c := range classes {
		t.Statistics.TotalPeriods += c.Schedule.PeriodCount()
	}
	return t
}
