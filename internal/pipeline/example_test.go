package pipeline_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"timetable/internal/decoder"
	"timetable/internal/extract"
	"timetable/internal/pipeline"
)

// Example parses a CSV timetable into class schedules.
func Example() {
	dir, err := os.MkdirTemp("", "timetable-example")
	if err != nil {
		log.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "timetable.csv")
	csv := "ClassX-Monday,ClassX-Tuesday\n英语/陈小华*,\n"
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		log.Fatalf("Failed to write CSV: %v", err)
	}

	d, err := decoder.New(decoder.DefaultGrammar())
	if err != nil {
		log.Fatalf("Failed to build decoder: %v", err)
	}
	p := pipeline.New(extract.NewCSVExtractor(), d)

	t, err := p.Run(context.Background(), extract.Document{Path: path, Name: "timetable.csv"})
	if err != nil {
		log.Fatalf("Failed to parse timetable: %v", err)
	}

	data, _ := json.Marshal(t.Classes)
	fmt.Println(string(data))
	fmt.Printf("classes=%d periods=%d\n", t.Statistics.TotalClasses, t.Statistics.TotalPeriods)
	// Output:
	// [{"class_name":"ClassX","schedule":{"monday":[{"period":1,"course":"英语","teacher":"陈小华","is_class_teacher":true}],"tuesday":[],"wednesday":[],"thursday":[],"friday":[]}}]
	// classes=1 periods=1
}
