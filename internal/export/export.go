// Package export renders the dataset as downloadable CSV and JSON files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"example.com/learnlog/internal/domain"
)

const (
	CSVFileName     = "bsse-simu-learning-data.csv"
	CSVContentType  = "text/csv; charset=utf-8"
	JSONFileName    = "bsse-simu-learning-data.json"
	JSONContentType = "application/json"

	objectiveSeparator = "; "
)

var csvHeader = []string{
	"Student ID",
	"Student Name",
	"Course",
	"Semester",
	"Activity Type",
	"Score",
	"Learning Objectives",
	"Notes",
	"Date Time",
}

// WriteCSV writes one header row and one row per record in insertion order.
func WriteCSV(w io.Writer, records []domain.ActivityRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.StudentID,
			rec.StudentName,
			rec.Course,
			rec.Semester,
			rec.ActivityType,
			strconv.Itoa(rec.Score),
			strings.Join(rec.LearningObjectives, objectiveSeparator),
			rec.Notes,
			rec.DateTime,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", rec.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Document is the JSON export envelope.
type Document struct {
	ExportDate   time.Time               `json:"exportDate"`
	TotalRecords int                     `json:"totalRecords"`
	Students     []domain.StudentProfile `json:"students"`
	LearningData []domain.ActivityRecord `json:"learningData"`
}

// NewDocument builds the export envelope for snap, stamped at exportedAt.
func NewDocument(snap domain.Snapshot, exportedAt time.Time) Document {
	doc := Document{
		ExportDate:   exportedAt.UTC(),
		TotalRecords: len(snap.Records),
		Students:     snap.Students,
		LearningData: snap.Records,
	}
	if doc.Students == nil {
		doc.Students = []domain.StudentProfile{}
	}
	if doc.LearningData == nil {
		doc.LearningData = []domain.ActivityRecord{}
	}
	return doc
}

// WriteJSON writes doc indented by two spaces.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}
