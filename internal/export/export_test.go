package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/learnlog/internal/domain"
)

func sampleSnapshot() domain.Snapshot {
	ts := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	return domain.Snapshot{
		Records: []domain.ActivityRecord{
			{
				ID: "r1", StudentID: "S1", StudentName: "Hassan, Ahmad", Course: "web", Semester: "6",
				ActivityType: "assignment", Score: 88, LearningObjectives: []string{"teamwork", "research"},
				Notes: `said "great"`, DateTime: "2026-03-10T09:00", Timestamp: ts,
			},
			{
				ID: "r2", StudentID: "S2", StudentName: "Fatima Ali", Course: "ml", Semester: "6",
				ActivityType: "project", Score: 95, DateTime: "2026-03-10T10:00", Timestamp: ts,
			},
		},
		Students: []domain.StudentProfile{
			{ID: "S1", Name: "Hassan, Ahmad", Courses: domain.NewStringSet("web"), Activities: domain.NewStringSet("assignment")},
			{ID: "S2", Name: "Fatima Ali", Courses: domain.NewStringSet("ml"), Activities: domain.NewStringSet("project")},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleSnapshot().Records))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Student ID,Student Name,Course,Semester,Activity Type,Score,Learning Objectives,Notes,Date Time", lines[0])
	require.Equal(t, `S1,"Hassan, Ahmad",web,6,assignment,88,teamwork; research,"said ""great""",2026-03-10T09:00`, lines[1])
}

func TestWriteCSVRowsParseBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleSnapshot().Records))

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Hassan, Ahmad", rows[1][1])
	require.Equal(t, `said "great"`, rows[1][7])
	require.Equal(t, "", rows[2][6])
	require.Equal(t, "95", rows[2][5])
}

func TestWriteJSONRoundTrips(t *testing.T) {
	snap := sampleSnapshot()
	exportedAt := time.Date(2026, time.March, 11, 12, 30, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, NewDocument(snap, exportedAt)))
	require.Contains(t, buf.String(), "\n  \"exportDate\": \"2026-03-11T12:30:00Z\"")

	var decoded Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, 2, decoded.TotalRecords)
	require.Equal(t, snap.Records, decoded.LearningData)
	require.Equal(t, snap.Students, decoded.Students)
}

func TestNewDocumentEmptySnapshot(t *testing.T) {
	doc := NewDocument(domain.Snapshot{}, time.Now())
	require.Zero(t, doc.TotalRecords)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))
	require.Contains(t, buf.String(), `"learningData": []`)
	require.Contains(t, buf.String(), `"students": []`)
}
