package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"example.com/learnlog/internal/domain"
)

// Score accepts a JSON number or string and keeps its text for validation.
type Score string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = Score(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("score must be a number or string: %w", err)
	}
	*s = Score(number.String())
	return nil
}

// RecordActivityRequest is the payload for POST /v1/records.
type RecordActivityRequest struct {
	StudentID          string   `json:"studentId"`
	StudentName        string   `json:"studentName"`
	Course             string   `json:"course"`
	Semester           string   `json:"semester"`
	ActivityType       string   `json:"activityType"`
	Score              Score    `json:"score"`
	LearningObjectives []string `json:"learningObjectives"`
	Notes              string   `json:"notes"`
	DateTime           string   `json:"dateTime"`
}

func (r RecordActivityRequest) toInput() domain.RecordActivityInput {
	return domain.RecordActivityInput{
		StudentID:          r.StudentID,
		StudentName:        r.StudentName,
		Course:             r.Course,
		Semester:           r.Semester,
		ActivityType:       r.ActivityType,
		Score:              string(r.Score),
		LearningObjectives: r.LearningObjectives,
		Notes:              r.Notes,
		DateTime:           r.DateTime,
	}
}

// AddStudentRequest is the payload for POST /v1/students.
type AddStudentRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Semester string `json:"semester"`
}

// RecordView is a record plus its display band.
type RecordView struct {
	domain.ActivityRecord
	ScoreBand string `json:"scoreBand"`
}

// StudentView is a profile plus display helpers.
type StudentView struct {
	domain.StudentProfile
	SemesterLabel string `json:"semesterLabel"`
	ScoreBand     string `json:"scoreBand"`
}

// RankedView is one leaderboard entry.
type RankedView struct {
	Rank    int          `json:"rank"`
	Medal   domain.Medal `json:"medal,omitempty"`
	Student StudentView  `json:"student"`
}

// DashboardResponse is the body of GET /v1/dashboard.
type DashboardResponse struct {
	Summary          domain.DashboardSummary `json:"summary"`
	RecentActivities []RecordView            `json:"recentActivities"`
	TopPerformers    []RankedView            `json:"topPerformers"`
}

// RecordListResponse lists records newest first.
type RecordListResponse struct {
	Items []RecordView `json:"items"`
}

// RecordResponse reports a record mutation.
type RecordResponse struct {
	Record    RecordView   `json:"record"`
	Student   *StudentView `json:"student,omitempty"`
	Persisted bool         `json:"persisted"`
	Warning   string       `json:"warning,omitempty"`
}

// StudentListResponse lists matching students.
type StudentListResponse struct {
	Items []StudentView `json:"items"`
}

// StudentResponse reports a student mutation.
type StudentResponse struct {
	Student   *StudentView `json:"student,omitempty"`
	Persisted bool         `json:"persisted"`
	Warning   string       `json:"warning,omitempty"`
}

// StudentDetailsResponse is the body of GET /v1/students/{id}.
type StudentDetailsResponse struct {
	Student       StudentView  `json:"student"`
	RecentRecords []RecordView `json:"recentRecords"`
}

// SuggestionResponse carries the autocomplete match, or null.
type SuggestionResponse struct {
	Suggestion *StudentView `json:"suggestion"`
}

// AnalyticsResponse bundles the chart series.
type AnalyticsResponse struct {
	Days                  int                 `json:"days"`
	Trend                 []domain.TrendPoint `json:"trend"`
	CourseAverages        domain.Tally        `json:"courseAverages"`
	SemesterAverages      domain.Tally        `json:"semesterAverages"`
	ActivityTypeAverages  domain.Tally        `json:"activityTypeAverages"`
	ObjectiveFrequency    domain.Tally        `json:"objectiveFrequency"`
	ActivityTypeFrequency domain.Tally        `json:"activityTypeFrequency"`
}

func toRecordView(rec domain.ActivityRecord) RecordView {
	return RecordView{ActivityRecord: rec, ScoreBand: domain.ScoreBand(rec.Score)}
}

func toRecordViews(records []domain.ActivityRecord) []RecordView {
	out := make([]RecordView, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordView(rec))
	}
	return out
}

func toStudentView(student domain.StudentProfile) StudentView {
	view := StudentView{
		StudentProfile: student,
		SemesterLabel:  strings.TrimSpace(student.Semester) + domain.OrdinalSuffix(student.Semester),
	}
	if student.TotalRecords > 0 {
		view.ScoreBand = domain.ScoreBand(student.AverageScore)
	}
	return view
}

func toRankedViews(ranked []domain.RankedStudent) []RankedView {
	out := make([]RankedView, 0, len(ranked))
	for _, entry := range ranked {
		out = append(out, RankedView{Rank: entry.Rank, Medal: entry.Medal, Student: toStudentView(entry.Student)})
	}
	return out
}
