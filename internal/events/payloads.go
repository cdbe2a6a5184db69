// Package events defines the learning event payloads published to Kafka and the
// publisher that emits them.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"example.com/learnlog/internal/domain"
)

const (
	// HeaderEventType carries the domain.EventType of a message.
	HeaderEventType = "event_type"
	// HeaderStudentID carries the student the event belongs to.
	HeaderStudentID = "student_id"
)

// ActivityRecorded is emitted when a learning record is accepted.
type ActivityRecorded struct {
	RecordID           string    `json:"record_id"`
	StudentID          string    `json:"student_id"`
	StudentName        string    `json:"student_name"`
	Course             string    `json:"course"`
	Semester           string    `json:"semester"`
	ActivityType       string    `json:"activity_type"`
	Score              int       `json:"score"`
	LearningObjectives []string  `json:"learning_objectives"`
	StudentAverage     int       `json:"student_average"`
	StudentRecords     int       `json:"student_records"`
	RecordedAt         time.Time `json:"recorded_at"`
}

// ActivityDeleted is emitted when a single record is removed.
type ActivityDeleted struct {
	RecordID  string    `json:"record_id"`
	StudentID string    `json:"student_id"`
	Score     int       `json:"score"`
	DeletedAt time.Time `json:"deleted_at"`
}

// StudentAdded is emitted when a student is registered explicitly.
type StudentAdded struct {
	StudentID string    `json:"student_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Semester  string    `json:"semester"`
	AddedAt   time.Time `json:"added_at"`
}

// StudentDeleted is emitted when a student and their records are removed.
type StudentDeleted struct {
	StudentID      string    `json:"student_id"`
	RecordsRemoved int       `json:"records_removed"`
	DeletedAt      time.Time `json:"deleted_at"`
}

// PayloadFor converts a store event into its wire payload.
func PayloadFor(event domain.Event) (interface{}, error) {
	occurred := event.OccurredAt.UTC()
	switch event.Type {
	case domain.EventActivityRecorded:
		if event.Record == nil {
			return nil, fmt.Errorf("%s without record", event.Type)
		}
		payload := ActivityRecorded{
			RecordID:           event.Record.ID,
			StudentID:          event.StudentID,
			StudentName:        event.Record.StudentName,
			Course:             event.Record.Course,
			Semester:           event.Record.Semester,
			ActivityType:       event.Record.ActivityType,
			Score:              event.Record.Score,
			LearningObjectives: event.Record.LearningObjectives,
			RecordedAt:         occurred,
		}
		if event.Student != nil {
			payload.StudentAverage = event.Student.AverageScore
			payload.StudentRecords = event.Student.TotalRecords
		}
		return payload, nil
	case domain.EventActivityDeleted:
		if event.Record == nil {
			return nil, fmt.Errorf("%s without record", event.Type)
		}
		return ActivityDeleted{
			RecordID:  event.Record.ID,
			StudentID: event.StudentID,
			Score:     event.Record.Score,
			DeletedAt: occurred,
		}, nil
	case domain.EventStudentAdded:
		if event.Student == nil {
			return nil, fmt.Errorf("%s without student", event.Type)
		}
		return StudentAdded{
			StudentID: event.StudentID,
			Name:      event.Student.Name,
			Email:     event.Student.Email,
			Semester:  event.Student.Semester,
			AddedAt:   occurred,
		}, nil
	case domain.EventStudentDeleted:
		return StudentDeleted{
			StudentID:      event.StudentID,
			RecordsRemoved: event.Removed,
			DeletedAt:      occurred,
		}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
}

// Decode parses value as the payload registered for eventType.
func Decode(eventType string, value []byte) (interface{}, error) {
	var target interface{}
	switch domain.EventType(eventType) {
	case domain.EventActivityRecorded:
		target = &ActivityRecorded{}
	case domain.EventActivityDeleted:
		target = &ActivityDeleted{}
	case domain.EventStudentAdded:
		target = &StudentAdded{}
	case domain.EventStudentDeleted:
		target = &StudentDeleted{}
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
	if err := json.Unmarshal(value, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return target, nil
}
