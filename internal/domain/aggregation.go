package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"example.com/learnlog/internal/observability"
)

// MaxScoreMagnitude bounds accepted scores. Scores are not limited to 0-100, but a
// student's running total must stay far from integer overflow.
const MaxScoreMagnitude = 1_000_000

// RecordActivityInput captures a submitted learning record. Score is the raw
// submitted value and must parse as an integer.
type RecordActivityInput struct {
	StudentID          string   `json:"studentId" validate:"required"`
	StudentName        string   `json:"studentName" validate:"required"`
	Course             string   `json:"course" validate:"required"`
	Semester           string   `json:"semester" validate:"required"`
	ActivityType       string   `json:"activityType" validate:"required"`
	Score              string   `json:"score" validate:"required"`
	LearningObjectives []string `json:"learningObjectives"`
	Notes              string   `json:"notes"`
	DateTime           string   `json:"dateTime" validate:"required"`
}

func (in RecordActivityInput) normalized() RecordActivityInput {
	out := in
	out.StudentID = strings.TrimSpace(in.StudentID)
	out.StudentName = strings.TrimSpace(in.StudentName)
	out.Course = strings.TrimSpace(in.Course)
	out.Semester = strings.TrimSpace(in.Semester)
	out.ActivityType = strings.TrimSpace(in.ActivityType)
	out.Score = strings.TrimSpace(in.Score)
	out.Notes = strings.TrimSpace(in.Notes)
	out.DateTime = strings.TrimSpace(in.DateTime)

	seen := NewStringSet()
	out.LearningObjectives = make([]string, 0, len(in.LearningObjectives))
	for _, objective := range in.LearningObjectives {
		objective = strings.TrimSpace(objective)
		if objective == "" || seen.Has(objective) {
			continue
		}
		seen.Add(objective)
		out.LearningObjectives = append(out.LearningObjectives, objective)
	}
	return out
}

// AddStudentInput captures an explicitly registered student.
type AddStudentInput struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Semester string `json:"semester" validate:"required"`
}

func (in AddStudentInput) normalized() AddStudentInput {
	return AddStudentInput{
		ID:       strings.TrimSpace(in.ID),
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.TrimSpace(in.Email),
		Semester: strings.TrimSpace(in.Semester),
	}
}

// RecordActivity validates and appends a record, then folds it into the owning
// student's aggregates, creating the profile on first sight. A *PersistenceError
// is returned alongside the stored record when the save fails.
func (s *Store) RecordActivity(ctx context.Context, input RecordActivityInput) (ActivityRecord, error) {
	input = input.normalized()
	if err := validateStruct(input); err != nil {
		return ActivityRecord{}, err
	}
	score, err := strconv.Atoi(input.Score)
	if err != nil {
		return ActivityRecord{}, &ValidationError{Field: "score", Reason: "must be an integer"}
	}
	if score > MaxScoreMagnitude || score < -MaxScoreMagnitude {
		return ActivityRecord{}, &ValidationError{
			Field:  "score",
			Reason: fmt.Sprintf("must be between %d and %d", -MaxScoreMagnitude, MaxScoreMagnitude),
		}
	}

	s.mu.Lock()
	rec := ActivityRecord{
		ID:                 s.newID(),
		StudentID:          input.StudentID,
		StudentName:        input.StudentName,
		Course:             input.Course,
		Semester:           input.Semester,
		ActivityType:       input.ActivityType,
		Score:              score,
		LearningObjectives: input.LearningObjectives,
		Notes:              input.Notes,
		DateTime:           input.DateTime,
		Timestamp:          s.now().UTC(),
	}
	s.records = append(s.records, rec)
	profile := s.findOrCreateLocked(rec)
	profile.apply(rec)
	student := profile.Clone()
	persistErr := s.persistLocked(ctx, "record_activity")
	s.mu.Unlock()

	observability.RecordActivityRecorded(rec.Course, rec.ActivityType)
	out := rec.Clone()
	s.notify(ctx, Event{
		Type:       EventActivityRecorded,
		StudentID:  rec.StudentID,
		Record:     &out,
		Student:    &student,
		OccurredAt: rec.Timestamp,
	})
	return rec.Clone(), persistErr
}

// findOrCreateLocked is the single place a profile is created implicitly.
func (s *Store) findOrCreateLocked(rec ActivityRecord) *StudentProfile {
	if i, ok := s.index[rec.StudentID]; ok {
		return &s.students[i]
	}
	s.students = append(s.students, StudentProfile{
		ID:         rec.StudentID,
		Name:       rec.StudentName,
		Email:      fmt.Sprintf("%s@%s", rec.StudentID, s.emailDomain),
		Semester:   rec.Semester,
		Courses:    NewStringSet(),
		Activities: NewStringSet(),
	})
	s.index[rec.StudentID] = len(s.students) - 1
	return &s.students[len(s.students)-1]
}

// AddStudent registers a zero-aggregate profile.
func (s *Store) AddStudent(ctx context.Context, input AddStudentInput) (StudentProfile, error) {
	input = input.normalized()
	if err := validateStruct(input); err != nil {
		return StudentProfile{}, err
	}

	s.mu.Lock()
	if _, exists := s.index[input.ID]; exists {
		s.mu.Unlock()
		return StudentProfile{}, &DuplicateError{ID: input.ID}
	}
	profile := StudentProfile{
		ID:         input.ID,
		Name:       input.Name,
		Email:      input.Email,
		Semester:   input.Semester,
		Courses:    NewStringSet(),
		Activities: NewStringSet(),
	}
	s.students = append(s.students, profile)
	s.index[profile.ID] = len(s.students) - 1
	persistErr := s.persistLocked(ctx, "add_student")
	s.mu.Unlock()

	observability.RecordStudentAdded()
	student := profile.Clone()
	s.notify(ctx, Event{
		Type:       EventStudentAdded,
		StudentID:  profile.ID,
		Student:    &student,
		OccurredAt: s.now().UTC(),
	})
	return profile.Clone(), persistErr
}

// DeleteStudent removes the profile and every record that belongs to it. Unknown
// ids are not an error.
func (s *Store) DeleteStudent(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	removedProfile := false
	if i, ok := s.index[id]; ok {
		s.students = append(s.students[:i], s.students[i+1:]...)
		removedProfile = true
		s.reindex()
	}
	kept := s.records[:0]
	removed := 0
	for _, rec := range s.records {
		if rec.StudentID == id {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	for i := len(kept); i < len(s.records); i++ {
		s.records[i] = ActivityRecord{}
	}
	s.records = kept
	persistErr := s.persistLocked(ctx, "delete_student")
	s.mu.Unlock()

	if removedProfile || removed > 0 {
		observability.RecordStudentDeleted(removed)
		s.notify(ctx, Event{
			Type:       EventStudentDeleted,
			StudentID:  id,
			Removed:    removed,
			OccurredAt: s.now().UTC(),
		})
	}
	return persistErr
}

// DeleteRecord removes a single record and subtracts its contribution from the
// owning student's aggregates.
func (s *Store) DeleteRecord(ctx context.Context, id string) (ActivityRecord, error) {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	pos := -1
	for i, rec := range s.records {
		if rec.ID == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		s.mu.Unlock()
		return ActivityRecord{}, &NotFoundError{Kind: "record", ID: id}
	}
	rec := s.records[pos]
	s.records = append(s.records[:pos], s.records[pos+1:]...)

	if i, ok := s.index[rec.StudentID]; ok {
		s.students[i].retract(rec, s.latestActivityLocked(rec.StudentID))
	}
	persistErr := s.persistLocked(ctx, "delete_record")
	s.mu.Unlock()

	out := rec.Clone()
	s.notify(ctx, Event{
		Type:       EventActivityDeleted,
		StudentID:  rec.StudentID,
		Record:     &out,
		OccurredAt: s.now().UTC(),
	})
	return rec.Clone(), persistErr
}

func (s *Store) latestActivityLocked(studentID string) *time.Time {
	var latest *time.Time
	for _, rec := range s.records {
		if rec.StudentID != studentID {
			continue
		}
		if latest == nil || rec.Timestamp.After(*latest) {
			ts := rec.Timestamp
			latest = &ts
		}
	}
	return latest
}
