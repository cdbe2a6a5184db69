package domain

import (
	"context"
	"errors"
	"time"
)

var sampleStudents = []AddStudentInput{
	{ID: "BSSE-2021-001", Name: "Ahmad Hassan", Email: "ahmad.hassan@simu.edu.pk", Semester: "6"},
	{ID: "BSSE-2021-002", Name: "Fatima Ali", Email: "fatima.ali@simu.edu.pk", Semester: "6"},
	{ID: "BSSE-2022-003", Name: "Muhammad Usman", Email: "muhammad.usman@simu.edu.pk", Semester: "4"},
}

var sampleRecords = []RecordActivityInput{
	{
		StudentID: "BSSE-2021-001", StudentName: "Ahmad Hassan", Course: "web-development", Semester: "6",
		ActivityType: "assignment", Score: "88",
		LearningObjectives: []string{"technical-skills", "problem-solving"},
		Notes:              "Excellent work on responsive design",
	},
	{
		StudentID: "BSSE-2021-002", StudentName: "Fatima Ali", Course: "machine-learning", Semester: "6",
		ActivityType: "project", Score: "95",
		LearningObjectives: []string{"critical-thinking", "technical-skills", "problem-solving"},
		Notes:              "Outstanding implementation of neural network",
	},
	{
		StudentID: "BSSE-2022-003", StudentName: "Muhammad Usman", Course: "data-structures", Semester: "4",
		ActivityType: "quiz", Score: "82",
		LearningObjectives: []string{"problem-solving", "technical-skills"},
		Notes:              "Good understanding of algorithms",
	},
}

// SeedSample loads a small demo cohort when the store is empty. It reports
// whether anything was seeded.
func (s *Store) SeedSample(ctx context.Context) (bool, error) {
	s.mu.RLock()
	empty := len(s.records) == 0 && len(s.students) == 0
	s.mu.RUnlock()
	if !empty {
		return false, nil
	}

	var persistErr error
	keep := func(err error) error {
		var pe *PersistenceError
		if errors.As(err, &pe) {
			persistErr = err
			return nil
		}
		return err
	}

	for _, student := range sampleStudents {
		if _, err := s.AddStudent(ctx, student); keep(err) != nil {
			return false, err
		}
	}
	for _, input := range sampleRecords {
		input.DateTime = s.now().In(s.loc).Format("2006-01-02T15:04")
		if _, err := s.RecordActivity(ctx, input); keep(err) != nil {
			return false, err
		}
	}
	s.logger.Printf("seeded %d sample students and %d records at %s", len(sampleStudents), len(sampleRecords), s.now().Format(time.RFC3339))
	return true, persistErr
}
