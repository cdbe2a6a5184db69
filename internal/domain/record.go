package domain

import (
	"math"
	"time"
)

// ActivityRecord is one submitted learning-activity observation for a student.
type ActivityRecord struct {
	ID                 string    `json:"id"`
	StudentID          string    `json:"studentId"`
	StudentName        string    `json:"studentName"`
	Course             string    `json:"course"`
	Semester           string    `json:"semester"`
	ActivityType       string    `json:"activityType"`
	Score              int       `json:"score"`
	LearningObjectives []string  `json:"learningObjectives"`
	Notes              string    `json:"notes"`
	DateTime           string    `json:"dateTime"`
	Timestamp          time.Time `json:"timestamp"`
}

// Clone returns a copy that shares no slices with r.
func (r ActivityRecord) Clone() ActivityRecord {
	out := r
	out.LearningObjectives = append([]string{}, r.LearningObjectives...)
	return out
}

// StudentProfile is a student's identity plus rolling aggregates over their records.
type StudentProfile struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Semester     string     `json:"semester"`
	TotalRecords int        `json:"totalRecords"`
	TotalScore   int        `json:"totalScore"`
	AverageScore int        `json:"averageScore"`
	LastActivity *time.Time `json:"lastActivity"`
	Courses      StringSet  `json:"courses"`
	Activities   StringSet  `json:"activities"`
}

// Clone returns a deep copy of p.
func (p StudentProfile) Clone() StudentProfile {
	out := p
	if p.LastActivity != nil {
		ts := *p.LastActivity
		out.LastActivity = &ts
	}
	out.Courses = p.Courses.Clone()
	out.Activities = p.Activities.Clone()
	return out
}

// apply folds a new record into the running aggregates.
func (p *StudentProfile) apply(rec ActivityRecord) {
	p.TotalRecords++
	p.TotalScore += rec.Score
	p.AverageScore = averageOf(p.TotalScore, p.TotalRecords)
	ts := rec.Timestamp
	p.LastActivity = &ts
	if p.Courses == nil {
		p.Courses = NewStringSet()
	}
	if p.Activities == nil {
		p.Activities = NewStringSet()
	}
	p.Courses.Add(rec.Course)
	p.Activities.Add(rec.ActivityType)
}

// retract removes a deleted record's contribution. latest is the newest
// surviving record timestamp for the student, nil when none survive.
func (p *StudentProfile) retract(rec ActivityRecord, latest *time.Time) {
	p.TotalRecords--
	p.TotalScore -= rec.Score
	if p.TotalRecords <= 0 {
		p.TotalRecords = 0
		p.TotalScore = 0
	}
	p.AverageScore = averageOf(p.TotalScore, p.TotalRecords)
	p.LastActivity = latest
}

func averageOf(total, count int) int {
	if count == 0 {
		return 0
	}
	return roundHalfUp(float64(total) / float64(count))
}

// roundHalfUp rounds .5 towards positive infinity.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
