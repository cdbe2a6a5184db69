package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultRecentLimit   = 10
	DefaultTopLimit      = 5
	DefaultTrendDays     = 30
	DefaultDetailsLimit  = 10
	trendDateFormat      = "2006-01-02"
	trendLabelDateFormat = "Jan 2"
)

// DashboardSummary is the headline figures shown on the dashboard.
type DashboardSummary struct {
	StudentCount int `json:"studentCount"`
	RecordCount  int `json:"recordCount"`
	AverageScore int `json:"averageScore"`
	RecordsToday int `json:"recordsToday"`
}

// Medal marks the first three places of the leaderboard.
type Medal string

const (
	MedalNone   Medal = ""
	MedalGold   Medal = "gold"
	MedalSilver Medal = "silver"
	MedalBronze Medal = "bronze"
)

var medals = []Medal{MedalGold, MedalSilver, MedalBronze}

// RankedStudent is one leaderboard entry.
type RankedStudent struct {
	Rank    int            `json:"rank"`
	Medal   Medal          `json:"medal,omitempty"`
	Student StudentProfile `json:"student"`
}

// TrendPoint is one day of the daily trend series.
type TrendPoint struct {
	Date  string `json:"date"`
	Label string `json:"label"`
	Value int    `json:"value"`
}

// KeyedValue is one labelled value of a grouping, ready for charting.
type KeyedValue struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

// Tally is an ordered grouping result. Keys appear in first-seen record order.
type Tally []KeyedValue

// Map returns the tally as a lookup map.
func (t Tally) Map() map[string]int {
	out := make(map[string]int, len(t))
	for _, kv := range t {
		out[kv.Key] = kv.Value
	}
	return out
}

// StudentDetails bundles a profile with its most recent records.
type StudentDetails struct {
	Student       StudentProfile   `json:"student"`
	RecentRecords []ActivityRecord `json:"recentRecords"`
}

// KeyFunc extracts a single grouping key from a record.
type KeyFunc func(ActivityRecord) string

// MultiKeyFunc extracts zero or more grouping keys from a record.
type MultiKeyFunc func(ActivityRecord) []string

// ByCourse groups records by course code.
func ByCourse(r ActivityRecord) string { return r.Course }

// BySemester groups records by semester.
func BySemester(r ActivityRecord) string { return r.Semester }

// ByActivityType groups records by activity type.
func ByActivityType(r ActivityRecord) string { return r.ActivityType }

// ByObjective emits each learning objective of a record.
func ByObjective(r ActivityRecord) []string { return r.LearningObjectives }

// ActivityTypeKeys emits the record's activity type as a single key.
func ActivityTypeKeys(r ActivityRecord) []string { return []string{r.ActivityType} }

// DashboardSummary computes the headline figures.
func (s *Store) DashboardSummary() DashboardSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := DashboardSummary{
		StudentCount: len(s.students),
		RecordCount:  len(s.records),
	}
	if len(s.records) == 0 {
		return summary
	}
	total := 0
	today := s.dayKey(s.now())
	for _, rec := range s.records {
		total += rec.Score
		if s.dayKey(rec.Timestamp) == today {
			summary.RecordsToday++
		}
	}
	summary.AverageScore = averageOf(total, len(s.records))
	return summary
}

// RecentActivities returns the n newest records, newest first.
func (s *Store) RecentActivities(n int) []ActivityRecord {
	if n <= 0 {
		n = DefaultRecentLimit
	}
	s.mu.RLock()
	sorted := make([]ActivityRecord, len(s.records))
	for i, rec := range s.records {
		sorted[i] = rec.Clone()
	}
	s.mu.RUnlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// TopPerformers ranks students with at least one record by average score.
func (s *Store) TopPerformers(n int) []RankedStudent {
	if n <= 0 {
		n = DefaultTopLimit
	}
	s.mu.RLock()
	active := make([]StudentProfile, 0, len(s.students))
	for _, student := range s.students {
		if student.TotalRecords > 0 {
			active = append(active, student.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].AverageScore > active[j].AverageScore
	})
	if len(active) > n {
		active = active[:n]
	}

	out := make([]RankedStudent, len(active))
	for i, student := range active {
		out[i] = RankedStudent{Rank: i, Student: student}
		if i < len(medals) {
			out[i].Medal = medals[i]
		}
	}
	return out
}

// DailyTrendSeries returns the rounded mean score per calendar day for the last
// windowDays days, oldest first and including today. Days without records are 0.
func (s *Store) DailyTrendSeries(windowDays int) []TrendPoint {
	if windowDays <= 0 {
		windowDays = DefaultTrendDays
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type bucket struct{ total, count int }
	buckets := make(map[string]*bucket)
	for _, rec := range s.records {
		key := s.dayKey(rec.Timestamp)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.total += rec.Score
		b.count++
	}

	now := s.now().In(s.loc)
	out := make([]TrendPoint, windowDays)
	for i := 0; i < windowDays; i++ {
		day := time.Date(now.Year(), now.Month(), now.Day()-(windowDays-1-i), 0, 0, 0, 0, s.loc)
		key := day.Format(trendDateFormat)
		point := TrendPoint{Date: key, Label: day.Format(trendLabelDateFormat)}
		if b, ok := buckets[key]; ok {
			point.Value = averageOf(b.total, b.count)
		}
		out[i] = point
	}
	return out
}

// GroupedAverage maps each key produced by keyFn to the rounded mean score of the
// records sharing it.
func (s *Store) GroupedAverage(keyFn KeyFunc) Tally {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order := make([]string, 0)
	totals := make(map[string][2]int)
	for _, rec := range s.records {
		key := keyFn(rec)
		acc, ok := totals[key]
		if !ok {
			order = append(order, key)
		}
		acc[0] += rec.Score
		acc[1]++
		totals[key] = acc
	}

	out := make(Tally, len(order))
	for i, key := range order {
		acc := totals[key]
		out[i] = KeyedValue{Key: key, Value: averageOf(acc[0], acc[1])}
	}
	return out
}

// FrequencyCount maps each value emitted by keyFn to the number of records that
// emitted it. A record emitting the same key twice counts once.
func (s *Store) FrequencyCount(keyFn MultiKeyFunc) Tally {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order := make([]string, 0)
	counts := make(map[string]int)
	for _, rec := range s.records {
		emitted := NewStringSet()
		for _, key := range keyFn(rec) {
			if emitted.Has(key) {
				continue
			}
			emitted[key] = struct{}{}
			if _, ok := counts[key]; !ok {
				order = append(order, key)
			}
			counts[key]++
		}
	}

	out := make(Tally, len(order))
	for i, key := range order {
		out[i] = KeyedValue{Key: key, Value: counts[key]}
	}
	return out
}

// FilterStudents returns students whose id or name contains query, ignoring case.
// The query is matched as given; an empty query matches everyone.
func (s *Store) FilterStudents(query string) []StudentProfile {
	needle := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StudentProfile, 0, len(s.students))
	for _, student := range s.students {
		if needle == "" ||
			strings.Contains(strings.ToLower(student.ID), needle) ||
			strings.Contains(strings.ToLower(student.Name), needle) {
			out = append(out, student.Clone())
		}
	}
	return out
}

// LookupStudent returns the profile with the given id.
func (s *Store) LookupStudent(id string) (StudentProfile, error) {
	id = strings.TrimSpace(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return StudentProfile{}, &NotFoundError{Kind: "student", ID: id}
	}
	return s.students[i].Clone(), nil
}

// StudentDetails returns a profile and its last n records, most recently added first.
func (s *Store) StudentDetails(id string, n int) (StudentDetails, error) {
	if n <= 0 {
		n = DefaultDetailsLimit
	}
	id = strings.TrimSpace(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return StudentDetails{}, &NotFoundError{Kind: "student", ID: id}
	}
	details := StudentDetails{
		Student:       s.students[i].Clone(),
		RecentRecords: make([]ActivityRecord, 0, n),
	}
	for j := len(s.records) - 1; j >= 0 && len(details.RecentRecords) < n; j-- {
		if s.records[j].StudentID == id {
			details.RecentRecords = append(details.RecentRecords, s.records[j].Clone())
		}
	}
	return details, nil
}

// dayKey identifies the local calendar day of ts.
func (s *Store) dayKey(ts time.Time) string {
	return ts.In(s.loc).Format(trendDateFormat)
}

// ScoreBand classifies a score for display.
func ScoreBand(score int) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 80:
		return "good"
	case score >= 70:
		return "fair"
	default:
		return "poor"
	}
}

// OrdinalSuffix returns the English ordinal suffix for a numeric semester, or ""
// when semester is not a number.
func OrdinalSuffix(semester string) string {
	n, err := strconv.Atoi(strings.TrimSpace(semester))
	if err != nil || n < 0 {
		return ""
	}
	j, k := n%10, n%100
	switch {
	case j == 1 && k != 11:
		return "st"
	case j == 2 && k != 12:
		return "nd"
	case j == 3 && k != 13:
		return "rd"
	default:
		return "th"
	}
}
