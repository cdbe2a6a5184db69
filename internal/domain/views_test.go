package domain

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(ts time.Time) Option {
	return WithClock(func() time.Time { return ts })
}

func seededStore(t *testing.T, records []ActivityRecord, students []StudentProfile) *Store {
	t.Helper()
	return newTestStore(t, &memoryPersistence{snap: Snapshot{Records: records, Students: students}}, fixedClock(testStart))
}

func TestDashboardSummary(t *testing.T) {
	store := seededStore(t, []ActivityRecord{
		{ID: "r1", StudentID: "S1", Score: 80, Timestamp: testStart.Add(-2 * time.Hour)},
		{ID: "r2", StudentID: "S1", Score: 91, Timestamp: testStart.Add(-26 * time.Hour)},
		{ID: "r3", StudentID: "S2", Score: 70, Timestamp: testStart.Add(-8 * time.Hour)},
	}, []StudentProfile{{ID: "S1"}, {ID: "S2"}, {ID: "S3"}})

	summary := store.DashboardSummary()
	require.Equal(t, DashboardSummary{StudentCount: 3, RecordCount: 3, AverageScore: 80, RecordsToday: 2}, summary)

	empty := seededStore(t, nil, nil)
	require.Equal(t, DashboardSummary{}, empty.DashboardSummary())
}

func TestRecentActivitiesNewestFirst(t *testing.T) {
	records := make([]ActivityRecord, 0, 12)
	for i := 0; i < 12; i++ {
		records = append(records, ActivityRecord{
			ID:        fmt.Sprintf("r%d", i),
			StudentID: "S1",
			Score:     50 + i,
			Timestamp: testStart.Add(time.Duration(i) * time.Minute),
		})
	}
	// Out-of-order insertion must not affect the ordering.
	records[0], records[11] = records[11], records[0]
	store := seededStore(t, records, []StudentProfile{{ID: "S1"}})

	recent := store.RecentActivities(DefaultRecentLimit)
	require.Len(t, recent, 10)
	require.Equal(t, "r11", recent[0].ID)
	for i := 1; i < len(recent); i++ {
		require.False(t, recent[i].Timestamp.After(recent[i-1].Timestamp))
	}

	require.Len(t, store.RecentActivities(3), 3)
}

func TestTopPerformersRanking(t *testing.T) {
	scores := map[string][]int{
		"S1": {70},
		"S2": {90, 100},
		"S3": {88},
		"S4": {80, 90, 94},
		"S5": {60},
		"S6": {99},
		"S7": {10},
	}
	students := []StudentProfile{{ID: "S0"}}
	var records []ActivityRecord
	for i := 1; i <= 7; i++ {
		id := fmt.Sprintf("S%d", i)
		students = append(students, StudentProfile{ID: id})
		for j, score := range scores[id] {
			records = append(records, ActivityRecord{ID: fmt.Sprintf("%s-%d", id, j), StudentID: id, Score: score})
		}
	}
	store := seededStore(t, records, students)

	top := store.TopPerformers(DefaultTopLimit)
	require.Len(t, top, 5)
	ids := make([]string, len(top))
	for i, entry := range top {
		ids[i] = entry.Student.ID
		require.Equal(t, i, entry.Rank)
		require.NotZero(t, entry.Student.TotalRecords)
		if i > 0 {
			require.LessOrEqual(t, entry.Student.AverageScore, top[i-1].Student.AverageScore)
		}
	}
	require.Equal(t, []string{"S6", "S2", "S3", "S4", "S1"}, ids)
	require.Equal(t, MedalGold, top[0].Medal)
	require.Equal(t, MedalSilver, top[1].Medal)
	require.Equal(t, MedalBronze, top[2].Medal)
	require.Equal(t, MedalNone, top[3].Medal)

	require.Empty(t, seededStore(t, nil, []StudentProfile{{ID: "S0"}}).TopPerformers(5))
}

func TestDailyTrendSeries(t *testing.T) {
	store := seededStore(t, []ActivityRecord{
		{ID: "r1", Score: 80, Timestamp: testStart},
		{ID: "r2", Score: 91, Timestamp: testStart.Add(-time.Hour)},
		{ID: "r3", Score: 70, Timestamp: time.Date(2026, time.March, 1, 15, 0, 0, 0, time.UTC)},
		{ID: "r4", Score: 100, Timestamp: time.Date(2026, time.February, 1, 15, 0, 0, 0, time.UTC)},
	}, nil)

	series := store.DailyTrendSeries(DefaultTrendDays)
	require.Len(t, series, 30)
	require.Equal(t, "2026-02-09", series[0].Date)
	require.Equal(t, "Feb 9", series[0].Label)
	require.Equal(t, "2026-03-10", series[29].Date)

	for i := 1; i < len(series); i++ {
		prev, err := time.Parse(trendDateFormat, series[i-1].Date)
		require.NoError(t, err)
		cur, err := time.Parse(trendDateFormat, series[i].Date)
		require.NoError(t, err)
		require.Equal(t, 24*time.Hour, cur.Sub(prev))
	}

	values := make(map[string]int)
	for _, point := range series {
		values[point.Date] = point.Value
	}
	require.Equal(t, 86, values["2026-03-10"])
	require.Equal(t, 70, values["2026-03-01"])
	require.Zero(t, values["2026-03-05"])

	empty := seededStore(t, nil, nil).DailyTrendSeries(7)
	require.Len(t, empty, 7)
	for _, point := range empty {
		require.Zero(t, point.Value)
	}
}

func TestDailyTrendSeriesUsesConfiguredZone(t *testing.T) {
	zone := time.FixedZone("UTC+5", 5*60*60)
	late := time.Date(2026, time.March, 9, 21, 30, 0, 0, time.UTC)
	store := newTestStore(t, &memoryPersistence{snap: Snapshot{
		Records: []ActivityRecord{{ID: "r1", Score: 60, Timestamp: late}},
	}}, fixedClock(testStart), WithLocation(zone))

	series := store.DailyTrendSeries(2)
	require.Equal(t, "2026-03-10", series[1].Date)
	require.Equal(t, 60, series[1].Value)
	require.Equal(t, 1, store.DashboardSummary().RecordsToday)
}

func TestGroupedAverage(t *testing.T) {
	store := seededStore(t, []ActivityRecord{
		{ID: "r1", Course: "web", Semester: "3", ActivityType: "quiz", Score: 80},
		{ID: "r2", Course: "db", Semester: "3", ActivityType: "lab", Score: 70},
		{ID: "r3", Course: "web", Semester: "5", ActivityType: "quiz", Score: 100},
		{ID: "r4", Course: "db", Semester: "5", ActivityType: "quiz", Score: 75},
	}, nil)

	byCourse := store.GroupedAverage(ByCourse)
	require.Equal(t, Tally{{Key: "web", Value: 90}, {Key: "db", Value: 73}}, byCourse)

	bySemester := store.GroupedAverage(BySemester).Map()
	require.Equal(t, map[string]int{"3": 75, "5": 88}, bySemester)

	require.Equal(t, map[string]int{"quiz": 85, "lab": 70}, store.GroupedAverage(ByActivityType).Map())
	require.Empty(t, seededStore(t, nil, nil).GroupedAverage(ByCourse))
}

func TestFrequencyCount(t *testing.T) {
	store := seededStore(t, []ActivityRecord{
		{ID: "r1", ActivityType: "quiz", LearningObjectives: []string{"teamwork", "teamwork", "research"}},
		{ID: "r2", ActivityType: "lab", LearningObjectives: []string{"research"}},
		{ID: "r3", ActivityType: "quiz"},
	}, nil)

	require.Equal(t, Tally{{Key: "teamwork", Value: 1}, {Key: "research", Value: 2}}, store.FrequencyCount(ByObjective))
	require.Equal(t, map[string]int{"quiz": 2, "lab": 1}, store.FrequencyCount(ActivityTypeKeys).Map())
}

func TestViewsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, &memoryPersistence{})
	for i, score := range []string{"60", "75", "92"} {
		_, err := store.RecordActivity(ctx, quiz(fmt.Sprintf("S%d", i), "Student", "web", score))
		require.NoError(t, err)
	}

	first := store.Snapshot()
	require.Equal(t, store.TopPerformers(5), store.TopPerformers(5))
	require.Equal(t, store.GroupedAverage(ByCourse), store.GroupedAverage(ByCourse))
	require.Equal(t, store.FrequencyCount(ByObjective), store.FrequencyCount(ByObjective))
	require.Equal(t, store.RecentActivities(10), store.RecentActivities(10))
	require.Equal(t, first, store.Snapshot())
}

func TestFilterAndLookupStudents(t *testing.T) {
	store := seededStore(t, nil, []StudentProfile{
		{ID: "BSSE-2021-001", Name: "Ahmad Hassan"},
		{ID: "BSSE-2021-002", Name: "Fatima Ali"},
		{ID: "BSSE-2022-003", Name: "Muhammad Usman"},
	})

	require.Len(t, store.FilterStudents(""), 3)
	require.Len(t, store.FilterStudents("2021"), 2)
	matches := store.FilterStudents("FATIMA")
	require.Len(t, matches, 1)
	require.Equal(t, "BSSE-2021-002", matches[0].ID)

	// The query is matched as given, surrounding spaces included.
	require.Empty(t, store.FilterStudents(" fatima"))
	matches = store.FilterStudents(" ali")
	require.Len(t, matches, 1)
	require.Equal(t, "Fatima Ali", matches[0].Name)
	require.Empty(t, store.FilterStudents("nobody"))

	student, err := store.LookupStudent("BSSE-2022-003")
	require.NoError(t, err)
	require.Equal(t, "Muhammad Usman", student.Name)

	_, err = store.LookupStudent("BSSE-2099-999")
	require.EqualError(t, err, `student "BSSE-2099-999" not found`)
}

func TestStudentDetailsMostRecentFirst(t *testing.T) {
	records := make([]ActivityRecord, 0, 14)
	for i := 0; i < 14; i++ {
		owner := "S1"
		if i%4 == 0 {
			owner = "S2"
		}
		records = append(records, ActivityRecord{ID: fmt.Sprintf("r%d", i), StudentID: owner})
	}
	store := seededStore(t, records, []StudentProfile{{ID: "S1"}, {ID: "S2"}})

	details, err := store.StudentDetails("S1", DefaultDetailsLimit)
	require.NoError(t, err)
	require.Equal(t, "S1", details.Student.ID)
	require.Len(t, details.RecentRecords, 10)
	require.Equal(t, "r13", details.RecentRecords[0].ID)
	require.Equal(t, "r1", details.RecentRecords[9].ID)

	details, err = store.StudentDetails("S2", DefaultDetailsLimit)
	require.NoError(t, err)
	require.Len(t, details.RecentRecords, 4)
	require.Equal(t, "r12", details.RecentRecords[0].ID)

	_, err = store.StudentDetails("missing", 10)
	require.Error(t, err)
}

func TestScoreBand(t *testing.T) {
	cases := map[int]string{100: "excellent", 90: "excellent", 89: "good", 80: "good", 79: "fair", 70: "fair", 69: "poor", -5: "poor"}
	for score, want := range cases {
		require.Equal(t, want, ScoreBand(score), "score %d", score)
	}
}

func TestOrdinalSuffix(t *testing.T) {
	cases := map[string]string{
		"1": "st", "2": "nd", "3": "rd", "4": "th", "11": "th", "12": "th", "13": "th",
		"21": "st", "22": "nd", "111": "th", "0": "th", " 6 ": "th", "": "", "six": "", "-1": "",
	}
	for semester, want := range cases {
		require.Equal(t, want, OrdinalSuffix(semester), "semester %q", semester)
	}
}
