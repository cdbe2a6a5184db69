// Package domain holds the learning-activity aggregation engine and the derived views
// computed from it.
package domain

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/learnlog/internal/observability"
)

// DefaultEmailDomain is used when a profile is created implicitly from a record.
const DefaultEmailDomain = "simu.edu.pk"

// Snapshot is the persisted form of both collections.
type Snapshot struct {
	Records  []ActivityRecord
	Students []StudentProfile
}

// Persistence loads and saves the dataset blob.
type Persistence interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// EventType names a mutation published to a Notifier.
type EventType string

const (
	EventActivityRecorded EventType = "activity.recorded"
	EventActivityDeleted  EventType = "activity.deleted"
	EventStudentAdded     EventType = "student.added"
	EventStudentDeleted   EventType = "student.deleted"
)

// Event describes a completed mutation.
type Event struct {
	Type       EventType
	StudentID  string
	Record     *ActivityRecord
	Student    *StudentProfile
	Removed    int
	OccurredAt time.Time
}

// Notifier receives events after a mutation has been applied.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NoopNotifier discards events.
type NoopNotifier struct{}

// Notify performs no action.
func (NoopNotifier) Notify(context.Context, Event) error { return nil }

// Option configures optional Store behaviour.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// WithLocation sets the time zone used for calendar-day views.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithNotifier publishes mutation events to n.
func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithEmailDomain sets the domain used for synthesised student emails.
func WithEmailDomain(domain string) Option {
	return func(s *Store) {
		if domain != "" {
			s.emailDomain = domain
		}
	}
}

// WithLogger overrides the logger used to report persistence and notification failures.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store owns the record and student collections. All mutations go through it.
type Store struct {
	mu       sync.RWMutex
	records  []ActivityRecord
	students []StudentProfile
	index    map[string]int

	persistence Persistence
	notifier    Notifier
	now         func() time.Time
	newID       func() string
	loc         *time.Location
	emailDomain string
	logger      *log.Logger
}

// NewStore hydrates a Store from p.
func NewStore(ctx context.Context, p Persistence, opts ...Option) (*Store, error) {
	s := &Store{
		persistence: p,
		notifier:    NoopNotifier{},
		now:         time.Now,
		newID:       uuid.NewString,
		loc:         time.Local,
		emailDomain: DefaultEmailDomain,
		logger:      log.New(log.Writer(), "[store] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	s.records = snap.Records
	s.students = snap.Students
	for i := range s.students {
		if s.students[i].Courses == nil {
			s.students[i].Courses = NewStringSet()
		}
		if s.students[i].Activities == nil {
			s.students[i].Activities = NewStringSet()
		}
	}
	s.reindex()
	if repaired := s.reconcileLocked(); repaired > 0 {
		s.logger.Printf("rebuilt aggregates for %d students from stored records", repaired)
	}
	observability.RecordCollectionSizes(len(s.students), len(s.records))
	return s, nil
}

type recordTotals struct {
	count  int
	total  int
	latest *time.Time
}

// reconcileLocked makes the loaded profiles agree with the loaded records. A record
// whose student has no profile gets one, and every profile's totals, average and
// lastActivity are recomputed from its records. Course and activity sets only grow.
// It returns the number of profiles that changed.
func (s *Store) reconcileLocked() int {
	sums := make(map[string]*recordTotals, len(s.students))
	for _, rec := range s.records {
		if rec.StudentID == "" {
			s.logger.Printf("record %s has no student id, left unattributed", rec.ID)
			continue
		}
		profile := s.findOrCreateLocked(rec)
		profile.Courses.Add(rec.Course)
		profile.Activities.Add(rec.ActivityType)

		t, ok := sums[rec.StudentID]
		if !ok {
			t = &recordTotals{}
			sums[rec.StudentID] = t
		}
		t.count++
		t.total += rec.Score
		if t.latest == nil || rec.Timestamp.After(*t.latest) {
			ts := rec.Timestamp
			t.latest = &ts
		}
	}

	repaired := 0
	for i := range s.students {
		p := &s.students[i]
		t, ok := sums[p.ID]
		if !ok {
			t = &recordTotals{}
		}
		average := averageOf(t.total, t.count)
		if p.TotalRecords != t.count || p.TotalScore != t.total || p.AverageScore != average ||
			!sameInstant(p.LastActivity, t.latest) {
			repaired++
		}
		p.TotalRecords = t.count
		p.TotalScore = t.total
		p.AverageScore = average
		p.LastActivity = t.latest
	}
	return repaired
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.students))
	for i, student := range s.students {
		s.index[student.ID] = i
	}
}

// persistLocked saves the current collections. Callers hold the write lock.
func (s *Store) persistLocked(ctx context.Context, op string) error {
	observability.RecordCollectionSizes(len(s.students), len(s.records))
	if err := s.persistence.Save(ctx, s.snapshotLocked()); err != nil {
		s.logger.Printf("persist failed (op=%s): %v", op, err)
		observability.RecordPersistenceFailure(op)
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

func (s *Store) notify(ctx context.Context, event Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Printf("notify failed (event_type=%s, student=%s): %v", event.Type, event.StudentID, err)
	}
}

// Snapshot returns a deep copy of both collections.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Records:  make([]ActivityRecord, len(s.records)),
		Students: make([]StudentProfile, len(s.students)),
	}
	for i, rec := range s.records {
		snap.Records[i] = rec.Clone()
	}
	for i, student := range s.students {
		snap.Students[i] = student.Clone()
	}
	return snap
}
