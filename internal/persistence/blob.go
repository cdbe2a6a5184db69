// Package persistence maps the dashboard dataset onto named blob entries shared by
// every storage backend.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"example.com/learnlog/internal/domain"
	"example.com/learnlog/internal/observability"
)

const (
	// RecordsEntry holds the JSON array of learning records.
	RecordsEntry = "bsseSimuData"
	// StudentsEntry holds the JSON array of student profiles.
	StudentsEntry = "bsseSimuStudents"
)

// ErrCorrupt marks a backend document that exists but cannot be decoded.
var ErrCorrupt = errors.New("corrupt blob")

// Entry is one named payload written by Put.
type Entry struct {
	Name    string
	Payload []byte
}

// BlobStore reads and writes named JSON payloads. Get returns nil without error
// when the entry does not exist. Put writes all entries together where the backend
// supports it.
type BlobStore interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, entries ...Entry) error
}

// AdapterOption customises an Adapter.
type AdapterOption func(*Adapter)

// WithAdapterLogger overrides the logger used to report skipped entries.
func WithAdapterLogger(logger *log.Logger) AdapterOption {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithAdapterClock overrides the clock used for the save watermark.
func WithAdapterClock(now func() time.Time) AdapterOption {
	return func(a *Adapter) {
		a.now = now
	}
}

// WithTimeout bounds every Load and Save call.
func WithTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		a.timeout = d
	}
}

// Adapter implements domain.Persistence over a BlobStore.
type Adapter struct {
	blobs   BlobStore
	backend string
	timeout time.Duration
	logger  *log.Logger
	now     func() time.Time
}

// NewAdapter wraps blobs. backend labels save metrics.
func NewAdapter(blobs BlobStore, backend string, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		blobs:   blobs,
		backend: backend,
		logger:  log.New(log.Writer(), "[persistence] ", log.LstdFlags),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load reads both entries. Missing or undecodable entries load as empty
// collections so a damaged blob never prevents startup.
func (a *Adapter) Load(ctx context.Context) (domain.Snapshot, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var snap domain.Snapshot
	if err := a.loadEntry(ctx, RecordsEntry, &snap.Records); err != nil {
		return domain.Snapshot{}, err
	}
	if err := a.loadEntry(ctx, StudentsEntry, &snap.Students); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Records == nil {
		snap.Records = []domain.ActivityRecord{}
	}
	if snap.Students == nil {
		snap.Students = []domain.StudentProfile{}
	}
	return snap, nil
}

func (a *Adapter) loadEntry(ctx context.Context, name string, dst interface{}) error {
	payload, err := a.blobs.Get(ctx, name)
	if errors.Is(err, ErrCorrupt) {
		a.logger.Printf("entry %s unreadable on %s, starting empty: %v", name, a.backend, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		a.logger.Printf("entry %s is not valid JSON, starting empty: %v", name, err)
		return nil
	}
	return nil
}

// Save writes both entries. The write is detached from ctx cancellation so a
// dropped request cannot discard a change that was already applied in memory.
func (a *Adapter) Save(ctx context.Context, snap domain.Snapshot) error {
	ctx, cancel := a.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	start := time.Now()
	records := snap.Records
	if records == nil {
		records = []domain.ActivityRecord{}
	}
	students := snap.Students
	if students == nil {
		students = []domain.StudentProfile{}
	}

	recordsPayload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", RecordsEntry, err)
	}
	studentsPayload, err := json.Marshal(students)
	if err != nil {
		return fmt.Errorf("encode %s: %w", StudentsEntry, err)
	}

	if err := a.blobs.Put(ctx,
		Entry{Name: RecordsEntry, Payload: recordsPayload},
		Entry{Name: StudentsEntry, Payload: studentsPayload},
	); err != nil {
		return fmt.Errorf("write %s blob: %w", a.backend, err)
	}
	observability.RecordSnapshotSaved(a.backend, a.now(), time.Since(start))
	return nil
}

func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}
