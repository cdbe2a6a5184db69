package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/learnlog/internal/persistence"
)

func TestStorePutAndGet(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dashboard.json")
	store := NewStore(path)

	payload, err := store.Get(ctx, persistence.RecordsEntry)
	require.NoError(t, err)
	require.Nil(t, payload)

	require.NoError(t, store.Put(ctx,
		persistence.Entry{Name: persistence.RecordsEntry, Payload: []byte(`[{"id":"r1"}]`)},
		persistence.Entry{Name: persistence.StudentsEntry, Payload: []byte(`[]`)},
	))
	require.NoError(t, store.Put(ctx, persistence.Entry{Name: persistence.StudentsEntry, Payload: []byte(`[{"id":"S1"}]`)}))

	reopened := NewStore(path)
	payload, err = reopened.Get(ctx, persistence.RecordsEntry)
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":"r1"}]`, string(payload))
	payload, err = reopened.Get(ctx, persistence.StudentsEntry)
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":"S1"}]`, string(payload))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestStoreReportsCorruptDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dashboard.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
	store := NewStore(path)

	_, err := store.Get(ctx, persistence.RecordsEntry)
	require.ErrorIs(t, err, persistence.ErrCorrupt)

	// A save replaces the unreadable document.
	require.NoError(t, store.Put(ctx, persistence.Entry{Name: persistence.RecordsEntry, Payload: []byte(`[]`)}))
	payload, err := store.Get(ctx, persistence.RecordsEntry)
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(payload))
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewStore(filepath.Join(t.TempDir(), "dashboard.json"))
	require.ErrorIs(t, store.Put(ctx, persistence.Entry{Name: "x", Payload: []byte(`1`)}), context.Canceled)
}
