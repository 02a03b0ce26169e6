package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turbidity-monitor/internal/series"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "samples.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_Migrates(t *testing.T) {
	db := openTestDB(t)
	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateUp(), "second run is a no-op")
}

func TestOpen_RejectsDirtySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.db")
	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE schema_migrations SET dirty = 1")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	assert.Error(t, err)
}

func TestSamples(t *testing.T) {
	db := openTestDB(t)
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC)
	layout := series.NewLayout("")

	for i := 2; i >= 0; i-- {
		at := t0.Add(time.Duration(i) * time.Second)
		s := series.Sample{Stamp: layout.Format(at), Time: at, Raw: float64(i), Normalized: float64(i * 10)}
		require.NoError(t, db.RecordSample("run-a", s))
	}
	dup := series.Sample{Stamp: layout.Format(t0), Time: t0, Raw: 99, Normalized: 99}
	require.NoError(t, db.RecordSample("run-a", dup))
	require.NoError(t, db.RecordSample("run-b", dup))

	got, err := db.Samples("run-a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, s := range got {
		assert.Equal(t, float64(i), s.Raw)
		assert.True(t, s.Time.Equal(t0.Add(time.Duration(i)*time.Second)))
	}

	other, err := db.Samples("run-b")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestTransitions(t *testing.T) {
	db := openTestDB(t)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, db.RecordTransition(Transition{RunID: "r", From: "unstable", To: "stable", Event: "changed_to_stable", Samples: 40, OccurredAt: at}))
	require.NoError(t, db.RecordTransition(Transition{RunID: "r", From: "stable", To: "dissolved", Event: "changed_to_dissolved", Samples: 90, OccurredAt: at.Add(time.Minute)}))

	got, err := db.Transitions("r")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "stable", got[0].To)
	assert.Equal(t, "dissolved", got[1].To)
	assert.Equal(t, 90, got[1].Samples)
	assert.True(t, got[1].OccurredAt.Equal(at.Add(time.Minute)))

	none, err := db.Transitions("missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}
