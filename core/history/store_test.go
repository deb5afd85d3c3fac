package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/teamalloc/core/factory"
	"github.com/kilianp07/teamalloc/core/model"
)

func sampleTeams() []model.Team {
	return []model.Team{
		model.NewTeam("team_1", "Team 1", []model.Station{
			{Code: "S1", Latitude: 21.01, Longitude: 105.80, Weight: 10},
			{Code: "S2", Latitude: 21.02, Longitude: 105.81, Weight: 5},
		}),
		model.NewTeam("team_2", "Team 2", []model.Station{
			{Code: "S3", Latitude: 21.10, Longitude: 105.90, Weight: 12},
		}),
	}
}

func sampleRecord(source string, ts time.Time, kind Kind) Record {
	rec := NewRecord(kind, source, model.Params{NumberOfTeams: 2, TolerancePercent: 10}, sampleTeams())
	rec.Timestamp = ts
	return rec
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	first := sampleRecord("north.xlsx", base, KindRun)
	second := sampleRecord("south.xlsx", base.Add(time.Hour), KindRun)
	move := sampleRecord("north.xlsx", base.Add(2*time.Hour), KindMove)
	move.ParentID = first.ID
	for _, r := range []Record{first, second, move} {
		require.NoError(t, store.Append(ctx, r))
	}

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, 27, got.TotalWeight)
	require.Len(t, got.Teams, 2)
	assert.Equal(t, "S2", got.Teams[0].Members[1].Code)

	all, err := store.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, move.ID, all[0].ID, "newest first")
	assert.Equal(t, first.ID, all[2].ID)

	north, err := store.Query(ctx, Query{Source: "north.xlsx"})
	require.NoError(t, err)
	assert.Len(t, north, 2)

	moves, err := store.Query(ctx, Query{Kind: KindMove})
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, first.ID, moves[0].ParentID)

	window, err := store.Query(ctx, Query{Start: base.Add(30 * time.Minute), End: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, second.ID, window[0].ID)

	limited, err := store.Query(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	require.NoError(t, store.Delete(ctx, second.ID))
	_, err = store.Get(ctx, second.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(store.Delete(ctx, second.ID), ErrNotFound))
	rest, err := store.Query(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestJSONLStore(t *testing.T) {
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "history.jsonl"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	exerciseStore(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore("file:history_test.db?mode=memory&cache=shared")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	exerciseStore(t, store)
}

func TestRotatingJSONLStore(t *testing.T) {
	store, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "logs", "history.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	exerciseStore(t, store)
}

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 3, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	// ~1.2 MB of records forces at least one rotation at 1 MB.
	rec := sampleRecord("big.xlsx", time.Now(), KindRun)
	big := make([]model.Station, 0, 4000)
	for i := 0; i < 4000; i++ {
		big = append(big, model.Station{Code: fmt.Sprintf("ST%04d", i), Latitude: 21, Longitude: 105, Weight: 1})
	}
	rec.Teams = []model.Team{model.NewTeam("team_1", "Team 1", big)}
	ids := map[string]bool{}
	for i := 0; i < 5; i++ {
		r := rec
		r.ID = NewRecord(KindRun, "big.xlsx", rec.Params, nil).ID
		ids[r.ID] = true
		require.NoError(t, store.Append(context.Background(), r))
	}
	files, err := store.files()
	require.NoError(t, err)
	assert.Greater(t, len(files), 1, "expected rotated files")

	out, err := store.Query(context.Background(), Query{})
	require.NoError(t, err)
	for _, r := range out {
		assert.True(t, ids[r.ID])
	}
}

func TestJournalSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	store, err := NewJSONLStore(path)
	require.NoError(t, err)
	rec := sampleRecord("a.csv", time.Now(), KindRun)
	require.NoError(t, store.Append(context.Background(), rec))
	require.NoError(t, appendRaw(path, "{not json\n"))
	out, err := store.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestNewStoreFactory(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": filepath.Join(dir, "h.jsonl")}})
	require.NoError(t, err)
	assert.IsType(t, &JSONLStore{}, s)

	s, err = NewStore(factory.ModuleConfig{Type: "rotating", Conf: map[string]any{"path": filepath.Join(dir, "r.jsonl"), "max_backups": "2"}})
	require.NoError(t, err)
	assert.IsType(t, &RotatingJSONLStore{}, s)
	require.NoError(t, s.Close())

	s, err = NewStore(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": filepath.Join(dir, "h.db")}})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = NewStore(factory.ModuleConfig{Type: "jsonl"})
	assert.Error(t, err)
	_, err = NewStore(factory.ModuleConfig{Type: "postgres", Conf: map[string]any{}})
	assert.Error(t, err)
	_, err = NewStore(factory.ModuleConfig{Type: "mongo"})
	assert.Error(t, err)
}
