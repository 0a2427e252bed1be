package trackdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trajectory.report/internal/track"
)

func trackedFixture(t *testing.T) *track.Tracker {
	t.Helper()
	tr, err := track.New(track.DefaultParams())
	require.NoError(t, err)
	frames := []int{1, 2, 2}
	pos := [][]float64{{0, 0}, {0.1, 0.1}, {50, 50}}
	sePos := [][]float64{{0.01, 0.01}, {0.01, 0.01}, {0.01, 0.01}}
	require.NoError(t, tr.Initialize(frames, pos, sePos))
	require.NoError(t, tr.GenerateTracks())
	return tr
}

func TestOpenAppliesMigrations(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "tracks.db"))
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('runs','track_points')`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Re-opening an up-to-date database must not fail.
	db, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestInsertAndLoadRun(t *testing.T) {
	tr := trackedFixture(t)
	db, err := Open(filepath.Join(t.TempDir(), "tracks.db"))
	require.NoError(t, err)
	defer db.Close()

	runID, err := db.InsertRun(tr)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	runs, err := db.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].RunID)
	assert.Equal(t, 3, runs[0].Stats.NLocalizations)
	assert.Equal(t, len(tr.Tracks()), runs[0].Stats.NTracks)
	assert.Equal(t, tr.Params().D, runs[0].Stats.Params.D)

	loaded, err := db.LoadTracks(runID)
	require.NoError(t, err)
	want := tr.Tracks()
	require.Len(t, loaded, len(want))
	for i, points := range loaded {
		require.Len(t, points, len(want[i]))
		for k, p := range points {
			assert.Equal(t, want[i][k], p.DetectionIdx)
			frame, pos := tr.Detection(p.DetectionIdx)
			assert.Equal(t, frame, p.Frame)
			assert.Equal(t, pos, p.Pos)
		}
	}
}

func TestMultipleRunsAreIsolated(t *testing.T) {
	tr := trackedFixture(t)
	db, err := Open(filepath.Join(t.TempDir(), "tracks.db"))
	require.NoError(t, err)
	defer db.Close()

	first, err := db.InsertRun(tr)
	require.NoError(t, err)
	second, err := db.InsertRun(tr)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	runs, err := db.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	tracks, err := db.LoadTracks(first)
	require.NoError(t, err)
	assert.Len(t, tracks, len(tr.Tracks()))
}
