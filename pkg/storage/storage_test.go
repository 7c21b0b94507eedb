package storage

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/review-scraper/pkg/models"
	"github.com/Sriram-PR/review-scraper/pkg/state"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestArchive(t *testing.T, maxBackups int) *BadgerArchive {
	t.Helper()
	archive, err := NewBadgerArchive(filepath.Join(t.TempDir(), "backups"), maxBackups, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })
	return archive
}

func sampleState() *state.CrawlState {
	s := state.New()
	s.SetRunInfo("run-42", map[string]float64{"delay_min": 3})
	s.MarkPageComplete(1)
	s.MarkHotelVisited("https://example.com/reviews/a/")
	s.MarkHotelVisited("https://example.com/reviews/b/")
	rating := 4.0
	s.AppendResults(
		models.ReviewRecord{ReviewID: "r1", HotelID: "h1", Title: "first", RatingNumeric: &rating},
		models.ReviewRecord{ReviewID: "r2", HotelID: "h1", Title: "second"},
	)
	s.RecordRequest()
	s.RecordRequest()
	s.RecordBlocked()
	return s
}

func TestFileCheckpoint_LoadMissingIsFresh(t *testing.T) {
	cp := NewFileCheckpoint(filepath.Join(t.TempDir(), "progress.json"), nil, testLogger())

	s, err := cp.Load()
	require.NoError(t, err)
	assert.Equal(t, state.Stats{}, s.Stats())
}

func TestFileCheckpoint_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "progress.json")
	cp := NewFileCheckpoint(path, nil, testLogger())

	original := sampleState()
	require.NoError(t, cp.Save(original))

	loaded, err := cp.Load()
	require.NoError(t, err)

	assert.Equal(t, original.Stats(), loaded.Stats())
	assert.Equal(t, original.Results(), loaded.Results())
	assert.True(t, loaded.IsPageComplete(1))
	assert.True(t, loaded.IsHotelVisited("https://example.com/reviews/b/"))

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileCheckpoint_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, NewFileCheckpoint(path, nil, testLogger()).Save(sampleState()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{
		"processed_hotels", "processed_pages", "results", "total_requests",
		"blocked_count", "last_updated", "delays_config", "parser_version", "run_id",
	} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, float64(2), raw["total_requests"])
	assert.Equal(t, "3.2", raw["parser_version"])
}

func TestFileCheckpoint_CorruptIsColdStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"processed_pages": [1, 2`), 0644))

	s, err := NewFileCheckpoint(path, nil, testLogger()).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrCheckpointCorrupt)
	require.NotNil(t, s)
	assert.Equal(t, 0, s.Stats().PagesCompleted)
}

func TestFileCheckpoint_SaveArchivesBackup(t *testing.T) {
	archive := newTestArchive(t, 0)
	cp := NewFileCheckpoint(filepath.Join(t.TempDir(), "progress.json"), archive, testLogger())

	require.NoError(t, cp.Save(sampleState()))
	require.NoError(t, cp.Save(sampleState()))

	backups, err := archive.List()
	require.NoError(t, err)
	assert.Len(t, backups, 2)

	_, payload, err := archive.Latest()
	require.NoError(t, err)
	parsed, err := ParseCheckpoint(payload)
	require.NoError(t, err)
	assert.Equal(t, "run-42", parsed.RunID)
}

func TestFileCheckpoint_RestoreFromBackup(t *testing.T) {
	archive := newTestArchive(t, 0)
	path := filepath.Join(t.TempDir(), "progress.json")
	cp := NewFileCheckpoint(path, archive, testLogger())
	require.NoError(t, cp.Save(sampleState()))

	// Corrupt the live checkpoint, then restore from the archive
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))
	_, err := cp.Load()
	require.ErrorIs(t, err, utils.ErrCheckpointCorrupt)

	_, payload, err := archive.Latest()
	require.NoError(t, err)
	require.NoError(t, cp.Restore(payload))

	s, err := cp.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, s.Stats().HotelsVisited)

	assert.ErrorIs(t, cp.Restore([]byte("nope")), utils.ErrCheckpointCorrupt)
}

func TestBadgerArchive_OrderAndLatest(t *testing.T) {
	archive := newTestArchive(t, 0)
	base := time.Date(2025, 10, 8, 12, 0, 0, 0, time.UTC)

	require.NoError(t, archive.Put([]byte("second"), base.Add(time.Minute)))
	require.NoError(t, archive.Put([]byte("first"), base))
	require.NoError(t, archive.Put([]byte("third"), base.Add(2*time.Minute)))

	list, err := archive.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].CreatedAt.Equal(base))
	assert.True(t, list[2].CreatedAt.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, len("first"), list[0].Size)

	info, payload, err := archive.Latest()
	require.NoError(t, err)
	assert.Equal(t, "third", string(payload))
	assert.True(t, info.CreatedAt.Equal(base.Add(2*time.Minute)))
}

func TestBadgerArchive_SameInstantGetsDistinctKeys(t *testing.T) {
	archive := newTestArchive(t, 0)
	at := time.Now()

	require.NoError(t, archive.Put([]byte("a"), at))
	require.NoError(t, archive.Put([]byte("b"), at))

	list, err := archive.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.NotEqual(t, list[0].Key, list[1].Key)

	_, payload, err := archive.Latest()
	require.NoError(t, err)
	assert.Equal(t, "b", string(payload))
}

func TestBadgerArchive_PrunesOldest(t *testing.T) {
	archive := newTestArchive(t, 2)
	base := time.Now()

	for i := 0; i < 4; i++ {
		require.NoError(t, archive.Put([]byte{byte('a' + i)}, base.Add(time.Duration(i)*time.Second)))
	}

	list, err := archive.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].CreatedAt.Equal(base.Add(2*time.Second)))
}

func TestBadgerArchive_EmptyLatest(t *testing.T) {
	archive := newTestArchive(t, 0)
	_, _, err := archive.Latest()
	assert.ErrorIs(t, err, ErrNoBackups)
}

func TestBadgerArchive_ReopenKeepsBackups(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	a1, err := NewBadgerArchive(dir, 0, testLogger())
	require.NoError(t, err)
	require.NoError(t, a1.Put([]byte("persisted"), time.Now()))
	require.NoError(t, a1.Close())

	a2, err := NewBadgerArchive(dir, 0, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { a2.Close() })

	_, payload, err := a2.Latest()
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(payload))
}

func TestBadgerArchive_RunGCStopsOnCancel(t *testing.T) {
	archive := newTestArchive(t, 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- archive.RunGC(ctx, 10*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunGC did not stop after context cancellation")
	}
}
