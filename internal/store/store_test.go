package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/searchscroll/internal/auth"
	"github.com/ibeckermayer/searchscroll/internal/params"
	"github.com/ibeckermayer/searchscroll/internal/types"
)

func ptr[T any](v T) *T { return &v }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "db", "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testParams(t *testing.T) *params.RunParameters {
	t.Helper()
	p, err := params.New(auth.Credentials{Username: "a", Password: "b"}, "@sample", "by", "2020-01-01", "2020-01-02")
	require.NoError(t, err)
	return p
}

func latestRun(t *testing.T, s *Store) Run {
	t.Helper()
	runs, err := s.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	return runs[0]
}

// recordsForRun reads back the records last saved by runID
func recordsForRun(t *testing.T, s *Store, runID string) []types.Record {
	t.Helper()
	rows, err := s.db.Query(`
		SELECT external_id, text, author_id, author_handle, author_name,
			created_at_ms, replies, retweets, likes
		FROM records WHERE run_id = ? ORDER BY created_at_ms, external_id
	`, runID)
	require.NoError(t, err)
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		var r types.Record
		var text sql.NullString
		var createdAt sql.NullFloat64
		require.NoError(t, rows.Scan(&r.ExternalID, &text, &r.AuthorID, &r.AuthorHandle, &r.AuthorName,
			&createdAt, &r.Replies, &r.Retweets, &r.Likes))
		if text.Valid {
			r.Text = &text.String
		}
		if createdAt.Valid {
			r.CreatedAt = &createdAt.Float64
		}
		records = append(records, r)
	}
	require.NoError(t, rows.Err())
	return records
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	runID, err := s.BeginRun(ctx, testParams(t))
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run := latestRun(t, s)
	assert.Equal(t, runID, run.ID)
	assert.Equal(t, "by", run.Mode)
	assert.Equal(t, "@sample", run.Handle)
	assert.Equal(t, StatusRunning, run.Status)
	assert.False(t, run.FinishedAt.Valid)

	require.NoError(t, s.FinishRun(ctx, runID, types.RunStats{
		Scrolls: 4, Truncated: true, Extracted: 10, Written: 8, Output: "out.csv",
	}))

	run = latestRun(t, s)
	assert.Equal(t, StatusOK, run.Status)
	assert.Empty(t, run.Error)
	assert.True(t, run.FinishedAt.Valid)
	assert.Equal(t, 4, run.Scrolls)
	assert.True(t, run.Truncated)
	assert.Equal(t, 10, run.Extracted)
	assert.Equal(t, 8, run.Written)
	assert.Equal(t, "out.csv", run.OutputPath)
}

func TestFailRunRecordsCause(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	runID, err := s.BeginRun(ctx, testParams(t))
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, runID, errors.New("login failed: no such element"), types.RunStats{Scrolls: 2}))

	run := latestRun(t, s)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "login failed: no such element", run.Error)
	assert.True(t, run.FinishedAt.Valid)
	assert.Equal(t, 2, run.Scrolls)
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	first, err := s.BeginRun(ctx, testParams(t))
	require.NoError(t, err)
	now = now.Add(time.Minute)
	second, err := s.BeginRun(ctx, testParams(t))
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)
}

func TestSaveRecordsUpserts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.BeginRun(ctx, testParams(t))
	require.NoError(t, err)

	records := []types.Record{
		{ExternalID: "1", Text: ptr("one"), AuthorHandle: "sample", CreatedAt: ptr(1000.0), Likes: 1},
		{ExternalID: "2", CreatedAt: ptr(2000.0)},
	}
	require.NoError(t, s.SaveRecords(ctx, first, records))

	got := recordsForRun(t, s, first)
	require.Len(t, got, 2)
	assert.Equal(t, records[0], got[0])
	assert.Nil(t, got[1].Text)

	second, err := s.BeginRun(ctx, testParams(t))
	require.NoError(t, err)
	require.NoError(t, s.SaveRecords(ctx, second, []types.Record{
		{ExternalID: "1", AuthorHandle: "sample", CreatedAt: ptr(1000.0), Likes: 5},
	}))

	got = recordsForRun(t, s, second)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Likes)
	require.NotNil(t, got[0].Text, "text survives a refresh without text")
	assert.Equal(t, "one", *got[0].Text)

	assert.Len(t, recordsForRun(t, s, first), 1)
}

func TestCacheSteps(t *testing.T) {
	c := NewCache(t.TempDir())
	now := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.LatestStepFile(StepPage)
	assert.Error(t, err)

	_, err = c.SaveTextOutput(StepPage, "<html>old</html>", ".html")
	require.NoError(t, err)
	now = now.Add(time.Second)
	newest, err := c.SaveTextOutput(StepPage, "<html>new</html>", ".html")
	require.NoError(t, err)

	latest, err := c.LatestStepFile(StepPage)
	require.NoError(t, err)
	assert.Equal(t, newest, latest)

	data, err := os.ReadFile(latest)
	require.NoError(t, err)
	assert.Equal(t, "<html>new</html>", string(data))

	records := []types.Record{{ExternalID: "1", Text: ptr("hi"), CreatedAt: ptr(1.5)}}
	path, err := SaveStepOutput(c, StepRecords, records)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded []types.Record
	require.NoError(t, json.Unmarshal(raw, &loaded))
	assert.Equal(t, records, loaded)
}
