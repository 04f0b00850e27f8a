package tracker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taipei = time.FixedZone("CST", 8*60*60)

// Wednesday.
var fixedNow = time.Date(2025, 6, 4, 10, 30, 0, 0, taipei)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "data", "tasks.json")
	return NewStore(path, "DK", WithClock(func() time.Time { return fixedNow }), WithLogger(logger)), path
}

func patch(t *testing.T, body string) Patch {
	t.Helper()
	var p Patch
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return p
}

func TestStore_CreatesDefaultFile(t *testing.T) {
	s, path := newTestStore(t)

	d, err := s.Data()
	require.NoError(t, err)
	assert.Equal(t, "DK", d.Meta.Owner)
	assert.Equal(t, 1, d.Meta.Version)
	assert.Equal(t, "2025-06-04T10:30:00+08:00", d.Meta.LastUpdated)
	assert.Empty(t, d.Projects)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"projects": []`)
	assert.Contains(t, string(raw), `"weekly_log": []`)
}

func TestStore_CorruptFile(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := s.Data()
	assert.Error(t, err)
}

func TestProjects(t *testing.T) {
	s, _ := newTestStore(t)

	p1, err := s.CreateProject(patch(t, `{"name":"官網改版"}`))
	require.NoError(t, err)
	assert.Equal(t, "proj_001", p1.ID)
	assert.Equal(t, "官網改版", p1.Name)
	assert.Equal(t, "#3B82F6", p1.Color)
	assert.Equal(t, 1, p1.SortOrder)

	p2, err := s.CreateProject(nil)
	require.NoError(t, err)
	assert.Equal(t, "proj_002", p2.ID)
	assert.Equal(t, "新專案", p2.Name)
	assert.Equal(t, 2, p2.SortOrder)

	updated, err := s.UpdateProject(p1.ID, patch(t, `{"color":"#000000","sort_order":5,"id":"proj_999"}`))
	require.NoError(t, err)
	assert.Equal(t, "#000000", updated.Color)
	assert.Equal(t, 5, updated.SortOrder)
	assert.Equal(t, "proj_001", updated.ID)

	_, err = s.UpdateProject("proj_404", patch(t, `{"name":"x"}`))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteProject(p1.ID))
	assert.ErrorIs(t, s.DeleteProject(p1.ID), ErrNotFound)

	p3, err := s.CreateProject(nil)
	require.NoError(t, err)
	assert.Equal(t, "proj_003", p3.ID)
}

func TestTasks(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.CreateProject(nil)
	require.NoError(t, err)

	t1, err := s.CreateTask(p.ID, patch(t, `{"title":"對帳","status":"in_progress","estimated_completion":"2025-06-01"}`))
	require.NoError(t, err)
	assert.Equal(t, "task_001", t1.ID)
	assert.Equal(t, "medium", t1.Priority)
	assert.Equal(t, []string{}, t1.Tags)
	require.NotNil(t, t1.EstimatedCompletion)

	other, err := s.CreateProject(nil)
	require.NoError(t, err)
	t2, err := s.CreateTask(other.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "task_002", t2.ID, "task ids are numbered across projects")
	assert.Equal(t, StatusPending, t2.Status)

	_, err = s.CreateTask("proj_404", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	up, err := s.UpdateTask(t1.ID, patch(t, `{"progress":80,"estimated_completion":null,"created_at":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, 80, up.Progress)
	assert.Nil(t, up.EstimatedCompletion)
	assert.Equal(t, "2025-06-04T10:30:00+08:00", up.CreatedAt)

	_, err = s.UpdateTask(t1.ID, patch(t, `{"progress":"lots"}`))
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = s.UpdateTask("task_404", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteTask(t1.ID))
	assert.ErrorIs(t, s.DeleteTask(t1.ID), ErrNotFound)

	d, err := s.Data()
	require.NoError(t, err)
	assert.Empty(t, d.Projects[0].Tasks)
	assert.Len(t, d.Projects[1].Tasks, 1)
}

func TestSummary(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.CreateProject(nil)
	require.NoError(t, err)

	for _, body := range []string{
		`{"status":"completed"}`,
		`{"status":"completed"}`,
		`{"status":"in_progress","estimated_completion":"2025-06-03"}`,
		`{"status":"in_progress","estimated_completion":"2025-06-04"}`,
		`{"status":"in_progress"}`,
		`{"status":"pending"}`,
		`{"status":"cancelled"}`,
	} {
		_, err := s.CreateTask(p.ID, patch(t, body))
		require.NoError(t, err)
	}

	sum, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, &Summary{
		Total:          7,
		Completed:      2,
		InProgress:     3,
		Pending:        1,
		Cancelled:      1,
		Overdue:        1,
		CompletionRate: 29,
	}, sum)
}

func TestSummary_Empty(t *testing.T) {
	s, _ := newTestStore(t)
	sum, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, 0, sum.CompletionRate)
	assert.Equal(t, 0, sum.Total)
}

func TestWeeklyReportAndLog(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.CreateProject(patch(t, `{"name":"MOMO"}`))
	require.NoError(t, err)

	done, err := s.CreateTask(p.ID, patch(t, `{"title":"a","status":"completed","completed_at":"2025-06-02"}`))
	require.NoError(t, err)
	_, err = s.CreateTask(p.ID, patch(t, `{"title":"b","status":"in_progress","estimated_completion":"2025-06-01"}`))
	require.NoError(t, err)
	_, err = s.CreateTask(p.ID, patch(t, `{"title":"c","status":"cancelled","cancelled_reason":"dup"}`))
	require.NoError(t, err)

	taskID := done.ID
	entry, err := s.AddLogEntry("上架完成", &taskID)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-04", entry.Date)
	assert.Equal(t, "10:30", entry.Time)
	_, err = s.AddLogEntry("second", nil)
	require.NoError(t, err)

	d, err := s.Data()
	require.NoError(t, err)
	require.Len(t, d.WeeklyLog, 1)
	assert.Equal(t, "2025-06-02", d.WeeklyLog[0].WeekStart)
	assert.Len(t, d.WeeklyLog[0].Entries, 2)

	rep, err := s.WeeklyReport("")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-02", rep.WeekStart)
	require.Len(t, rep.Completed, 1)
	assert.Equal(t, "MOMO", rep.Completed[0].ProjectName)
	require.Len(t, rep.InProgress, 1)
	assert.True(t, rep.InProgress[0].Overdue)
	require.Len(t, rep.Cancelled, 1)
	assert.Equal(t, "dup", *rep.Cancelled[0].CancelledReason)
	assert.Empty(t, rep.Pending)
	assert.Len(t, rep.LogEntries, 2)

	rep, err = s.WeeklyReport("2025-06-08")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-02", rep.WeekStart, "any day resolves to its Monday")

	rep, err = s.WeeklyReport("2025-05-26")
	require.NoError(t, err)
	assert.Empty(t, rep.LogEntries)
	assert.NotNil(t, rep.LogEntries)

	_, err = s.WeeklyReport("last week")
	assert.ErrorIs(t, err, ErrInvalidWeek)
}

func TestWeeklyReport_JSONShape(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.CreateProject(nil)
	require.NoError(t, err)
	_, err = s.CreateTask(p.ID, patch(t, `{"status":"pending"}`))
	require.NoError(t, err)

	rep, err := s.WeeklyReport("")
	require.NoError(t, err)
	raw, err := json.Marshal(rep)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	pending := m["pending_tasks"].([]any)[0].(map[string]any)
	assert.Contains(t, pending, "estimated_restart")
	assert.Contains(t, pending, "project_name")
	assert.Equal(t, []any{}, m["completed_tasks"])
}

func TestWeekStart(t *testing.T) {
	tests := map[string]string{
		"2025-06-02": "2025-06-02", // Monday
		"2025-06-04": "2025-06-02",
		"2025-06-08": "2025-06-02", // Sunday
		"2025-06-09": "2025-06-09",
		"2025-01-01": "2024-12-30",
	}
	for in, want := range tests {
		day, err := time.Parse(DayLayout, in)
		require.NoError(t, err)
		assert.Equal(t, want, WeekStart(day).Format(DayLayout), in)
	}
}

func TestNextID(t *testing.T) {
	assert.Equal(t, "proj_001", nextID("proj", nil))
	assert.Equal(t, "proj_010", nextID("proj", []string{"proj_002", "proj_009", "custom", "proj_x"}))
	assert.Equal(t, "task_1000", nextID("task", []string{"task_999"}))
}

func TestStore_LogsCreation(t *testing.T) {
	logger, hook := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "tasks.json")
	s := NewStore(path, "DK", WithLogger(logger))

	_, err := s.CreateProject(nil)
	require.NoError(t, err)

	var messages []string
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "created tracker data file")
	assert.Contains(t, messages, "project created")
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}
