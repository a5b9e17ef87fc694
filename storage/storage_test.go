package storage

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/finchinslc/openclaw-board/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	logger := log.New()
	logger.SetOutput(io.Discard)
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(Config{DSN: "file:" + name + "?mode=memory&cache=shared", Logger: logger})
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func withClock(s *Storage) *fakeClock {
	c := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s.now = c.Now
	return c
}

func createTask(t *testing.T, s *Storage, title string) domain.Task {
	t.Helper()
	in := domain.NewTask{Title: title}
	require.NoError(t, in.Normalize())
	task, err := s.CreateTask(context.Background(), in, domain.ActorHuman)
	require.NoError(t, err)
	return task
}

func TestDialectorFor(t *testing.T) {
	_, isSQLite := dialectorFor("postgres://u:p@localhost:5432/board")
	require.False(t, isSQLite)
	_, isSQLite = dialectorFor("postgresql://localhost/board")
	require.False(t, isSQLite)
	_, isSQLite = dialectorFor("sqlite://board.db")
	require.True(t, isSQLite)
	_, isSQLite = dialectorFor("board.db")
	require.True(t, isSQLite)
}

func TestCreateTaskAssignsNumbersAndHistory(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	first := createTask(t, s, "  First  ")
	second := createTask(t, s, "Second")

	require.Equal(t, "First", first.Title)
	require.Equal(t, 1, first.TaskNumber)
	require.Equal(t, 2, second.TaskNumber)
	require.Equal(t, 0, first.Position)
	require.Equal(t, 1, second.Position)
	require.Equal(t, domain.StatusTodo, first.Status)
	require.Equal(t, domain.PriorityMedium, first.Priority)
	require.Equal(t, []string{}, first.Tags)
	require.Equal(t, []domain.Subtask{}, first.Subtasks)
	require.Equal(t, []domain.Comment{}, first.Comments)

	history, err := s.ListStatusHistory(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, domain.StatusTodo, history[0].Status)
	require.Nil(t, history[0].ExitedAt)

	activities, err := s.ListActivities(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	require.Equal(t, domain.ActivityCreated, activities[0].Type)
	require.Equal(t, domain.ActorHuman, activities[0].Actor)
}

func TestUpdateTaskStatusLifecycle(t *testing.T) {
	s := newTestStorage(t)
	clock := withClock(s)
	ctx := context.Background()
	task := createTask(t, s, "Lifecycle")

	clock.Advance(90 * time.Second)
	status := domain.StatusInProgress
	before, after, changes, err := s.UpdateTask(ctx, task.ID, domain.TaskPatch{Status: &status}, domain.ActorAgent)
	require.NoError(t, err)
	require.Equal(t, domain.StatusTodo, before.Status)
	require.Equal(t, domain.StatusInProgress, after.Status)
	require.NotNil(t, after.StartedAt)
	require.Len(t, changes, 1)
	require.Equal(t, "status", changes[0].Field)

	history, err := s.ListStatusHistory(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].Duration)
	require.Equal(t, int64(90), *history[0].Duration)
	require.Equal(t, domain.StatusInProgress, history[1].Status)
	require.Nil(t, history[1].ExitedAt)

	clock.Advance(time.Hour)
	done := domain.StatusDone
	_, after, _, err = s.UpdateTask(ctx, task.ID, domain.TaskPatch{Status: &done}, domain.ActorHuman)
	require.NoError(t, err)
	require.NotNil(t, after.CompletedAt)

	reopen := domain.StatusTodo
	_, after, _, err = s.UpdateTask(ctx, task.ID, domain.TaskPatch{Status: &reopen}, domain.ActorHuman)
	require.NoError(t, err)
	require.Nil(t, after.CompletedAt)
	require.NotNil(t, after.StartedAt)

	activities, err := s.ListActivities(ctx, task.ID)
	require.NoError(t, err)
	var statusChanges int
	for _, a := range activities {
		if a.Type == domain.ActivityStatusChanged {
			statusChanges++
		}
	}
	require.Equal(t, 3, statusChanges)
}

func TestUpdateTaskWithoutChangesWritesNothing(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	task := createTask(t, s, "Same")

	title := "Same"
	_, _, changes, err := s.UpdateTask(ctx, task.ID, domain.TaskPatch{Title: &title}, domain.ActorHuman)
	require.NoError(t, err)
	require.Empty(t, changes)

	activities, err := s.ListActivities(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, activities, 1)
}

func TestUpdateTaskArchiveRecordsActivity(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	task := createTask(t, s, "Archive me")
	createTask(t, s, "Keep me")

	archived := true
	_, after, changes, err := s.UpdateTask(ctx, task.ID, domain.TaskPatch{Archived: &archived}, domain.ActorHuman)
	require.NoError(t, err)
	require.True(t, after.Archived)
	require.NotNil(t, after.ArchivedAt)
	require.True(t, domain.HasField(changes, "archived"))

	active, err := s.ListTasks(ctx, domain.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	all, err := s.ListTasks(ctx, domain.TaskFilter{IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, all, 2)

	activities, err := s.ListActivities(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ActivityArchived, activities[0].Type)
}

func TestUpdateTaskNotFound(t *testing.T) {
	s := newTestStorage(t)
	title := "x"
	_, _, _, err := s.UpdateTask(context.Background(), "missing", domain.TaskPatch{Title: &title}, domain.ActorHuman)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteTaskCascades(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	task := createTask(t, s, "Doomed")
	other := createTask(t, s, "Survivor")

	_, err := s.CreateSubtask(ctx, task.ID, "step")
	require.NoError(t, err)
	_, err = s.AddComment(ctx, task.ID, "note", domain.ActorHuman)
	require.NoError(t, err)
	require.NoError(t, s.AddBlocker(ctx, other.ID, task.ID))

	deleted, err := s.DeleteTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, task.ID, deleted.ID)

	_, err = s.GetTask(ctx, task.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	subtasks, err := s.ListSubtasks(ctx, task.ID)
	require.NoError(t, err)
	require.Empty(t, subtasks)

	survivor, err := s.GetTask(ctx, other.ID)
	require.NoError(t, err)
	require.Empty(t, survivor.BlockedBy)

	_, err = s.DeleteTask(ctx, task.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBlockers(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	a := createTask(t, s, "A")
	b := createTask(t, s, "B")

	require.ErrorIs(t, s.AddBlocker(ctx, a.ID, a.ID), domain.ErrInvalid)
	require.ErrorIs(t, s.AddBlocker(ctx, a.ID, "missing"), domain.ErrNotFound)
	require.NoError(t, s.AddBlocker(ctx, a.ID, b.ID))
	require.ErrorIs(t, s.AddBlocker(ctx, a.ID, b.ID), domain.ErrConflict)

	blocked, err := s.GetTask(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, blocked.BlockedBy, 1)
	require.Equal(t, b.ID, blocked.BlockedBy[0].ID)

	blocker, err := s.GetTask(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, blocker.Blocking, 1)
	require.Equal(t, a.ID, blocker.Blocking[0].ID)

	require.NoError(t, s.RemoveBlocker(ctx, a.ID, b.ID))
	require.ErrorIs(t, s.RemoveBlocker(ctx, a.ID, b.ID), domain.ErrNotFound)
}

func TestCommentsAndAttachments(t *testing.T) {
	s := newTestStorage(t)
	clock := withClock(s)
	ctx := context.Background()
	task := createTask(t, s, "Talk")

	_, err := s.AddComment(ctx, task.ID, "first", domain.ActorHuman)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = s.AddComment(ctx, task.ID, "second", domain.ActorAgent)
	require.NoError(t, err)

	_, err = s.AddComment(ctx, "missing", "lost", domain.ActorHuman)
	require.ErrorIs(t, err, domain.ErrNotFound)

	full, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, full.Comments, 2)
	require.Equal(t, "first", full.Comments[0].Content)
	require.Equal(t, "second", full.Comments[1].Content)

	title := "Docs"
	att, err := s.AddAttachment(ctx, task.ID, domain.NewAttachment{Type: domain.AttachmentLink, Title: &title, Content: "https://example.com"})
	require.NoError(t, err)
	list, err := s.ListAttachments(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, att.ID, list[0].ID)

	require.ErrorIs(t, s.DeleteAttachment(ctx, "other", att.ID), domain.ErrNotFound)
	require.NoError(t, s.DeleteAttachment(ctx, task.ID, att.ID))
}
