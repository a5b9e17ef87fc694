package api

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/finchinslc/openclaw-board/broadcast"
	"github.com/finchinslc/openclaw-board/domain"
	"github.com/finchinslc/openclaw-board/webhook"
)

// Store abstracts persistence for handlers.
type Store interface {
	ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	CreateTask(ctx context.Context, in domain.NewTask, actor domain.Actor) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch, actor domain.Actor) (domain.Task, domain.Task, []domain.Change, error)
	DeleteTask(ctx context.Context, id string) (domain.Task, error)

	ListSubtasks(ctx context.Context, taskID string) ([]domain.Subtask, error)
	CreateSubtask(ctx context.Context, taskID, title string) (domain.Subtask, error)
	UpdateSubtask(ctx context.Context, taskID, subtaskID string, patch domain.SubtaskPatch) (domain.Subtask, error)
	DeleteSubtask(ctx context.Context, taskID, subtaskID string) error

	AddComment(ctx context.Context, taskID, content string, actor domain.Actor) (domain.Comment, error)
	ListComments(ctx context.Context, taskID string) ([]domain.Comment, error)
	ListActivities(ctx context.Context, taskID string) ([]domain.Activity, error)
	ListStatusHistory(ctx context.Context, taskID string) ([]domain.StatusHistoryEntry, error)

	AddAttachment(ctx context.Context, taskID string, in domain.NewAttachment) (domain.Attachment, error)
	ListAttachments(ctx context.Context, taskID string) ([]domain.Attachment, error)
	DeleteAttachment(ctx context.Context, taskID, attachmentID string) error

	AddBlocker(ctx context.Context, taskID, blockerID string) error
	RemoveBlocker(ctx context.Context, taskID, blockerID string) error

	Ping(ctx context.Context) error
}

// Archiver keeps snapshots of archived tasks outside the main store.
type Archiver interface {
	Archive(ctx context.Context, t domain.Task) error
	Restore(ctx context.Context, taskID string) error
}

// Authenticator verifies a request token and returns the user it belongs to.
type Authenticator interface {
	UserIDFromToken(string) (string, error)
}

// Deps bundles the collaborators handlers need. Only Store is required.
type Deps struct {
	Store       Store
	Broadcaster broadcast.Broadcaster
	Notifier    webhook.Notifier
	Archiver    Archiver
	Deduper     Deduper
	Hub         *broadcast.Hub
	Auth        Authenticator
	Logger      *log.Logger
}
