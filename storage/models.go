package storage

import (
	"time"

	"github.com/finchinslc/openclaw-board/domain"
)

type taskRow struct {
	ID            string   `gorm:"primaryKey;size:36"`
	TaskNumber    int      `gorm:"uniqueIndex;not null"`
	Title         string   `gorm:"not null"`
	Description   *string  `gorm:"type:text"`
	Status        string   `gorm:"size:16;not null;index"`
	Priority      string   `gorm:"size:8;not null"`
	Origin        string   `gorm:"size:8;not null"`
	Tags          []string `gorm:"serializer:json;type:text"`
	Position      int      `gorm:"not null;default:0"`
	IsActive      bool     `gorm:"not null;default:false"`
	StoryPoints   *float64
	Archived      bool `gorm:"not null;default:false;index"`
	ArchivedAt    *time.Time
	BlockedReason *string `gorm:"type:text"`
	StartedAt     *time.Time
	ReviewedAt    *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (taskRow) TableName() string { return "tasks" }

type subtaskRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Title     string `gorm:"not null"`
	Completed bool   `gorm:"not null;default:false"`
	Position  int    `gorm:"not null;uniqueIndex:idx_subtask_task_position,priority:2"`
	TaskID    string `gorm:"size:36;not null;uniqueIndex:idx_subtask_task_position,priority:1"`
	CreatedAt time.Time
}

func (subtaskRow) TableName() string { return "subtasks" }

type commentRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Content   string `gorm:"type:text;not null"`
	TaskID    string `gorm:"size:36;not null;index"`
	CreatedAt time.Time
}

func (commentRow) TableName() string { return "comments" }

type activityRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Type      string `gorm:"size:32;not null"`
	Actor     string `gorm:"size:16;not null"`
	Field     *string
	OldValue  *string `gorm:"type:text"`
	NewValue  *string `gorm:"type:text"`
	TaskID    string  `gorm:"size:36;not null;index"`
	CreatedAt time.Time
}

func (activityRow) TableName() string { return "activities" }

type statusHistoryRow struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Status    string    `gorm:"size:16;not null"`
	EnteredAt time.Time `gorm:"not null"`
	ExitedAt  *time.Time
	Duration  *int64
	TaskID    string `gorm:"size:36;not null;index"`
}

func (statusHistoryRow) TableName() string { return "status_history" }

type attachmentRow struct {
	ID        string  `gorm:"primaryKey;size:36"`
	Type      string  `gorm:"size:8;not null"`
	Title     *string
	Content   string  `gorm:"type:text;not null"`
	MimeType  *string
	TaskID    string  `gorm:"size:36;not null;index"`
	CreatedAt time.Time
}

func (attachmentRow) TableName() string { return "attachments" }

// taskBlockRow links a blocking task to the task it blocks.
type taskBlockRow struct {
	BlockerID string `gorm:"primaryKey;size:36"`
	BlockedID string `gorm:"primaryKey;size:36;index"`
}

func (taskBlockRow) TableName() string { return "task_blocks" }

func taskFromRow(r taskRow) domain.Task {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.Task{
		ID:            r.ID,
		TaskNumber:    r.TaskNumber,
		Title:         r.Title,
		Description:   r.Description,
		Status:        domain.TaskStatus(r.Status),
		Priority:      domain.Priority(r.Priority),
		Origin:        domain.Origin(r.Origin),
		Tags:          tags,
		Position:      r.Position,
		IsActive:      r.IsActive,
		StoryPoints:   r.StoryPoints,
		Archived:      r.Archived,
		ArchivedAt:    utcPtr(r.ArchivedAt),
		BlockedReason: r.BlockedReason,
		StartedAt:     utcPtr(r.StartedAt),
		ReviewedAt:    utcPtr(r.ReviewedAt),
		CompletedAt:   utcPtr(r.CompletedAt),
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func rowFromTask(t domain.Task) taskRow {
	return taskRow{
		ID:            t.ID,
		TaskNumber:    t.TaskNumber,
		Title:         t.Title,
		Description:   t.Description,
		Status:        string(t.Status),
		Priority:      string(t.Priority),
		Origin:        string(t.Origin),
		Tags:          t.Tags,
		Position:      t.Position,
		IsActive:      t.IsActive,
		StoryPoints:   t.StoryPoints,
		Archived:      t.Archived,
		ArchivedAt:    t.ArchivedAt,
		BlockedReason: t.BlockedReason,
		StartedAt:     t.StartedAt,
		ReviewedAt:    t.ReviewedAt,
		CompletedAt:   t.CompletedAt,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func subtaskFromRow(r subtaskRow) domain.Subtask {
	return domain.Subtask{
		ID:        r.ID,
		Title:     r.Title,
		Completed: r.Completed,
		Position:  r.Position,
		TaskID:    r.TaskID,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func commentFromRow(r commentRow) domain.Comment {
	return domain.Comment{ID: r.ID, Content: r.Content, TaskID: r.TaskID, CreatedAt: r.CreatedAt.UTC()}
}

func activityFromRow(r activityRow) domain.Activity {
	return domain.Activity{
		ID:        r.ID,
		Type:      r.Type,
		Actor:     domain.Actor(r.Actor),
		Field:     r.Field,
		OldValue:  r.OldValue,
		NewValue:  r.NewValue,
		TaskID:    r.TaskID,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func historyFromRow(r statusHistoryRow) domain.StatusHistoryEntry {
	return domain.StatusHistoryEntry{
		ID:        r.ID,
		Status:    domain.TaskStatus(r.Status),
		EnteredAt: r.EnteredAt.UTC(),
		ExitedAt:  utcPtr(r.ExitedAt),
		Duration:  r.Duration,
		TaskID:    r.TaskID,
	}
}

func attachmentFromRow(r attachmentRow) domain.Attachment {
	return domain.Attachment{
		ID:        r.ID,
		Type:      domain.AttachmentType(r.Type),
		Title:     r.Title,
		Content:   r.Content,
		MimeType:  r.MimeType,
		TaskID:    r.TaskID,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
