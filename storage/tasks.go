package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/finchinslc/openclaw-board/domain"
)

// ListTasks returns tasks in board order with their subtasks and comments.
func (s *Storage) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	db := s.db.WithContext(ctx)
	q := db.Order("position ASC").Order("task_number ASC")
	if !filter.IncludeArchived {
		q = q.Where("archived = ?", false)
	}
	var rows []taskRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(rows))
	if len(rows) == 0 {
		return tasks, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	var subRows []subtaskRow
	if err := db.Where("task_id IN ?", ids).Order("position ASC").Find(&subRows).Error; err != nil {
		return nil, err
	}
	var commentRows []commentRow
	if err := db.Where("task_id IN ?", ids).Order("created_at ASC").Find(&commentRows).Error; err != nil {
		return nil, err
	}
	subs := make(map[string][]domain.Subtask, len(rows))
	for _, r := range subRows {
		subs[r.TaskID] = append(subs[r.TaskID], subtaskFromRow(r))
	}
	comments := make(map[string][]domain.Comment, len(rows))
	for _, r := range commentRows {
		comments[r.TaskID] = append(comments[r.TaskID], commentFromRow(r))
	}

	for _, r := range rows {
		t := taskFromRow(r)
		t.Subtasks = orEmpty(subs[r.ID])
		t.Comments = orEmpty(comments[r.ID])
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// GetTask loads one task with comments (oldest first), subtasks (by
// position), attachments and blocker links.
func (s *Storage) GetTask(ctx context.Context, id string) (domain.Task, error) {
	db := s.db.WithContext(ctx)
	var row taskRow
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		return domain.Task{}, translate(err)
	}
	t := taskFromRow(row)

	subtasks, err := s.ListSubtasks(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	t.Subtasks = subtasks

	var commentRows []commentRow
	if err := db.Where("task_id = ?", id).Order("created_at ASC").Find(&commentRows).Error; err != nil {
		return domain.Task{}, err
	}
	t.Comments = make([]domain.Comment, 0, len(commentRows))
	for _, r := range commentRows {
		t.Comments = append(t.Comments, commentFromRow(r))
	}

	var attachmentRows []attachmentRow
	if err := db.Where("task_id = ?", id).Order("created_at ASC").Find(&attachmentRows).Error; err != nil {
		return domain.Task{}, err
	}
	for _, r := range attachmentRows {
		t.Attachments = append(t.Attachments, attachmentFromRow(r))
	}

	if t.BlockedBy, err = s.taskRefs(db, "blocker_id", "blocked_id", id); err != nil {
		return domain.Task{}, err
	}
	if t.Blocking, err = s.taskRefs(db, "blocked_id", "blocker_id", id); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// taskRefs selects the tasks whose id appears in column pick of task_blocks
// rows where column match equals id.
func (s *Storage) taskRefs(db *gorm.DB, pick, match, id string) ([]domain.TaskRef, error) {
	sub := db.Model(&taskBlockRow{}).Select(pick).Where(match+" = ?", id)
	var rows []taskRow
	if err := db.Where("id IN (?)", sub).Order("task_number ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	var refs []domain.TaskRef
	for _, r := range rows {
		refs = append(refs, domain.TaskRef{
			ID:         r.ID,
			TaskNumber: r.TaskNumber,
			Title:      r.Title,
			Status:     domain.TaskStatus(r.Status),
		})
	}
	return refs, nil
}

// CreateTask stores a new task with the next task number, placing it at the
// end of its column and opening its first status history entry.
func (s *Storage) CreateTask(ctx context.Context, in domain.NewTask, actor domain.Actor) (domain.Task, error) {
	now := s.clock()
	id := uuid.NewString()

	var err error
	for attempt := 0; attempt < maxPositionAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var maxNumber int
			if err := tx.Model(&taskRow{}).Select("COALESCE(MAX(task_number), 0)").Scan(&maxNumber).Error; err != nil {
				return err
			}
			var maxPosition int
			if err := tx.Model(&taskRow{}).
				Select("COALESCE(MAX(position), -1)").
				Where("status = ? AND archived = ?", string(in.Status), false).
				Scan(&maxPosition).Error; err != nil {
				return err
			}

			t := domain.Task{
				ID:            id,
				TaskNumber:    maxNumber + 1,
				Title:         in.Title,
				Description:   in.Description,
				Priority:      in.Priority,
				Origin:        in.Origin,
				Tags:          in.Tags,
				Position:      maxPosition + 1,
				IsActive:      in.IsActive,
				StoryPoints:   in.StoryPoints,
				BlockedReason: in.BlockedReason,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			domain.ApplyStatus(&t, in.Status, now)
			row := rowFromTask(t)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			if err := tx.Create(&statusHistoryRow{
				ID:        uuid.NewString(),
				Status:    string(t.Status),
				EnteredAt: now,
				TaskID:    id,
			}).Error; err != nil {
				return err
			}
			return tx.Create(&activityRow{
				ID:        uuid.NewString(),
				Type:      domain.ActivityCreated,
				Actor:     string(actor),
				TaskID:    id,
				CreatedAt: now,
			}).Error
		})
		if err == nil || !isDuplicate(err) {
			break
		}
	}
	if err != nil {
		return domain.Task{}, translate(err)
	}
	return s.GetTask(ctx, id)
}

// UpdateTask applies patch and records history and activities for every
// changed field. It returns the task before and after the update together
// with the field changes; an empty change list means nothing was written.
func (s *Storage) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch, actor domain.Actor) (domain.Task, domain.Task, []domain.Change, error) {
	now := s.clock()
	var before domain.Task
	var changes []domain.Change
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row taskRow
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			return err
		}
		before = taskFromRow(row)
		after := before
		after.Tags = append([]string{}, before.Tags...)
		patch.Apply(&after, now)

		changes = domain.Diff(before, after)
		if len(changes) == 0 {
			return nil
		}
		after.UpdatedAt = now
		next := rowFromTask(after)
		if err := tx.Save(&next).Error; err != nil {
			return err
		}
		if before.Status != after.Status {
			if err := rollHistory(tx, id, after.Status, now); err != nil {
				return err
			}
		}
		activities := activitiesFor(id, changes, actor, now)
		return tx.Create(&activities).Error
	})
	if err != nil {
		return domain.Task{}, domain.Task{}, nil, translate(err)
	}
	after, err := s.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, domain.Task{}, nil, err
	}
	return before, after, changes, nil
}

// DeleteTask removes a task and everything it owns. It returns the task as it
// was before deletion.
func (s *Storage) DeleteTask(ctx context.Context, id string) (domain.Task, error) {
	var deleted domain.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row taskRow
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			return err
		}
		deleted = taskFromRow(row)
		for _, model := range []any{&subtaskRow{}, &commentRow{}, &attachmentRow{}, &activityRow{}, &statusHistoryRow{}} {
			if err := tx.Where("task_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("blocker_id = ? OR blocked_id = ?", id, id).Delete(&taskBlockRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&taskRow{}, "id = ?", id).Error
	})
	if err != nil {
		return domain.Task{}, translate(err)
	}
	return deleted, nil
}

// rollHistory closes the open history entry and opens one for status.
func rollHistory(tx *gorm.DB, taskID string, status domain.TaskStatus, now time.Time) error {
	var open []statusHistoryRow
	if err := tx.Where("task_id = ? AND exited_at IS NULL", taskID).Find(&open).Error; err != nil {
		return err
	}
	for _, r := range open {
		entry := historyFromRow(r)
		domain.CloseEntry(&entry, now)
		if err := tx.Model(&statusHistoryRow{}).
			Where("id = ?", r.ID).
			Updates(map[string]any{"exited_at": *entry.ExitedAt, "duration": *entry.Duration}).Error; err != nil {
			return err
		}
	}
	return tx.Create(&statusHistoryRow{
		ID:        uuid.NewString(),
		Status:    string(status),
		EnteredAt: now,
		TaskID:    taskID,
	}).Error
}

func activitiesFor(taskID string, changes []domain.Change, actor domain.Actor, now time.Time) []activityRow {
	out := make([]activityRow, 0, len(changes))
	for _, c := range changes {
		typ := domain.ActivityFieldUpdated
		switch c.Field {
		case "status":
			typ = domain.ActivityStatusChanged
		case "archived":
			typ = domain.ActivityUnarchived
			if archived, _ := c.NewValue.(bool); archived {
				typ = domain.ActivityArchived
			}
		}
		field := c.Field
		out = append(out, activityRow{
			ID:        uuid.NewString(),
			Type:      typ,
			Actor:     string(actor),
			Field:     &field,
			OldValue:  formatValue(c.OldValue),
			NewValue:  formatValue(c.NewValue),
			TaskID:    taskID,
			CreatedAt: now,
		})
	}
	return out
}

func formatValue(v any) *string {
	var s string
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		s = val
	case []string:
		s = strings.Join(val, ", ")
	default:
		s = fmt.Sprint(val)
	}
	return &s
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
