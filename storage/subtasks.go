package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/finchinslc/openclaw-board/domain"
)

// maxPositionAttempts bounds retries when two inserts race for the same slot.
const maxPositionAttempts = 5

// The next position is computed inside the insert so concurrent creates
// cannot read the same maximum; the unique index rejects any that still collide.
const insertSubtaskSQL = `INSERT INTO subtasks (id, title, completed, position, task_id, created_at)
SELECT ?, ?, ?, COALESCE(MAX(position), -1) + 1, ?, ? FROM subtasks WHERE task_id = ?`

// ListSubtasks returns the subtasks of a task ordered by position.
func (s *Storage) ListSubtasks(ctx context.Context, taskID string) ([]domain.Subtask, error) {
	var rows []subtaskRow
	if err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Subtask, 0, len(rows))
	for _, r := range rows {
		out = append(out, subtaskFromRow(r))
	}
	return out, nil
}

// CreateSubtask appends a subtask at the end of the task's list.
func (s *Storage) CreateSubtask(ctx context.Context, taskID, title string) (domain.Subtask, error) {
	db := s.db.WithContext(ctx)
	if err := requireTask(db, taskID); err != nil {
		return domain.Subtask{}, err
	}

	id := uuid.NewString()
	created := s.clock()
	var err error
	for attempt := 0; attempt < maxPositionAttempts; attempt++ {
		err = db.Exec(insertSubtaskSQL, id, title, false, taskID, created, taskID).Error
		if err == nil || !isDuplicate(err) {
			break
		}
	}
	if err != nil {
		return domain.Subtask{}, translate(err)
	}

	var row subtaskRow
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		return domain.Subtask{}, translate(err)
	}
	return subtaskFromRow(row), nil
}

// UpdateSubtask applies patch to a subtask owned by taskID.
func (s *Storage) UpdateSubtask(ctx context.Context, taskID, subtaskID string, patch domain.SubtaskPatch) (domain.Subtask, error) {
	db := s.db.WithContext(ctx)
	if !patch.Empty() {
		updates := map[string]any{}
		if patch.Title != nil {
			updates["title"] = *patch.Title
		}
		if patch.Completed != nil {
			updates["completed"] = *patch.Completed
		}
		if patch.Position != nil {
			updates["position"] = *patch.Position
		}
		res := db.Model(&subtaskRow{}).
			Where("id = ? AND task_id = ?", subtaskID, taskID).
			Updates(updates)
		if res.Error != nil {
			return domain.Subtask{}, translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.Subtask{}, domain.ErrNotFound
		}
	}

	var row subtaskRow
	if err := db.Where("id = ? AND task_id = ?", subtaskID, taskID).First(&row).Error; err != nil {
		return domain.Subtask{}, translate(err)
	}
	return subtaskFromRow(row), nil
}

// DeleteSubtask removes a subtask owned by taskID. Remaining positions are
// left as they are.
func (s *Storage) DeleteSubtask(ctx context.Context, taskID, subtaskID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND task_id = ?", subtaskID, taskID).
		Delete(&subtaskRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func requireTask(db *gorm.DB, taskID string) error {
	var n int64
	if err := db.Model(&taskRow{}).Where("id = ?", taskID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
