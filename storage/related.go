package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/finchinslc/openclaw-board/domain"
)

// AddComment attaches a comment to a task and logs a commented activity.
func (s *Storage) AddComment(ctx context.Context, taskID, content string, actor domain.Actor) (domain.Comment, error) {
	now := s.clock()
	row := commentRow{ID: uuid.NewString(), Content: content, TaskID: taskID, CreatedAt: now}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireTask(tx, taskID); err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Create(&activityRow{
			ID:        uuid.NewString(),
			Type:      domain.ActivityCommented,
			Actor:     string(actor),
			NewValue:  &content,
			TaskID:    taskID,
			CreatedAt: now,
		}).Error
	})
	if err != nil {
		return domain.Comment{}, translate(err)
	}
	return commentFromRow(row), nil
}

func (s *Storage) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	db := s.db.WithContext(ctx)
	if err := requireTask(db, taskID); err != nil {
		return nil, err
	}
	var rows []commentRow
	if err := db.Where("task_id = ?", taskID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Comment, 0, len(rows))
	for _, r := range rows {
		out = append(out, commentFromRow(r))
	}
	return out, nil
}

// ListActivities returns a task's audit trail, newest first.
func (s *Storage) ListActivities(ctx context.Context, taskID string) ([]domain.Activity, error) {
	db := s.db.WithContext(ctx)
	if err := requireTask(db, taskID); err != nil {
		return nil, err
	}
	var rows []activityRow
	if err := db.Where("task_id = ?", taskID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Activity, 0, len(rows))
	for _, r := range rows {
		out = append(out, activityFromRow(r))
	}
	return out, nil
}

// ListStatusHistory returns a task's status history, oldest first.
func (s *Storage) ListStatusHistory(ctx context.Context, taskID string) ([]domain.StatusHistoryEntry, error) {
	db := s.db.WithContext(ctx)
	if err := requireTask(db, taskID); err != nil {
		return nil, err
	}
	var rows []statusHistoryRow
	if err := db.Where("task_id = ?", taskID).Order("entered_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.StatusHistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, historyFromRow(r))
	}
	return out, nil
}

func (s *Storage) AddAttachment(ctx context.Context, taskID string, in domain.NewAttachment) (domain.Attachment, error) {
	db := s.db.WithContext(ctx)
	if err := requireTask(db, taskID); err != nil {
		return domain.Attachment{}, err
	}
	row := attachmentRow{
		ID:        uuid.NewString(),
		Type:      string(in.Type),
		Title:     in.Title,
		Content:   in.Content,
		MimeType:  in.MimeType,
		TaskID:    taskID,
		CreatedAt: s.clock(),
	}
	if err := db.Create(&row).Error; err != nil {
		return domain.Attachment{}, translate(err)
	}
	return attachmentFromRow(row), nil
}

func (s *Storage) ListAttachments(ctx context.Context, taskID string) ([]domain.Attachment, error) {
	db := s.db.WithContext(ctx)
	if err := requireTask(db, taskID); err != nil {
		return nil, err
	}
	var rows []attachmentRow
	if err := db.Where("task_id = ?", taskID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Attachment, 0, len(rows))
	for _, r := range rows {
		out = append(out, attachmentFromRow(r))
	}
	return out, nil
}

func (s *Storage) DeleteAttachment(ctx context.Context, taskID, attachmentID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND task_id = ?", attachmentID, taskID).
		Delete(&attachmentRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AddBlocker records that blockerID blocks taskID.
func (s *Storage) AddBlocker(ctx context.Context, taskID, blockerID string) error {
	if taskID == blockerID {
		return fmt.Errorf("%w: a task cannot block itself", domain.ErrInvalid)
	}
	db := s.db.WithContext(ctx)
	for _, id := range []string{taskID, blockerID} {
		if err := requireTask(db, id); err != nil {
			return err
		}
	}
	return translate(db.Create(&taskBlockRow{BlockerID: blockerID, BlockedID: taskID}).Error)
}

func (s *Storage) RemoveBlocker(ctx context.Context, taskID, blockerID string) error {
	res := s.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, taskID).
		Delete(&taskBlockRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
