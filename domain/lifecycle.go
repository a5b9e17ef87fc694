package domain

import "time"

// ApplyStatus moves the task into status to, stamping the lifecycle
// timestamps. It reports whether the status actually changed.
func ApplyStatus(t *Task, to TaskStatus, now time.Time) bool {
	if t.Status == to {
		return false
	}
	from := t.Status
	t.Status = to
	switch to {
	case StatusInProgress:
		if t.StartedAt == nil {
			t.StartedAt = &now
		}
	case StatusNeedsReview:
		t.ReviewedAt = &now
	case StatusDone:
		t.CompletedAt = &now
	}
	if from == StatusDone && to != StatusDone {
		t.CompletedAt = nil
	}
	return true
}

// CloseEntry ends an open history entry at now.
func CloseEntry(e *StatusHistoryEntry, now time.Time) {
	if e.ExitedAt != nil {
		return
	}
	exited := now
	secs := int64(now.Sub(e.EnteredAt) / time.Second)
	if secs < 0 {
		secs = 0
	}
	e.ExitedAt = &exited
	e.Duration = &secs
}

// SetArchived toggles the archival flag and timestamp.
func SetArchived(t *Task, archived bool, now time.Time) bool {
	if t.Archived == archived {
		return false
	}
	t.Archived = archived
	if archived {
		t.ArchivedAt = &now
	} else {
		t.ArchivedAt = nil
	}
	return true
}
