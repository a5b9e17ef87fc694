package domain

import "time"

// Apply writes the patch onto t. Status and archival changes go through
// ApplyStatus and SetArchived so lifecycle timestamps stay consistent.
func (p TaskPatch) Apply(t *Task, now time.Time) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description.Set {
		t.Description = emptyToNil(p.Description.Value)
	}
	if p.Status != nil {
		ApplyStatus(t, *p.Status, now)
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Origin != nil {
		t.Origin = *p.Origin
	}
	if p.Tags != nil {
		t.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.Position != nil {
		t.Position = *p.Position
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	if p.StoryPoints.Set {
		t.StoryPoints = p.StoryPoints.Value
	}
	if p.Archived != nil {
		SetArchived(t, *p.Archived, now)
	}
	if p.BlockedReason.Set {
		t.BlockedReason = emptyToNil(p.BlockedReason.Value)
	}
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
