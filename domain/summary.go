package domain

import "slices"

// TaskSummary is the minimal task projection sent to external systems.
// Nested collections and timestamps are deliberately left out.
type TaskSummary struct {
	ID          string   `json:"id"`
	TaskNumber  int      `json:"taskNumber"`
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Origin      string   `json:"origin"`
	Tags        []string `json:"tags"`
	IsActive    bool     `json:"isActive"`
	StoryPoints *float64 `json:"storyPoints"`
}

// Summary projects the task for webhook payloads.
func (t Task) Summary() TaskSummary {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return TaskSummary{
		ID:          t.ID,
		TaskNumber:  t.TaskNumber,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Origin:      string(t.Origin),
		Tags:        tags,
		IsActive:    t.IsActive,
		StoryPoints: t.StoryPoints,
	}
}

// Change records a single field transition.
type Change struct {
	Field    string `json:"field"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

// Diff lists the user-visible fields that differ between before and after,
// in a stable order. It returns an empty, non-nil slice when nothing changed.
func Diff(before, after Task) []Change {
	changes := []Change{}
	add := func(field string, oldV, newV any) {
		changes = append(changes, Change{Field: field, OldValue: oldV, NewValue: newV})
	}
	if before.Title != after.Title {
		add("title", before.Title, after.Title)
	}
	if !equalPtr(before.Description, after.Description) {
		add("description", derefOrNil(before.Description), derefOrNil(after.Description))
	}
	if before.Status != after.Status {
		add("status", string(before.Status), string(after.Status))
	}
	if before.Priority != after.Priority {
		add("priority", string(before.Priority), string(after.Priority))
	}
	if before.Origin != after.Origin {
		add("origin", string(before.Origin), string(after.Origin))
	}
	if !slices.Equal(before.Tags, after.Tags) {
		add("tags", nonNilTags(before.Tags), nonNilTags(after.Tags))
	}
	if before.Position != after.Position {
		add("position", before.Position, after.Position)
	}
	if before.IsActive != after.IsActive {
		add("isActive", before.IsActive, after.IsActive)
	}
	if !equalPtr(before.StoryPoints, after.StoryPoints) {
		add("storyPoints", derefOrNil(before.StoryPoints), derefOrNil(after.StoryPoints))
	}
	if before.Archived != after.Archived {
		add("archived", before.Archived, after.Archived)
	}
	if !equalPtr(before.BlockedReason, after.BlockedReason) {
		add("blockedReason", derefOrNil(before.BlockedReason), derefOrNil(after.BlockedReason))
	}
	return changes
}

// HasField reports whether a change for field is present.
func HasField(changes []Change, field string) bool {
	for _, c := range changes {
		if c.Field == field {
			return true
		}
	}
	return false
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func derefOrNil[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
