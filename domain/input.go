package domain

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Nullable distinguishes an absent JSON field from an explicit null.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var v T
	if err := sonic.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// NewTask carries the fields accepted when creating a task.
type NewTask struct {
	Title         string     `json:"title"`
	Description   *string    `json:"description"`
	Status        TaskStatus `json:"status"`
	Priority      Priority   `json:"priority"`
	Origin        Origin     `json:"origin"`
	Tags          []string   `json:"tags"`
	IsActive      bool       `json:"isActive"`
	StoryPoints   *float64   `json:"storyPoints"`
	BlockedReason *string    `json:"blockedReason"`
}

// Normalize applies defaults and validates the request.
func (n *NewTask) Normalize() error {
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		return fmt.Errorf("%w: title required", ErrInvalid)
	}
	if n.Status == "" {
		n.Status = StatusTodo
	}
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	if n.Origin == "" {
		n.Origin = OriginHuman
	}
	if !n.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, n.Status)
	}
	if !n.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, n.Priority)
	}
	if !n.Origin.Valid() {
		return fmt.Errorf("%w: unknown origin %q", ErrInvalid, n.Origin)
	}
	if n.StoryPoints != nil && *n.StoryPoints < 0 {
		return fmt.Errorf("%w: storyPoints must not be negative", ErrInvalid)
	}
	n.Tags = cleanTags(n.Tags)
	return nil
}

// TaskPatch is a partial task update. Nil pointers leave fields untouched;
// nullable fields may be cleared with an explicit JSON null.
type TaskPatch struct {
	Title         *string           `json:"title"`
	Description   Nullable[string]  `json:"description"`
	Status        *TaskStatus       `json:"status"`
	Priority      *Priority         `json:"priority"`
	Origin        *Origin           `json:"origin"`
	Tags          *[]string         `json:"tags"`
	Position      *int              `json:"position"`
	IsActive      *bool             `json:"isActive"`
	StoryPoints   Nullable[float64] `json:"storyPoints"`
	Archived      *bool             `json:"archived"`
	BlockedReason Nullable[string]  `json:"blockedReason"`
}

func (p *TaskPatch) Validate() error {
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return fmt.Errorf("%w: title must not be empty", ErrInvalid)
		}
		p.Title = &t
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, *p.Priority)
	}
	if p.Origin != nil && !p.Origin.Valid() {
		return fmt.Errorf("%w: unknown origin %q", ErrInvalid, *p.Origin)
	}
	if p.StoryPoints.Value != nil && *p.StoryPoints.Value < 0 {
		return fmt.Errorf("%w: storyPoints must not be negative", ErrInvalid)
	}
	if p.Tags != nil {
		tags := cleanTags(*p.Tags)
		p.Tags = &tags
	}
	return nil
}

// SubtaskPatch is a partial subtask update.
type SubtaskPatch struct {
	Title     *string `json:"title"`
	Completed *bool   `json:"completed"`
	Position  *int    `json:"position"`
}

func (p *SubtaskPatch) Validate() error {
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return fmt.Errorf("%w: title must not be empty", ErrInvalid)
		}
		p.Title = &t
	}
	if p.Position != nil && *p.Position < 0 {
		return fmt.Errorf("%w: position must not be negative", ErrInvalid)
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p SubtaskPatch) Empty() bool {
	return p.Title == nil && p.Completed == nil && p.Position == nil
}

type NewAttachment struct {
	Type     AttachmentType `json:"type"`
	Title    *string        `json:"title"`
	Content  string         `json:"content"`
	MimeType *string        `json:"mimeType"`
}

func (a *NewAttachment) Validate() error {
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown attachment type %q", ErrInvalid, a.Type)
	}
	if strings.TrimSpace(a.Content) == "" {
		return fmt.Errorf("%w: content required", ErrInvalid)
	}
	return nil
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	IncludeArchived bool
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
