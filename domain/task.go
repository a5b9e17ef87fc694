package domain

import "time"

// TaskStatus is the board column a task lives in.
type TaskStatus string

const (
	StatusTodo        TaskStatus = "TODO"
	StatusInProgress  TaskStatus = "IN_PROGRESS"
	StatusNeedsReview TaskStatus = "NEEDS_REVIEW"
	StatusDone        TaskStatus = "DONE"
)

// Statuses lists every status in board order.
var Statuses = []TaskStatus{StatusTodo, StatusInProgress, StatusNeedsReview, StatusDone}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusNeedsReview, StatusDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Origin records whether a human or an agent filed the task.
type Origin string

const (
	OriginHuman Origin = "HUMAN"
	OriginAI    Origin = "AI"
)

func (o Origin) Valid() bool {
	return o == OriginHuman || o == OriginAI
}

// Actor identifies who performed an activity.
type Actor string

const (
	ActorAgent Actor = "agent"
	ActorHuman Actor = "human"
)

// Task is the aggregate root of the board.
type Task struct {
	ID            string       `json:"id"`
	TaskNumber    int          `json:"taskNumber"`
	Title         string       `json:"title"`
	Description   *string      `json:"description"`
	Status        TaskStatus   `json:"status"`
	Priority      Priority     `json:"priority"`
	Origin        Origin       `json:"origin"`
	Tags          []string     `json:"tags"`
	Position      int          `json:"position"`
	IsActive      bool         `json:"isActive"`
	StoryPoints   *float64     `json:"storyPoints"`
	Archived      bool         `json:"archived"`
	ArchivedAt    *time.Time   `json:"archivedAt"`
	BlockedReason *string      `json:"blockedReason"`
	StartedAt     *time.Time   `json:"startedAt"`
	ReviewedAt    *time.Time   `json:"reviewedAt"`
	CompletedAt   *time.Time   `json:"completedAt"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	Comments      []Comment    `json:"comments"`
	Subtasks      []Subtask    `json:"subtasks"`
	Attachments   []Attachment `json:"attachments,omitempty"`
	Activities    []Activity   `json:"activities,omitempty"`
	BlockedBy     []TaskRef    `json:"blockedBy,omitempty"`
	Blocking      []TaskRef    `json:"blocking,omitempty"`
}

// TaskRef points at another task in a blocking relation.
type TaskRef struct {
	ID         string     `json:"id"`
	TaskNumber int        `json:"taskNumber"`
	Title      string     `json:"title"`
	Status     TaskStatus `json:"status"`
}

// Subtask is an ordered checklist item owned by a task.
type Subtask struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	Position  int       `json:"position"`
	TaskID    string    `json:"taskId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	TaskID    string    `json:"taskId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Activity is one entry of a task's audit trail.
type Activity struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Actor     Actor     `json:"actor"`
	Field     *string   `json:"field"`
	OldValue  *string   `json:"oldValue"`
	NewValue  *string   `json:"newValue"`
	TaskID    string    `json:"taskId"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	ActivityCreated       = "created"
	ActivityFieldUpdated  = "field_updated"
	ActivityStatusChanged = "status_changed"
	ActivityCommented     = "commented"
	ActivityArchived      = "archived"
	ActivityUnarchived    = "unarchived"
)

// StatusHistoryEntry measures how long a task stayed in one status.
// Duration is in seconds and is set once the entry is closed.
type StatusHistoryEntry struct {
	ID        string     `json:"id"`
	Status    TaskStatus `json:"status"`
	EnteredAt time.Time  `json:"enteredAt"`
	ExitedAt  *time.Time `json:"exitedAt"`
	Duration  *int64     `json:"duration"`
	TaskID    string     `json:"taskId"`
}

type AttachmentType string

const (
	AttachmentLink AttachmentType = "link"
	AttachmentCode AttachmentType = "code"
	AttachmentNote AttachmentType = "note"
	AttachmentFile AttachmentType = "file"
)

func (a AttachmentType) Valid() bool {
	switch a {
	case AttachmentLink, AttachmentCode, AttachmentNote, AttachmentFile:
		return true
	}
	return false
}

type Attachment struct {
	ID        string         `json:"id"`
	Type      AttachmentType `json:"type"`
	Title     *string        `json:"title"`
	Content   string         `json:"content"`
	MimeType  *string        `json:"mimeType"`
	TaskID    string         `json:"taskId"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Column groups tasks of one status for rendering the board.
type Column struct {
	ID    TaskStatus `json:"id"`
	Title string     `json:"title"`
	Tasks []Task     `json:"tasks"`
}

type BoardMetrics struct {
	TotalTasks         int      `json:"totalTasks"`
	CompletedTasks     int      `json:"completedTasks"`
	TotalPoints        float64  `json:"totalPoints"`
	CompletedPoints    float64  `json:"completedPoints"`
	AvgCycleTimeHours  *float64 `json:"avgCycleTimeHours"`
	VelocityLast7Days  float64  `json:"velocityLast7Days"`
	VelocityLast30Days float64  `json:"velocityLast30Days"`
}
