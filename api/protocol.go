package api

const (
	maxBodySize = 256 * 1024 // 256 KiB

	// HeaderActor marks requests made by an agent rather than a person.
	HeaderActor = "X-OpenClaw-Actor"
)

const (
	msgInvalidBody        = "invalid body"
	msgInternal           = "internal error"
	msgTaskNotFound       = "task not found"
	msgSubtaskNotFound    = "subtask not found"
	msgAttachmentNotFound = "attachment not found"
	msgBlockerNotFound    = "blocker not found"
	msgTitleRequired      = "title required"
	msgContentRequired    = "content required"
	msgSubtaskIDRequired  = "subtaskId required"
	msgAttachmentIDReq    = "attachmentId required"
	msgBlockerIDRequired  = "blockerId required"
	msgPositionTaken      = "position already taken"
	msgAlreadyBlocked     = "already blocked"
	msgUnauthorized       = "unauthorized"
	msgBadIdempotencyKey  = "idempotency key too long"
	msgRequestInFlight    = "request with this idempotency key is in progress"
)

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type createSubtaskRequest struct {
	Title string `json:"title"`
}

// updateSubtaskRequest carries the subtask id in the body next to the patch.
type updateSubtaskRequest struct {
	SubtaskID string  `json:"subtaskId"`
	Title     *string `json:"title"`
	Completed *bool   `json:"completed"`
	Position  *int    `json:"position"`
}

type createCommentRequest struct {
	Content string `json:"content"`
}

type addBlockerRequest struct {
	BlockerID string `json:"blockerId"`
}

type renderMarkdownRequest struct {
	Source    string `json:"source"`
	ClassName string `json:"className"`
}

type renderMarkdownResponse struct {
	HTML string `json:"html"`
}

type deletedTaskPayload struct {
	ID string `json:"id"`
}
