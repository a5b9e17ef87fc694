package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/finchinslc/openclaw-board/broadcast"
	"github.com/finchinslc/openclaw-board/domain"
)

func listComments(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		comments, err := s.store.ListComments(c.Request().Context(), c.Param("id"))
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		return c.JSON(http.StatusOK, comments)
	}
}

func createComment(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createCommentRequest
		if err := decodeBody(c, &req); err != nil {
			return badBody(c)
		}
		content := strings.TrimSpace(req.Content)
		if content == "" {
			return badRequest(c, msgContentRequired)
		}
		ctx := c.Request().Context()
		taskID := c.Param("id")
		comment, err := s.store.AddComment(ctx, taskID, content, actorFrom(c))
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		s.publishTask(ctx, taskID)
		return c.JSON(http.StatusCreated, comment)
	}
}

func listAttachments(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		attachments, err := s.store.ListAttachments(c.Request().Context(), c.Param("id"))
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		return c.JSON(http.StatusOK, attachments)
	}
}

func createAttachment(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in domain.NewAttachment
		if err := decodeBody(c, &in); err != nil {
			return badBody(c)
		}
		if err := in.Validate(); err != nil {
			return badRequest(c, invalidMessage(err))
		}
		ctx := c.Request().Context()
		taskID := c.Param("id")
		attachment, err := s.store.AddAttachment(ctx, taskID, in)
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		s.publishTask(ctx, taskID)
		return c.JSON(http.StatusCreated, attachment)
	}
}

func deleteAttachment(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		attachmentID := strings.TrimSpace(c.QueryParam("attachmentId"))
		if attachmentID == "" {
			return badRequest(c, msgAttachmentIDReq)
		}
		ctx := c.Request().Context()
		taskID := c.Param("id")
		if err := s.store.DeleteAttachment(ctx, taskID, attachmentID); err != nil {
			return s.storeError(c, err, msgAttachmentNotFound, msgInternal)
		}
		s.publishTask(ctx, taskID)
		return c.JSON(http.StatusOK, successResponse{Success: true})
	}
}

func addBlocker(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req addBlockerRequest
		if err := decodeBody(c, &req); err != nil {
			return badBody(c)
		}
		blockerID := strings.TrimSpace(req.BlockerID)
		if blockerID == "" {
			return badRequest(c, msgBlockerIDRequired)
		}
		ctx := c.Request().Context()
		taskID := c.Param("id")
		if err := s.store.AddBlocker(ctx, taskID, blockerID); err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgAlreadyBlocked)
		}
		task, err := s.store.GetTask(ctx, taskID)
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		s.publish(broadcast.EventTaskUpdated, task)
		s.publishTask(ctx, blockerID)
		return c.JSON(http.StatusCreated, task)
	}
}

func removeBlocker(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		blockerID := strings.TrimSpace(c.QueryParam("blockerId"))
		if blockerID == "" {
			return badRequest(c, msgBlockerIDRequired)
		}
		ctx := c.Request().Context()
		taskID := c.Param("id")
		if err := s.store.RemoveBlocker(ctx, taskID, blockerID); err != nil {
			return s.storeError(c, err, msgBlockerNotFound, msgInternal)
		}
		s.publishTask(ctx, taskID)
		s.publishTask(ctx, blockerID)
		return c.JSON(http.StatusOK, successResponse{Success: true})
	}
}

func listActivities(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		activities, err := s.store.ListActivities(c.Request().Context(), c.Param("id"))
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		return c.JSON(http.StatusOK, activities)
	}
}

func listHistory(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		history, err := s.store.ListStatusHistory(c.Request().Context(), c.Param("id"))
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		return c.JSON(http.StatusOK, history)
	}
}
