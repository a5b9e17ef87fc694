package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/finchinslc/openclaw-board/domain"
)

func listSubtasks(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		subtasks, err := s.store.ListSubtasks(c.Request().Context(), c.Param("id"))
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		return c.JSON(http.StatusOK, subtasks)
	}
}

func createSubtask(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createSubtaskRequest
		if err := decodeBodyLenient(c, &req); err != nil {
			return badBody(c)
		}
		title := strings.TrimSpace(req.Title)
		if title == "" {
			return badRequest(c, msgTitleRequired)
		}
		ctx := c.Request().Context()
		taskID := c.Param("id")
		subtask, err := s.store.CreateSubtask(ctx, taskID, title)
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgPositionTaken)
		}
		s.publishTask(ctx, taskID)
		return c.JSON(http.StatusCreated, subtask)
	}
}

func updateSubtask(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req updateSubtaskRequest
		if err := decodeBody(c, &req); err != nil {
			return badBody(c)
		}
		subtaskID := strings.TrimSpace(req.SubtaskID)
		if subtaskID == "" {
			return badRequest(c, msgSubtaskIDRequired)
		}
		patch := domain.SubtaskPatch{Title: req.Title, Completed: req.Completed, Position: req.Position}
		if err := patch.Validate(); err != nil {
			return badRequest(c, invalidMessage(err))
		}
		ctx := c.Request().Context()
		taskID := c.Param("id")
		subtask, err := s.store.UpdateSubtask(ctx, taskID, subtaskID, patch)
		if err != nil {
			return s.storeError(c, err, msgSubtaskNotFound, msgPositionTaken)
		}
		s.publishTask(ctx, taskID)
		return c.JSON(http.StatusOK, subtask)
	}
}

func deleteSubtask(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		subtaskID := strings.TrimSpace(c.QueryParam("subtaskId"))
		if subtaskID == "" {
			return badRequest(c, msgSubtaskIDRequired)
		}
		ctx := c.Request().Context()
		taskID := c.Param("id")
		if err := s.store.DeleteSubtask(ctx, taskID, subtaskID); err != nil {
			return s.storeError(c, err, msgSubtaskNotFound, msgInternal)
		}
		s.publishTask(ctx, taskID)
		return c.JSON(http.StatusOK, successResponse{Success: true})
	}
}
