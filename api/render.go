package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/finchinslc/openclaw-board/ui"
)

func renderMarkdown() echo.HandlerFunc {
	return func(c echo.Context) error {
		var req renderMarkdownRequest
		if err := decodeBody(c, &req); err != nil {
			return badBody(c)
		}
		html := ui.RenderMarkdown(req.Source)
		if req.ClassName != "" {
			html = ui.MarkdownBlock(req.Source, req.ClassName)
		}
		return c.JSON(http.StatusOK, renderMarkdownResponse{HTML: html})
	}
}

// renderDescription serves the task description as an HTML fragment.
func renderDescription(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		task, err := s.store.GetTask(c.Request().Context(), c.Param("id"))
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		src := ""
		if task.Description != nil {
			src = *task.Description
		}
		return c.HTML(http.StatusOK, ui.MarkdownBlock(src, c.QueryParam("class")))
	}
}

func themeToggle() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, ui.Toggle(c.QueryParam("resolved")))
	}
}
