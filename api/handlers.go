package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/finchinslc/openclaw-board/broadcast"
	"github.com/finchinslc/openclaw-board/domain"
	"github.com/finchinslc/openclaw-board/webhook"
)

const archiveTimeout = 5 * time.Second

type server struct {
	store    Store
	bc       broadcast.Broadcaster
	notifier webhook.Notifier
	archiver Archiver
	deduper  Deduper
	logger   *log.Logger
	now      func() time.Time
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, d Deps) {
	logger := d.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	bc := d.Broadcaster
	if bc == nil {
		bc = broadcast.Global{}
	}
	s := &server{
		store:    d.Store,
		bc:       bc,
		notifier: d.Notifier,
		archiver: d.Archiver,
		deduper:  d.Deduper,
		logger:   logger,
		now:      time.Now,
	}

	e.JSONSerializer = JSONSerializer{}
	e.GET("/healthz", healthz(s))

	g := e.Group("/api", observe(logger))
	if d.Auth != nil {
		g.Use(requireAuth(d.Auth))
	}

	g.GET("/tasks", listTasks(s))
	g.POST("/tasks", createTask(s))
	g.GET("/tasks/:id", getTask(s))
	g.PATCH("/tasks/:id", updateTask(s))
	g.DELETE("/tasks/:id", deleteTask(s))

	g.GET("/tasks/:id/subtasks", listSubtasks(s))
	g.POST("/tasks/:id/subtasks", createSubtask(s))
	g.PATCH("/tasks/:id/subtasks", updateSubtask(s))
	g.DELETE("/tasks/:id/subtasks", deleteSubtask(s))

	g.GET("/tasks/:id/comments", listComments(s))
	g.POST("/tasks/:id/comments", createComment(s))
	g.GET("/tasks/:id/attachments", listAttachments(s))
	g.POST("/tasks/:id/attachments", createAttachment(s))
	g.DELETE("/tasks/:id/attachments", deleteAttachment(s))
	g.POST("/tasks/:id/blockers", addBlocker(s))
	g.DELETE("/tasks/:id/blockers", removeBlocker(s))
	g.GET("/tasks/:id/activities", listActivities(s))
	g.GET("/tasks/:id/history", listHistory(s))
	g.GET("/tasks/:id/description", renderDescription(s))

	g.GET("/board", getBoard(s))
	g.GET("/metrics", getMetrics(s))
	g.POST("/render/markdown", renderMarkdown())
	g.GET("/theme/toggle", themeToggle())

	if d.Hub != nil {
		g.GET("/ws", d.Hub.ServeWS)
		g.GET("/events", d.Hub.ServeSSE)
	}
}

func healthz(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.store.Ping(c.Request().Context()); err != nil {
			s.logger.WithError(err).Warn("health check failed")
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	}
}

func listTasks(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		filter := domain.TaskFilter{IncludeArchived: c.QueryParam("archived") == "true"}
		tasks, err := s.store.ListTasks(c.Request().Context(), filter)
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		return c.JSON(http.StatusOK, tasks)
	}
}

func createTask(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in domain.NewTask
		if err := decodeBody(c, &in); err != nil {
			return badBody(c)
		}
		if err := in.Normalize(); err != nil {
			return badRequest(c, invalidMessage(err))
		}
		ctx := c.Request().Context()
		key, ok := idempotencyKey(c.Request().Header.Get(HeaderIdempotencyKey), UserID(c))
		if !ok {
			return badRequest(c, msgBadIdempotencyKey)
		}
		key, done, err := s.claimKey(c, key)
		if done {
			return err
		}
		task, err := s.store.CreateTask(ctx, in, actorFrom(c))
		if err != nil {
			s.releaseKey(ctx, key)
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		s.completeKey(ctx, key, task.ID)
		s.notify(webhook.EventTaskCreated, task, nil)
		s.publish(broadcast.EventTaskCreated, task)
		return c.JSON(http.StatusCreated, task)
	}
}

// claimKey reserves an idempotency key. When done is true the request has
// already been answered, either with the task a previous request created or
// with an error. The returned key is "" when deduplication is off.
func (s *server) claimKey(c echo.Context, key string) (string, bool, error) {
	if key == "" || s.deduper == nil {
		return "", false, nil
	}
	ctx := c.Request().Context()
	claimed, taskID, err := s.deduper.Claim(ctx, key)
	if err != nil {
		s.logger.WithError(err).Warn("idempotency claim failed, creating without deduplication")
		return "", false, nil
	}
	if claimed {
		return key, false, nil
	}
	if taskID == "" {
		setErrorStage(c, "idempotency")
		return "", true, writeError(c, http.StatusConflict, msgRequestInFlight)
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return "", true, s.storeError(c, err, msgTaskNotFound, msgInternal)
	}
	return "", true, c.JSON(http.StatusOK, task)
}

func (s *server) completeKey(ctx context.Context, key, taskID string) {
	if key == "" {
		return
	}
	if err := s.deduper.Complete(ctx, key, taskID); err != nil {
		s.logger.WithError(err).WithField("taskId", taskID).Warn("record idempotency key failed")
	}
}

func (s *server) releaseKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.deduper.Release(ctx, key); err != nil {
		s.logger.WithError(err).Warn("release idempotency key failed")
	}
}

func getTask(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		task, err := s.store.GetTask(c.Request().Context(), c.Param("id"))
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func updateTask(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var patch domain.TaskPatch
		if err := decodeBody(c, &patch); err != nil {
			return badBody(c)
		}
		if err := patch.Validate(); err != nil {
			return badRequest(c, invalidMessage(err))
		}
		ctx := c.Request().Context()
		_, after, changes, err := s.store.UpdateTask(ctx, c.Param("id"), patch, actorFrom(c))
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		if len(changes) > 0 {
			event := webhook.EventTaskUpdated
			if domain.HasField(changes, "status") {
				event = webhook.EventTaskStatusChanged
			}
			s.notify(event, after, changes)
			s.publish(broadcast.EventTaskUpdated, after)
			if domain.HasField(changes, "archived") {
				s.syncArchive(ctx, after)
			}
		}
		return c.JSON(http.StatusOK, after)
	}
}

func deleteTask(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		task, err := s.store.DeleteTask(c.Request().Context(), c.Param("id"))
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		s.notify(webhook.EventTaskDeleted, task, nil)
		s.publish(broadcast.EventTaskDeleted, deletedTaskPayload{ID: task.ID})
		return c.JSON(http.StatusOK, successResponse{Success: true})
	}
}

func getBoard(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		tasks, err := s.store.ListTasks(c.Request().Context(), domain.TaskFilter{})
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		return c.JSON(http.StatusOK, domain.Columns(tasks))
	}
}

func getMetrics(s *server) echo.HandlerFunc {
	return func(c echo.Context) error {
		tasks, err := s.store.ListTasks(c.Request().Context(), domain.TaskFilter{})
		if err != nil {
			return s.storeError(c, err, msgTaskNotFound, msgInternal)
		}
		return c.JSON(http.StatusOK, domain.ComputeMetrics(tasks, s.now().UTC()))
	}
}

func (s *server) notify(event webhook.Event, task domain.Task, changes []domain.Change) {
	if s.notifier == nil {
		return
	}
	s.notifier.Send(event, task.Summary(), changes)
}

// publish hands payload to the broadcaster. A misbehaving broadcaster never
// affects the response.
func (s *server) publish(event string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(log.Fields{"event": event, "panic": r}).Error("broadcast panicked")
		}
	}()
	s.bc.Broadcast(event, payload)
}

// publishTask re-reads the task and broadcasts it as updated.
func (s *server) publishTask(ctx context.Context, taskID string) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		s.logger.WithError(err).WithField("taskId", taskID).Warn("refresh task for broadcast failed")
		return
	}
	s.publish(broadcast.EventTaskUpdated, task)
}

// syncArchive mirrors the archived flag into the archive sink.
func (s *server) syncArchive(ctx context.Context, task domain.Task) {
	if s.archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	var err error
	if task.Archived {
		err = s.archiver.Archive(ctx, task)
	} else {
		err = s.archiver.Restore(ctx, task.ID)
	}
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"taskId":   task.ID,
			"archived": task.Archived,
		}).Error("archive sync failed")
	}
}
