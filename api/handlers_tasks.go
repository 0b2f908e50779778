package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
	"taskboard-api/storage"
)

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := store.Ping(c.Request().Context()); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	}
}

func listTasks(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newListRequestMetrics(logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		ident, ok := identityFrom(c)
		if !ok {
			metrics.SetErrorStage("auth")
			err = authError(c)
			return err
		}

		filter := domain.TaskFilter{
			Search:   c.QueryParam("search"),
			Category: c.QueryParam("category"),
			Sort:     c.QueryParam("sort"),
		}
		metrics.SetFilter(filter)

		fetchStart := time.Now()
		tasks, fetchErr := store.ListTasks(c.Request().Context(), ident.UserID, filter)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			err = serverError(c, logger, fetchErr)
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasks)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func createTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, ok := identityFrom(c)
		if !ok {
			return authError(c)
		}

		var req createTaskRequest
		if err := decodeBody(c, &req, false); err != nil {
			return validationError(c, []string{"request body must be valid JSON"})
		}

		var v violations
		text := validateText(req.Text, &v)
		priority := domain.PriorityMedium
		if req.Priority != "" {
			priority = validatePriority(req.Priority, &v)
		}
		if req.DueDate != nil {
			validateDueDate(*req.DueDate, &v)
		}
		if req.Category != nil {
			validateCategory(*req.Category, &v)
		}
		if len(v) > 0 {
			return validationError(c, v)
		}

		if req.DueDate != nil && dueDateInPast(*req.DueDate) {
			logger.WithFields(log.Fields{
				"request_id": requestID(c),
				"due_date":   *req.DueDate,
			}).Info("task created with a due date in the past")
		}

		task, err := store.CreateTask(c.Request().Context(), ident.UserID, domain.Task{
			Text:     text,
			Priority: priority,
			DueDate:  req.DueDate,
			Category: req.Category,
		})
		if err != nil {
			return serverError(c, logger, err)
		}
		return c.JSON(http.StatusCreated, task)
	}
}

// taskIDParam parses the path segment shared by the id-based and the legacy
// index-based route families. Both accept positive integers only.
func taskIDParam(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func updateTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, ok := identityFrom(c)
		if !ok {
			return authError(c)
		}
		id, ok := taskIDParam(c)
		if !ok {
			return validationError(c, []string{"task id must be a positive integer"})
		}

		var req updateTaskRequest
		if err := decodeBody(c, &req, false); err != nil {
			return validationError(c, []string{"request body must be valid JSON"})
		}

		var v violations
		text := validateText(req.Text, &v)
		patch := domain.TaskPatch{Text: &text, Completed: req.Completed}
		if req.Priority != nil {
			p := validatePriority(*req.Priority, &v)
			patch.Priority = &p
		}
		if req.DueDate != nil {
			validateDueDate(*req.DueDate, &v)
			patch.DueDate = req.DueDate
		}
		if req.Category != nil {
			validateCategory(*req.Category, &v)
			patch.Category = req.Category
		}
		if len(v) > 0 {
			return validationError(c, v)
		}

		targetID, err := resolveTaskID(ctx, store, ident.UserID, id)
		if err != nil {
			return serverError(c, logger, err)
		}
		if targetID == 0 {
			return notFoundError(c, "task")
		}

		// The task can vanish between resolution and the write; a missed
		// write or re-fetch is a 404, not a server fault.
		affected, err := store.UpdateTask(ctx, targetID, ident.UserID, patch)
		if err != nil {
			return serverError(c, logger, err)
		}
		if !affected {
			return notFoundError(c, "task")
		}
		task, err := store.TaskByID(ctx, targetID, ident.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return notFoundError(c, "task")
			}
			return serverError(c, logger, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func patchTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, ok := identityFrom(c)
		if !ok {
			return authError(c)
		}
		id, ok := taskIDParam(c)
		if !ok {
			return validationError(c, []string{"task id must be a positive integer"})
		}

		var req patchTaskRequest
		if err := decodeBody(c, &req, true); err != nil {
			return validationError(c, []string{"request body must be valid JSON"})
		}

		var (
			affected bool
			err      error
		)
		if req.Completed == nil {
			affected, err = store.ToggleTask(ctx, id, ident.UserID)
		} else {
			affected, err = store.SetCompleted(ctx, id, ident.UserID, *req.Completed)
		}
		if err != nil {
			return serverError(c, logger, err)
		}
		if !affected {
			return notFoundError(c, "task")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func deleteTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, ok := identityFrom(c)
		if !ok {
			return authError(c)
		}
		id, ok := taskIDParam(c)
		if !ok {
			return validationError(c, []string{"task id must be a positive integer"})
		}

		targetID, err := resolveTaskID(ctx, store, ident.UserID, id)
		if err != nil {
			return serverError(c, logger, err)
		}
		if targetID == 0 {
			return notFoundError(c, "task")
		}

		affected, err := store.DeleteTask(ctx, targetID, ident.UserID)
		if err != nil {
			return serverError(c, logger, err)
		}
		if !affected {
			return notFoundError(c, "task")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func bulkDeleteTasks(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, ok := identityFrom(c)
		if !ok {
			return authError(c)
		}

		var req bulkIDsRequest
		if err := decodeBody(c, &req, false); err != nil {
			return validationError(c, []string{"request body must be valid JSON"})
		}
		if len(req.IDs) == 0 {
			return validationError(c, []string{"ids must be a non-empty array"})
		}

		deleted, err := store.DeleteTasks(c.Request().Context(), ident.UserID, sanitizeIDs(req.IDs))
		if err != nil {
			return serverError(c, logger, err)
		}
		return c.JSON(http.StatusOK, deletedResponse{Deleted: deleted})
	}
}

func bulkCompleteTasks(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, ok := identityFrom(c)
		if !ok {
			return authError(c)
		}

		var req bulkIDsRequest
		if err := decodeBody(c, &req, false); err != nil {
			return validationError(c, []string{"request body must be valid JSON"})
		}
		var v violations
		if len(req.IDs) == 0 {
			v.add("ids must be a non-empty array")
		}
		if req.Completed == nil {
			v.add("completed is required and must be a boolean")
		}
		if len(v) > 0 {
			return validationError(c, v)
		}

		updated, err := store.CompleteTasks(c.Request().Context(), ident.UserID, sanitizeIDs(req.IDs), *req.Completed)
		if err != nil {
			return serverError(c, logger, err)
		}
		return c.JSON(http.StatusOK, updatedResponse{Updated: updated})
	}
}

func reorderTasks(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, ok := identityFrom(c)
		if !ok {
			return authError(c)
		}

		var req reorderRequest
		if err := decodeBody(c, &req, false); err != nil {
			return validationError(c, []string{"request body must be valid JSON"})
		}
		if len(req.TaskOrders) == 0 {
			return validationError(c, []string{"taskOrders must be a non-empty array"})
		}

		ids := make([]int64, 0, len(req.TaskOrders))
		for _, o := range req.TaskOrders {
			if o.ID <= 0 {
				return validationError(c, []string{"taskOrders entries must carry positive task ids"})
			}
			ids = append(ids, o.ID)
		}

		// Reorder writes are not user-scoped in storage, so every id must be
		// proven owned before the batch runs.
		owned, err := store.OwnedIDs(ctx, ident.UserID, ids)
		if err != nil {
			return serverError(c, logger, err)
		}
		for _, id := range ids {
			if !owned[id] {
				return validationError(c, []string{"taskOrders references tasks that do not exist"})
			}
		}

		if err := store.ReorderTasks(ctx, req.TaskOrders); err != nil {
			if errors.Is(err, storage.ErrReorderConflict) {
				return validationError(c, []string{"taskOrders references tasks that do not exist"})
			}
			return serverError(c, logger, err)
		}
		return c.JSON(http.StatusOK, reorderedResponse{Reordered: len(req.TaskOrders)})
	}
}

func listCategories(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, ok := identityFrom(c)
		if !ok {
			return authError(c)
		}
		categories, err := store.ListCategories(c.Request().Context(), ident.UserID)
		if err != nil {
			return serverError(c, logger, err)
		}
		return c.JSON(http.StatusOK, categories)
	}
}
