package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
	"taskboard-api/storage"
)

// The legacy route family addresses tasks by their 1-based position in the
// current default-ordered listing instead of by id. Positions are resolved
// against a fresh fetch immediately before mutating, which is NOT safe under
// concurrent modification: another request may shift positions between the
// fetch and the write. The id-based routes are the stable contract; these
// exist for clients built against the numbered-list interface.

// resolveTaskID gives id-based routes precedence over positional ones: when a
// task with the given id exists and is owned by the user it wins; otherwise
// the value is retried as a 1-based position in the default-sorted list.
// Returns 0 when neither interpretation matches.
func resolveTaskID(ctx context.Context, store Storage, userID, idOrIndex int64) (int64, error) {
	_, err := store.TaskByID(ctx, idOrIndex, userID)
	if err == nil {
		return idOrIndex, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}
	return resolveIndex(ctx, store, userID, int(idOrIndex))
}

// resolveIndex maps a 1-based list position to a task id, or 0 when the
// position is out of range.
func resolveIndex(ctx context.Context, store Storage, userID int64, index int) (int64, error) {
	if index < 1 {
		return 0, nil
	}
	tasks, err := store.ListTasks(ctx, userID, domain.TaskFilter{})
	if err != nil {
		return 0, err
	}
	if index > len(tasks) {
		return 0, nil
	}
	return tasks[index-1].ID, nil
}

func toggleTaskByIndex(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, ok := identityFrom(c)
		if !ok {
			return authError(c)
		}
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil || index < 1 {
			return validationError(c, []string{"task index must be a positive integer"})
		}

		id, err := resolveIndex(ctx, store, ident.UserID, index)
		if err != nil {
			return serverError(c, logger, err)
		}
		if id == 0 {
			return notFoundError(c, "task")
		}

		affected, err := store.ToggleTask(ctx, id, ident.UserID)
		if err != nil {
			return serverError(c, logger, err)
		}
		if !affected {
			return notFoundError(c, "task")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// resolveIndices maps the valid 1-based positions to task ids against one
// fresh listing, silently dropping out-of-range and non-positive entries.
func resolveIndices(ctx context.Context, store Storage, userID int64, indices []int) ([]int64, error) {
	tasks, err := store.ListTasks(ctx, userID, domain.TaskFilter{})
	if err != nil {
		return nil, err
	}
	ids := []int64{}
	for _, idx := range indices {
		if idx >= 1 && idx <= len(tasks) {
			ids = append(ids, tasks[idx-1].ID)
		}
	}
	return ids, nil
}

func bulkDeleteByIndex(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, ok := identityFrom(c)
		if !ok {
			return authError(c)
		}

		var req bulkIndicesRequest
		if err := decodeBody(c, &req, false); err != nil {
			return validationError(c, []string{"request body must be valid JSON"})
		}
		if len(req.Indices) == 0 {
			return validationError(c, []string{"indices must be a non-empty array"})
		}

		ids, err := resolveIndices(ctx, store, ident.UserID, req.Indices)
		if err != nil {
			return serverError(c, logger, err)
		}
		deleted, err := store.DeleteTasks(ctx, ident.UserID, ids)
		if err != nil {
			return serverError(c, logger, err)
		}
		return c.JSON(http.StatusOK, deletedResponse{Deleted: deleted})
	}
}

func bulkCompleteByIndex(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ident, ok := identityFrom(c)
		if !ok {
			return authError(c)
		}

		var req bulkIndicesRequest
		if err := decodeBody(c, &req, false); err != nil {
			return validationError(c, []string{"request body must be valid JSON"})
		}
		if len(req.Indices) == 0 {
			return validationError(c, []string{"indices must be a non-empty array"})
		}
		completed := true
		if req.Completed != nil {
			completed = *req.Completed
		}

		ids, err := resolveIndices(ctx, store, ident.UserID, req.Indices)
		if err != nil {
			return serverError(c, logger, err)
		}
		updated, err := store.CompleteTasks(ctx, ident.UserID, ids, completed)
		if err != nil {
			return serverError(c, logger, err)
		}
		return c.JSON(http.StatusOK, updatedResponse{Updated: updated})
	}
}
