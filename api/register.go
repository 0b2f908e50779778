package api

import (
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Register wires up all API routes on the provided Echo instance. gate guards
// the protected routes; sessions issues tokens for register/login regardless
// of which gate the deployment selected.
func Register(e *echo.Echo, store Storage, gate Authenticator, sessions *SessionAuth, bcryptCost int, logger *log.Logger) {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}

	e.GET("/healthz", healthz(store))
	e.POST("/auth/register", registerUser(store, sessions, bcryptCost, logger))
	e.POST("/auth/login", loginUser(store, sessions, logger))

	g := e.Group("", RequireAuth(gate, logger))
	g.GET("/auth/me", currentUser(store, logger))

	g.GET("/tasks", listTasks(store, logger))
	g.POST("/tasks", createTask(store, logger))
	g.PUT("/tasks/:id", updateTask(store, logger))
	g.PATCH("/tasks/:id", patchTask(store, logger))
	g.DELETE("/tasks/:id", deleteTask(store, logger))
	g.DELETE("/tasks", bulkDeleteTasks(store, logger))
	g.PATCH("/tasks", bulkCompleteTasks(store, logger))
	g.POST("/tasks/reorder", reorderTasks(store, logger))
	g.GET("/categories", listCategories(store, logger))

	// Numbered-list compatibility routes.
	g.PATCH("/tasks/:index/toggle", toggleTaskByIndex(store, logger))
	g.POST("/tasks/bulk-delete", bulkDeleteByIndex(store, logger))
	g.POST("/tasks/bulk-complete", bulkCompleteByIndex(store, logger))
}
