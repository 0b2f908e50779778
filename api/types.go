package api

import (
	"context"

	"taskboard-api/domain"
)

// Storage abstracts persistence for handlers. Both the plain postgres store
// and its caching wrapper satisfy it.
type Storage interface {
	Ping(ctx context.Context) error

	ListTasks(ctx context.Context, userID int64, f domain.TaskFilter) ([]domain.Task, error)
	TaskByID(ctx context.Context, id, userID int64) (domain.Task, error)
	CreateTask(ctx context.Context, userID int64, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, id, userID int64, p domain.TaskPatch) (bool, error)
	DeleteTask(ctx context.Context, id, userID int64) (bool, error)
	ToggleTask(ctx context.Context, id, userID int64) (bool, error)
	SetCompleted(ctx context.Context, id, userID int64, completed bool) (bool, error)
	DeleteTasks(ctx context.Context, userID int64, ids []int64) (int64, error)
	CompleteTasks(ctx context.Context, userID int64, ids []int64, completed bool) (int64, error)
	OwnedIDs(ctx context.Context, userID int64, ids []int64) (map[int64]bool, error)
	ReorderTasks(ctx context.Context, orders []domain.TaskOrder) error
	ListCategories(ctx context.Context, userID int64) ([]string, error)

	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	UserByID(ctx context.Context, id int64) (domain.User, error)
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	UserByUsername(ctx context.Context, username string) (domain.User, error)
}

const maxRequestBody = 64 * 1024 // 64 KiB

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

type userResponse struct {
	User domain.User `json:"user"`
}

type createTaskRequest struct {
	Text     string  `json:"text"`
	Priority string  `json:"priority"`
	DueDate  *string `json:"due_date"`
	Category *string `json:"category"`
}

type updateTaskRequest struct {
	Text      string  `json:"text"`
	Priority  *string `json:"priority"`
	DueDate   *string `json:"due_date"`
	Category  *string `json:"category"`
	Completed *bool   `json:"completed"`
}

type patchTaskRequest struct {
	Completed *bool `json:"completed"`
}

type bulkIDsRequest struct {
	IDs       []int64 `json:"ids"`
	Completed *bool   `json:"completed"`
}

type reorderRequest struct {
	TaskOrders []domain.TaskOrder `json:"taskOrders"`
}

type bulkIndicesRequest struct {
	Indices   []int `json:"indices"`
	Completed *bool `json:"completed"`
}

type deletedResponse struct {
	Deleted int64 `json:"deleted"`
}

type updatedResponse struct {
	Updated int64 `json:"updated"`
}

type reorderedResponse struct {
	Reordered int `json:"reordered"`
}
