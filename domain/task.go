package domain

import "time"

// Priority classifies how urgent a task is.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the accepted priority values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank maps a priority to its sort rank. Unknown values rank as medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 3
	}
	return 2
}

// Task represents a single work item owned by a user.
type Task struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Priority  Priority  `json:"priority"`
	DueDate   *string   `json:"due_date"`
	Category  *string   `json:"category"`
	Completed bool      `json:"completed"`
	SortOrder int       `json:"sort_order"`
	UserID    int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskOrder assigns a manual sort position to a task.
type TaskOrder struct {
	ID        int64 `json:"id"`
	SortOrder int   `json:"sort_order"`
}

// TaskFilter narrows and orders a task listing.
type TaskFilter struct {
	Search   string
	Category string
	Sort     string
}

// TaskPatch carries a partial task update. Nil fields are left unchanged.
type TaskPatch struct {
	Text      *string
	Priority  *Priority
	DueDate   *string
	Category  *string
	Completed *bool
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Text == nil && p.Priority == nil && p.DueDate == nil && p.Category == nil && p.Completed == nil
}
