package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"taskboard-api/domain"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when a uniqueness constraint is violated.
	ErrDuplicate = errors.New("storage: duplicate")
	// ErrReorderConflict is returned when a reorder batch references a
	// task that does not exist; nothing from the batch is applied.
	ErrReorderConflict = errors.New("storage: reorder batch references missing task")
)

const (
	// maxListRows caps task listings so a single request cannot trigger an
	// unbounded scan.
	maxListRows = 1000
	// maxCategoryRows caps the distinct-category listing.
	maxCategoryRows = 100
)

// Store provides access to the relational task and user tables.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres using the given DSN and returns a Store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for schema setup and health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const taskColumns = "id, user_id, text, priority, due_date, category, completed, sort_order, created_at"

func scanTask(row interface{ Scan(...any) error }) (domain.Task, error) {
	var (
		t       domain.Task
		due     sql.NullString
		cat     sql.NullString
		sortOrd sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Text, &t.Priority, &due, &cat, &t.Completed, &sortOrd, &t.CreatedAt); err != nil {
		return domain.Task{}, err
	}
	if due.Valid {
		v := due.String
		t.DueDate = &v
	}
	if cat.Valid && cat.String != "" {
		v := cat.String
		t.Category = &v
	}
	t.SortOrder = int(sortOrd.Int64)
	return t, nil
}

// escapeLike neutralizes LIKE wildcards in user-supplied search text.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ListTasks returns the user's tasks narrowed by the filter. Completed tasks
// always sort after incomplete ones; within that, sort=manual orders by
// sort_order while every other mode orders by priority rank then creation time.
func (s *Store) ListTasks(ctx context.Context, userID int64, f domain.TaskFilter) ([]domain.Task, error) {
	var (
		where = []string{"user_id = $1"}
		args  = []any{userID}
	)
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		where = append(where, fmt.Sprintf("text ILIKE $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}

	order := "completed ASC, CASE priority WHEN 'high' THEN 1 WHEN 'low' THEN 3 ELSE 2 END ASC, created_at ASC"
	if f.Sort == "manual" {
		order = "completed ASC, sort_order ASC"
	}

	query := fmt.Sprintf("SELECT %s FROM tasks WHERE %s ORDER BY %s LIMIT %d",
		taskColumns, strings.Join(where, " AND "), order, maxListRows)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CreateTask inserts a task, assigning the next manual sort position for the
// owning user, and returns the stored row.
func (s *Store) CreateTask(ctx context.Context, userID int64, t domain.Task) (domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (user_id, text, priority, due_date, category, completed, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6,
			(SELECT COALESCE(MAX(sort_order), 0) + 1 FROM tasks WHERE user_id = $1))
		RETURNING `+taskColumns,
		userID, t.Text, t.Priority, t.DueDate, t.Category, t.Completed)
	return scanTask(row)
}

// TaskByID fetches a single task scoped to its owner.
func (s *Store) TaskByID(ctx context.Context, id, userID int64) (domain.Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = $1 AND user_id = $2", id, userID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, ErrNotFound
	}
	return t, err
}

// UpdateTask applies the non-nil fields of the patch to the task. It reports
// whether a row owned by userID was affected.
func (s *Store) UpdateTask(ctx context.Context, id, userID int64, p domain.TaskPatch) (bool, error) {
	if p.Empty() {
		return s.taskExists(ctx, id, userID)
	}

	var (
		set  []string
		args = []any{id, userID}
	)
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Text != nil {
		add("text", *p.Text)
	}
	if p.Priority != nil {
		add("priority", *p.Priority)
	}
	if p.DueDate != nil {
		add("due_date", *p.DueDate)
	}
	if p.Category != nil {
		add("category", *p.Category)
	}
	if p.Completed != nil {
		add("completed", *p.Completed)
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE tasks SET %s WHERE id = $1 AND user_id = $2", strings.Join(set, ", ")),
		args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) taskExists(ctx context.Context, id, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1 AND user_id = $2)", id, userID).Scan(&exists)
	return exists, err
}

// DeleteTask removes a task and reports whether a row was removed.
func (s *Store) DeleteTask(ctx context.Context, id, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM tasks WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ToggleTask flips a task's completion flag in place.
func (s *Store) ToggleTask(ctx context.Context, id, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET completed = NOT completed WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetCompleted sets a task's completion flag.
func (s *Store) SetCompleted(ctx context.Context, id, userID int64, completed bool) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET completed = $3 WHERE id = $1 AND user_id = $2", id, userID, completed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteTasks removes every listed task owned by the user and returns the
// number actually removed. Unknown or unowned ids are skipped.
func (s *Store) DeleteTasks(ctx context.Context, userID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM tasks WHERE user_id = $1 AND id = ANY($2)", userID, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CompleteTasks sets the completion flag on every listed task owned by the
// user and returns the number actually updated.
func (s *Store) CompleteTasks(ctx context.Context, userID int64, ids []int64, completed bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET completed = $3 WHERE user_id = $1 AND id = ANY($2)", userID, pq.Array(ids), completed)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// OwnedIDs reports which of the given task ids belong to the user.
func (s *Store) OwnedIDs(ctx context.Context, userID int64, ids []int64) (map[int64]bool, error) {
	owned := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return owned, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM tasks WHERE user_id = $1 AND id = ANY($2)", userID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owned[id] = true
	}
	return owned, rows.Err()
}

// ReorderTasks writes every sort position in one transaction. When any update
// misses its row the whole batch rolls back and ErrReorderConflict is
// returned. Ownership is not checked here; callers validate it first.
func (s *Store) ReorderTasks(ctx context.Context, orders []domain.TaskOrder) error {
	if len(orders) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, o := range orders {
		res, err := tx.ExecContext(ctx,
			"UPDATE tasks SET sort_order = $2 WHERE id = $1", o.ID, o.SortOrder)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if n == 0 {
			_ = tx.Rollback()
			return ErrReorderConflict
		}
	}
	return tx.Commit()
}

// ListCategories returns the user's distinct non-empty categories in
// alphabetical order.
func (s *Store) ListCategories(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT DISTINCT category FROM tasks
		WHERE user_id = $1 AND category IS NOT NULL AND category <> ''
		ORDER BY category ASC LIMIT %d`, maxCategoryRows), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateUser inserts a user and returns the stored row. Violating the
// username or email uniqueness constraint yields ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, email, password_hash, created_at`,
		u.Username, u.Email, u.PasswordHash)
	stored, err := scanUser(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.User{}, ErrDuplicate
		}
		return domain.User{}, err
	}
	return stored, nil
}

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *Store) userBy(ctx context.Context, column string, value any) (domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, created_at FROM users WHERE "+column+" = $1", value)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

// UserByID looks up a user by primary key.
func (s *Store) UserByID(ctx context.Context, id int64) (domain.User, error) {
	return s.userBy(ctx, "id", id)
}

// UserByEmail looks up a user by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.userBy(ctx, "email", email)
}

// UserByUsername looks up a user by username.
func (s *Store) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	return s.userBy(ctx, "username", username)
}
