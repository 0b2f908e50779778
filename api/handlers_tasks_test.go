package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
	"taskboard-api/storage"
)

// mockStore implements Storage in memory. Mutations record what was asked of
// them; reads derive answers from the seeded tasks and users.
type mockStore struct {
	pingErr    error
	tasks      []domain.Task
	users      []domain.User
	categories []string

	listErr    error
	lastFilter domain.TaskFilter

	createdTask    *domain.Task
	updateAffected *bool
	deleteAffected *bool

	updatedID     int64
	updatedPatch  domain.TaskPatch
	toggledID     int64
	completedID   int64
	completedVal  bool
	deletedID     int64
	bulkDeleteIDs []int64
	bulkUpdateIDs []int64
	bulkUpdateVal bool
	reorderOrders []domain.TaskOrder
	reorderErr    error
	createdUser   *domain.User
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

func (m *mockStore) ListTasks(_ context.Context, userID int64, f domain.TaskFilter) ([]domain.Task, error) {
	m.lastFilter = f
	if m.listErr != nil {
		return nil, m.listErr
	}
	owned := []domain.Task{}
	for _, t := range m.tasks {
		if t.UserID == userID {
			owned = append(owned, t)
		}
	}
	return owned, nil
}

func (m *mockStore) TaskByID(_ context.Context, id, userID int64) (domain.Task, error) {
	for _, t := range m.tasks {
		if t.ID == id && t.UserID == userID {
			return t, nil
		}
	}
	return domain.Task{}, storage.ErrNotFound
}

func (m *mockStore) CreateTask(_ context.Context, userID int64, t domain.Task) (domain.Task, error) {
	t.ID = int64(len(m.tasks) + 100)
	t.UserID = userID
	t.SortOrder = len(m.tasks) + 1
	m.tasks = append(m.tasks, t)
	m.createdTask = &t
	return t, nil
}

func (m *mockStore) UpdateTask(_ context.Context, id, userID int64, p domain.TaskPatch) (bool, error) {
	m.updatedID = id
	m.updatedPatch = p
	if m.updateAffected != nil {
		return *m.updateAffected, nil
	}
	return m.ownedTask(id, userID), nil
}

func (m *mockStore) DeleteTask(_ context.Context, id, userID int64) (bool, error) {
	m.deletedID = id
	if m.deleteAffected != nil {
		return *m.deleteAffected, nil
	}
	return m.ownedTask(id, userID), nil
}

func (m *mockStore) ToggleTask(_ context.Context, id, userID int64) (bool, error) {
	m.toggledID = id
	return m.ownedTask(id, userID), nil
}

func (m *mockStore) SetCompleted(_ context.Context, id, userID int64, completed bool) (bool, error) {
	m.completedID = id
	m.completedVal = completed
	return m.ownedTask(id, userID), nil
}

func (m *mockStore) DeleteTasks(_ context.Context, userID int64, ids []int64) (int64, error) {
	m.bulkDeleteIDs = ids
	return m.countOwned(ids, userID), nil
}

func (m *mockStore) CompleteTasks(_ context.Context, userID int64, ids []int64, completed bool) (int64, error) {
	m.bulkUpdateIDs = ids
	m.bulkUpdateVal = completed
	return m.countOwned(ids, userID), nil
}

func (m *mockStore) OwnedIDs(_ context.Context, userID int64, ids []int64) (map[int64]bool, error) {
	owned := map[int64]bool{}
	for _, id := range ids {
		if m.ownedTask(id, userID) {
			owned[id] = true
		}
	}
	return owned, nil
}

func (m *mockStore) ReorderTasks(_ context.Context, orders []domain.TaskOrder) error {
	m.reorderOrders = orders
	return m.reorderErr
}

func (m *mockStore) ListCategories(context.Context, int64) ([]string, error) {
	return m.categories, nil
}

func (m *mockStore) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return domain.User{}, storage.ErrDuplicate
		}
	}
	u.ID = int64(len(m.users) + 1)
	m.users = append(m.users, u)
	m.createdUser = &u
	return u, nil
}

func (m *mockStore) UserByID(_ context.Context, id int64) (domain.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, storage.ErrNotFound
}

func (m *mockStore) UserByEmail(_ context.Context, email string) (domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, storage.ErrNotFound
}

func (m *mockStore) UserByUsername(_ context.Context, username string) (domain.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, storage.ErrNotFound
}

func (m *mockStore) ownedTask(id, userID int64) bool {
	for _, t := range m.tasks {
		if t.ID == id && t.UserID == userID {
			return true
		}
	}
	return false
}

func (m *mockStore) countOwned(ids []int64, userID int64) int64 {
	var n int64
	for _, id := range ids {
		if m.ownedTask(id, userID) {
			n++
		}
	}
	return n
}

func testLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(identityContextKey, Identity{UserID: 7, Username: "alice", Email: "alice@example.com"})
	return c, rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var resp errorResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v (body %s)", err, rec.Body.String())
	}
	return resp.Error
}

func seededTasks() []domain.Task {
	return []domain.Task{
		{ID: 10, UserID: 7, Text: "first", Priority: domain.PriorityHigh, SortOrder: 1},
		{ID: 20, UserID: 7, Text: "second", Priority: domain.PriorityLow, SortOrder: 2},
	}
}

func TestHealthz(t *testing.T) {
	store := &mockStore{}
	c, rec := testContext(http.MethodGet, "/healthz", "")
	if err := healthz(store)(c); err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	store.pingErr = context.DeadlineExceeded
	c, rec = testContext(http.MethodGet, "/healthz", "")
	if err := healthz(store)(c); err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestListTasksPassesFilter(t *testing.T) {
	store := &mockStore{tasks: seededTasks()}
	c, rec := testContext(http.MethodGet, "/tasks?search=milk&category=errands&sort=manual", "")

	if err := listTasks(store, testLogger())(c); err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	want := domain.TaskFilter{Search: "milk", Category: "errands", Sort: "manual"}
	if store.lastFilter != want {
		t.Fatalf("filter not forwarded: %#v", store.lastFilter)
	}

	var tasks []domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != 10 {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
}

func TestListTasksStorageError(t *testing.T) {
	store := &mockStore{listErr: context.DeadlineExceeded}
	c, rec := testContext(http.MethodGet, "/tasks", "")

	if err := listTasks(store, testLogger())(c); err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	apiErr := decodeError(t, rec)
	if apiErr.Type != errTypeServer || apiErr.Message != "internal server error" {
		t.Fatalf("storage error leaked: %#v", apiErr)
	}
}

func TestCreateTaskDefaults(t *testing.T) {
	store := &mockStore{}
	c, rec := testContext(http.MethodPost, "/tasks", `{"text":"  Buy milk  "}`)

	if err := createTask(store, testLogger())(c); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.createdTask == nil {
		t.Fatal("expected a task to be created")
	}
	if store.createdTask.Text != "Buy milk" {
		t.Fatalf("expected trimmed text, got %q", store.createdTask.Text)
	}
	if store.createdTask.Priority != domain.PriorityMedium {
		t.Fatalf("expected medium default priority, got %q", store.createdTask.Priority)
	}

	var task domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.ID == 0 || task.Completed {
		t.Fatalf("unexpected created task: %#v", task)
	}
	if task.DueDate != nil || task.Category != nil {
		t.Fatalf("expected null optional fields, got %#v", task)
	}
}

func TestCreateTaskCollectsAllViolations(t *testing.T) {
	store := &mockStore{}
	body := `{"text":"` + strings.Repeat("x", 201) + `","priority":"urgent","due_date":"tomorrow"}`
	c, rec := testContext(http.MethodPost, "/tasks", body)

	if err := createTask(store, testLogger())(c); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	apiErr := decodeError(t, rec)
	if apiErr.Type != errTypeValidation {
		t.Fatalf("expected validation error, got %q", apiErr.Type)
	}
	if len(apiErr.Details) != 3 {
		t.Fatalf("expected all 3 violations reported, got %#v", apiErr.Details)
	}
	if store.createdTask != nil {
		t.Fatal("invalid request must not reach storage")
	}
}

func TestCreateTaskRejectsMalformedBody(t *testing.T) {
	store := &mockStore{}
	c, rec := testContext(http.MethodPost, "/tasks", `{"text":`)

	if err := createTask(store, testLogger())(c); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpdateTaskByID(t *testing.T) {
	store := &mockStore{tasks: seededTasks()}
	c, rec := testContext(http.MethodPut, "/tasks/20", `{"text":"rewritten","priority":"high"}`)
	c.SetParamNames("id")
	c.SetParamValues("20")

	if err := updateTask(store, testLogger())(c); err != nil {
		t.Fatalf("update task: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.updatedID != 20 {
		t.Fatalf("expected task 20 updated, got %d", store.updatedID)
	}
	if store.updatedPatch.Text == nil || *store.updatedPatch.Text != "rewritten" {
		t.Fatalf("unexpected patch: %#v", store.updatedPatch)
	}
	if store.updatedPatch.Priority == nil || *store.updatedPatch.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected patch priority: %#v", store.updatedPatch.Priority)
	}
	if store.updatedPatch.DueDate != nil || store.updatedPatch.Category != nil {
		t.Fatalf("omitted fields must not be patched: %#v", store.updatedPatch)
	}
}

func TestUpdateTaskFallsBackToListPosition(t *testing.T) {
	// No task has id 1, but position 1 in the listing is task 10.
	store := &mockStore{tasks: seededTasks()}
	c, rec := testContext(http.MethodPut, "/tasks/1", `{"text":"via position"}`)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := updateTask(store, testLogger())(c); err != nil {
		t.Fatalf("update task: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.updatedID != 10 {
		t.Fatalf("expected position 1 to resolve to task 10, got %d", store.updatedID)
	}
}

func TestUpdateTaskUnresolvable(t *testing.T) {
	store := &mockStore{tasks: seededTasks()}
	c, rec := testContext(http.MethodPut, "/tasks/99", `{"text":"nope"}`)
	c.SetParamNames("id")
	c.SetParamValues("99")

	if err := updateTask(store, testLogger())(c); err != nil {
		t.Fatalf("update task: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if apiErr := decodeError(t, rec); apiErr.Type != errTypeNotFound {
		t.Fatalf("expected NOT_FOUND, got %q", apiErr.Type)
	}
}

func TestPatchTaskTogglesWithoutBody(t *testing.T) {
	store := &mockStore{tasks: seededTasks()}
	c, rec := testContext(http.MethodPatch, "/tasks/10", "")
	c.SetParamNames("id")
	c.SetParamValues("10")

	if err := patchTask(store, testLogger())(c); err != nil {
		t.Fatalf("patch task: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.toggledID != 10 {
		t.Fatalf("expected toggle of task 10, got %d", store.toggledID)
	}
	if store.completedID != 0 {
		t.Fatal("explicit completion must not run for a bodyless patch")
	}
}

func TestPatchTaskSetsExplicitCompletion(t *testing.T) {
	store := &mockStore{tasks: seededTasks()}
	c, rec := testContext(http.MethodPatch, "/tasks/10", `{"completed":true}`)
	c.SetParamNames("id")
	c.SetParamValues("10")

	if err := patchTask(store, testLogger())(c); err != nil {
		t.Fatalf("patch task: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if store.completedID != 10 || !store.completedVal {
		t.Fatalf("expected completed=true for task 10, got id=%d val=%v", store.completedID, store.completedVal)
	}
	if store.toggledID != 0 {
		t.Fatal("toggle must not run when completed is explicit")
	}
}

func TestPatchTaskMissing(t *testing.T) {
	store := &mockStore{tasks: seededTasks()}
	c, rec := testContext(http.MethodPatch, "/tasks/99", "")
	c.SetParamNames("id")
	c.SetParamValues("99")

	if err := patchTask(store, testLogger())(c); err != nil {
		t.Fatalf("patch task: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteTaskByID(t *testing.T) {
	store := &mockStore{tasks: seededTasks()}
	c, rec := testContext(http.MethodDelete, "/tasks/20", "")
	c.SetParamNames("id")
	c.SetParamValues("20")

	if err := deleteTask(store, testLogger())(c); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if store.deletedID != 20 {
		t.Fatalf("expected task 20 deleted, got %d", store.deletedID)
	}
}

func TestUpdateTaskVanishedBeforeWrite(t *testing.T) {
	// The task resolves but another request removes it before the write
	// lands; the miss is a 404, not a server fault.
	store := &mockStore{tasks: seededTasks()}
	gone := false
	store.updateAffected = &gone
	c, rec := testContext(http.MethodPut, "/tasks/20", `{"text":"too late"}`)
	c.SetParamNames("id")
	c.SetParamValues("20")

	if err := updateTask(store, testLogger())(c); err != nil {
		t.Fatalf("update task: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	if apiErr := decodeError(t, rec); apiErr.Type != errTypeNotFound {
		t.Fatalf("expected NOT_FOUND, got %q", apiErr.Type)
	}
}

func TestDeleteTaskVanishedBeforeWrite(t *testing.T) {
	store := &mockStore{tasks: seededTasks()}
	gone := false
	store.deleteAffected = &gone
	c, rec := testContext(http.MethodDelete, "/tasks/20", "")
	c.SetParamNames("id")
	c.SetParamValues("20")

	if err := deleteTask(store, testLogger())(c); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestBulkDeleteRequiresIDs(t *testing.T) {
	store := &mockStore{}
	c, rec := testContext(http.MethodDelete, "/tasks", `{"ids":[]}`)

	if err := bulkDeleteTasks(store, testLogger())(c); err != nil {
		t.Fatalf("bulk delete: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestBulkDeleteSkipsInvalidIDs(t *testing.T) {
	store := &mockStore{tasks: seededTasks()}
	c, rec := testContext(http.MethodDelete, "/tasks", `{"ids":[10,-2,0,99]}`)

	if err := bulkDeleteTasks(store, testLogger())(c); err != nil {
		t.Fatalf("bulk delete: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.bulkDeleteIDs) != 2 || store.bulkDeleteIDs[0] != 10 || store.bulkDeleteIDs[1] != 99 {
		t.Fatalf("expected non-positive ids dropped, got %#v", store.bulkDeleteIDs)
	}

	var resp deletedResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Deleted != 1 {
		t.Fatalf("expected 1 deletion reported, got %d", resp.Deleted)
	}
}

func TestBulkCompleteCollectsViolations(t *testing.T) {
	store := &mockStore{}
	c, rec := testContext(http.MethodPatch, "/tasks", `{}`)

	if err := bulkCompleteTasks(store, testLogger())(c); err != nil {
		t.Fatalf("bulk complete: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if apiErr := decodeError(t, rec); len(apiErr.Details) != 2 {
		t.Fatalf("expected both violations reported, got %#v", apiErr.Details)
	}
}

func TestBulkComplete(t *testing.T) {
	store := &mockStore{tasks: seededTasks()}
	c, rec := testContext(http.MethodPatch, "/tasks", `{"ids":[10,20],"completed":false}`)

	if err := bulkCompleteTasks(store, testLogger())(c); err != nil {
		t.Fatalf("bulk complete: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if store.bulkUpdateVal {
		t.Fatal("expected completed=false to be forwarded")
	}

	var resp updatedResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Updated != 2 {
		t.Fatalf("expected 2 updates reported, got %d", resp.Updated)
	}
}

func TestReorderRejectsUnownedTasks(t *testing.T) {
	store := &mockStore{tasks: seededTasks()}
	c, rec := testContext(http.MethodPost, "/tasks/reorder", `{"taskOrders":[{"id":10,"sort_order":2},{"id":99,"sort_order":1}]}`)

	if err := reorderTasks(store, testLogger())(c); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if store.reorderOrders != nil {
		t.Fatal("unowned ids must fail before the batch runs")
	}
}

func TestReorderSuccess(t *testing.T) {
	store := &mockStore{tasks: seededTasks()}
	c, rec := testContext(http.MethodPost, "/tasks/reorder", `{"taskOrders":[{"id":20,"sort_order":1},{"id":10,"sort_order":2}]}`)

	if err := reorderTasks(store, testLogger())(c); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.reorderOrders) != 2 || store.reorderOrders[0].ID != 20 {
		t.Fatalf("unexpected orders: %#v", store.reorderOrders)
	}

	var resp reorderedResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reordered != 2 {
		t.Fatalf("expected 2 reordered, got %d", resp.Reordered)
	}
}

func TestReorderConflictIsValidationError(t *testing.T) {
	store := &mockStore{tasks: seededTasks(), reorderErr: storage.ErrReorderConflict}
	c, rec := testContext(http.MethodPost, "/tasks/reorder", `{"taskOrders":[{"id":10,"sort_order":1}]}`)

	if err := reorderTasks(store, testLogger())(c); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if apiErr := decodeError(t, rec); apiErr.Type != errTypeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %q", apiErr.Type)
	}
}

func TestListCategories(t *testing.T) {
	store := &mockStore{categories: []string{"errands", "work"}}
	c, rec := testContext(http.MethodGet, "/categories", "")

	if err := listCategories(store, testLogger())(c); err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var categories []string
	if err := sonic.Unmarshal(rec.Body.Bytes(), &categories); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	if len(categories) != 2 || categories[0] != "errands" {
		t.Fatalf("unexpected categories: %#v", categories)
	}
}

func TestTasksAreIsolatedBetweenUsers(t *testing.T) {
	store := &mockStore{tasks: []domain.Task{
		{ID: 10, UserID: 7, Text: "alice task", Priority: domain.PriorityHigh, SortOrder: 1},
		{ID: 20, UserID: 8, Text: "bob task", Priority: domain.PriorityLow, SortOrder: 1},
	}}
	sessions := testSessions(t)

	e := echo.New()
	Register(e, store, sessions, sessions, 0, testLogger())

	tokenFor := func(id int64, name string) string {
		token, err := sessions.IssueToken(domain.User{ID: id, Username: name})
		if err != nil {
			t.Fatalf("issue token for %s: %v", name, err)
		}
		return token
	}
	alice := tokenFor(7, "alice")
	bob := tokenFor(8, "bob")

	do := func(method, target, token, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, reader)
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	listIDs := func(token string) []int64 {
		rec := do(http.MethodGet, "/tasks", token, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("list tasks: expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var tasks []domain.Task
		if err := sonic.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
			t.Fatalf("decode tasks: %v", err)
		}
		ids := make([]int64, len(tasks))
		for i, task := range tasks {
			ids[i] = task.ID
		}
		return ids
	}

	if ids := listIDs(alice); len(ids) != 1 || ids[0] != 10 {
		t.Fatalf("alice must only see her own task, got %#v", ids)
	}
	if ids := listIDs(bob); len(ids) != 1 || ids[0] != 20 {
		t.Fatalf("bob must only see his own task, got %#v", ids)
	}

	// Another user's task id behaves exactly like a missing one.
	if rec := do(http.MethodPatch, "/tasks/20", alice, `{"completed":true}`); rec.Code != http.StatusNotFound {
		t.Fatalf("patching another user's task: expected 404, got %d", rec.Code)
	}
	if rec := do(http.MethodDelete, "/tasks/20", alice, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("deleting another user's task: expected 404, got %d", rec.Code)
	}

	// Bulk operations count only owned rows.
	rec := do(http.MethodDelete, "/tasks", alice, `{"ids":[10,20]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk delete: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var deleted deletedResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &deleted); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if deleted.Deleted != 1 {
		t.Fatalf("expected only alice's task counted, got %d", deleted.Deleted)
	}

	// Reorder batches referencing another user's task are rejected outright.
	if rec := do(http.MethodPost, "/tasks/reorder", bob, `{"taskOrders":[{"id":10,"sort_order":1}]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("reordering another user's task: expected 400, got %d", rec.Code)
	}
}
