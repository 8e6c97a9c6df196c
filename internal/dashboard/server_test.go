package dashboard

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/auth"
	"github.com/zulandar/floorboard/internal/board"
	"github.com/zulandar/floorboard/internal/db"
	"github.com/zulandar/floorboard/internal/notify"
	"github.com/zulandar/floorboard/internal/production"
	"github.com/zulandar/floorboard/internal/realtime"
	"github.com/zulandar/floorboard/internal/store"
	"github.com/zulandar/floorboard/internal/task"
	"github.com/zulandar/floorboard/internal/techdoc"
)

const testPassword = "correct-horse"

var testHash = sync.OnceValue(func() string {
	h, err := auth.HashPassword(testPassword)
	if err != nil {
		panic(err)
	}
	return h
})

type fixture struct {
	srv    *Server
	store  *store.Store
	router *gin.Engine
	issuer *auth.Issuer

	admin, worker, viewer store.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	hub := realtime.NewHub(zerolog.Nop())
	go hub.Run(ctx)

	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.New(store.Opts{DB: gdb, Hub: hub, Logger: zerolog.Nop()})

	cache, err := access.NewCache(access.CacheOpts{Source: st})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	iss, err := auth.NewIssuer("dashboard-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	srv, err := NewServer(ctx, StartOpts{
		Store:    st,
		Cache:    cache,
		Issuer:   iss,
		Hub:      hub,
		Resolver: techdoc.NewResolver(techdoc.ResolverOpts{Source: st}),
		Notifier: notify.NewDispatcher(notify.Opts{Sinks: []notify.Sink{notify.NewInboxSink(st)}}),
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	router := gin.New()
	srv.Register(router)

	t.Cleanup(func() {
		srv.sessions.closeAll()
		cancel()
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	f := &fixture{srv: srv, store: st, router: router, issuer: iss}
	roles := []*access.RoleConfig{
		{ID: access.RoleWorker, Name: "Worker", Permissions: map[access.ModuleKey]access.Permission{
			access.ModuleTasks:         {View: true, Edit: true},
			access.ModuleNotifications: {View: true},
		}},
		{ID: "viewer", Name: "Viewer", Permissions: map[access.ModuleKey]access.Permission{
			access.ModuleTasks: {View: true},
		}},
	}
	for _, rc := range roles {
		if err := st.PutRole(ctx, rc); err != nil {
			t.Fatalf("PutRole(%s): %v", rc.ID, err)
		}
	}
	f.admin = f.user(t, "Ada", "ada@example.com", access.RoleAdmin)
	f.worker = f.user(t, "Wes", "wes@example.com", access.RoleWorker)
	f.viewer = f.user(t, "Vi", "vi@example.com", "viewer")
	return f
}

func (f *fixture) user(t *testing.T, name, email, role string) store.User {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), store.NewUser{Name: name, Email: email, Role: role, PasswordHash: testHash()})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func (f *fixture) token(t *testing.T, u store.User) string {
	t.Helper()
	tok, _, err := f.issuer.Issue(access.Actor{ID: u.ID, Role: u.Role})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}

func TestNewServer_RequiresStore(t *testing.T) {
	_, err := NewServer(context.Background(), StartOpts{})
	if err == nil {
		t.Fatal("expected error for missing store")
	}
	if !strings.Contains(err.Error(), "store is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "store is required")
	}
}

func TestStart_MissingDependencies(t *testing.T) {
	err := Start(context.Background(), StartOpts{Store: &store.Store{}})
	if err == nil || !strings.Contains(err.Error(), "role cache is required") {
		t.Errorf("Start() error = %v, want role cache error", err)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", "", nil)
	wantStatus(t, w, http.StatusOK)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "WES@example.com", "password": testPassword})
	wantStatus(t, w, http.StatusOK)
	sess := decode[auth.Session](t, w)
	if sess.Token == "" || sess.User.ID != f.worker.ID {
		t.Fatalf("session = %+v", sess)
	}

	me := f.do(t, http.MethodGet, "/api/v1/me", sess.Token, nil)
	wantStatus(t, me, http.StatusOK)
	resp := decode[meResponse](t, me)
	if !resp.Permissions[access.ModuleTasks].Edit {
		t.Error("worker should have tasks edit")
	}
	if resp.Permissions[access.ModuleRoles].View {
		t.Error("worker should not see roles")
	}
}

func TestLogin_Rejected(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{"wrong password", gin.H{"email": "wes@example.com", "password": "nope-nope"}, http.StatusUnauthorized},
		{"unknown user", gin.H{"email": "ghost@example.com", "password": testPassword}, http.StatusUnauthorized},
		{"missing email", gin.H{"password": testPassword}, http.StatusBadRequest},
		{"bad email", gin.H{"email": "wes", "password": testPassword}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/auth/login", "", tt.body)
			wantStatus(t, w, tt.want)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ghost, _, err := f.issuer.Issue(access.Actor{ID: "usr-ghost", Role: access.RoleWorker})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not-a-token"},
		{"unknown user", "Bearer " + ghost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)
			wantStatus(t, w, http.StatusUnauthorized)
		})
	}
}

func TestAuthenticate_QueryToken(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/me?token="+f.token(t, f.viewer), "", nil)
	wantStatus(t, w, http.StatusOK)
}

func TestBoard_WorkerSeesOnlyAssigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine, err := f.store.CreateTask(ctx, task.Task{Title: "Mine", AssigneeIDs: []string{f.worker.ID}, CreatedBy: f.admin.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.CreateTask(ctx, task.Task{Title: "Theirs", AssigneeIDs: []string{f.viewer.ID}, CreatedBy: f.admin.ID}); err != nil {
		t.Fatal(err)
	}

	w := f.do(t, http.MethodGet, "/api/v1/board", f.token(t, f.worker), nil)
	wantStatus(t, w, http.StatusOK)
	b := decode[boardResponse](t, w)
	if len(b.Columns.Todo) != 1 || b.Columns.Todo[0].ID != mine.ID {
		t.Fatalf("worker todo = %+v, want only %s", b.Columns.Todo, mine.ID)
	}

	w = f.do(t, http.MethodGet, "/api/v1/board", f.token(t, f.admin), nil)
	wantStatus(t, w, http.StatusOK)
	if b := decode[boardResponse](t, w); len(b.Columns.Todo) != 2 {
		t.Errorf("admin todo = %d tasks, want 2", len(b.Columns.Todo))
	}
}

func TestBoard_LiveUpdates(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, f.worker)
	wantStatus(t, f.do(t, http.MethodGet, "/api/v1/board", tok, nil), http.StatusOK)

	if _, err := f.store.CreateTask(context.Background(), task.Task{Title: "Pushed", AssigneeIDs: []string{f.worker.ID}, CreatedBy: f.admin.ID}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		b := decode[boardResponse](t, f.do(t, http.MethodGet, "/api/v1/board", tok, nil))
		if len(b.Columns.Todo) == 1 && b.Columns.Todo[0].Title == "Pushed" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("pushed task never reached the board: %+v", b.Columns)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBoard_RequiresTasksView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.PutRole(ctx, &access.RoleConfig{ID: "guest", Name: "Guest"}); err != nil {
		t.Fatal(err)
	}
	guest := f.user(t, "Gus", "gus@example.com", "guest")
	w := f.do(t, http.MethodGet, "/api/v1/board", f.token(t, guest), nil)
	wantStatus(t, w, http.StatusForbidden)
}

func TestCreateTask(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/tasks", f.token(t, f.worker), gin.H{
		"title": "Clean coolant tank", "priority": "high", "assigneeIds": []string{f.worker.ID},
	})
	wantStatus(t, w, http.StatusCreated)
	created := decode[task.Task](t, w)
	if created.Priority != task.PriorityHigh || created.Status != task.StatusTodo || created.CreatedBy != f.worker.ID {
		t.Errorf("created = %+v", created)
	}

	tests := []struct {
		name  string
		token string
		body  gin.H
		want  int
	}{
		{"viewer cannot edit", f.token(t, f.viewer), gin.H{"title": "x"}, http.StatusForbidden},
		{"missing title", f.token(t, f.worker), gin.H{"priority": "low"}, http.StatusBadRequest},
		{"bad priority", f.token(t, f.worker), gin.H{"title": "x", "priority": "urgent"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantStatus(t, f.do(t, http.MethodPost, "/api/v1/tasks", tt.token, tt.body), tt.want)
		})
	}
}

func (f *fixture) workerTask(t *testing.T) (string, task.Task) {
	t.Helper()
	tok := f.token(t, f.worker)
	w := f.do(t, http.MethodPost, "/api/v1/tasks", tok, gin.H{"title": "Deburr", "assigneeIds": []string{f.worker.ID}})
	wantStatus(t, w, http.StatusCreated)
	return tok, decode[task.Task](t, w)
}

func TestMoveTask(t *testing.T) {
	f := newFixture(t)
	tok, created := f.workerTask(t)

	w := f.do(t, http.MethodPost, "/api/v1/tasks/"+created.ID+"/move", tok, gin.H{"status": "done"})
	wantStatus(t, w, http.StatusOK)
	if moved := decode[task.Task](t, w); moved.Status != task.StatusDone {
		t.Errorf("status = %s, want done", moved.Status)
	}
	stored, err := f.store.GetTask(context.Background(), created.ID)
	if err != nil || stored.Status != task.StatusDone {
		t.Errorf("stored = %+v, %v", stored, err)
	}

	wantStatus(t, f.do(t, http.MethodPost, "/api/v1/tasks/"+created.ID+"/move", tok, gin.H{"status": "todo"}), http.StatusOK)
	wantStatus(t, f.do(t, http.MethodPost, "/api/v1/tasks/"+created.ID+"/move", tok, gin.H{"status": "archived"}), http.StatusBadRequest)
	wantStatus(t, f.do(t, http.MethodPost, "/api/v1/tasks/tsk-missing/move", tok, gin.H{"status": "done"}), http.StatusNotFound)
}

func TestEditTask(t *testing.T) {
	f := newFixture(t)
	tok, created := f.workerTask(t)

	w := f.do(t, http.MethodPatch, "/api/v1/tasks/"+created.ID, tok, gin.H{"title": "Deburr and wash", "priority": "low"})
	wantStatus(t, w, http.StatusOK)
	edited := decode[task.Task](t, w)
	if edited.Title != "Deburr and wash" || edited.Priority != task.PriorityLow {
		t.Errorf("edited = %+v", edited)
	}
	wantStatus(t, f.do(t, http.MethodPatch, "/api/v1/tasks/"+created.ID, tok, gin.H{"title": ""}), http.StatusBadRequest)
}

func TestArchiveAndDelete(t *testing.T) {
	f := newFixture(t)
	tok, created := f.workerTask(t)
	base := "/api/v1/tasks/" + created.ID

	wantStatus(t, f.do(t, http.MethodPost, base+"/archive", tok, gin.H{}), http.StatusBadRequest)
	w := f.do(t, http.MethodPost, base+"/archive", tok, gin.H{"confirm": true})
	wantStatus(t, w, http.StatusOK)
	if got := decode[task.Task](t, w); got.Status != task.StatusArchived {
		t.Errorf("status = %s, want archived", got.Status)
	}
	wantStatus(t, f.do(t, http.MethodPost, base+"/move", tok, gin.H{"status": "todo"}), http.StatusConflict)

	wantStatus(t, f.do(t, http.MethodDelete, base, tok, nil), http.StatusBadRequest)
	wantStatus(t, f.do(t, http.MethodDelete, base+"?confirm=true", tok, nil), http.StatusNoContent)
	wantStatus(t, f.do(t, http.MethodGet, base, tok, nil), http.StatusNotFound)

	trash, err := f.store.Trash(context.Background())
	if err != nil || len(trash) != 1 || trash[0].ID != created.ID {
		t.Errorf("trash = %+v, %v", trash, err)
	}
}

func TestTaskEvents(t *testing.T) {
	f := newFixture(t)
	tok, created := f.workerTask(t)
	wantStatus(t, f.do(t, http.MethodPost, "/api/v1/tasks/"+created.ID+"/move", tok, gin.H{"status": "in_progress"}), http.StatusOK)

	w := f.do(t, http.MethodGet, "/api/v1/tasks/"+created.ID+"/events", tok, nil)
	wantStatus(t, w, http.StatusOK)
	events := decode[[]eventView](t, w)
	if len(events) != 2 || events[1].ToStatus != string(task.StatusInProgress) {
		t.Errorf("events = %+v", events)
	}
}

func (f *fixture) seedOrder(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.PutJobCycle(ctx, production.JobCycle{ID: "cyc-1", Name: "Shaft", Stages: []production.Stage{
		{ID: "stg-1", Name: "Cutting", DefaultResponsible: []string{f.worker.ID}, DefaultCount: 10},
		{ID: "stg-2", Name: "Turning"},
	}}); err != nil {
		t.Fatal(err)
	}
	if err := f.store.PutOrder(ctx, production.Order{ID: "ord-1", OrderNumber: "PO-7", ProductID: "prd-1", WorkCycleID: "cyc-1", Quantity: 40}); err != nil {
		t.Fatal(err)
	}
}

func TestProduction(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)
	admin := f.token(t, f.admin)

	w := f.do(t, http.MethodGet, "/api/v1/orders/ord-1/production", admin, nil)
	wantStatus(t, w, http.StatusOK)
	defaults := decode[map[string]map[string]production.StageInput](t, w)["stages"]
	if defaults["stg-1"].Quantity != 10 {
		t.Errorf("defaults = %+v", defaults)
	}

	w = f.do(t, http.MethodPost, "/api/v1/orders/ord-1/production", admin, gin.H{
		"stages": gin.H{
			"stg-1": gin.H{"quantity": 10, "assigneeIds": []string{f.worker.ID}},
			"stg-2": gin.H{"assigneeIds": []string{f.worker.ID, f.viewer.ID}},
		},
	})
	wantStatus(t, w, http.StatusCreated)
	resp := decode[productionResponse](t, w)
	if len(resp.Created) != 2 {
		t.Fatalf("created = %d, want 2", len(resp.Created))
	}
	if resp.Created[1].PlannedQuantity != 40 || !resp.Created[1].IsFinalStage {
		t.Errorf("final stage = %+v", resp.Created[1])
	}
	if resp.Notified != 3 {
		t.Errorf("notified = %d, want 3", resp.Notified)
	}

	worker := f.token(t, f.worker)
	w = f.do(t, http.MethodGet, "/api/v1/notifications?unread=true", worker, nil)
	wantStatus(t, w, http.StatusOK)
	inbox := decode[[]store.Notification](t, w)
	if len(inbox) != 2 {
		t.Fatalf("worker inbox = %d, want 2", len(inbox))
	}
	wantStatus(t, f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%d/read", inbox[0].ID), worker, nil), http.StatusNoContent)
	if unread := decode[[]store.Notification](t, f.do(t, http.MethodGet, "/api/v1/notifications?unread=true", worker, nil)); len(unread) != 1 {
		t.Errorf("unread after mark = %d, want 1", len(unread))
	}
	wantStatus(t, f.do(t, http.MethodPost, "/api/v1/notifications/999/read", worker, nil), http.StatusNotFound)
}

func TestProduction_Rejected(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t)
	admin := f.token(t, f.admin)

	nobody := gin.H{"stages": gin.H{"stg-1": gin.H{"quantity": 5}}}
	wantStatus(t, f.do(t, http.MethodPost, "/api/v1/orders/ord-1/production", admin, nobody), http.StatusBadRequest)
	wantStatus(t, f.do(t, http.MethodPost, "/api/v1/orders/ord-404/production", admin,
		gin.H{"stages": gin.H{"stg-1": gin.H{"assigneeIds": []string{f.worker.ID}}}}), http.StatusNotFound)
	wantStatus(t, f.do(t, http.MethodGet, "/api/v1/orders", f.token(t, f.worker), nil), http.StatusForbidden)
}

func TestRoles(t *testing.T) {
	f := newFixture(t)
	admin := f.token(t, f.admin)

	wantStatus(t, f.do(t, http.MethodGet, "/api/v1/roles", f.token(t, f.worker), nil), http.StatusForbidden)

	w := f.do(t, http.MethodPut, "/api/v1/roles/qc", admin, gin.H{
		"name": "QC", "permissions": gin.H{"orders": gin.H{"view": true}},
	})
	wantStatus(t, w, http.StatusOK)
	w = f.do(t, http.MethodGet, "/api/v1/roles/qc", admin, nil)
	wantStatus(t, w, http.StatusOK)
	if rc := decode[access.RoleConfig](t, w); !rc.Lookup(access.ModuleOrders).View {
		t.Errorf("qc = %+v", rc)
	}

	wantStatus(t, f.do(t, http.MethodPut, "/api/v1/roles/qc", admin, gin.H{
		"name": "QC", "permissions": gin.H{"taks": gin.H{"view": true}},
	}), http.StatusBadRequest)
	wantStatus(t, f.do(t, http.MethodPut, "/api/v1/roles/admin", admin, gin.H{"name": "Admin"}), http.StatusBadRequest)
	wantStatus(t, f.do(t, http.MethodDelete, "/api/v1/roles/admin", admin, nil), http.StatusBadRequest)
	wantStatus(t, f.do(t, http.MethodDelete, "/api/v1/roles/qc", admin, nil), http.StatusNoContent)
	wantStatus(t, f.do(t, http.MethodGet, "/api/v1/roles/qc", admin, nil), http.StatusNotFound)
}

func TestRoles_ChangeAppliesToNextRequest(t *testing.T) {
	f := newFixture(t)
	worker := f.token(t, f.worker)
	wantStatus(t, f.do(t, http.MethodPost, "/api/v1/tasks", worker, gin.H{"title": "Before"}), http.StatusCreated)

	wantStatus(t, f.do(t, http.MethodPut, "/api/v1/roles/worker", f.token(t, f.admin), gin.H{
		"name": "Worker", "permissions": gin.H{"tasks": gin.H{"view": true}},
	}), http.StatusOK)

	wantStatus(t, f.do(t, http.MethodPost, "/api/v1/tasks", worker, gin.H{"title": "After"}), http.StatusForbidden)
}

type roleMap map[string]*access.RoleConfig

func (m roleMap) RoleConfig(ctx context.Context, roleID string) (*access.RoleConfig, error) {
	rc, ok := m[roleID]
	if !ok {
		return nil, access.ErrRoleNotFound
	}
	return rc, nil
}

// stallingRemote blocks deletes while armed so the role watcher falls behind.
type stallingRemote struct {
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *stallingRemote) Get(ctx context.Context, roleID string) (*access.RoleConfig, error) {
	return nil, access.ErrRoleNotFound
}

func (r *stallingRemote) Set(ctx context.Context, cfg *access.RoleConfig) error { return nil }

func (r *stallingRemote) Delete(ctx context.Context, roleID string) error {
	if r.armed.Load() {
		r.once.Do(func() { close(r.entered) })
		<-r.release
	}
	return nil
}

func TestWatchRoles_DroppedFeedClearsCache(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := realtime.NewHub(zerolog.Nop())
	go hub.Run(ctx)

	remote := &stallingRemote{entered: make(chan struct{}), release: make(chan struct{})}
	remote.armed.Store(true)
	cache, err := access.NewCache(access.CacheOpts{
		Source: roleMap{access.RoleWorker: {ID: access.RoleWorker, Name: "Worker"}},
		Remote: remote,
	})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	srv := &Server{cache: cache, hub: hub, logger: zerolog.Nop()}
	go srv.watchRoles(ctx)
	marker := hub.Subscribe(realtime.ForCollections(realtime.CollectionUsers))
	defer marker.Close()

	// Publish until the watcher stalls on the remote, then overflow its feed.
	flood := realtime.Change{Collection: realtime.CollectionRoles, Op: realtime.OpUpdate, ID: "flood"}
	deadline := time.Now().Add(2 * time.Second)
	for stalled := false; !stalled; {
		hub.Publish(flood)
		select {
		case <-remote.entered:
			stalled = true
		case <-time.After(5 * time.Millisecond):
			if time.Now().After(deadline) {
				t.Fatal("watcher never consumed a role change")
			}
		}
	}
	for i := 0; i < 100; i++ {
		hub.Publish(flood)
	}
	hub.Publish(realtime.Change{Collection: realtime.CollectionUsers, ID: "flushed"})
	select {
	case <-marker.C():
	case <-time.After(2 * time.Second):
		t.Fatal("hub never routed the flood")
	}

	if _, err := cache.Load(ctx, access.RoleWorker); err != nil {
		t.Fatalf("Load: %v", err)
	}
	remote.armed.Store(false)
	close(remote.release)

	waitFor(t, "cache cleared after the dropped feed", func() bool {
		_, ok := cache.Get(access.RoleWorker)
		return !ok
	})

	// The watcher is subscribed again.
	if _, err := cache.Load(ctx, access.RoleWorker); err != nil {
		t.Fatalf("Load: %v", err)
	}
	hub.Publish(realtime.Change{Collection: realtime.CollectionRoles, Op: realtime.OpUpdate, ID: access.RoleWorker})
	waitFor(t, "role invalidated on the new feed", func() bool {
		_, ok := cache.Get(access.RoleWorker)
		return !ok
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSSE_StreamsScopedChanges(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.router)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/events?token="+f.token(t, f.worker), nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	readEvent := func() string {
		t.Helper()
		var name string
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			if strings.HasPrefix(line, "event: ") {
				name = strings.TrimPrefix(line, "event: ")
			}
			if line == "" && name != "" {
				return name
			}
		}
	}
	if got := readEvent(); got != "connected" {
		t.Fatalf("first event = %q, want connected", got)
	}

	bg := context.Background()
	if _, err := f.store.CreateTask(bg, task.Task{Title: "Hidden", AssigneeIDs: []string{f.viewer.ID}, CreatedBy: f.admin.ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.CreateTask(bg, task.Task{Title: "Visible", AssigneeIDs: []string{f.worker.ID}, CreatedBy: f.admin.ID}); err != nil {
		t.Fatal(err)
	}

	for {
		name := readEvent()
		if name == realtime.CollectionTasks {
			break
		}
	}
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	writeSSE(&buf, "tasks", map[string]string{"id": "tsk-1"})
	want := "event: tasks\ndata: {\"id\":\"tsk-1\"}\n\n"
	if buf.String() != want {
		t.Errorf("writeSSE = %q, want %q", buf.String(), want)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", access.ErrPermissionDenied), http.StatusForbidden},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("%w: task", store.ErrNotFound), http.StatusNotFound},
		{board.ErrUnknownTask, http.StatusNotFound},
		{task.ErrInvalidTransition, http.StatusConflict},
		{task.ErrDeleted, http.StatusConflict},
		{board.ErrNotConfirmed, http.StatusBadRequest},
		{production.ErrNothingAssigned, http.StatusBadRequest},
		{fmt.Errorf("%w: edit: %w", board.ErrPersistence, task.ErrInvalid), http.StatusBadRequest},
		{fmt.Errorf("%w: %w", board.ErrPartialFanOut, errors.New("db gone")), http.StatusMultiStatus},
		{fmt.Errorf("%w: db gone", board.ErrPersistence), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestSessions_EvictIdle(t *testing.T) {
	f := newFixture(t)
	actor := access.Actor{ID: f.worker.ID, Role: f.worker.Role}
	first, err := f.srv.sessions.get(context.Background(), actor)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := f.srv.sessions.get(context.Background(), actor)
	if first != again {
		t.Error("second get should reuse the controller")
	}

	if n := f.srv.sessions.evictIdle(time.Now()); n != 0 {
		t.Errorf("evicted %d fresh sessions", n)
	}
	if n := f.srv.sessions.evictIdle(time.Now().Add(sessionIdle + time.Minute)); n != 1 {
		t.Errorf("evicted %d, want 1", n)
	}
	if f.srv.sessions.len() != 0 {
		t.Error("session survived eviction")
	}
}

func TestSessions_RoleChangeReplacesController(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.srv.sessions.get(ctx, access.Actor{ID: f.worker.ID, Role: access.RoleWorker})
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.srv.sessions.get(ctx, access.Actor{ID: f.worker.ID, Role: "viewer"})
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("role change should build a new controller")
	}
}
