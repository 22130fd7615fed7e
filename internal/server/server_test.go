package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/planbridge/internal/config"
	"github.com/matzehuels/planbridge/internal/connect"
	"github.com/matzehuels/planbridge/pkg/archive"
	"github.com/matzehuels/planbridge/pkg/buildinfo"
	"github.com/matzehuels/planbridge/pkg/cache"
	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/session"
	"github.com/matzehuels/planbridge/pkg/snapshot"
	"github.com/matzehuels/planbridge/pkg/store"
)

func testData() snapshot.Data {
	return snapshot.Data{
		Workspaces: []snapshot.Workspace{{ID: "ws-1", Name: "Payments"}},
		Stories: []snapshot.Story{
			{ID: "st-2", WorkspaceID: "ws-1", Title: "Payment form", Status: snapshot.StatusDraft, ParentID: "st-1"},
			{ID: "st-1", WorkspaceID: "ws-1", Title: "Checkout", Status: snapshot.StatusReady},
			{ID: "st-3", WorkspaceID: "ws-1", Title: "Refunds", Status: snapshot.StatusDraft},
		},
		Configurations: []snapshot.Configuration{{ID: "cfg-1", WorkspaceID: "ws-1", ADOAPIKey: "secret"}},
	}
}

func encode(t *testing.T, d snapshot.Data) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, snapshot.New(d), snapshot.FormatJSON); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type testEnv struct {
	handler http.Handler
	repo    *store.MemoryStore
	archive *archive.Memory
	pb      *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	repo := store.NewMemoryStore()
	if _, err := repo.ApplySnapshot(ctx, snapshot.New(testData()), store.ApplyOptions{}); err != nil {
		t.Fatal(err)
	}

	pb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products":
			w.Write([]byte(`{"data":[{"id":"p1","name":"Shop"}]}`))
		case "/features":
			w.Write([]byte(`{"data":[{"id":"f1","name":"Checkout","type":"feature","parent":{"product":{"id":"p1"}}}]}`))
		default:
			w.Write([]byte(`{"data":[]}`))
		}
	}))
	t.Cleanup(pb.Close)

	ado := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/wiql") {
			w.Write([]byte(`{"workItems":[{"id":10},{"id":11}]}`))
			return
		}
		w.Write([]byte(`{"value":[
			{"id":10,"fields":{"System.Title":"Payments","System.WorkItemType":"Epic"}},
			{"id":11,"fields":{"System.Title":"Checkout","System.WorkItemType":"User Story","System.Parent":10}}
		]}`))
	}))
	t.Cleanup(ado.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	creds := session.NewRedisStore(client, "")

	cfg := config.Default()
	cfg.ProductBoard.BaseURL = pb.URL
	cfg.AzureDevOps.BaseURL = ado.URL
	logger := log.New(io.Discard)
	arch := archive.NewMemory()

	srv := New(Options{
		Repo:        repo,
		Archive:     arch,
		Credentials: creds,
		Connector:   &connect.Connector{Credentials: creds, Cache: cache.NewNullCache(), Config: cfg, Logger: logger},
		Logger:      logger,
		CORSOrigin:  "*",
	})
	return &testEnv{handler: srv.Handler(), repo: repo, archive: arch, pb: pb}
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}

	rr = env.do(t, http.MethodGet, "/api/ready", nil)
	ready := decode[map[string]any](t, rr)
	if rr.Code != http.StatusOK || ready["status"] != "ready" {
		t.Errorf("ready = %d %v", rr.Code, ready)
	}

	rr = env.do(t, http.MethodGet, "/api/version", nil)
	version := decode[map[string]string](t, rr)
	if rr.Code != http.StatusOK || version["version"] != buildinfo.Version {
		t.Errorf("version = %d %v", rr.Code, version)
	}
}

func TestErrorBody(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		target string
		status int
		code   errors.Code
	}{
		{"unknown route", http.MethodGet, "/api/nope", http.StatusNotFound, errors.ErrCodeNotFound},
		{"unknown workspace", http.MethodGet, "/api/workspaces/ws-9/export", http.StatusNotFound, errors.ErrCodeWorkspaceNotFound},
		{"bad source", http.MethodGet, "/api/workspaces/ws-1/hierarchy?source=jira", http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"bad mode", http.MethodPost, "/api/snapshots/import?mode=merge", http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"bad format", http.MethodGet, "/api/workspaces/ws-1/export?format=csv", http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"missing archive entry", http.MethodGet, "/api/snapshots/none", http.StatusNotFound, errors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.target, nil)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.status, rr.Body)
			}
			body := decode[errorBody](t, rr)
			if body.Code != tt.code || body.Message == "" {
				t.Errorf("body = %+v, want code %s", body, tt.code)
			}
		})
	}
}

func TestListWorkspaces(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/workspaces", nil)
	got := decode[struct {
		Workspaces []snapshot.Workspace `json:"workspaces"`
	}](t, rr)
	if len(got.Workspaces) != 1 || got.Workspaces[0].ID != "ws-1" {
		t.Errorf("workspaces = %+v", got.Workspaces)
	}
}

func TestHierarchyFromStories(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/workspaces/ws-1/hierarchy", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	got := decode[hierarchyResponse](t, rr)
	if got.Nodes != 3 || len(got.Forest) != 2 {
		t.Fatalf("nodes = %d roots = %d", got.Nodes, len(got.Forest))
	}
	if root := got.Forest[0]; root.ID != "st-1" || len(root.Children) != 1 || root.Children[0].ID != "st-2" {
		t.Errorf("first root = %+v", root)
	}
	if !got.Report.Empty() || got.Warnings == nil {
		t.Errorf("report = %+v, warnings = %v", got.Report, got.Warnings)
	}
}

func TestHierarchyFromProductBoard(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/workspaces/ws-1/hierarchy?source=productboard", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("without token: status = %d, want 401", rr.Code)
	}

	rr = env.do(t, http.MethodPut, "/api/workspaces/ws-1/credentials", []byte(`{"productboard_token":"pb-token-1234"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("set credentials: %d %s", rr.Code, rr.Body)
	}

	rr = env.do(t, http.MethodGet, "/api/workspaces/ws-1/hierarchy?source=productboard", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	got := decode[hierarchyResponse](t, rr)
	if len(got.Forest) != 1 || got.Forest[0].ID != "p1" || got.Forest[0].Children[0].ID != "f1" {
		t.Errorf("forest = %+v", got.Forest)
	}
}

func TestHierarchyFromAzureDevOps(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/workspaces/ws-1/hierarchy?source=azuredevops", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("without credentials: status = %d, want 401", rr.Code)
	}

	rr = env.do(t, http.MethodPut, "/api/workspaces/ws-1/credentials",
		[]byte(`{"ado_organization":"contoso","ado_project":"Shop","ado_token":"ado-token-1234"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("set credentials: %d %s", rr.Code, rr.Body)
	}

	rr = env.do(t, http.MethodGet, "/api/workspaces/ws-1/hierarchy?source=azuredevops", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	got := decode[hierarchyResponse](t, rr)
	if len(got.Forest) != 1 || got.Forest[0].ID != "10" || got.Forest[0].Children[0].Kind != "user_story" {
		t.Errorf("forest = %+v", got.Forest)
	}
}

func TestCredentials(t *testing.T) {
	env := newTestEnv(t)

	if rr := env.do(t, http.MethodGet, "/api/workspaces/ws-1/credentials", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("get before set: %d", rr.Code)
	}
	if rr := env.do(t, http.MethodPut, "/api/workspaces/ws-9/credentials", []byte(`{}`)); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown workspace: %d", rr.Code)
	}
	if rr := env.do(t, http.MethodPut, "/api/workspaces/ws-1/credentials", []byte(`{"ttl":"soon"}`)); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad ttl: %d", rr.Code)
	}

	rr := env.do(t, http.MethodPut, "/api/workspaces/ws-1/credentials",
		[]byte(`{"ado_organization":"contoso","ado_project":"Shop","ado_token":"abcdefghijkl","ttl":"1h"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("set: %d %s", rr.Code, rr.Body)
	}

	rr = env.do(t, http.MethodGet, "/api/workspaces/ws-1/credentials", nil)
	got := decode[session.Credentials](t, rr)
	if got.ADOToken != "********ijkl" || got.ExpiresAt.IsZero() {
		t.Errorf("credentials = %+v", got)
	}

	if rr := env.do(t, http.MethodDelete, "/api/workspaces/ws-1/credentials", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/workspaces/ws-1/credentials", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", rr.Code)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/workspaces/ws-1/export?archive=true", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	snap, err := snapshot.ValidateExport(rr.Body.Bytes())
	if err != nil {
		t.Fatalf("export does not validate: %v", err)
	}
	if len(snap.Data.Stories) != 3 {
		t.Errorf("stories = %d", len(snap.Data.Stories))
	}
	if key := snap.Data.Configurations[0].ADOAPIKey; key != "********" {
		t.Errorf("api key not redacted: %q", key)
	}

	id := rr.Header().Get("X-Archive-ID")
	if id == "" {
		t.Fatal("no archive id")
	}
	rr = env.do(t, http.MethodGet, "/api/snapshots?workspace=ws-1", nil)
	list := decode[struct {
		Snapshots []archive.Entry `json:"snapshots"`
	}](t, rr)
	if len(list.Snapshots) != 1 || list.Snapshots[0].ID != id {
		t.Errorf("snapshots = %+v", list.Snapshots)
	}

	rr = env.do(t, http.MethodGet, "/api/snapshots/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get snapshot: %d", rr.Code)
	}
	if _, err := snapshot.ValidateExport(rr.Body.Bytes()); err != nil {
		t.Errorf("archived document invalid: %v", err)
	}

	rr = env.do(t, http.MethodGet, "/api/workspaces/ws-1/export?format=yaml", nil)
	if ct := rr.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestValidate(t *testing.T) {
	env := newTestEnv(t)

	bad := testData()
	bad.Stories[0].WorkspaceID = "ghost"
	rr := env.do(t, http.MethodPost, "/api/snapshots/validate", encode(t, bad))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decode[snapshot.Result](t, rr)
	if got.Valid || len(got.Errors) != 1 || got.Data == nil {
		t.Errorf("result = %+v", got)
	}

	rr = env.do(t, http.MethodPost, "/api/snapshots/validate", []byte(`{not json`))
	got = decode[snapshot.Result](t, rr)
	if got.Valid || got.Data != nil || len(got.Errors) == 0 {
		t.Errorf("malformed result = %+v", got)
	}
}

func TestValidateMalformedYAML(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/snapshots/validate", strings.NewReader("version: [1.0.0\ndata: {"))
	req.Header.Set("Content-Type", "application/yaml")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with the problem as data: %s", rr.Code, rr.Body)
	}
	got := decode[snapshot.Result](t, rr)
	if got.Valid || got.Data != nil || len(got.Errors) != 1 {
		t.Errorf("result = %+v", got)
	}
}

func TestImport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	d := testData()
	d.Workspaces = append(d.Workspaces, snapshot.Workspace{ID: "ws-2", Name: "Growth"})
	d.Stories = append(d.Stories, snapshot.Story{ID: "st-20", WorkspaceID: "ws-2", Title: "Banner", Status: snapshot.StatusDraft})
	doc := encode(t, d)

	rr := env.do(t, http.MethodPost, "/api/snapshots/import?dry_run=true", doc)
	if rr.Code != http.StatusOK {
		t.Fatalf("dry run: %d %s", rr.Code, rr.Body)
	}
	if _, err := env.repo.GetWorkspace(ctx, "ws-2"); err == nil {
		t.Fatal("dry run wrote data")
	}

	rr = env.do(t, http.MethodPost, "/api/snapshots/import", doc)
	if rr.Code != http.StatusCreated {
		t.Fatalf("import: %d %s", rr.Code, rr.Body)
	}
	res := decode[store.ApplyResult](t, rr)
	if res.Counts["stories"] != 4 || res.Mode != store.ModeUpsert {
		t.Errorf("result = %+v", res)
	}

	rr = env.do(t, http.MethodPost, "/api/snapshots/import?mode=insert", doc)
	if rr.Code != http.StatusConflict {
		t.Errorf("insert over existing: %d", rr.Code)
	}

	bad := testData()
	bad.Stories[0].WorkspaceID = "ghost"
	bad.Configurations[0].WorkspaceID = "ghost"
	rr = env.do(t, http.MethodPost, "/api/snapshots/import", encode(t, bad))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid import: %d", rr.Code)
	}
	body := decode[errorBody](t, rr)
	if body.Code != errors.ErrCodeReferential || len(body.Details) != 2 {
		t.Errorf("body = %+v", body)
	}
}

func TestImportYAML(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, snapshot.New(testData()), snapshot.FormatYAML); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/snapshots/import", strings.NewReader(buf.String()))
	req.Header.Set("Content-Type", "application/yaml")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
}

func TestArchiveDisabled(t *testing.T) {
	srv := New(Options{Repo: store.NewMemoryStore(), Logger: log.New(io.Discard)})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/snapshots", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rr.Code)
	}
}
