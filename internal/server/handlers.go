package server

import (
	"bytes"
	"context"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/planbridge/pkg/archive"
	"github.com/matzehuels/planbridge/pkg/buildinfo"
	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/hierarchy"
	"github.com/matzehuels/planbridge/pkg/session"
	"github.com/matzehuels/planbridge/pkg/snapshot"
	"github.com/matzehuels/planbridge/pkg/store"
)

// Hierarchy sources.
const (
	SourceStories      = "stories"
	SourceProductBoard = "productboard"
	SourceAzureDevOps  = "azuredevops"
)

// fail logs server-side failures and writes the error response. Errors that
// carry no code are reported without their message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", middleware.GetReqID(r.Context()), "path", r.URL.Path, "error", err)
	}
	if errors.GetCode(err) == "" {
		err = errors.New(errors.ErrCodeInternal, "internal error")
	}
	writeError(w, err)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{"database": map[string]any{"status": "ok"}}
	if err := s.repo.Ping(ctx); err != nil {
		status, code = "not_ready", http.StatusServiceUnavailable
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	}
	writeJSON(w, code, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.ListWorkspaces(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspaces": list})
}

// hierarchyResponse is the forest of one workspace with the degradations
// applied while building it.
type hierarchyResponse struct {
	WorkspaceID string           `json:"workspace_id"`
	Source      string           `json:"source"`
	Nodes       int              `json:"nodes"`
	Forest      hierarchy.Forest `json:"forest"`
	Report      hierarchy.Report `json:"report"`
	Warnings    []string         `json:"warnings"`
}

func (s *Server) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := errors.ValidateWorkspaceID(id); err != nil {
		s.fail(w, r, err)
		return
	}
	refresh, err := queryBool(r, "refresh")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = SourceStories
	}

	var entities []hierarchy.Entity
	switch source {
	case SourceStories:
		if _, err := s.repo.GetWorkspace(ctx, id); err != nil {
			s.fail(w, r, err)
			return
		}
		stories, err := s.repo.ListStories(ctx, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		entities = snapshot.StoryEntities(stories)
	case SourceProductBoard:
		if s.connector == nil {
			s.fail(w, r, errors.New(errors.ErrCodeUnsupported, "ProductBoard is not configured on this server"))
			return
		}
		runner, err := s.connector.Runner(ctx, id, s.repo, false)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if entities, err = runner.Entities(ctx, id, refresh); err != nil {
			s.fail(w, r, err)
			return
		}
	case SourceAzureDevOps:
		if s.connector == nil {
			s.fail(w, r, errors.New(errors.ErrCodeUnsupported, "Azure DevOps is not configured on this server"))
			return
		}
		ado, err := s.connector.AzureDevOps(ctx, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if entities, err = ado.FetchHierarchy(ctx); err != nil {
			s.fail(w, r, err)
			return
		}
	default:
		s.fail(w, r, errors.New(errors.ErrCodeInvalidInput, "unknown source %q (want %s, %s or %s)", source, SourceStories, SourceProductBoard, SourceAzureDevOps))
		return
	}

	forest, report := hierarchy.BuildWithReport(entities)
	warnings := report.Warnings()
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, hierarchyResponse{
		WorkspaceID: id,
		Source:      source,
		Nodes:       forest.Count(),
		Forest:      forest,
		Report:      report,
		Warnings:    warnings,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := errors.ValidateWorkspaceID(id); err != nil {
		s.fail(w, r, err)
		return
	}
	format, err := snapshot.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	archived, err := queryBool(r, "archive")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	snap, err := store.Export(ctx, s.repo, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	snap.Data = snap.Data.Redacted()

	if archived {
		if s.archive == nil {
			s.fail(w, r, errArchiveDisabled())
			return
		}
		entryID, err := s.archive.Save(ctx, snap, archive.Meta{Source: "api"})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.Header().Set("X-Archive-ID", entryID)
	}

	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, snap, format); err != nil {
		s.fail(w, r, err)
		return
	}
	contentType := "application/json"
	if format == snapshot.FormatYAML {
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+"-export."+string(format)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// snapshotBody reads a snapshot document from the request, converting YAML
// bodies to JSON.
func (s *Server) snapshotBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw, err := readBody(w, r, s.maxBody)
	if err != nil {
		return nil, err
	}
	return snapshot.Decode(bytes.NewReader(raw), bodyFormat(r))
}

func bodyFormat(r *http.Request) snapshot.Format {
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && strings.Contains(mt, "yaml") {
		return snapshot.FormatYAML
	}
	return snapshot.FormatJSON
}

// handleValidate reports every problem of the document as data, whatever its
// format. Only an unreadable body is an error response.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r, s.maxBody)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	doc, err := snapshot.Decode(bytes.NewReader(raw), bodyFormat(r))
	if err != nil {
		writeJSON(w, http.StatusOK, snapshot.Result{Valid: false, Errors: []string{errors.UserMessage(err)}})
		return
	}
	writeJSON(w, http.StatusOK, snapshot.ValidateImport(doc))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	mode, err := store.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	dryRun, err := queryBool(r, "dry_run")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	raw, err := s.snapshotBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := store.Import(r.Context(), s.repo, raw, store.ApplyOptions{Mode: mode, DryRun: dryRun})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if !dryRun {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func errArchiveDisabled() error {
	return errors.New(errors.ErrCodeUnsupported, "snapshot archive is not configured on this server")
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.fail(w, r, errArchiveDisabled())
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ws := r.URL.Query().Get("workspace")
	if ws != "" {
		if err := errors.ValidateWorkspaceID(ws); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	entries, err := s.archive.List(r.Context(), ws, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []archive.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": entries})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.fail(w, r, errArchiveDisabled())
		return
	}
	entry, err := s.archive.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Archive-ID", entry.ID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(entry.Document))
}

func (s *Server) credentialStore(w http.ResponseWriter, r *http.Request) (session.Store, string, bool) {
	if s.creds == nil {
		s.fail(w, r, errors.New(errors.ErrCodeUnsupported, "credential storage is not configured on this server"))
		return nil, "", false
	}
	id := chi.URLParam(r, "id")
	if _, err := s.repo.GetWorkspace(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return nil, "", false
	}
	return s.creds, id, true
}

func (s *Server) handleGetCredentials(w http.ResponseWriter, r *http.Request) {
	creds, id, ok := s.credentialStore(w, r)
	if !ok {
		return
	}
	c, err := creds.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if c == nil {
		s.fail(w, r, errors.Wrap(errors.ErrCodeNotFound, session.ErrNotConfigured, "workspace %q has no stored credentials", id))
		return
	}
	writeJSON(w, http.StatusOK, c.Redacted())
}

// credentialsRequest is the body of PUT /credentials. TTL is an optional Go
// duration such as "720h".
type credentialsRequest struct {
	ProductBoardToken string `json:"productboard_token"`
	ADOOrganization   string `json:"ado_organization"`
	ADOProject        string `json:"ado_project"`
	ADOToken          string `json:"ado_token"`
	TTL               string `json:"ttl"`
}

func (s *Server) handleSetCredentials(w http.ResponseWriter, r *http.Request) {
	creds, id, ok := s.credentialStore(w, r)
	if !ok {
		return
	}
	var req credentialsRequest
	if err := decodeJSON(w, r, s.maxBody, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	c := session.New(id)
	c.ProductBoardToken = req.ProductBoardToken
	c.ADOOrganization = req.ADOOrganization
	c.ADOProject = req.ADOProject
	c.ADOToken = req.ADOToken
	if req.TTL != "" {
		ttl, err := time.ParseDuration(req.TTL)
		if err != nil || ttl <= 0 {
			s.fail(w, r, errors.New(errors.ErrCodeInvalidInput, "ttl %q is not a positive duration", req.TTL))
			return
		}
		c.ExpiresAt = time.Now().Add(ttl)
	}
	if err := c.Validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := creds.Set(r.Context(), c); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Redacted())
}

func (s *Server) handleDeleteCredentials(w http.ResponseWriter, r *http.Request) {
	creds, id, ok := s.credentialStore(w, r)
	if !ok {
		return
	}
	if err := creds.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
