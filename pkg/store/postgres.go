package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/snapshot"
)

// Postgres error codes mapped onto planbridge error codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
)

// Column lists, id first.
var (
	workspaceCols     = []string{"id", "name", "description", "created_at", "updated_at"}
	storyCols         = []string{"id", "workspace_id", "title", "description", "status", "priority", "parent_id", "productboard_id", "ado_work_item_id", "story_points", "acceptance_criteria", "created_at", "updated_at"}
	configurationCols = []string{"id", "workspace_id", "productboard_api_key", "ado_organization", "ado_project", "ado_api_key", "area_path", "iteration_path", "sync_direction"}
	templateCols      = []string{"id", "workspace_id", "name", "type", "content", "is_default"}
	fieldMappingCols  = []string{"id", "workspace_id", "productboard_field", "ado_field", "mapping_type", "transform_expression"}
	featureFlagCols   = []string{"id", "workspace_id", "key", "enabled", "description"}
	aiPromptCols      = []string{"id", "workspace_id", "name", "prompt", "category", "is_active"}
)

// PostgresStore is a Repository backed by Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database. Run [ApplyMigrations] first.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects, migrates and returns a ready store.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := Open(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to database")
	}
	if err := ApplyMigrations(ctx, db, Migrations()); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "migrate database")
	}
	return NewPostgresStore(db), nil
}

// DB returns the underlying database handle.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) ListWorkspaces(ctx context.Context) ([]snapshot.Workspace, error) {
	return s.queryWorkspaces(ctx, nil)
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, id string) (*snapshot.Workspace, error) {
	ws, err := s.queryWorkspaces(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(ws) == 0 {
		return nil, errors.New(errors.ErrCodeWorkspaceNotFound, "workspace %q not found", id)
	}
	return &ws[0], nil
}

func (s *PostgresStore) UpsertWorkspace(ctx context.Context, w snapshot.Workspace) error {
	if err := errors.ValidateWorkspaceID(w.ID); err != nil {
		return err
	}
	return (&pgWriter{exec: s.db}).putWorkspace(ctx, w, ModeUpsert)
}

func (s *PostgresStore) ListStories(ctx context.Context, workspaceID string) ([]snapshot.Story, error) {
	return s.queryStories(ctx, []string{workspaceID})
}

func (s *PostgresStore) UpsertStory(ctx context.Context, st snapshot.Story) error {
	if err := errors.ValidateID(st.ID); err != nil {
		return err
	}
	return (&pgWriter{exec: s.db}).putStory(ctx, st, ModeUpsert)
}

func (s *PostgresStore) LoadSnapshotData(ctx context.Context, workspaceIDs ...string) (snapshot.Data, error) {
	var d snapshot.Data
	var err error

	if d.Workspaces, err = s.queryWorkspaces(ctx, workspaceIDs); err != nil {
		return d, err
	}
	if len(workspaceIDs) > 0 {
		found := make(map[string]bool, len(d.Workspaces))
		for _, w := range d.Workspaces {
			found[w.ID] = true
		}
		for _, id := range workspaceIDs {
			if !found[id] {
				return d, errors.New(errors.ErrCodeWorkspaceNotFound, "workspace %q not found", id)
			}
		}
	}
	ids := d.WorkspaceIDs()

	if d.Stories, err = s.queryStories(ctx, ids); err != nil {
		return d, err
	}
	if d.Configurations, err = queryRows(ctx, s.db, "configurations", configurationCols, ids, func(sc scanner) (c snapshot.Configuration, err error) {
		err = sc.Scan(&c.ID, &c.WorkspaceID, &c.ProductBoardAPIKey, &c.ADOOrganization, &c.ADOProject, &c.ADOAPIKey, &c.AreaPath, &c.IterationPath, &c.SyncDirection)
		return c, err
	}); err != nil {
		return d, err
	}
	if d.Templates, err = queryRows(ctx, s.db, "templates", templateCols, ids, func(sc scanner) (t snapshot.Template, err error) {
		err = sc.Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.Type, &t.Content, &t.IsDefault)
		return t, err
	}); err != nil {
		return d, err
	}
	if d.FieldMappings, err = queryRows(ctx, s.db, "field_mappings", fieldMappingCols, ids, func(sc scanner) (m snapshot.FieldMapping, err error) {
		err = sc.Scan(&m.ID, &m.WorkspaceID, &m.ProductBoardField, &m.ADOField, &m.MappingType, &m.TransformExpression)
		return m, err
	}); err != nil {
		return d, err
	}
	if d.FeatureFlags, err = queryRows(ctx, s.db, "feature_flags", featureFlagCols, ids, func(sc scanner) (f snapshot.FeatureFlag, err error) {
		err = sc.Scan(&f.ID, &f.WorkspaceID, &f.Key, &f.Enabled, &f.Description)
		return f, err
	}); err != nil {
		return d, err
	}
	if d.AIPrompts, err = queryRows(ctx, s.db, "ai_prompts", aiPromptCols, ids, func(sc scanner) (p snapshot.AIPrompt, err error) {
		err = sc.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Prompt, &p.Category, &p.IsActive)
		return p, err
	}); err != nil {
		return d, err
	}
	return d, nil
}

// ApplySnapshot writes the snapshot in a single transaction. Story parent
// references are checked at commit.
func (s *PostgresStore) ApplySnapshot(ctx context.Context, snap *snapshot.Snapshot, opts ApplyOptions) (*ApplyResult, error) {
	opts, result, err := prepare(snap, opts)
	if err != nil || opts.DryRun {
		return result, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "begin import")
	}
	if err := writeSnapshot(ctx, &pgWriter{exec: tx}, snap.Data, opts.Mode); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapError(err, "snapshot", "import")
	}
	return result, nil
}

func (s *PostgresStore) queryWorkspaces(ctx context.Context, ids []string) ([]snapshot.Workspace, error) {
	q := "SELECT " + strings.Join(workspaceCols, ", ") + " FROM workspaces"
	var args []any
	if ids != nil {
		q += " WHERE id = ANY($1)"
		args = append(args, ids)
	}
	return scanAll(ctx, s.db, q+" ORDER BY id", args, func(sc scanner) (w snapshot.Workspace, err error) {
		var created, updated sql.NullTime
		err = sc.Scan(&w.ID, &w.Name, &w.Description, &created, &updated)
		w.CreatedAt, w.UpdatedAt = formatTime(created), formatTime(updated)
		return w, err
	})
}

func (s *PostgresStore) queryStories(ctx context.Context, workspaceIDs []string) ([]snapshot.Story, error) {
	return queryRows(ctx, s.db, "stories", storyCols, workspaceIDs, func(sc scanner) (st snapshot.Story, err error) {
		var (
			parent           sql.NullString
			adoID            sql.NullInt64
			points           sql.NullFloat64
			created, updated sql.NullTime
		)
		err = sc.Scan(&st.ID, &st.WorkspaceID, &st.Title, &st.Description, &st.Status, &st.Priority,
			&parent, &st.ProductBoardID, &adoID, &points, &st.AcceptanceCriteria, &created, &updated)
		st.ParentID = parent.String
		if adoID.Valid {
			v := int(adoID.Int64)
			st.ADOWorkItemID = &v
		}
		if points.Valid {
			st.StoryPoints = &points.Float64
		}
		st.CreatedAt, st.UpdatedAt = formatTime(created), formatTime(updated)
		return st, err
	})
}

type scanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryRows selects the rows of a workspace-owned table.
func queryRows[T any](ctx context.Context, db querier, table string, cols, workspaceIDs []string, scan func(scanner) (T, error)) ([]T, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE workspace_id = ANY($1) ORDER BY id", strings.Join(cols, ", "), table)
	return scanAll(ctx, db, q, []any{workspaceIDs}, scan)
}

func scanAll[T any](ctx context.Context, db querier, q string, args []any, scan func(scanner) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "query")
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "scan")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "iterate rows")
	}
	return out, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// pgWriter writes records through a transaction or the pool.
type pgWriter struct {
	exec execer
}

func (w *pgWriter) put(ctx context.Context, kind, table string, cols []string, mode Mode, vals ...any) error {
	if _, err := w.exec.ExecContext(ctx, insertSQL(table, cols, mode), vals...); err != nil {
		return mapError(err, kind, fmt.Sprint(vals[0]))
	}
	return nil
}

func (w *pgWriter) putWorkspace(ctx context.Context, ws snapshot.Workspace, mode Mode) error {
	return w.put(ctx, "workspace", "workspaces", workspaceCols, mode,
		ws.ID, ws.Name, ws.Description, parseTime(ws.CreatedAt), parseTime(ws.UpdatedAt))
}

func (w *pgWriter) putConfiguration(ctx context.Context, c snapshot.Configuration, mode Mode) error {
	return w.put(ctx, "configuration", "configurations", configurationCols, mode,
		c.ID, c.WorkspaceID, c.ProductBoardAPIKey, c.ADOOrganization, c.ADOProject, c.ADOAPIKey, c.AreaPath, c.IterationPath, c.SyncDirection)
}

func (w *pgWriter) putTemplate(ctx context.Context, t snapshot.Template, mode Mode) error {
	return w.put(ctx, "template", "templates", templateCols, mode,
		t.ID, t.WorkspaceID, t.Name, t.Type, t.Content, t.IsDefault)
}

func (w *pgWriter) putFieldMapping(ctx context.Context, m snapshot.FieldMapping, mode Mode) error {
	return w.put(ctx, "field mapping", "field_mappings", fieldMappingCols, mode,
		m.ID, m.WorkspaceID, m.ProductBoardField, m.ADOField, m.MappingType, m.TransformExpression)
}

func (w *pgWriter) putFeatureFlag(ctx context.Context, f snapshot.FeatureFlag, mode Mode) error {
	return w.put(ctx, "feature flag", "feature_flags", featureFlagCols, mode,
		f.ID, f.WorkspaceID, f.Key, f.Enabled, f.Description)
}

func (w *pgWriter) putAIPrompt(ctx context.Context, p snapshot.AIPrompt, mode Mode) error {
	return w.put(ctx, "AI prompt", "ai_prompts", aiPromptCols, mode,
		p.ID, p.WorkspaceID, p.Name, p.Prompt, p.Category, p.IsActive)
}

func (w *pgWriter) putStory(ctx context.Context, s snapshot.Story, mode Mode) error {
	var parent, adoID, points any
	if s.ParentID != "" {
		parent = s.ParentID
	}
	if s.ADOWorkItemID != nil {
		adoID = *s.ADOWorkItemID
	}
	if s.StoryPoints != nil {
		points = *s.StoryPoints
	}
	return w.put(ctx, "story", "stories", storyCols, mode,
		s.ID, s.WorkspaceID, s.Title, s.Description, s.Status, s.Priority, parent, s.ProductBoardID,
		adoID, points, s.AcceptanceCriteria, parseTime(s.CreatedAt), parseTime(s.UpdatedAt))
}

// insertSQL builds a parameterised INSERT for cols. In upsert mode every
// column but the id is overwritten on conflict.
func insertSQL(table string, cols []string, mode Mode) string {
	params := make([]string, len(cols))
	for i := range cols {
		params[i] = "$" + strconv.Itoa(i+1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(params, ", "))
	if mode != ModeUpsert {
		return q
	}
	sets := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		sets = append(sets, c+" = EXCLUDED."+c)
	}
	return q + " ON CONFLICT (id) DO UPDATE SET " + strings.Join(sets, ", ")
}

// mapError converts constraint violations into coded errors.
func mapError(err error, kind, id string) error {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return errors.Wrap(errors.ErrCodeConflict, err, "%s %q already exists", kind, id)
		case pgForeignKeyViolation:
			return errors.Wrap(errors.ErrCodeReferential, err, "%s %q references a missing record", kind, id).
				WithDetails(pgErr.Detail)
		case pgCheckViolation, pgNotNullViolation:
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "%s %q violates %s", kind, id, pgErr.ConstraintName)
		}
	}
	return errors.Wrap(errors.ErrCodeInternal, err, "write %s %q", kind, id)
}

// parseTime converts an RFC 3339 string into a nullable timestamp argument.
// Snapshot validation has already rejected malformed values.
func parseTime(s string) any {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return t
}

func formatTime(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.UTC().Format(time.RFC3339Nano)
}

var _ Repository = (*PostgresStore)(nil)
